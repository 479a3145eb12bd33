package models

import "time"

// WebhookStatus represents whether a webhook registration receives events.
type WebhookStatus string

const (
	WebhookStatusActive   WebhookStatus = "active"
	WebhookStatusInactive WebhookStatus = "inactive"
)

// WebhookEvent names the business events a webhook can subscribe to.
type WebhookEvent string

const (
	WebhookMessageReceived    WebhookEvent = "message.received"
	WebhookMessageSent        WebhookEvent = "message.sent"
	WebhookOrderCreated       WebhookEvent = "order.created"
	WebhookOrderUpdated       WebhookEvent = "order.updated"
	WebhookCustomerCreated    WebhookEvent = "customer.created"
	WebhookCustomerUpdated    WebhookEvent = "customer.updated"
	WebhookConversationOpened WebhookEvent = "conversation.opened"
	WebhookConversationClosed WebhookEvent = "conversation.closed"
)

// Webhook is an external endpoint registered by a business for event
// fan-out. Secret, when set, is used for HMAC-SHA256 payload signing.
type Webhook struct {
	ID         string            `json:"id"`
	BusinessID string            `json:"business_id" validate:"required"`
	Name       string            `json:"name"        validate:"required"`
	URL        string            `json:"url"         validate:"required,url"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers,omitempty"`
	Events     []WebhookEvent    `json:"events"      validate:"required,min=1"`
	Status     WebhookStatus     `json:"status"      validate:"required"`
	Secret     string            `json:"secret,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// SubscribesTo reports whether the webhook is registered for the event.
func (w *Webhook) SubscribesTo(event WebhookEvent) bool {
	for _, subscribed := range w.Events {
		if subscribed == event {
			return true
		}
	}

	return false
}

// WebhookLog records one HTTP delivery attempt (or, for transport-level
// failures, the final outcome after retries exhaust with StatusCode 0).
type WebhookLog struct {
	ID         string         `json:"id"`
	WebhookID  string         `json:"webhook_id" validate:"required"`
	Event      WebhookEvent   `json:"event"      validate:"required"`
	Payload    map[string]any `json:"payload,omitempty"`
	Response   map[string]any `json:"response,omitempty"`
	StatusCode int            `json:"status_code"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

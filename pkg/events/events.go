// Package events defines the business event types consumed by the
// automation engine and fanned out to registered webhooks.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the event bus topic business events are published on.
const Topic = "chatrail.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	NewMessageEvent         EventType = "new_message"
	NewCustomerEvent        EventType = "new_customer"
	OrderPlacedEvent        EventType = "order_placed"
	OrderStatusChangedEvent EventType = "order_status_changed"
	KeywordDetectedEvent    EventType = "keyword_detected"
)

// Event is the tagged union delivered to the automation engine. Payload
// returns the event data as a flat context map; map serialization is
// key-sorted under encoding/json, which makes it usable as a stable
// deduplication key.
type Event interface {
	GetType() EventType
	GetBusinessID() string
	Payload() map[string]any
}

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	BusinessID string    `json:"business_id"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewBaseEvent(eventType EventType, businessID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		BusinessID: businessID,
		Timestamp:  time.Now().UTC(),
	}
}

func (b BaseEvent) GetBusinessID() string {
	return b.BusinessID
}

// NewMessage is published when an inbound message is recorded.
type NewMessage struct {
	BaseEvent

	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	CustomerID     string `json:"customer_id"`
	Content        string `json:"content"`
}

func (e NewMessage) GetType() EventType {
	return NewMessageEvent
}

func (e NewMessage) Payload() map[string]any {
	return map[string]any{
		"messageId":      e.MessageID,
		"conversationId": e.ConversationID,
		"customerId":     e.CustomerID,
		"businessId":     e.BusinessID,
		"content":        e.Content,
	}
}

// NewCustomer is published when a customer record is created.
type NewCustomer struct {
	BaseEvent

	CustomerID string `json:"customer_id"`
}

func (e NewCustomer) GetType() EventType {
	return NewCustomerEvent
}

func (e NewCustomer) Payload() map[string]any {
	return map[string]any{
		"customerId": e.CustomerID,
		"businessId": e.BusinessID,
	}
}

// OrderPlaced is published when a new order is recorded.
type OrderPlaced struct {
	BaseEvent

	OrderID    string  `json:"order_id"`
	CustomerID string  `json:"customer_id"`
	Total      float64 `json:"total"`
}

func (e OrderPlaced) GetType() EventType {
	return OrderPlacedEvent
}

func (e OrderPlaced) Payload() map[string]any {
	return map[string]any{
		"orderId":    e.OrderID,
		"customerId": e.CustomerID,
		"businessId": e.BusinessID,
		"total":      e.Total,
	}
}

// OrderStatusChanged is published when an order transitions status.
type OrderStatusChanged struct {
	BaseEvent

	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
	Status     string `json:"status"`
}

func (e OrderStatusChanged) GetType() EventType {
	return OrderStatusChangedEvent
}

func (e OrderStatusChanged) Payload() map[string]any {
	return map[string]any{
		"orderId":    e.OrderID,
		"customerId": e.CustomerID,
		"businessId": e.BusinessID,
		"status":     e.Status,
	}
}

// KeywordDetected is published by upstream message analysis when a tracked
// keyword appears in an inbound message.
type KeywordDetected struct {
	BaseEvent

	MessageID  string `json:"message_id"`
	CustomerID string `json:"customer_id"`
	Keyword    string `json:"keyword"`
}

func (e KeywordDetected) GetType() EventType {
	return KeywordDetectedEvent
}

func (e KeywordDetected) Payload() map[string]any {
	return map[string]any{
		"messageId":  e.MessageID,
		"customerId": e.CustomerID,
		"businessId": e.BusinessID,
		"keyword":    e.Keyword,
	}
}

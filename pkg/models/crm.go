package models

import "time"

// Channel identifies the messaging channel a conversation lives on.
type Channel string

const (
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelSMS       Channel = "sms"
	ChannelInstagram Channel = "instagram"
	ChannelTikTok    Channel = "tiktok"
)

// RequiresDelivery reports whether outbound messages on the channel go
// through the external transport. Other channels are recorded only.
func (c Channel) RequiresDelivery() bool {
	return c == ChannelWhatsApp || c == ChannelSMS
}

// MessageDirection marks a message as inbound or outbound.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// ConversationStatus is the open/closed state of a conversation.
type ConversationStatus string

const (
	ConversationOpen   ConversationStatus = "open"
	ConversationClosed ConversationStatus = "closed"
)

// Business is the tenant boundary; every other record is scoped to one.
type Business struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" validate:"required"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Customer is a contact belonging to a business.
type Customer struct {
	ID         string         `json:"id"`
	BusinessID string         `json:"business_id" validate:"required"`
	Name       string         `json:"name"        validate:"required"`
	Phone      string         `json:"phone"       validate:"required"`
	Email      string         `json:"email,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// HasTag reports whether the customer already carries the tag.
func (c *Customer) HasTag(tag string) bool {
	for _, existing := range c.Tags {
		if existing == tag {
			return true
		}
	}

	return false
}

// CustomerUpdate is a partial-update map applied to a customer's mutable
// fields. Unknown keys land in Metadata.
type CustomerUpdate map[string]any

// Conversation is a per-channel thread between a business and a customer.
type Conversation struct {
	ID            string             `json:"id"`
	BusinessID    string             `json:"business_id" validate:"required"`
	CustomerID    string             `json:"customer_id" validate:"required"`
	Channel       Channel            `json:"channel"     validate:"required"`
	Status        ConversationStatus `json:"status"      validate:"required"`
	LastMessageAt *time.Time         `json:"last_message_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Message is a single inbound or outbound message within a conversation.
type Message struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id" validate:"required"`
	BusinessID     string           `json:"business_id"     validate:"required"`
	Direction      MessageDirection `json:"direction"       validate:"required"`
	Content        string           `json:"content"         validate:"required"`
	Channel        Channel          `json:"channel"         validate:"required"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// Order is a customer order; the automation engine reacts to its
// placement and status changes.
type Order struct {
	ID         string      `json:"id"`
	BusinessID string      `json:"business_id" validate:"required"`
	CustomerID string      `json:"customer_id" validate:"required"`
	Status     OrderStatus `json:"status"      validate:"required"`
	Total      float64     `json:"total"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

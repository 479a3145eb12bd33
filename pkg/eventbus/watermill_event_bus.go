package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/chatrail/chatrail/pkg/events"
)

type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) EventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

			handler, exists := eb.subscriptions[eventType]
			if !exists {
				msg.Ack()

				continue
			}

			event, err := decodeEvent(eventType, msg.Payload)
			if err != nil {
				msg.Nack()

				continue
			}

			err = handler(ctx, event)
			if err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func decodeEvent(eventType events.EventType, payload []byte) (events.Event, error) {
	switch eventType {
	case events.NewMessageEvent:
		var event events.NewMessage

		return event, json.Unmarshal(payload, &event)
	case events.NewCustomerEvent:
		var event events.NewCustomer

		return event, json.Unmarshal(payload, &event)
	case events.OrderPlacedEvent:
		var event events.OrderPlaced

		return event, json.Unmarshal(payload, &event)
	case events.OrderStatusChangedEvent:
		var event events.OrderStatusChanged

		return event, json.Unmarshal(payload, &event)
	case events.KeywordDetectedEvent:
		var event events.KeywordDetected

		return event, json.Unmarshal(payload, &event)
	default:
		return nil, &UnknownEventTypeError{Type: string(eventType)}
	}
}

// UnknownEventTypeError is returned when a message carries an event type
// the bus does not know how to decode.
type UnknownEventTypeError struct {
	Type string
}

func (e *UnknownEventTypeError) Error() string {
	return "unknown event type: " + e.Type
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}

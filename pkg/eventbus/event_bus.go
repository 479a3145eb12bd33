// Package eventbus provides event-driven delivery of business events to
// the automation engine and webhook fan-out.
package eventbus

import (
	"context"

	"github.com/chatrail/chatrail/pkg/events"
)

type EventHandler func(ctx context.Context, event events.Event) error

type EventPublisher interface {
	Publish(ctx context.Context, key string, event events.Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

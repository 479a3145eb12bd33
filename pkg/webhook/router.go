package webhook

import (
	"context"
	"log/slog"

	"github.com/chatrail/chatrail/pkg/eventbus"
	"github.com/chatrail/chatrail/pkg/events"
	"github.com/chatrail/chatrail/pkg/models"
)

// eventSubscriptions maps bus events onto the names webhooks subscribe
// to. Events without an entry are internal and never leave the system.
var eventSubscriptions = map[events.EventType]models.WebhookEvent{
	events.NewMessageEvent:         models.WebhookMessageReceived,
	events.NewCustomerEvent:        models.WebhookCustomerCreated,
	events.OrderPlacedEvent:        models.WebhookOrderCreated,
	events.OrderStatusChangedEvent: models.WebhookOrderUpdated,
}

// Router forwards bus events to registered webhooks.
type Router struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewRouter(logger *slog.Logger, dispatcher *Dispatcher) *Router {
	return &Router{
		dispatcher: dispatcher,
		logger:     logger.With("module", "webhook-router"),
	}
}

// Handler adapts the router to a bus subscription. Dispatch failures are
// logged and acknowledged; webhook delivery never blocks event flow.
func (r *Router) Handler() eventbus.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		r.Route(ctx, event)

		return nil
	}
}

// Route fans one event out to the business's subscribed webhooks.
func (r *Router) Route(ctx context.Context, event events.Event) {
	webhookEvent, ok := eventSubscriptions[event.GetType()]
	if !ok {
		return
	}

	err := r.dispatcher.Dispatch(ctx, webhookEvent, event.GetBusinessID(), event.Payload())
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to dispatch webhooks for event",
			"eventType", event.GetType(),
			"businessId", event.GetBusinessID(),
			"error", err)
	}
}

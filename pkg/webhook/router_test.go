package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatrail/chatrail/pkg/events"
	"github.com/chatrail/chatrail/pkg/log"
	"github.com/chatrail/chatrail/pkg/models"
	"github.com/chatrail/chatrail/pkg/persistence/memory"
)

func TestRouterForwardsOrderPlaced(t *testing.T) {
	store := memory.NewPersistence()

	received := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	hook := &models.Webhook{
		BusinessID: "biz-1",
		Name:       "Orders hook",
		URL:        server.URL,
		Events:     []models.WebhookEvent{models.WebhookOrderCreated},
		Status:     models.WebhookStatusActive,
	}
	require.NoError(t, store.Webhooks().Create(context.Background(), hook))

	router := NewRouter(log.WithModule("test"), NewDispatcher(log.WithModule("test"), store))

	event := events.OrderPlaced{
		BaseEvent: events.NewBaseEvent(events.OrderPlacedEvent, "biz-1"),
		OrderID:   "ord-1",
		Total:     99.5,
	}

	require.NoError(t, router.Handler()(context.Background(), event))
	assert.Equal(t, "application/json", <-received)

	logs, err := store.WebhookLogs().ListByWebhook(context.Background(), hook.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Success)
}

func TestRouterIgnoresUnmappedEvents(t *testing.T) {
	store := memory.NewPersistence()
	router := NewRouter(log.WithModule("test"), NewDispatcher(log.WithModule("test"), store))

	event := events.KeywordDetected{
		BaseEvent: events.NewBaseEvent(events.KeywordDetectedEvent, "biz-1"),
		Keyword:   "refund",
	}

	// No webhooks registered and no mapping; must be a clean no-op.
	require.NoError(t, router.Handler()(context.Background(), event))
}

package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatrail/chatrail/pkg/log"
	"github.com/chatrail/chatrail/pkg/models"
	"github.com/chatrail/chatrail/pkg/persistence/memory"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *memory.Persistence, *[]time.Duration) {
	t.Helper()

	store := memory.NewPersistence()
	dispatcher := NewDispatcher(log.WithModule("test"), store)

	waits := &[]time.Duration{}
	dispatcher.sleepFunc = func(_ context.Context, d time.Duration) {
		*waits = append(*waits, d)
	}

	return dispatcher, store, waits
}

func registerWebhook(t *testing.T, store *memory.Persistence, url, secret string, events ...models.WebhookEvent) *models.Webhook {
	t.Helper()

	if len(events) == 0 {
		events = []models.WebhookEvent{models.WebhookOrderCreated}
	}

	hook := &models.Webhook{
		BusinessID: "biz-1",
		Name:       "test endpoint",
		URL:        url,
		Events:     events,
		Status:     models.WebhookStatusActive,
		Secret:     secret,
	}
	require.NoError(t, store.Webhooks().Create(context.Background(), hook))

	return hook
}

func TestDispatchDeliversSignedPayload(t *testing.T) {
	dispatcher, store, _ := newTestDispatcher(t)

	var (
		mu        sync.Mutex
		body      []byte
		signature string
		secret    string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		body, _ = io.ReadAll(r.Body)
		signature = r.Header.Get("X-Webhook-Signature")
		secret = r.Header.Get("X-Webhook-Secret")

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	hook := registerWebhook(t, store, server.URL, "sekrit")

	err := dispatcher.Dispatch(context.Background(), models.WebhookOrderCreated, "biz-1",
		map[string]any{"orderId": "ord-1"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()

	assert.Contains(t, string(body), `"event":"order.created"`)
	assert.Contains(t, string(body), `"businessId":"biz-1"`)
	assert.Equal(t, Sign(body, "sekrit"), signature)
	assert.Equal(t, "sekrit", secret)

	logs, err := store.WebhookLogs().ListByWebhook(context.Background(), hook.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Success)
	assert.Equal(t, http.StatusOK, logs[0].StatusCode)
}

func TestDispatchRetriesServerErrors(t *testing.T) {
	dispatcher, store, waits := newTestDispatcher(t)

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	hook := registerWebhook(t, store, server.URL, "")

	err := dispatcher.Dispatch(context.Background(), models.WebhookOrderCreated, "biz-1", nil)
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)

	logs, err := store.WebhookLogs().ListByWebhook(context.Background(), hook.ID)
	require.NoError(t, err)
	require.Len(t, logs, 3)

	for _, entry := range logs {
		assert.False(t, entry.Success)
		assert.Equal(t, http.StatusInternalServerError, entry.StatusCode)
	}
}

func TestDispatchTransportFailureLogsOnce(t *testing.T) {
	dispatcher, store, _ := newTestDispatcher(t)

	hook := registerWebhook(t, store, "http://127.0.0.1:1/unreachable", "")

	err := dispatcher.Dispatch(context.Background(), models.WebhookOrderCreated, "biz-1", nil)
	require.NoError(t, err)

	logs, err := store.WebhookLogs().ListByWebhook(context.Background(), hook.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	assert.Equal(t, 0, logs[0].StatusCode)
	assert.False(t, logs[0].Success)
	assert.NotEmpty(t, logs[0].Error)
}

func TestDispatchSkipsUnsubscribedAndInactive(t *testing.T) {
	dispatcher, store, _ := newTestDispatcher(t)

	var calls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	unsubscribed := registerWebhook(t, store, server.URL, "", models.WebhookCustomerCreated)

	inactive := &models.Webhook{
		BusinessID: "biz-1",
		Name:       "inactive endpoint",
		URL:        server.URL,
		Events:     []models.WebhookEvent{models.WebhookOrderCreated},
		Status:     models.WebhookStatusInactive,
	}
	require.NoError(t, store.Webhooks().Create(context.Background(), inactive))

	err := dispatcher.Dispatch(context.Background(), models.WebhookOrderCreated, "biz-1", nil)
	require.NoError(t, err)

	assert.Zero(t, calls)

	logs, err := store.WebhookLogs().ListByWebhook(context.Background(), unsubscribed.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestDispatchIsolatesTargets(t *testing.T) {
	dispatcher, store, _ := newTestDispatcher(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	broken := registerWebhook(t, store, "http://127.0.0.1:1/unreachable", "")
	healthy := registerWebhook(t, store, server.URL, "")

	err := dispatcher.Dispatch(context.Background(), models.WebhookOrderCreated, "biz-1", nil)
	require.NoError(t, err)

	healthyLogs, err := store.WebhookLogs().ListByWebhook(context.Background(), healthy.ID)
	require.NoError(t, err)
	require.Len(t, healthyLogs, 1)
	assert.True(t, healthyLogs[0].Success)

	brokenLogs, err := store.WebhookLogs().ListByWebhook(context.Background(), broken.ID)
	require.NoError(t, err)
	require.Len(t, brokenLogs, 1)
	assert.False(t, brokenLogs[0].Success)
}

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatrail/chatrail/pkg/automation"
	"github.com/chatrail/chatrail/pkg/messaging"
	"github.com/chatrail/chatrail/pkg/models"
	"github.com/chatrail/chatrail/pkg/persistence/memory"
	"github.com/chatrail/chatrail/pkg/webhook"
	"github.com/chatrail/chatrail/pkg/workflow"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestApp(t *testing.T) (*memory.Persistence, *fiber.App) {
	t.Helper()

	store := memory.NewPersistence()
	logger := testLogger()
	transport := messaging.NewNoopTransport(logger)
	workflowEngine := workflow.NewEngine(logger, store, transport)
	dedup := automation.NewMemoryDedupStore(automation.DedupWindow)
	automationEngine := automation.NewEngine(logger, store, transport, dedup)
	dispatcher := webhook.NewDispatcher(logger, store)

	handlers := NewAPIHandlers(logger, store, workflowEngine, automationEngine, dispatcher)

	return store, NewRouter(handlers)
}

func jsonRequest(method, target string, body any) *http.Request {
	var reader io.Reader

	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	defer resp.Body.Close()

	var decoded map[string]any

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))

	return decoded
}

func createActiveWorkflow(t *testing.T, store *memory.Persistence) *models.WorkflowDefinition {
	t.Helper()

	wf := &models.WorkflowDefinition{
		BusinessID: "biz-1",
		Name:       "Welcome flow",
		Status:     models.WorkflowStatusActive,
		Nodes: []models.Node{
			{ID: "start", Type: models.NodeTypeTrigger},
			{ID: "done", Type: models.NodeTypeEnd},
		},
		Edges: []models.Edge{
			{ID: "e1", Source: "start", Target: "done"},
		},
	}

	require.NoError(t, store.Workflows().Create(context.Background(), wf))

	return wf
}

func TestExecuteWorkflow_Completes(t *testing.T) {
	store, app := setupTestApp(t)
	wf := createActiveWorkflow(t, store)

	req := jsonRequest(http.MethodPost, "/api/workflows/"+wf.ID+"/execute", map[string]any{
		"context": map[string]any{"customerName": "Ana"},
	})

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, string(models.ExecutionStatusCompleted), body["status"])
	assert.Equal(t, wf.ID, body["workflow_id"])
}

func TestExecuteWorkflow_NotFound(t *testing.T) {
	_, app := setupTestApp(t)

	req := jsonRequest(http.MethodPost, "/api/workflows/missing/execute", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExecuteWorkflow_InactiveRejected(t *testing.T) {
	store, app := setupTestApp(t)

	wf := &models.WorkflowDefinition{
		BusinessID: "biz-1",
		Name:       "Draft flow",
		Status:     models.WorkflowStatusDraft,
		Nodes:      []models.Node{{ID: "start", Type: models.NodeTypeTrigger}},
	}
	require.NoError(t, store.Workflows().Create(context.Background(), wf))

	req := jsonRequest(http.MethodPost, "/api/workflows/"+wf.ID+"/execute", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	executions, err := store.WorkflowExecutions().ListByWorkflow(context.Background(), wf.ID)
	require.NoError(t, err)
	assert.Empty(t, executions)
}

func TestTriggerAutomation_FiresMatchingAutomation(t *testing.T) {
	store, app := setupTestApp(t)
	ctx := context.Background()

	customer := &models.Customer{BusinessID: "biz-1", Name: "Ana", Phone: "+5511999"}
	require.NoError(t, store.Customers().Create(ctx, customer))

	rule := &models.Automation{
		BusinessID: "biz-1",
		Name:       "Tag new customers",
		Trigger:    models.TriggerNewCustomer,
		Action:     models.ActionAssignTag,
		Config:     map[string]any{"tag": "fresh"},
		Status:     models.AutomationStatusActive,
	}
	require.NoError(t, store.Automations().Create(ctx, rule))

	req := jsonRequest(http.MethodPost, "/api/automations/trigger", map[string]any{
		"type":        "new_customer",
		"business_id": "biz-1",
		"payload":     map[string]any{"customerId": customer.ID},
	})

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	updated, err := store.Customers().GetByID(ctx, customer.ID)
	require.NoError(t, err)
	assert.Contains(t, updated.Tags, "fresh")
}

func TestTriggerAutomation_RejectsUnknownType(t *testing.T) {
	_, app := setupTestApp(t)

	req := jsonRequest(http.MethodPost, "/api/automations/trigger", map[string]any{
		"type":        "solar_flare",
		"business_id": "biz-1",
	})

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTriggerAutomation_RequiresBusinessID(t *testing.T) {
	_, app := setupTestApp(t)

	req := jsonRequest(http.MethodPost, "/api/automations/trigger", map[string]any{
		"type": "new_customer",
	})

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTestWebhook_DeliversAndReturnsLogs(t *testing.T) {
	store, app := setupTestApp(t)
	ctx := context.Background()

	received := make(chan []byte, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	hook := &models.Webhook{
		BusinessID: "biz-1",
		Name:       "CI hook",
		URL:        server.URL,
		Events:     []models.WebhookEvent{models.WebhookOrderCreated},
		Status:     models.WebhookStatusActive,
	}
	require.NoError(t, store.Webhooks().Create(ctx, hook))

	req := jsonRequest(http.MethodPost, "/api/webhooks/"+hook.ID+"/test", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["delivered"])

	delivered := <-received

	var payload map[string]any

	require.NoError(t, json.Unmarshal(delivered, &payload))
	assert.Equal(t, string(models.WebhookOrderCreated), payload["event"])
	assert.Equal(t, "biz-1", payload["businessId"])

	logs, err := store.WebhookLogs().ListByWebhook(ctx, hook.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Success)
}

func TestTestWebhook_NotFound(t *testing.T) {
	_, app := setupTestApp(t)

	req := jsonRequest(http.MethodPost, "/api/webhooks/missing/test", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	_, app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"])
}

package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatrail/chatrail/pkg/automation"
	"github.com/chatrail/chatrail/pkg/log"
	"github.com/chatrail/chatrail/pkg/messaging"
	"github.com/chatrail/chatrail/pkg/persistence/memory"
)

func setupTestApp() *fiber.App {
	logger := log.WithModule("test")

	api := NewAPI(
		logger,
		memory.NewPersistence(),
		messaging.NewNoopTransport(logger),
		automation.NewMemoryDedupStore(automation.DedupWindow),
	)

	return api.App()
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestApp()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Chatrail API", string(body))
}

func TestAPI_HealthCheck(t *testing.T) {
	app := setupTestApp()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_UnknownWorkflowExecution(t *testing.T) {
	app := setupTestApp()

	req := httptest.NewRequest(http.MethodPost, "/api/workflows/none/execute", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// Package web exposes the workflow and automation functionality over a
// thin REST surface; all semantics live in the engine packages.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/chatrail/chatrail/pkg/events"
	"github.com/chatrail/chatrail/pkg/models"
	"github.com/chatrail/chatrail/pkg/persistence"
	"github.com/chatrail/chatrail/pkg/webhook"
	"github.com/chatrail/chatrail/pkg/workflow"
)

// AutomationProcessor consumes business events; implemented by the
// automation engine.
type AutomationProcessor interface {
	ProcessEvent(ctx context.Context, event events.Event)
}

// APIHandlers holds the wiring for the REST adapters.
type APIHandlers struct {
	workflowEngine *workflow.Engine
	automations    AutomationProcessor
	dispatcher     *webhook.Dispatcher
	persistence    persistence.Persistence
	validator      *validator.Validate
	logger         *slog.Logger
}

// NewAPIHandlers wires the handler set.
func NewAPIHandlers(
	logger *slog.Logger,
	persistence persistence.Persistence,
	workflowEngine *workflow.Engine,
	automations AutomationProcessor,
	dispatcher *webhook.Dispatcher,
) *APIHandlers {
	return &APIHandlers{
		workflowEngine: workflowEngine,
		automations:    automations,
		dispatcher:     dispatcher,
		persistence:    persistence,
		validator:      validator.New(),
		logger:         logger.With("module", "web"),
	}
}

// NewRouter builds a fiber application with all routes mounted.
func NewRouter(handlers *APIHandlers) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "chatrail-api",
	})

	RegisterRoutes(app, handlers)

	return app
}

// RegisterRoutes mounts the API surface on an existing application so
// callers can install middleware first.
func RegisterRoutes(app *fiber.App, handlers *APIHandlers) {
	app.Get("/health", handlers.HealthCheck)

	api := app.Group("/api")
	api.Post("/workflows/:id/execute", handlers.ExecuteWorkflow)
	api.Post("/automations/trigger", handlers.TriggerAutomation)
	api.Post("/webhooks/:id/test", handlers.TestWebhook)
}

type executeWorkflowRequest struct {
	Context map[string]any `json:"context"`
}

// ExecuteWorkflow starts a manual run and surfaces its outcome to the
// caller, including workflow failures.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req executeWorkflowRequest

	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return badRequest(c, "Invalid request body: "+err.Error())
		}
	}

	execution, err := h.workflowEngine.Execute(c.Context(), id, req.Context)
	if err != nil {
		switch {
		case persistence.IsWorkflowNotFound(err):
			return notFound(c, "Workflow not found")
		case errors.Is(err, workflow.ErrWorkflowNotActive):
			return unprocessable(c, "Workflow is not active")
		case execution != nil:
			// The run started and failed; return the failed execution
			// alongside the error detail.
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"execution": execution,
				"error":     err.Error(),
			})
		default:
			return internalError(c, err)
		}
	}

	return c.JSON(execution)
}

type triggerAutomationRequest struct {
	Type       string         `json:"type"        validate:"required"`
	BusinessID string         `json:"business_id" validate:"required"`
	Payload    map[string]any `json:"payload"`
}

// TriggerAutomation feeds a synthetic event to the automation engine.
// Processing is fire-and-forget; the response only acknowledges receipt.
func (h *APIHandlers) TriggerAutomation(c fiber.Ctx) error {
	var req triggerAutomationRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event, err := buildEvent(req)
	if err != nil {
		return badRequest(c, err.Error())
	}

	h.automations.ProcessEvent(c.Context(), event)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}

type testWebhookRequest struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// TestWebhook delivers a test payload to one registered webhook,
// exercising the full retry and logging path.
func (h *APIHandlers) TestWebhook(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Webhook ID is required")
	}

	target, err := h.persistence.Webhooks().GetByID(c.Context(), id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Webhook not found")
		}

		return internalError(c, err)
	}

	var req testWebhookRequest

	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return badRequest(c, "Invalid request body: "+err.Error())
		}
	}

	event := models.WebhookEvent(req.Event)
	if event == "" && len(target.Events) > 0 {
		event = target.Events[0]
	}

	data := req.Data
	if data == nil {
		data = map[string]any{"test": true}
	}

	err = h.dispatcher.DispatchTo(c.Context(), target, event, data)
	if err != nil {
		return internalError(c, err)
	}

	logs, err := h.persistence.WebhookLogs().ListByWebhook(c.Context(), target.ID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"delivered": true, "logs": logs})
}

// HealthCheck reports storage reachability.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{"status": "healthy"})
}

// buildEvent maps a trigger request onto a typed event.
func buildEvent(req triggerAutomationRequest) (events.Event, error) {
	payload := func(key string) string {
		value, _ := req.Payload[key].(string)

		return value
	}

	switch events.EventType(req.Type) {
	case events.NewMessageEvent:
		return events.NewMessage{
			BaseEvent:      events.NewBaseEvent(events.NewMessageEvent, req.BusinessID),
			MessageID:      payload("messageId"),
			ConversationID: payload("conversationId"),
			CustomerID:     payload("customerId"),
			Content:        payload("content"),
		}, nil
	case events.NewCustomerEvent:
		return events.NewCustomer{
			BaseEvent:  events.NewBaseEvent(events.NewCustomerEvent, req.BusinessID),
			CustomerID: payload("customerId"),
		}, nil
	case events.OrderPlacedEvent:
		total, _ := req.Payload["total"].(float64)

		return events.OrderPlaced{
			BaseEvent:  events.NewBaseEvent(events.OrderPlacedEvent, req.BusinessID),
			OrderID:    payload("orderId"),
			CustomerID: payload("customerId"),
			Total:      total,
		}, nil
	case events.OrderStatusChangedEvent:
		return events.OrderStatusChanged{
			BaseEvent:  events.NewBaseEvent(events.OrderStatusChangedEvent, req.BusinessID),
			OrderID:    payload("orderId"),
			CustomerID: payload("customerId"),
			Status:     payload("status"),
		}, nil
	case events.KeywordDetectedEvent:
		return events.KeywordDetected{
			BaseEvent:  events.NewBaseEvent(events.KeywordDetectedEvent, req.BusinessID),
			MessageID:  payload("messageId"),
			CustomerID: payload("customerId"),
			Keyword:    payload("keyword"),
		}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", req.Type)
	}
}

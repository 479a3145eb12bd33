// Package workflow executes user-authored node graphs: starting at the
// trigger node, each step is dispatched by node type until an end node, a
// dead end, or a failure.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/chatrail/chatrail/pkg/condition"
	"github.com/chatrail/chatrail/pkg/messaging"
	"github.com/chatrail/chatrail/pkg/models"
	"github.com/chatrail/chatrail/pkg/persistence"
	"github.com/chatrail/chatrail/pkg/segment"
	"github.com/chatrail/chatrail/pkg/template"
)

// maxSteps caps a single run regardless of graph shape, guarding against
// engine bugs independently of the repeat-visit check.
const maxSteps = 100

const webhookNodeTimeout = 30 * time.Second

// ErrWorkflowNotActive is returned when execution is requested for a
// workflow that exists but is not in active status.
var ErrWorkflowNotActive = errors.New("workflow is not active")

// Engine runs one workflow graph per Execute call. Runs are held in
// process memory; a crash mid-run abandons the execution as failed-silent.
type Engine struct {
	persistence persistence.Persistence
	transport   messaging.Transport
	segments    *segment.Oracle
	logger      *slog.Logger
	httpClient  *http.Client
	sleepFunc   func(d time.Duration)
}

// NewEngine wires a workflow engine. transport may be nil; send_message
// nodes then record without delivering.
func NewEngine(logger *slog.Logger, persistence persistence.Persistence, transport messaging.Transport) *Engine {
	return &Engine{
		persistence: persistence,
		transport:   transport,
		segments:    segment.NewOracle(persistence),
		logger:      logger.With("module", "workflow"),
		httpClient:  &http.Client{Timeout: webhookNodeTimeout},
		sleepFunc:   time.Sleep,
	}
}

// Execute runs the workflow against the supplied trigger context. The
// workflow must exist and be active before an execution record is created.
// Failures are persisted on the execution and returned to the caller.
func (e *Engine) Execute(ctx context.Context, workflowID string, triggerContext map[string]any) (*models.WorkflowExecution, error) {
	workflow, err := e.persistence.Workflows().GetByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	if workflow.Status != models.WorkflowStatusActive {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, ErrWorkflowNotActive)
	}

	execution := &models.WorkflowExecution{
		WorkflowID: workflow.ID,
		BusinessID: workflow.BusinessID,
		Status:     models.ExecutionStatusRunning,
		Context:    triggerContext,
	}

	err = e.persistence.WorkflowExecutions().Create(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	logger := e.logger.With("workflow_id", workflow.ID, "execution_id", execution.ID)
	logger.InfoContext(ctx, "Starting workflow execution")

	err = e.run(ctx, logger, workflow, execution)
	if err != nil {
		return execution, e.fail(ctx, logger, execution, err)
	}

	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusCompleted
	execution.CompletedAt = &now

	err = e.persistence.WorkflowExecutions().Save(ctx, execution)
	if err != nil {
		return execution, fmt.Errorf("failed to persist completed execution: %w", err)
	}

	logger.InfoContext(ctx, "Workflow execution completed")

	return execution, nil
}

// fail persists the failed state, then surfaces the error to the caller.
func (e *Engine) fail(ctx context.Context, logger *slog.Logger, execution *models.WorkflowExecution, cause error) error {
	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusFailed
	execution.Error = cause.Error()
	execution.CompletedAt = &now

	err := e.persistence.WorkflowExecutions().Save(ctx, execution)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to persist failed execution", "error", err)
	}

	logger.WarnContext(ctx, "Workflow execution failed", "error", cause)

	return cause
}

func (e *Engine) run(ctx context.Context, logger *slog.Logger, workflow *models.WorkflowDefinition, execution *models.WorkflowExecution) error {
	current, ok := workflow.TriggerNode()
	if !ok {
		return errors.New("workflow has no trigger node")
	}

	visited := make(map[string]bool, len(workflow.Nodes))

	for steps := 0; ; steps++ {
		if steps >= maxSteps {
			return fmt.Errorf("exceeded maximum iterations (%d)", maxSteps)
		}

		if visited[current.ID] {
			return fmt.Errorf("circular reference detected at node %s", current.ID)
		}

		visited[current.ID] = true

		execution.CurrentNodeID = current.ID

		// Position is observability only; a save failure does not stop
		// the run.
		err := e.persistence.WorkflowExecutions().Save(ctx, execution)
		if err != nil {
			logger.WarnContext(ctx, "Failed to record execution position",
				"node_id", current.ID, "error", err)
		}

		logger.DebugContext(ctx, "Executing node", "node_id", current.ID, "node_type", current.Type)

		if current.Type == models.NodeTypeEnd {
			return nil
		}

		nextID, err := e.dispatch(ctx, logger, workflow, current, execution)
		if err != nil {
			return fmt.Errorf("node %s: %w", current.ID, err)
		}

		// A missing outgoing edge is a valid termination.
		if nextID == "" {
			return nil
		}

		next, ok := workflow.NodeByID(nextID)
		if !ok {
			return fmt.Errorf("edge from node %s references missing node %s", current.ID, nextID)
		}

		current = next
	}
}

func (e *Engine) dispatch(ctx context.Context, logger *slog.Logger, workflow *models.WorkflowDefinition, node models.Node, execution *models.WorkflowExecution) (string, error) {
	switch node.Type {
	case models.NodeTypeTrigger:
		return firstEdgeTarget(workflow, node.ID), nil
	case models.NodeTypeDelay:
		return e.delayNode(workflow, node)
	case models.NodeTypeCondition:
		return e.conditionNode(workflow, node, execution)
	case models.NodeTypeSendMessage:
		return e.sendMessageNode(ctx, logger, workflow, node, execution)
	case models.NodeTypeWebhook:
		return e.webhookNode(ctx, logger, workflow, node, execution)
	case models.NodeTypeSegmentCheck:
		return e.segmentCheckNode(ctx, workflow, node, execution)
	case models.NodeTypeEnd:
		return "", nil
	default:
		return "", fmt.Errorf("unknown node type %q", node.Type)
	}
}

// delayNode blocks the run for config.delayMs, clamped at zero. The wait
// ignores caller cancellation: once a run reaches a delay it completes the
// wait and moves on, so a disconnecting client cannot fail the run. It is
// not durable either; a restart abandons it.
func (e *Engine) delayNode(workflow *models.WorkflowDefinition, node models.Node) (string, error) {
	delayMs := numberConfig(node.Config, "delayMs")
	if delayMs > 0 {
		e.sleepFunc(time.Duration(delayMs) * time.Millisecond)
	}

	return firstEdgeTarget(workflow, node.ID), nil
}

func (e *Engine) conditionNode(workflow *models.WorkflowDefinition, node models.Node, execution *models.WorkflowExecution) (string, error) {
	field, _ := node.Config["field"].(string)
	if field == "" {
		return "", errors.New("condition node has no field configured")
	}

	operator, _ := node.Config["operator"].(string)
	if !condition.Known(condition.Operator(operator)) {
		return "", fmt.Errorf("condition node has unknown operator %q", operator)
	}

	result := condition.Evaluate(execution.Context, field, condition.Operator(operator), node.Config["value"])

	return branchTarget(workflow, node.ID, result), nil
}

func (e *Engine) sendMessageNode(ctx context.Context, logger *slog.Logger, workflow *models.WorkflowDefinition, node models.Node, execution *models.WorkflowExecution) (string, error) {
	messageTemplate, _ := node.Config["template"].(string)
	if messageTemplate == "" {
		return "", errors.New("send_message node has no template configured")
	}

	content := template.Interpolate(messageTemplate, execution.Context)

	conversation, err := e.resolveConversation(ctx, workflow, node, execution)
	if err != nil {
		return "", err
	}

	message := &models.Message{
		ConversationID: conversation.ID,
		BusinessID:     workflow.BusinessID,
		Direction:      models.DirectionOutbound,
		Content:        content,
		Channel:        conversation.Channel,
		Metadata: map[string]any{
			"workflowId":  workflow.ID,
			"executionId": execution.ID,
			"nodeId":      node.ID,
			"automated":   true,
		},
	}

	err = e.persistence.Messages().Create(ctx, message)
	if err != nil {
		return "", fmt.Errorf("failed to record outbound message: %w", err)
	}

	// Delivery is best effort and never fails the step.
	if conversation.Channel.RequiresDelivery() && e.transport != nil {
		customer, err := e.persistence.Customers().GetByID(ctx, conversation.CustomerID)
		if err != nil {
			logger.WarnContext(ctx, "Failed to load customer for delivery",
				"customer_id", conversation.CustomerID, "error", err)
		} else {
			err = e.transport.Send(ctx, conversation.Channel, customer.Phone, content)
			if err != nil {
				logger.WarnContext(ctx, "Message delivery failed",
					"conversation_id", conversation.ID, "error", err)
			}
		}
	}

	return firstEdgeTarget(workflow, node.ID), nil
}

// resolveConversation finds the destination thread. Node config wins over
// the ambient context; a customer without a conversation on the requested
// channel gets one created.
func (e *Engine) resolveConversation(ctx context.Context, workflow *models.WorkflowDefinition, node models.Node, execution *models.WorkflowExecution) (*models.Conversation, error) {
	conversationID := stringConfig(node.Config, execution.Context, "conversationId")
	if conversationID != "" {
		conversation, err := e.persistence.Conversations().GetByID(ctx, conversationID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve conversation: %w", err)
		}

		return conversation, nil
	}

	customerID := stringConfig(node.Config, execution.Context, "customerId")
	if customerID == "" {
		return nil, errors.New("send_message node has no conversation or customer to target")
	}

	channel := models.ChannelWhatsApp
	if configured, ok := node.Config["channel"].(string); ok && configured != "" {
		channel = models.Channel(configured)
	}

	conversation, err := e.persistence.Conversations().FindByCustomerAndChannel(ctx, customerID, channel)
	if err == nil {
		return conversation, nil
	}

	if !persistence.IsNotFound(err) {
		return nil, fmt.Errorf("failed to resolve conversation: %w", err)
	}

	// The customer must exist before a thread is opened for them, so a
	// mistyped customerId fails the node instead of creating an orphan.
	_, err = e.persistence.Customers().GetByID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve customer %s: %w", customerID, err)
	}

	conversation = &models.Conversation{
		BusinessID: workflow.BusinessID,
		CustomerID: customerID,
		Channel:    channel,
		Status:     models.ConversationOpen,
	}

	err = e.persistence.Conversations().Create(ctx, conversation)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conversation, nil
}

// webhookNode issues a single HTTP call. No retry lives here; failures are
// logged and the run continues.
func (e *Engine) webhookNode(ctx context.Context, logger *slog.Logger, workflow *models.WorkflowDefinition, node models.Node, execution *models.WorkflowExecution) (string, error) {
	url, _ := node.Config["url"].(string)
	if url == "" {
		return "", errors.New("webhook node has no url configured")
	}

	method, _ := node.Config["method"].(string)
	if method == "" {
		method = http.MethodPost
	}

	body, err := renderWebhookBody(node.Config["body"], execution.Context)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if headers, ok := node.Config["headers"].(map[string]any); ok {
		for key, value := range headers {
			if str, ok := value.(string); ok {
				req.Header.Set(key, str)
			}
		}
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		logger.WarnContext(ctx, "Webhook node call failed", "url", url, "error", err)

		return firstEdgeTarget(workflow, node.ID), nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		logger.WarnContext(ctx, "Webhook node received error response",
			"url", url, "status", resp.StatusCode)
	}

	return firstEdgeTarget(workflow, node.ID), nil
}

// renderWebhookBody interpolates string bodies; anything else is
// serialized as-is.
func renderWebhookBody(body any, context map[string]any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return json.Marshal(context)
	case string:
		return []byte(template.Interpolate(v, context)), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize webhook body: %w", err)
		}

		return data, nil
	}
}

// segmentCheckNode branches on membership. With no customer in scope the
// false branch is taken; a missing segment fails the run.
func (e *Engine) segmentCheckNode(ctx context.Context, workflow *models.WorkflowDefinition, node models.Node, execution *models.WorkflowExecution) (string, error) {
	segmentID, _ := node.Config["segmentId"].(string)
	if segmentID == "" {
		return "", errors.New("segment_check node has no segmentId configured")
	}

	customerID := stringConfig(node.Config, execution.Context, "customerId")
	if customerID == "" {
		return branchTarget(workflow, node.ID, false), nil
	}

	member, err := e.segments.IsMember(ctx, segmentID, customerID)
	if err != nil {
		return "", err
	}

	return branchTarget(workflow, node.ID, member), nil
}

// firstEdgeTarget returns the target of the node's first outgoing edge, or
// empty when the node is a dead end.
func firstEdgeTarget(workflow *models.WorkflowDefinition, nodeID string) string {
	edges := workflow.OutgoingEdges(nodeID)
	if len(edges) == 0 {
		return ""
	}

	return edges[0].Target
}

// branchTarget picks the labeled edge matching the boolean outcome. No
// matching label ends the run.
func branchTarget(workflow *models.WorkflowDefinition, nodeID string, result bool) string {
	for _, edge := range workflow.OutgoingEdges(nodeID) {
		if result && edge.IsTrueBranch() {
			return edge.Target
		}

		if !result && edge.IsFalseBranch() {
			return edge.Target
		}
	}

	return ""
}

// stringConfig reads a string key from node config first, then from the
// ambient context.
func stringConfig(config, context map[string]any, key string) string {
	if value, ok := config[key].(string); ok && value != "" {
		return value
	}

	if value, ok := context[key].(string); ok {
		return value
	}

	return ""
}

func numberConfig(config map[string]any, key string) float64 {
	switch v := config[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

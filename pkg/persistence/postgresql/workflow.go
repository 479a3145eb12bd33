package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chatrail/chatrail/pkg/models"
	"github.com/chatrail/chatrail/pkg/persistence"
)

// WorkflowRepository handles workflow definition storage. The node and edge
// graphs are stored as JSONB documents; the engine always loads the full
// graph anyway.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.WorkflowDefinition) error {
	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusDraft
	}

	now := time.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	triggerJSON, nodesJSON, edgesJSON, err := marshalWorkflowGraph(workflow)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflows (id, business_id, name, description, status, trigger, nodes, edges, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID, workflow.BusinessID, workflow.Name, workflow.Description,
		workflow.Status, triggerJSON, nodesJSON, edgesJSON, workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert workflow: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	query := workflowSelect + ` WHERE id = $1`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "workflow", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) ListByBusiness(ctx context.Context, businessID string) ([]*models.WorkflowDefinition, error) {
	query := workflowSelect + ` WHERE business_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	workflows := make([]*models.WorkflowDefinition, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.WorkflowDefinition) error {
	workflow.UpdatedAt = time.Now().UTC()

	triggerJSON, nodesJSON, edgesJSON, err := marshalWorkflowGraph(workflow)
	if err != nil {
		return err
	}

	query := `
		UPDATE workflows
		SET name = $2, description = $3, status = $4, trigger = $5, nodes = $6, edges = $7, updated_at = $8
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		workflow.ID, workflow.Name, workflow.Description, workflow.Status,
		triggerJSON, nodesJSON, edgesJSON, workflow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.NewStoreError("Save", "workflow", workflow.ID, persistence.ErrWorkflowNotFound)
	}

	return nil
}

const workflowSelect = `
	SELECT id, business_id, name, description, status, trigger, nodes, edges, created_at, updated_at
	FROM workflows
`

func marshalWorkflowGraph(workflow *models.WorkflowDefinition) (trigger, nodes, edges []byte, err error) {
	trigger, err = marshalJSON(workflow.Trigger, "{}")
	if err != nil {
		return nil, nil, nil, err
	}

	nodes, err = marshalJSON(workflow.Nodes, "[]")
	if err != nil {
		return nil, nil, nil, err
	}

	edges, err = marshalJSON(workflow.Edges, "[]")
	if err != nil {
		return nil, nil, nil, err
	}

	return trigger, nodes, edges, nil
}

func scanWorkflow(row rowScanner) (*models.WorkflowDefinition, error) {
	var (
		workflow    models.WorkflowDefinition
		description sql.NullString
		triggerJSON []byte
		nodesJSON   []byte
		edgesJSON   []byte
	)

	err := row.Scan(&workflow.ID, &workflow.BusinessID, &workflow.Name, &description,
		&workflow.Status, &triggerJSON, &nodesJSON, &edgesJSON,
		&workflow.CreatedAt, &workflow.UpdatedAt)
	if err != nil {
		return nil, err
	}

	workflow.Description = description.String

	if err := unmarshalJSON(triggerJSON, &workflow.Trigger); err != nil {
		return nil, err
	}

	if err := unmarshalJSON(nodesJSON, &workflow.Nodes); err != nil {
		return nil, err
	}

	if err := unmarshalJSON(edgesJSON, &workflow.Edges); err != nil {
		return nil, err
	}

	return &workflow, nil
}

// ExecutionRepository handles workflow execution records.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *ExecutionRepository) Create(ctx context.Context, execution *models.WorkflowExecution) error {
	if execution.ID == "" {
		execution.ID = uuid.New().String()
	}

	if execution.StartedAt.IsZero() {
		execution.StartedAt = time.Now().UTC()
	}

	contextJSON, err := marshalJSON(execution.Context, "{}")
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_executions (id, workflow_id, business_id, status, context, current_node_id, error_message, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID, execution.WorkflowID, execution.BusinessID, execution.Status,
		contextJSON, execution.CurrentNodeID, execution.Error, execution.StartedAt, execution.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := executionSelect + ` WHERE id = $1`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "execution", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

func (r *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	contextJSON, err := marshalJSON(execution.Context, "{}")
	if err != nil {
		return err
	}

	query := `
		UPDATE workflow_executions
		SET status = $2, context = $3, current_node_id = $4, error_message = $5, completed_at = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		execution.ID, execution.Status, contextJSON, execution.CurrentNodeID,
		execution.Error, execution.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.NewStoreError("Save", "execution", execution.ID, persistence.ErrExecutionNotFound)
	}

	return nil
}

func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	query := executionSelect + ` WHERE workflow_id = $1 ORDER BY started_at DESC`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

const executionSelect = `
	SELECT id, workflow_id, business_id, status, context, current_node_id, error_message, started_at, completed_at
	FROM workflow_executions
`

func scanExecution(row rowScanner) (*models.WorkflowExecution, error) {
	var (
		execution     models.WorkflowExecution
		contextJSON   []byte
		currentNodeID sql.NullString
		errorMessage  sql.NullString
		completedAt   sql.NullTime
	)

	err := row.Scan(&execution.ID, &execution.WorkflowID, &execution.BusinessID,
		&execution.Status, &contextJSON, &currentNodeID, &errorMessage,
		&execution.StartedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	execution.CurrentNodeID = currentNodeID.String
	execution.Error = errorMessage.String

	if completedAt.Valid {
		at := completedAt.Time
		execution.CompletedAt = &at
	}

	if err := unmarshalJSON(contextJSON, &execution.Context); err != nil {
		return nil, err
	}

	return &execution, nil
}

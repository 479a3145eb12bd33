// Package postgresql provides the PostgreSQL persistence implementation.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	// PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/chatrail/chatrail/pkg/persistence"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	customers     *CustomerRepository
	conversations *ConversationRepository
	messages      *MessageRepository
	orders        *OrderRepository
	automations   *AutomationRepository
	autoLogs      *AutomationLogRepository
	workflows     *WorkflowRepository
	executions    *ExecutionRepository
	webhooks      *WebhookRepository
	webhookLogs   *WebhookLogRepository
	segments      *SegmentRepository
}

// NewPersistence connects, runs migrations, and wires the repositories.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:            database,
		logger:        logger,
		customers:     &CustomerRepository{db: database, logger: logger},
		conversations: &ConversationRepository{db: database, logger: logger},
		messages:      &MessageRepository{db: database, logger: logger},
		orders:        &OrderRepository{db: database, logger: logger},
		automations:   &AutomationRepository{db: database, logger: logger},
		autoLogs:      &AutomationLogRepository{db: database, logger: logger},
		workflows:     &WorkflowRepository{db: database, logger: logger},
		executions:    &ExecutionRepository{db: database, logger: logger},
		webhooks:      &WebhookRepository{db: database, logger: logger},
		webhookLogs:   &WebhookLogRepository{db: database, logger: logger},
		segments:      &SegmentRepository{db: database, logger: logger},
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Customers() persistence.CustomerRepository { return p.customers }

func (p *Persistence) Conversations() persistence.ConversationRepository { return p.conversations }

func (p *Persistence) Messages() persistence.MessageRepository { return p.messages }

func (p *Persistence) Orders() persistence.OrderRepository { return p.orders }

func (p *Persistence) Automations() persistence.AutomationRepository { return p.automations }

func (p *Persistence) AutomationLogs() persistence.AutomationLogRepository { return p.autoLogs }

func (p *Persistence) Workflows() persistence.WorkflowRepository { return p.workflows }

func (p *Persistence) WorkflowExecutions() persistence.WorkflowExecutionRepository {
	return p.executions
}

func (p *Persistence) Webhooks() persistence.WebhookRepository { return p.webhooks }

func (p *Persistence) WebhookLogs() persistence.WebhookLogRepository { return p.webhookLogs }

func (p *Persistence) Segments() persistence.SegmentRepository { return p.segments }

// marshalJSON serializes a value for a JSONB column, mapping nil to the
// given empty literal so columns never hold SQL NULL JSON.
func marshalJSON(value any, empty string) ([]byte, error) {
	if value == nil {
		return []byte(empty), nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON column: %w", err)
	}

	return data, nil
}

// unmarshalJSON deserializes a JSONB column into target, treating empty
// bytes as absent.
func unmarshalJSON(data []byte, target any) error {
	if len(data) == 0 {
		return nil
	}

	err := json.Unmarshal(data, target)
	if err != nil {
		return fmt.Errorf("failed to unmarshal JSON column: %w", err)
	}

	return nil
}

func closeRows(ctx context.Context, logger *slog.Logger, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
)

const currentSchemaVersion = 1

// MigrationManager handles database schema migrations.
type MigrationManager struct {
	db         *sql.DB
	logger     *slog.Logger
	migrations map[int]string
}

// NewMigrationManager creates a new migration manager.
func NewMigrationManager(logger *slog.Logger, db *sql.DB, migrations map[int]string) *MigrationManager {
	return &MigrationManager{
		db:         db,
		logger:     logger,
		migrations: migrations,
	}
}

// RunMigrations handles database schema creation and updates.
func (m *MigrationManager) RunMigrations(ctx context.Context) error {
	m.logger.InfoContext(ctx, "Starting database migrations")

	err := m.createMigrationsTable(ctx)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := m.getCurrentSchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	m.logger.InfoContext(ctx, "Current schema version", "version", currentVersion)

	if currentVersion < currentSchemaVersion {
		err := m.applyMigrations(ctx, currentVersion)
		if err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	m.logger.InfoContext(ctx, "Database migrations completed", "version", currentSchemaVersion)

	return nil
}

func (m *MigrationManager) createMigrationsTable(ctx context.Context) error {
	createMigrationsSQL := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`

	_, err := m.db.ExecContext(ctx, createMigrationsSQL)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	return nil
}

// getCurrentSchemaVersion returns the current schema version.
func (m *MigrationManager) getCurrentSchemaVersion(ctx context.Context) (int, error) {
	var version int

	err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to query current schema version: %w", err)
	}

	return version, nil
}

// applyMigrations applies all pending migrations in version order.
func (m *MigrationManager) applyMigrations(ctx context.Context, fromVersion int) error {
	versions := make([]int, 0, len(m.migrations))

	for version := range m.migrations {
		if version > fromVersion {
			versions = append(versions, version)
		}
	}

	sort.Ints(versions)

	for _, version := range versions {
		m.logger.InfoContext(ctx, "Applying migration", "version", version)

		transaction, err := m.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", version, err)
		}

		_, err = transaction.ExecContext(ctx, m.migrations[version])
		if err != nil {
			_ = transaction.Rollback()

			return fmt.Errorf("failed to execute migration %d: %w", version, err)
		}

		_, err = transaction.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version)
		if err != nil {
			_ = transaction.Rollback()

			return fmt.Errorf("failed to record migration %d: %w", version, err)
		}

		err = transaction.Commit()
		if err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", version, err)
		}

		m.logger.InfoContext(ctx, "Migration applied successfully", "version", version)
	}

	return nil
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE customers (
				id UUID PRIMARY KEY,
				business_id UUID NOT NULL,
				name VARCHAR(255) NOT NULL,
				phone VARCHAR(50) NOT NULL,
				email VARCHAR(255),
				tags JSONB DEFAULT '[]',
				metadata JSONB DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_customers_business_id ON customers(business_id);
			CREATE INDEX idx_customers_phone ON customers(phone);

			CREATE TABLE conversations (
				id UUID PRIMARY KEY,
				business_id UUID NOT NULL,
				customer_id UUID NOT NULL REFERENCES customers(id),
				channel VARCHAR(50) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('open', 'closed')),
				last_message_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_conversations_business_id ON conversations(business_id);
			CREATE INDEX idx_conversations_customer_channel ON conversations(customer_id, channel);

			CREATE TABLE messages (
				id UUID PRIMARY KEY,
				conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				business_id UUID NOT NULL,
				direction VARCHAR(20) NOT NULL CHECK (direction IN ('inbound', 'outbound')),
				content TEXT NOT NULL,
				channel VARCHAR(50) NOT NULL,
				metadata JSONB DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_messages_conversation_id ON messages(conversation_id);
			CREATE INDEX idx_messages_created_at ON messages(created_at);

			CREATE TABLE orders (
				id UUID PRIMARY KEY,
				business_id UUID NOT NULL,
				customer_id UUID NOT NULL REFERENCES customers(id),
				status VARCHAR(50) NOT NULL,
				total NUMERIC(12, 2) NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_orders_business_id ON orders(business_id);
			CREATE INDEX idx_orders_customer_id ON orders(customer_id);

			CREATE TABLE automations (
				id UUID PRIMARY KEY,
				business_id UUID NOT NULL,
				name VARCHAR(255) NOT NULL,
				trigger VARCHAR(100) NOT NULL,
				action VARCHAR(100) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('active', 'inactive')),
				config JSONB DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_automations_business_status ON automations(business_id, status);

			CREATE TABLE automation_logs (
				id UUID PRIMARY KEY,
				automation_id UUID NOT NULL REFERENCES automations(id) ON DELETE CASCADE,
				business_id UUID NOT NULL,
				status VARCHAR(50) NOT NULL,
				metadata JSONB DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_automation_logs_automation_id ON automation_logs(automation_id);

			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				business_id UUID NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT,
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'active', 'inactive')),
				trigger JSONB DEFAULT '{}',
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_business_status ON workflows(business_id, status);

			CREATE TABLE workflow_executions (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				business_id UUID NOT NULL,
				status VARCHAR(50) NOT NULL,
				context JSONB DEFAULT '{}',
				current_node_id VARCHAR(255),
				error_message TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflow_executions_workflow_id ON workflow_executions(workflow_id);
			CREATE INDEX idx_workflow_executions_status ON workflow_executions(status);

			CREATE TABLE webhooks (
				id UUID PRIMARY KEY,
				business_id UUID NOT NULL,
				name VARCHAR(255) NOT NULL,
				url TEXT NOT NULL,
				method VARCHAR(10) NOT NULL DEFAULT 'POST',
				headers JSONB DEFAULT '{}',
				events JSONB NOT NULL DEFAULT '[]',
				status VARCHAR(50) NOT NULL CHECK (status IN ('active', 'inactive')),
				secret TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_webhooks_business_status ON webhooks(business_id, status);

			CREATE TABLE webhook_logs (
				id UUID PRIMARY KEY,
				webhook_id UUID NOT NULL REFERENCES webhooks(id) ON DELETE CASCADE,
				event VARCHAR(100) NOT NULL,
				payload JSONB DEFAULT '{}',
				response JSONB DEFAULT '{}',
				status_code INT NOT NULL DEFAULT 0,
				success BOOLEAN NOT NULL DEFAULT false,
				error_message TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_webhook_logs_webhook_id ON webhook_logs(webhook_id);

			CREATE TABLE segments (
				id UUID PRIMARY KEY,
				business_id UUID NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_segments_business_id ON segments(business_id);

			CREATE TABLE segment_memberships (
				id UUID PRIMARY KEY,
				segment_id UUID NOT NULL REFERENCES segments(id) ON DELETE CASCADE,
				customer_id UUID NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
				added_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (segment_id, customer_id)
			);

			CREATE INDEX idx_segment_memberships_segment_id ON segment_memberships(segment_id);
			CREATE INDEX idx_segment_memberships_customer_id ON segment_memberships(customer_id);
		`,
	}
}

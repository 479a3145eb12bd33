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

// AutomationRepository handles automation-related database operations.
type AutomationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *AutomationRepository) Create(ctx context.Context, automation *models.Automation) error {
	if automation.ID == "" {
		automation.ID = uuid.New().String()
	}

	if automation.Status == "" {
		automation.Status = models.AutomationStatusActive
	}

	now := time.Now().UTC()
	automation.CreatedAt = now
	automation.UpdatedAt = now

	configJSON, err := marshalJSON(automation.Config, "{}")
	if err != nil {
		return err
	}

	query := `
		INSERT INTO automations (id, business_id, name, trigger, action, status, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		automation.ID, automation.BusinessID, automation.Name, automation.Trigger,
		automation.Action, automation.Status, configJSON, automation.CreatedAt, automation.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert automation: %w", err)
	}

	return nil
}

func (r *AutomationRepository) GetByID(ctx context.Context, id string) (*models.Automation, error) {
	query := automationSelect + ` WHERE id = $1`

	automation, err := scanAutomation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "automation", id, persistence.ErrAutomationNotFound)
		}

		return nil, fmt.Errorf("failed to scan automation: %w", err)
	}

	return automation, nil
}

func (r *AutomationRepository) ListByBusiness(ctx context.Context, businessID string) ([]*models.Automation, error) {
	query := automationSelect + ` WHERE business_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to query automations: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	automations := make([]*models.Automation, 0)

	for rows.Next() {
		automation, err := scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}

		automations = append(automations, automation)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating automations: %w", err)
	}

	return automations, nil
}

func (r *AutomationRepository) Save(ctx context.Context, automation *models.Automation) error {
	automation.UpdatedAt = time.Now().UTC()

	configJSON, err := marshalJSON(automation.Config, "{}")
	if err != nil {
		return err
	}

	query := `
		UPDATE automations
		SET name = $2, trigger = $3, action = $4, status = $5, config = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		automation.ID, automation.Name, automation.Trigger, automation.Action,
		automation.Status, configJSON, automation.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update automation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.NewStoreError("Save", "automation", automation.ID, persistence.ErrAutomationNotFound)
	}

	return nil
}

const automationSelect = `
	SELECT id, business_id, name, trigger, action, status, config, created_at, updated_at
	FROM automations
`

func scanAutomation(row rowScanner) (*models.Automation, error) {
	var (
		automation models.Automation
		configJSON []byte
	)

	err := row.Scan(&automation.ID, &automation.BusinessID, &automation.Name,
		&automation.Trigger, &automation.Action, &automation.Status,
		&configJSON, &automation.CreatedAt, &automation.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSON(configJSON, &automation.Config); err != nil {
		return nil, err
	}

	return &automation, nil
}

// AutomationLogRepository handles automation execution logs.
type AutomationLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *AutomationLogRepository) Create(ctx context.Context, log *models.AutomationLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}

	log.CreatedAt = time.Now().UTC()

	metadataJSON, err := marshalJSON(log.Metadata, "{}")
	if err != nil {
		return err
	}

	query := `
		INSERT INTO automation_logs (id, automation_id, business_id, status, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.db.ExecContext(ctx, query,
		log.ID, log.AutomationID, log.BusinessID, log.Status, metadataJSON, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert automation log: %w", err)
	}

	return nil
}

func (r *AutomationLogRepository) ListByAutomation(ctx context.Context, automationID string) ([]*models.AutomationLog, error) {
	query := `
		SELECT id, automation_id, business_id, status, metadata, created_at
		FROM automation_logs
		WHERE automation_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, automationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query automation logs: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	logs := make([]*models.AutomationLog, 0)

	for rows.Next() {
		var (
			log          models.AutomationLog
			metadataJSON []byte
		)

		err := rows.Scan(&log.ID, &log.AutomationID, &log.BusinessID,
			&log.Status, &metadataJSON, &log.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation log: %w", err)
		}

		if err := unmarshalJSON(metadataJSON, &log.Metadata); err != nil {
			return nil, err
		}

		logs = append(logs, &log)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating automation logs: %w", err)
	}

	return logs, nil
}

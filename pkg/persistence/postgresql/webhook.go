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

// WebhookRepository handles webhook registrations.
type WebhookRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *WebhookRepository) Create(ctx context.Context, webhook *models.Webhook) error {
	if webhook.ID == "" {
		webhook.ID = uuid.New().String()
	}

	if webhook.Status == "" {
		webhook.Status = models.WebhookStatusActive
	}

	if webhook.Method == "" {
		webhook.Method = "POST"
	}

	now := time.Now().UTC()
	webhook.CreatedAt = now
	webhook.UpdatedAt = now

	headersJSON, err := marshalJSON(webhook.Headers, "{}")
	if err != nil {
		return err
	}

	eventsJSON, err := marshalJSON(webhook.Events, "[]")
	if err != nil {
		return err
	}

	query := `
		INSERT INTO webhooks (id, business_id, name, url, method, headers, events, status, secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		webhook.ID, webhook.BusinessID, webhook.Name, webhook.URL, webhook.Method,
		headersJSON, eventsJSON, webhook.Status, webhook.Secret,
		webhook.CreatedAt, webhook.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert webhook: %w", err)
	}

	return nil
}

func (r *WebhookRepository) GetByID(ctx context.Context, id string) (*models.Webhook, error) {
	query := webhookSelect + ` WHERE id = $1`

	webhook, err := scanWebhook(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "webhook", id, persistence.ErrWebhookNotFound)
		}

		return nil, fmt.Errorf("failed to scan webhook: %w", err)
	}

	return webhook, nil
}

func (r *WebhookRepository) ListByBusiness(ctx context.Context, businessID string) ([]*models.Webhook, error) {
	query := webhookSelect + ` WHERE business_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhooks: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	webhooks := make([]*models.Webhook, 0)

	for rows.Next() {
		webhook, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}

		webhooks = append(webhooks, webhook)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating webhooks: %w", err)
	}

	return webhooks, nil
}

const webhookSelect = `
	SELECT id, business_id, name, url, method, headers, events, status, secret, created_at, updated_at
	FROM webhooks
`

func scanWebhook(row rowScanner) (*models.Webhook, error) {
	var (
		webhook     models.Webhook
		headersJSON []byte
		eventsJSON  []byte
		secret      sql.NullString
	)

	err := row.Scan(&webhook.ID, &webhook.BusinessID, &webhook.Name, &webhook.URL,
		&webhook.Method, &headersJSON, &eventsJSON, &webhook.Status, &secret,
		&webhook.CreatedAt, &webhook.UpdatedAt)
	if err != nil {
		return nil, err
	}

	webhook.Secret = secret.String

	if err := unmarshalJSON(headersJSON, &webhook.Headers); err != nil {
		return nil, err
	}

	if err := unmarshalJSON(eventsJSON, &webhook.Events); err != nil {
		return nil, err
	}

	return &webhook, nil
}

// WebhookLogRepository handles webhook delivery logs.
type WebhookLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *WebhookLogRepository) Create(ctx context.Context, log *models.WebhookLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}

	log.CreatedAt = time.Now().UTC()

	payloadJSON, err := marshalJSON(log.Payload, "{}")
	if err != nil {
		return err
	}

	responseJSON, err := marshalJSON(log.Response, "{}")
	if err != nil {
		return err
	}

	query := `
		INSERT INTO webhook_logs (id, webhook_id, event, payload, response, status_code, success, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		log.ID, log.WebhookID, log.Event, payloadJSON, responseJSON,
		log.StatusCode, log.Success, log.Error, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert webhook log: %w", err)
	}

	return nil
}

func (r *WebhookLogRepository) ListByWebhook(ctx context.Context, webhookID string) ([]*models.WebhookLog, error) {
	query := `
		SELECT id, webhook_id, event, payload, response, status_code, success, error_message, created_at
		FROM webhook_logs
		WHERE webhook_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, webhookID)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook logs: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	logs := make([]*models.WebhookLog, 0)

	for rows.Next() {
		var (
			log          models.WebhookLog
			payloadJSON  []byte
			responseJSON []byte
			errorMessage sql.NullString
		)

		err := rows.Scan(&log.ID, &log.WebhookID, &log.Event, &payloadJSON,
			&responseJSON, &log.StatusCode, &log.Success, &errorMessage, &log.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook log: %w", err)
		}

		log.Error = errorMessage.String

		if err := unmarshalJSON(payloadJSON, &log.Payload); err != nil {
			return nil, err
		}

		if err := unmarshalJSON(responseJSON, &log.Response); err != nil {
			return nil, err
		}

		logs = append(logs, &log)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating webhook logs: %w", err)
	}

	return logs, nil
}

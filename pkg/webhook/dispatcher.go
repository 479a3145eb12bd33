// Package webhook fans business events out to registered external
// endpoints with signed payloads and bounded retries.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"github.com/chatrail/chatrail/pkg/models"
	"github.com/chatrail/chatrail/pkg/persistence"
)

const (
	maxAttempts     = 3
	deliveryTimeout = 30 * time.Second

	signatureHeader = "X-Webhook-Signature"
	secretHeader    = "X-Webhook-Secret"
)

// Dispatcher delivers event payloads to every active webhook subscribed to
// the event. Targets are independent: one failing endpoint never blocks or
// fails the others.
type Dispatcher struct {
	persistence persistence.Persistence
	client      *http.Client
	logger      *slog.Logger
	sleepFunc   func(ctx context.Context, d time.Duration)
}

// NewDispatcher creates a dispatcher over the given store.
func NewDispatcher(logger *slog.Logger, persistence persistence.Persistence) *Dispatcher {
	return &Dispatcher{
		persistence: persistence,
		client:      &http.Client{Timeout: deliveryTimeout},
		logger:      logger.With("module", "webhook"),
		sleepFunc:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Dispatch sends the event to all matching webhooks for the business and
// blocks until every target has finished its attempts. Callers that want
// fire-and-forget run it in a goroutine.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.WebhookEvent, businessID string, data map[string]any) error {
	webhooks, err := d.persistence.Webhooks().ListByBusiness(ctx, businessID)
	if err != nil {
		return fmt.Errorf("failed to load webhooks: %w", err)
	}

	payload := map[string]any{
		"event":      string(event),
		"businessId": businessID,
		"data":       data,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize webhook payload: %w", err)
	}

	var wg sync.WaitGroup

	for _, target := range webhooks {
		if target.Status != models.WebhookStatusActive || !target.SubscribesTo(event) {
			continue
		}

		wg.Add(1)

		go func(target *models.Webhook) {
			defer wg.Done()

			d.deliver(ctx, target, event, payload, body)
		}(target)
	}

	wg.Wait()

	return nil
}

// DispatchTo sends a payload to a single webhook regardless of its
// subscriptions, using the same retry and logging discipline. Used by the
// webhook test endpoint.
func (d *Dispatcher) DispatchTo(ctx context.Context, target *models.Webhook, event models.WebhookEvent, data map[string]any) error {
	payload := map[string]any{
		"event":      string(event),
		"businessId": target.BusinessID,
		"data":       data,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize webhook payload: %w", err)
	}

	d.deliver(ctx, target, event, payload, body)

	return nil
}

// deliver runs the bounded retry loop for one target. Completed HTTP
// attempts are logged individually; a transport-level failure is logged
// once at the end with status code zero.
func (d *Dispatcher) deliver(ctx context.Context, target *models.Webhook, event models.WebhookEvent, payload map[string]any, body []byte) {
	wait := &backoff.Backoff{
		Min:    time.Second,
		Max:    deliveryTimeout,
		Factor: 2,
	}

	var (
		lastErr        error
		lastWasNetwork bool
	)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			d.sleepFunc(ctx, wait.Duration())
		}

		statusCode, response, err := d.attempt(ctx, target, body)
		if err != nil {
			lastErr = err
			lastWasNetwork = true

			d.logger.WarnContext(ctx, "Webhook delivery attempt failed",
				"webhook_id", target.ID, "attempt", attempt, "error", err)

			continue
		}

		lastWasNetwork = false

		success := statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices

		log := &models.WebhookLog{
			WebhookID:  target.ID,
			Event:      event,
			Payload:    payload,
			Response:   response,
			StatusCode: statusCode,
			Success:    success,
		}

		if !success {
			lastErr = fmt.Errorf("endpoint returned status %d", statusCode)
			log.Error = lastErr.Error()
		}

		d.writeLog(ctx, target.ID, log)

		if success {
			return
		}
	}

	if lastWasNetwork {
		log := &models.WebhookLog{
			WebhookID:  target.ID,
			Event:      event,
			Payload:    payload,
			StatusCode: 0,
			Success:    false,
			Error:      lastErr.Error(),
		}

		d.writeLog(ctx, target.ID, log)
	}

	d.logger.WarnContext(ctx, "Webhook delivery exhausted retries",
		"webhook_id", target.ID, "url", target.URL, "error", lastErr)
}

func (d *Dispatcher) attempt(ctx context.Context, target *models.Webhook, body []byte) (int, map[string]any, error) {
	method := target.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, target.URL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range target.Headers {
		req.Header.Set(key, value)
	}

	if target.Secret != "" {
		req.Header.Set(signatureHeader, Sign(body, target.Secret))
		req.Header.Set(secretHeader, target.Secret)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("webhook request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read webhook response: %w", err)
	}

	return resp.StatusCode, parseResponse(raw), nil
}

// Sign computes the hex HMAC-SHA256 of the payload under the secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return hex.EncodeToString(mac.Sum(nil))
}

// parseResponse keeps JSON bodies structured; anything else is stored as
// raw text.
func parseResponse(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err == nil {
		return parsed
	}

	return map[string]any{"body": string(raw)}
}

func (d *Dispatcher) writeLog(ctx context.Context, webhookID string, log *models.WebhookLog) {
	err := d.persistence.WebhookLogs().Create(ctx, log)
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to write webhook log",
			"webhook_id", webhookID, "error", err)
	}
}

// Package automation runs standing business rules against incoming events:
// match the trigger, suppress duplicates inside a short window, execute the
// action, and append one log row per attempt.
package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chatrail/chatrail/pkg/eventbus"
	"github.com/chatrail/chatrail/pkg/events"
	"github.com/chatrail/chatrail/pkg/messaging"
	"github.com/chatrail/chatrail/pkg/models"
	"github.com/chatrail/chatrail/pkg/persistence"
	"github.com/chatrail/chatrail/pkg/template"
)

// Engine matches events to automations and executes their actions. A
// failure in one automation never blocks the others matched for the same
// event; every non-deduplicated attempt is logged.
type Engine struct {
	persistence persistence.Persistence
	transport   messaging.Transport
	dedup       DedupStore
	logger      *slog.Logger
	nowFunc     func() time.Time
}

// NewEngine wires an automation engine. transport may be nil when no
// delivery provider is configured; messages are then recorded only.
func NewEngine(logger *slog.Logger, persistence persistence.Persistence, transport messaging.Transport, dedup DedupStore) *Engine {
	return &Engine{
		persistence: persistence,
		transport:   transport,
		dedup:       dedup,
		logger:      logger.With("module", "automation"),
		nowFunc:     time.Now,
	}
}

// Handler adapts the engine to an event bus subscription. Processing is
// fire-and-forget from the bus's perspective, so the handler never nacks.
func (e *Engine) Handler() eventbus.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		e.ProcessEvent(ctx, event)

		return nil
	}
}

// ProcessEvent runs every active, matching automation for the event.
// Errors are handled internally; nothing escapes to the caller.
func (e *Engine) ProcessEvent(ctx context.Context, event events.Event) {
	automations, err := e.persistence.Automations().ListByBusiness(ctx, event.GetBusinessID())
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to load automations",
			"business_id", event.GetBusinessID(), "event_type", event.GetType(), "error", err)

		return
	}

	for _, automation := range automations {
		if !automation.IsActive() {
			continue
		}

		if !Matches(automation, event) {
			continue
		}

		e.execute(ctx, automation, event)
	}
}

func (e *Engine) execute(ctx context.Context, automation *models.Automation, event events.Event) {
	key := dedupKey(automation.ID, event)

	seen, err := e.dedup.CheckAndMark(ctx, key)
	if err != nil {
		// Fail open: a broken dedup store must not stop automations.
		e.logger.WarnContext(ctx, "Dedup check failed, proceeding",
			"automation_id", automation.ID, "error", err)
	}

	if seen {
		e.logger.DebugContext(ctx, "Skipping duplicate automation execution",
			"automation_id", automation.ID, "event_type", event.GetType())

		return
	}

	actionErr := e.runAction(ctx, automation, event)

	metadata := map[string]any{
		"event_type": string(event.GetType()),
		"payload":    event.Payload(),
	}

	log := &models.AutomationLog{
		AutomationID: automation.ID,
		BusinessID:   automation.BusinessID,
		Status:       models.AutomationLogSuccess,
		Metadata:     metadata,
	}

	if actionErr != nil {
		log.Status = models.AutomationLogFailed
		metadata["error"] = actionErr.Error()

		e.logger.WarnContext(ctx, "Automation action failed",
			"automation_id", automation.ID, "action", automation.Action, "error", actionErr)
	}

	err = e.persistence.AutomationLogs().Create(ctx, log)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to write automation log",
			"automation_id", automation.ID, "error", err)
	}
}

// dedupKey is stable for byte-identical payloads: encoding/json emits map
// keys in sorted order.
func dedupKey(automationID string, event events.Event) string {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return automationID + ":" + string(event.GetType())
	}

	return automationID + ":" + string(payload)
}

func (e *Engine) runAction(ctx context.Context, automation *models.Automation, event events.Event) error {
	switch automation.Action {
	case models.ActionSendMessage:
		return e.sendMessage(ctx, automation, event)
	case models.ActionAssignTag:
		return e.assignTag(ctx, automation, event)
	case models.ActionUpdateCustomer:
		return e.updateCustomer(ctx, automation, event)
	case models.ActionCreateTask:
		// Task creation has no backing store yet; treated as a no-op
		// success rather than a failure.
		e.logger.InfoContext(ctx, "create_task action is not implemented, skipping",
			"automation_id", automation.ID)

		return nil
	default:
		return fmt.Errorf("unknown automation action %q", automation.Action)
	}
}

func (e *Engine) sendMessage(ctx context.Context, automation *models.Automation, event events.Event) error {
	messageTemplate, _ := automation.Config["message"].(string)
	if messageTemplate == "" {
		return errors.New("automation has no message template configured")
	}

	customerID, _ := event.Payload()["customerId"].(string)
	if customerID == "" {
		return errors.New("event carries no customer id")
	}

	conversation, err := e.persistence.Conversations().FindByCustomer(ctx, automation.BusinessID, customerID)
	if err != nil {
		if persistence.IsNotFound(err) {
			// No open thread to answer on; not an error.
			e.logger.WarnContext(ctx, "No conversation for customer, skipping send",
				"automation_id", automation.ID, "customer_id", customerID)

			return nil
		}

		return fmt.Errorf("failed to resolve conversation: %w", err)
	}

	now := e.nowFunc()

	templateContext := make(map[string]any, len(event.Payload())+2)
	for key, value := range event.Payload() {
		templateContext[key] = value
	}

	templateContext["date"] = now.Format("2006-01-02")
	templateContext["time"] = now.Format("15:04")

	content := template.Interpolate(messageTemplate, templateContext)

	message := &models.Message{
		ConversationID: conversation.ID,
		BusinessID:     automation.BusinessID,
		Direction:      models.DirectionOutbound,
		Content:        content,
		Channel:        conversation.Channel,
		Metadata: map[string]any{
			"automationId":   automation.ID,
			"automationName": automation.Name,
			"automated":      true,
		},
	}

	err = e.persistence.Messages().Create(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to record outbound message: %w", err)
	}

	if conversation.Channel.RequiresDelivery() && e.transport != nil {
		e.deliver(ctx, conversation.Channel, customerID, content)
	}

	return nil
}

// deliver attempts external delivery. Transport failures are logged and
// swallowed; the message is already recorded.
func (e *Engine) deliver(ctx context.Context, channel models.Channel, customerID, content string) {
	customer, err := e.persistence.Customers().GetByID(ctx, customerID)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to load customer for delivery",
			"customer_id", customerID, "error", err)

		return
	}

	err = e.transport.Send(ctx, channel, customer.Phone, content)
	if err != nil {
		e.logger.WarnContext(ctx, "Message delivery failed",
			"customer_id", customerID, "channel", channel, "error", err)
	}
}

func (e *Engine) assignTag(ctx context.Context, automation *models.Automation, event events.Event) error {
	tag, _ := automation.Config["tag"].(string)
	if tag == "" {
		return errors.New("automation has no tag configured")
	}

	customerID, _ := event.Payload()["customerId"].(string)
	if customerID == "" {
		return errors.New("event carries no customer id")
	}

	customer, err := e.persistence.Customers().GetByID(ctx, customerID)
	if err != nil {
		return fmt.Errorf("failed to load customer: %w", err)
	}

	if customer.HasTag(tag) {
		return nil
	}

	tags := append(append([]string{}, customer.Tags...), tag)

	_, err = e.persistence.Customers().Update(ctx, customerID, models.CustomerUpdate{"tags": tags})
	if err != nil {
		return fmt.Errorf("failed to assign tag: %w", err)
	}

	return nil
}

func (e *Engine) updateCustomer(ctx context.Context, automation *models.Automation, event events.Event) error {
	updates, _ := automation.Config["updates"].(map[string]any)
	if len(updates) == 0 {
		return errors.New("automation has no updates configured")
	}

	customerID, _ := event.Payload()["customerId"].(string)
	if customerID == "" {
		return errors.New("event carries no customer id")
	}

	_, err := e.persistence.Customers().Update(ctx, customerID, models.CustomerUpdate(updates))
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}

	return nil
}

package automation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatrail/chatrail/pkg/events"
	"github.com/chatrail/chatrail/pkg/log"
	"github.com/chatrail/chatrail/pkg/models"
	"github.com/chatrail/chatrail/pkg/persistence/memory"
)

type recordingTransport struct {
	sent []string
}

func (t *recordingTransport) Send(_ context.Context, _ models.Channel, _, body string) error {
	t.sent = append(t.sent, body)

	return nil
}

func newTestEngine(t *testing.T) (*Engine, *memory.Persistence, *recordingTransport) {
	t.Helper()

	store := memory.NewPersistence()
	transport := &recordingTransport{}
	engine := NewEngine(log.WithModule("test"), store, transport, NewMemoryDedupStore(DedupWindow))

	return engine, store, transport
}

func seedCustomerWithConversation(t *testing.T, store *memory.Persistence) (*models.Customer, *models.Conversation) {
	t.Helper()

	ctx := context.Background()

	customer := &models.Customer{BusinessID: "biz-1", Name: "Faith", Phone: "+2348012345678"}
	require.NoError(t, store.Customers().Create(ctx, customer))

	conversation := &models.Conversation{
		BusinessID: "biz-1",
		CustomerID: customer.ID,
		Channel:    models.ChannelWhatsApp,
	}
	require.NoError(t, store.Conversations().Create(ctx, conversation))

	return customer, conversation
}

func newMessageEvent(customerID, content string) events.NewMessage {
	return events.NewMessage{
		BaseEvent:  events.NewBaseEvent(events.NewMessageEvent, "biz-1"),
		MessageID:  "msg-1",
		CustomerID: customerID,
		Content:    content,
	}
}

func TestProcessEventInactiveAutomationNeverFires(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	automation := &models.Automation{
		BusinessID: "biz-1",
		Name:       "welcome",
		Trigger:    models.TriggerNewMessageReceived,
		Action:     models.ActionSendMessage,
		Status:     models.AutomationStatusInactive,
		Config:     map[string]any{"message": "Hi!"},
	}
	require.NoError(t, store.Automations().Create(ctx, automation))

	engine.ProcessEvent(ctx, newMessageEvent("cust-1", "hello"))

	logs, err := store.AutomationLogs().ListByAutomation(ctx, automation.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestProcessEventSendMessage(t *testing.T) {
	engine, store, transport := newTestEngine(t)
	ctx := context.Background()

	engine.nowFunc = func() time.Time {
		return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	}

	customer, conversation := seedCustomerWithConversation(t, store)

	automation := &models.Automation{
		BusinessID: "biz-1",
		Name:       "auto reply",
		Trigger:    models.TriggerNewMessageReceived,
		Action:     models.ActionSendMessage,
		Status:     models.AutomationStatusActive,
		Config:     map[string]any{"message": "Got it! Today is {{date}} at {{time}}."},
	}
	require.NoError(t, store.Automations().Create(ctx, automation))

	engine.ProcessEvent(ctx, newMessageEvent(customer.ID, "hello"))

	messages, err := store.Messages().ListByConversation(ctx, conversation.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	assert.Equal(t, "Got it! Today is 2025-03-14 at 09:30.", messages[0].Content)
	assert.Equal(t, models.DirectionOutbound, messages[0].Direction)
	assert.Equal(t, automation.ID, messages[0].Metadata["automationId"])
	assert.Equal(t, true, messages[0].Metadata["automated"])

	require.Len(t, transport.sent, 1)
	assert.Equal(t, messages[0].Content, transport.sent[0])

	logs, err := store.AutomationLogs().ListByAutomation(ctx, automation.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AutomationLogSuccess, logs[0].Status)
}

func TestProcessEventSendMessageSkipsWithoutConversation(t *testing.T) {
	engine, store, transport := newTestEngine(t)
	ctx := context.Background()

	customer := &models.Customer{BusinessID: "biz-1", Name: "Faith", Phone: "+234"}
	require.NoError(t, store.Customers().Create(ctx, customer))

	automation := &models.Automation{
		BusinessID: "biz-1",
		Name:       "auto reply",
		Trigger:    models.TriggerNewMessageReceived,
		Action:     models.ActionSendMessage,
		Status:     models.AutomationStatusActive,
		Config:     map[string]any{"message": "Hi!"},
	}
	require.NoError(t, store.Automations().Create(ctx, automation))

	engine.ProcessEvent(ctx, newMessageEvent(customer.ID, "hello"))

	assert.Empty(t, transport.sent)

	// The skip is still a logged attempt, recorded as success.
	logs, err := store.AutomationLogs().ListByAutomation(ctx, automation.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AutomationLogSuccess, logs[0].Status)
}

func TestProcessEventKeywordMatch(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	customer, _ := seedCustomerWithConversation(t, store)

	automation := &models.Automation{
		BusinessID: "biz-1",
		Name:       "price inquiry tag",
		Trigger:    models.TriggerKeywordDetected,
		Action:     models.ActionAssignTag,
		Status:     models.AutomationStatusActive,
		Config:     map[string]any{"keywords": []any{"price"}, "tag": "price-inquiry"},
	}
	require.NoError(t, store.Automations().Create(ctx, automation))

	engine.ProcessEvent(ctx, newMessageEvent(customer.ID, "What is the PRICE?"))

	updated, err := store.Customers().GetByID(ctx, customer.ID)
	require.NoError(t, err)
	assert.Contains(t, updated.Tags, "price-inquiry")

	logs, err := store.AutomationLogs().ListByAutomation(ctx, automation.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	// A message with no keywords produces no further executions.
	engine.ProcessEvent(ctx, newMessageEvent(customer.ID, "thanks, bye"))

	logs, err = store.AutomationLogs().ListByAutomation(ctx, automation.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestProcessEventDeduplicatesIdenticalPayloads(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	customer, _ := seedCustomerWithConversation(t, store)

	automation := &models.Automation{
		BusinessID: "biz-1",
		Name:       "tag vip",
		Trigger:    models.TriggerNewMessageReceived,
		Action:     models.ActionAssignTag,
		Status:     models.AutomationStatusActive,
		Config:     map[string]any{"tag": "engaged"},
	}
	require.NoError(t, store.Automations().Create(ctx, automation))

	event := newMessageEvent(customer.ID, "hello")

	engine.ProcessEvent(ctx, event)
	engine.ProcessEvent(ctx, event)

	logs, err := store.AutomationLogs().ListByAutomation(ctx, automation.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestProcessEventUpdateCustomer(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	customer, _ := seedCustomerWithConversation(t, store)

	automation := &models.Automation{
		BusinessID: "biz-1",
		Name:       "mark as buyer",
		Trigger:    models.TriggerOrderPlaced,
		Action:     models.ActionUpdateCustomer,
		Status:     models.AutomationStatusActive,
		Config:     map[string]any{"updates": map[string]any{"lifecycle": "buyer"}},
	}
	require.NoError(t, store.Automations().Create(ctx, automation))

	engine.ProcessEvent(ctx, events.OrderPlaced{
		BaseEvent:  events.NewBaseEvent(events.OrderPlacedEvent, "biz-1"),
		OrderID:    "ord-1",
		CustomerID: customer.ID,
		Total:      500,
	})

	updated, err := store.Customers().GetByID(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, "buyer", updated.Metadata["lifecycle"])
}

func TestProcessEventUnknownActionFailsIsolated(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	customer, conversation := seedCustomerWithConversation(t, store)

	broken := &models.Automation{
		BusinessID: "biz-1",
		Name:       "broken",
		Trigger:    models.TriggerNewMessageReceived,
		Action:     "launch_rocket",
		Status:     models.AutomationStatusActive,
	}
	require.NoError(t, store.Automations().Create(ctx, broken))

	working := &models.Automation{
		BusinessID: "biz-1",
		Name:       "auto reply",
		Trigger:    models.TriggerNewMessageReceived,
		Action:     models.ActionSendMessage,
		Status:     models.AutomationStatusActive,
		Config:     map[string]any{"message": "Hi!"},
	}
	require.NoError(t, store.Automations().Create(ctx, working))

	engine.ProcessEvent(ctx, newMessageEvent(customer.ID, "hello"))

	brokenLogs, err := store.AutomationLogs().ListByAutomation(ctx, broken.ID)
	require.NoError(t, err)
	require.Len(t, brokenLogs, 1)
	assert.Equal(t, models.AutomationLogFailed, brokenLogs[0].Status)
	assert.Contains(t, brokenLogs[0].Metadata["error"], "unknown automation action")

	// The failure above does not stop the second automation.
	messages, err := store.Messages().ListByConversation(ctx, conversation.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestProcessEventCreateTaskIsNoopSuccess(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	automation := &models.Automation{
		BusinessID: "biz-1",
		Name:       "follow up task",
		Trigger:    models.TriggerNewCustomer,
		Action:     models.ActionCreateTask,
		Status:     models.AutomationStatusActive,
	}
	require.NoError(t, store.Automations().Create(ctx, automation))

	engine.ProcessEvent(ctx, events.NewCustomer{
		BaseEvent:  events.NewBaseEvent(events.NewCustomerEvent, "biz-1"),
		CustomerID: "cust-1",
	})

	logs, err := store.AutomationLogs().ListByAutomation(ctx, automation.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AutomationLogSuccess, logs[0].Status)
}

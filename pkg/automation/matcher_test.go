package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chatrail/chatrail/pkg/events"
	"github.com/chatrail/chatrail/pkg/models"
)

func TestMatches(t *testing.T) {
	newMessage := events.NewMessage{
		BaseEvent:  events.NewBaseEvent(events.NewMessageEvent, "biz-1"),
		CustomerID: "cust-1",
		Content:    "Hello, what is the PRICE of the blue one?",
	}

	tests := []struct {
		name       string
		automation *models.Automation
		event      events.Event
		want       bool
	}{
		{
			name:       "new message trigger matches new message",
			automation: &models.Automation{Trigger: models.TriggerNewMessageReceived},
			event:      newMessage,
			want:       true,
		},
		{
			name:       "new message trigger ignores other events",
			automation: &models.Automation{Trigger: models.TriggerNewMessageReceived},
			event: events.OrderPlaced{
				BaseEvent: events.NewBaseEvent(events.OrderPlacedEvent, "biz-1"),
			},
			want: false,
		},
		{
			name:       "order placed trigger matches",
			automation: &models.Automation{Trigger: models.TriggerOrderPlaced},
			event: events.OrderPlaced{
				BaseEvent: events.NewBaseEvent(events.OrderPlacedEvent, "biz-1"),
			},
			want: true,
		},
		{
			name: "keyword trigger matches case-insensitively",
			automation: &models.Automation{
				Trigger: models.TriggerKeywordDetected,
				Config:  map[string]any{"keywords": []any{"price", "cost"}},
			},
			event: newMessage,
			want:  true,
		},
		{
			name: "keyword trigger requires a configured keyword in content",
			automation: &models.Automation{
				Trigger: models.TriggerKeywordDetected,
				Config:  map[string]any{"keywords": []any{"refund"}},
			},
			event: newMessage,
			want:  false,
		},
		{
			name: "keyword trigger ignores non-message events",
			automation: &models.Automation{
				Trigger: models.TriggerKeywordDetected,
				Config:  map[string]any{"keywords": []any{"price"}},
			},
			event: events.NewCustomer{
				BaseEvent: events.NewBaseEvent(events.NewCustomerEvent, "biz-1"),
			},
			want: false,
		},
		{
			name:       "unknown trigger never matches",
			automation: &models.Automation{Trigger: "mystery_trigger"},
			event:      newMessage,
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.automation, tt.event))
		})
	}
}

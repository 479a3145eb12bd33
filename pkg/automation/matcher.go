package automation

import (
	"strings"

	"github.com/chatrail/chatrail/pkg/events"
	"github.com/chatrail/chatrail/pkg/models"
)

// Matches decides whether an automation's trigger fires for the event.
// Unknown trigger kinds never match.
func Matches(automation *models.Automation, event events.Event) bool {
	switch automation.Trigger {
	case models.TriggerNewMessageReceived:
		return event.GetType() == events.NewMessageEvent
	case models.TriggerNewCustomer:
		return event.GetType() == events.NewCustomerEvent
	case models.TriggerOrderPlaced:
		return event.GetType() == events.OrderPlacedEvent
	case models.TriggerOrderStatusChanged:
		return event.GetType() == events.OrderStatusChangedEvent
	case models.TriggerKeywordDetected:
		return matchesKeyword(automation, event)
	default:
		return false
	}
}

// matchesKeyword checks new message content for any configured keyword,
// case-insensitive, OR across the list.
func matchesKeyword(automation *models.Automation, event events.Event) bool {
	if event.GetType() != events.NewMessageEvent {
		return false
	}

	content, _ := event.Payload()["content"].(string)
	if content == "" {
		return false
	}

	content = strings.ToLower(content)

	for _, keyword := range automation.Keywords() {
		if keyword == "" {
			continue
		}

		if strings.Contains(content, strings.ToLower(keyword)) {
			return true
		}
	}

	return false
}

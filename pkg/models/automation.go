// Package models defines the core domain models for the CRM automation engine.
package models

import "time"

// AutomationStatus represents the lifecycle state of an automation rule.
type AutomationStatus string

const (
	AutomationStatusActive   AutomationStatus = "active"
	AutomationStatusInactive AutomationStatus = "inactive"
)

// AutomationTrigger enumerates the event conditions an automation can react to.
type AutomationTrigger string

const (
	TriggerNewMessageReceived AutomationTrigger = "new_message_received"
	TriggerNewCustomer        AutomationTrigger = "new_customer"
	TriggerOrderPlaced        AutomationTrigger = "order_placed"
	TriggerOrderStatusChanged AutomationTrigger = "order_status_changed"
	TriggerKeywordDetected    AutomationTrigger = "keyword_detected"
)

// AutomationAction enumerates the actions an automation can perform on match.
type AutomationAction string

const (
	ActionSendMessage    AutomationAction = "send_message"
	ActionAssignTag      AutomationAction = "assign_tag"
	ActionCreateTask     AutomationAction = "create_task"
	ActionUpdateCustomer AutomationAction = "update_customer"
)

// Automation is a standing per-business rule: a trigger condition plus an
// action, independent of the graph-based workflows. Config carries
// trigger/action specific settings (keyword lists, message templates,
// tag names, update maps).
type Automation struct {
	ID         string            `json:"id"`
	BusinessID string            `json:"business_id" validate:"required"`
	Name       string            `json:"name"        validate:"required,min=3"`
	Trigger    AutomationTrigger `json:"trigger"     validate:"required"`
	Action     AutomationAction  `json:"action"      validate:"required"`
	Status     AutomationStatus  `json:"status"      validate:"required"`
	Config     map[string]any    `json:"config,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// IsActive reports whether the automation should be considered for events.
func (a *Automation) IsActive() bool {
	return a.Status == AutomationStatusActive
}

// Keywords returns the configured keyword list for keyword_detected
// triggers. Entries that are not strings are skipped.
func (a *Automation) Keywords() []string {
	raw, ok := a.Config["keywords"].([]any)
	if !ok {
		if typed, ok := a.Config["keywords"].([]string); ok {
			return typed
		}

		return nil
	}

	keywords := make([]string, 0, len(raw))

	for _, entry := range raw {
		if kw, ok := entry.(string); ok {
			keywords = append(keywords, kw)
		}
	}

	return keywords
}

// AutomationLogStatus is the outcome of a single automation execution attempt.
type AutomationLogStatus string

const (
	AutomationLogSuccess AutomationLogStatus = "success"
	AutomationLogFailed  AutomationLogStatus = "failed"
)

// AutomationLog is an append-only record of one execution attempt.
// Exactly one row is written per attempted, non-deduplicated execution.
type AutomationLog struct {
	ID           string              `json:"id"`
	AutomationID string              `json:"automation_id" validate:"required"`
	BusinessID   string              `json:"business_id"   validate:"required"`
	Status       AutomationLogStatus `json:"status"        validate:"required"`
	Metadata     map[string]any      `json:"metadata,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

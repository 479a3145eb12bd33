// Package persistence provides standardized error types for storage
// operations; all implementations return these sentinels.
package persistence

import (
	"errors"
	"fmt"
)

var (
	ErrCustomerNotFound     = errors.New("customer not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrAutomationNotFound   = errors.New("automation not found")
	ErrWorkflowNotFound     = errors.New("workflow not found")
	ErrExecutionNotFound    = errors.New("workflow execution not found")
	ErrWebhookNotFound      = errors.New("webhook not found")
	ErrSegmentNotFound      = errors.New("segment not found")
)

// StoreError wraps storage errors with operation context.
type StoreError struct {
	Op     string // Operation being performed (e.g., "GetByID", "Save")
	Entity string // Entity kind (e.g., "workflow", "customer")
	ID     string // Record ID if applicable
	Err    error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}

	return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a storage error with context.
func NewStoreError(op, entity, id string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, ID: id, Err: err}
}

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrConversationNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrAutomationNotFound) ||
		errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrWebhookNotFound) ||
		errors.Is(err, ErrSegmentNotFound)
}

func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

func IsCustomerNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound)
}

func IsConversationNotFound(err error) bool {
	return errors.Is(err, ErrConversationNotFound)
}

func IsSegmentNotFound(err error) bool {
	return errors.Is(err, ErrSegmentNotFound)
}

// Package persistence provides the data storage abstraction for the CRM
// core: automations and their logs, workflow definitions and executions,
// webhooks and their delivery logs, and the customer-facing records the
// engines read and write.
package persistence

import (
	"context"

	"github.com/chatrail/chatrail/pkg/models"
)

type Persistence interface {
	Customers() CustomerRepository
	Conversations() ConversationRepository
	Messages() MessageRepository
	Orders() OrderRepository
	Automations() AutomationRepository
	AutomationLogs() AutomationLogRepository
	Workflows() WorkflowRepository
	WorkflowExecutions() WorkflowExecutionRepository
	Webhooks() WebhookRepository
	WebhookLogs() WebhookLogRepository
	Segments() SegmentRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, id string) (*models.Customer, error)
	ListByBusiness(ctx context.Context, businessID string) ([]*models.Customer, error)
	// Update applies a partial-update map to the customer's mutable fields
	// and returns the updated record.
	Update(ctx context.Context, id string, update models.CustomerUpdate) (*models.Customer, error)
}

type ConversationRepository interface {
	Create(ctx context.Context, conversation *models.Conversation) error
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	ListByBusiness(ctx context.Context, businessID string) ([]*models.Conversation, error)
	// FindByCustomerAndChannel returns the customer's conversation on the
	// given channel, or ErrConversationNotFound.
	FindByCustomerAndChannel(ctx context.Context, customerID string, channel models.Channel) (*models.Conversation, error)
	// FindByCustomer returns the customer's first conversation on any
	// channel, or ErrConversationNotFound.
	FindByCustomer(ctx context.Context, businessID, customerID string) (*models.Conversation, error)
}

type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	ListByConversation(ctx context.Context, conversationID string) ([]*models.Message, error)
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
}

type AutomationRepository interface {
	Create(ctx context.Context, automation *models.Automation) error
	GetByID(ctx context.Context, id string) (*models.Automation, error)
	ListByBusiness(ctx context.Context, businessID string) ([]*models.Automation, error)
	Save(ctx context.Context, automation *models.Automation) error
}

type AutomationLogRepository interface {
	Create(ctx context.Context, log *models.AutomationLog) error
	ListByAutomation(ctx context.Context, automationID string) ([]*models.AutomationLog, error)
}

type WorkflowRepository interface {
	Create(ctx context.Context, workflow *models.WorkflowDefinition) error
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	ListByBusiness(ctx context.Context, businessID string) ([]*models.WorkflowDefinition, error)
	Save(ctx context.Context, workflow *models.WorkflowDefinition) error
}

type WorkflowExecutionRepository interface {
	Create(ctx context.Context, execution *models.WorkflowExecution) error
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	Save(ctx context.Context, execution *models.WorkflowExecution) error
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error)
}

type WebhookRepository interface {
	Create(ctx context.Context, webhook *models.Webhook) error
	GetByID(ctx context.Context, id string) (*models.Webhook, error)
	ListByBusiness(ctx context.Context, businessID string) ([]*models.Webhook, error)
}

type WebhookLogRepository interface {
	Create(ctx context.Context, log *models.WebhookLog) error
	ListByWebhook(ctx context.Context, webhookID string) ([]*models.WebhookLog, error)
}

type SegmentRepository interface {
	Create(ctx context.Context, segment *models.Segment) error
	GetByID(ctx context.Context, id string) (*models.Segment, error)
	Memberships(ctx context.Context, segmentID string) ([]*models.SegmentMembership, error)
	AddMembership(ctx context.Context, membership *models.SegmentMembership) error
}

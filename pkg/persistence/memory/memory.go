// Package memory provides an in-memory persistence implementation used by
// tests and local development. Conflicting writes are serialized with a
// single mutex per store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/chatrail/chatrail/pkg/models"
	"github.com/chatrail/chatrail/pkg/persistence"
	"github.com/google/uuid"
)

// Persistence implements persistence.Persistence backed by maps.
type Persistence struct {
	mu sync.RWMutex

	customers     map[string]*models.Customer
	conversations map[string]*models.Conversation
	messages      map[string]*models.Message
	orders        map[string]*models.Order
	automations   map[string]*models.Automation
	autoLogs      map[string]*models.AutomationLog
	workflows     map[string]*models.WorkflowDefinition
	executions    map[string]*models.WorkflowExecution
	webhooks      map[string]*models.Webhook
	webhookLogs   map[string]*models.WebhookLog
	segments      map[string]*models.Segment
	memberships   map[string]*models.SegmentMembership
}

// NewPersistence creates an empty in-memory store.
func NewPersistence() *Persistence {
	return &Persistence{
		customers:     make(map[string]*models.Customer),
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string]*models.Message),
		orders:        make(map[string]*models.Order),
		automations:   make(map[string]*models.Automation),
		autoLogs:      make(map[string]*models.AutomationLog),
		workflows:     make(map[string]*models.WorkflowDefinition),
		executions:    make(map[string]*models.WorkflowExecution),
		webhooks:      make(map[string]*models.Webhook),
		webhookLogs:   make(map[string]*models.WebhookLog),
		segments:      make(map[string]*models.Segment),
		memberships:   make(map[string]*models.SegmentMembership),
	}
}

func (p *Persistence) HealthCheck(_ context.Context) error { return nil }

func (p *Persistence) Close(_ context.Context) error { return nil }

func (p *Persistence) Customers() persistence.CustomerRepository {
	return &customerRepository{store: p}
}

func (p *Persistence) Conversations() persistence.ConversationRepository {
	return &conversationRepository{store: p}
}

func (p *Persistence) Messages() persistence.MessageRepository {
	return &messageRepository{store: p}
}

func (p *Persistence) Orders() persistence.OrderRepository {
	return &orderRepository{store: p}
}

func (p *Persistence) Automations() persistence.AutomationRepository {
	return &automationRepository{store: p}
}

func (p *Persistence) AutomationLogs() persistence.AutomationLogRepository {
	return &automationLogRepository{store: p}
}

func (p *Persistence) Workflows() persistence.WorkflowRepository {
	return &workflowRepository{store: p}
}

func (p *Persistence) WorkflowExecutions() persistence.WorkflowExecutionRepository {
	return &executionRepository{store: p}
}

func (p *Persistence) Webhooks() persistence.WebhookRepository {
	return &webhookRepository{store: p}
}

func (p *Persistence) WebhookLogs() persistence.WebhookLogRepository {
	return &webhookLogRepository{store: p}
}

func (p *Persistence) Segments() persistence.SegmentRepository {
	return &segmentRepository{store: p}
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.New().String()
	}
}

type customerRepository struct {
	store *Persistence
}

func (r *customerRepository) Create(_ context.Context, customer *models.Customer) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	ensureID(&customer.ID)

	now := time.Now().UTC()
	customer.CreatedAt = now
	customer.UpdatedAt = now

	clone := *customer
	r.store.customers[customer.ID] = &clone

	return nil
}

func (r *customerRepository) GetByID(_ context.Context, id string) (*models.Customer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	customer, ok := r.store.customers[id]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", "customer", id, persistence.ErrCustomerNotFound)
	}

	clone := *customer

	return &clone, nil
}

func (r *customerRepository) ListByBusiness(_ context.Context, businessID string) ([]*models.Customer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	customers := make([]*models.Customer, 0)

	for _, customer := range r.store.customers {
		if customer.BusinessID == businessID {
			clone := *customer
			customers = append(customers, &clone)
		}
	}

	return customers, nil
}

func (r *customerRepository) Update(_ context.Context, id string, update models.CustomerUpdate) (*models.Customer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	customer, ok := r.store.customers[id]
	if !ok {
		return nil, persistence.NewStoreError("Update", "customer", id, persistence.ErrCustomerNotFound)
	}

	applyCustomerUpdate(customer, update)
	customer.UpdatedAt = time.Now().UTC()

	clone := *customer

	return &clone, nil
}

// applyCustomerUpdate maps partial-update keys onto the customer's mutable
// fields; unrecognized keys land in Metadata.
func applyCustomerUpdate(customer *models.Customer, update models.CustomerUpdate) {
	for key, value := range update {
		switch key {
		case "name":
			if name, ok := value.(string); ok {
				customer.Name = name
			}
		case "phone":
			if phone, ok := value.(string); ok {
				customer.Phone = phone
			}
		case "email":
			if email, ok := value.(string); ok {
				customer.Email = email
			}
		case "tags":
			customer.Tags = toStringSlice(value)
		default:
			if customer.Metadata == nil {
				customer.Metadata = make(map[string]any)
			}

			customer.Metadata[key] = value
		}
	}
}

func toStringSlice(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))

		for _, entry := range v {
			if s, ok := entry.(string); ok {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}

type conversationRepository struct {
	store *Persistence
}

func (r *conversationRepository) Create(_ context.Context, conversation *models.Conversation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	ensureID(&conversation.ID)

	now := time.Now().UTC()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now

	if conversation.Status == "" {
		conversation.Status = models.ConversationOpen
	}

	clone := *conversation
	r.store.conversations[conversation.ID] = &clone

	return nil
}

func (r *conversationRepository) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	conversation, ok := r.store.conversations[id]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", "conversation", id, persistence.ErrConversationNotFound)
	}

	clone := *conversation

	return &clone, nil
}

func (r *conversationRepository) ListByBusiness(_ context.Context, businessID string) ([]*models.Conversation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	conversations := make([]*models.Conversation, 0)

	for _, conversation := range r.store.conversations {
		if conversation.BusinessID == businessID {
			clone := *conversation
			conversations = append(conversations, &clone)
		}
	}

	return conversations, nil
}

func (r *conversationRepository) FindByCustomerAndChannel(_ context.Context, customerID string, channel models.Channel) (*models.Conversation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, conversation := range r.store.conversations {
		if conversation.CustomerID == customerID && conversation.Channel == channel {
			clone := *conversation

			return &clone, nil
		}
	}

	return nil, persistence.NewStoreError("FindByCustomerAndChannel", "conversation", customerID, persistence.ErrConversationNotFound)
}

func (r *conversationRepository) FindByCustomer(_ context.Context, businessID, customerID string) (*models.Conversation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, conversation := range r.store.conversations {
		if conversation.BusinessID == businessID && conversation.CustomerID == customerID {
			clone := *conversation

			return &clone, nil
		}
	}

	return nil, persistence.NewStoreError("FindByCustomer", "conversation", customerID, persistence.ErrConversationNotFound)
}

type messageRepository struct {
	store *Persistence
}

func (r *messageRepository) Create(_ context.Context, message *models.Message) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	ensureID(&message.ID)
	message.CreatedAt = time.Now().UTC()

	clone := *message
	r.store.messages[message.ID] = &clone

	if conversation, ok := r.store.conversations[message.ConversationID]; ok {
		at := message.CreatedAt
		conversation.LastMessageAt = &at
		conversation.UpdatedAt = at
	}

	return nil
}

func (r *messageRepository) ListByConversation(_ context.Context, conversationID string) ([]*models.Message, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	messages := make([]*models.Message, 0)

	for _, message := range r.store.messages {
		if message.ConversationID == conversationID {
			clone := *message
			messages = append(messages, &clone)
		}
	}

	return messages, nil
}

type orderRepository struct {
	store *Persistence
}

func (r *orderRepository) Create(_ context.Context, order *models.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	ensureID(&order.ID)

	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	if order.Status == "" {
		order.Status = models.OrderPending
	}

	clone := *order
	r.store.orders[order.ID] = &clone

	return nil
}

func (r *orderRepository) GetByID(_ context.Context, id string) (*models.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	order, ok := r.store.orders[id]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", "order", id, persistence.ErrOrderNotFound)
	}

	clone := *order

	return &clone, nil
}

type automationRepository struct {
	store *Persistence
}

func (r *automationRepository) Create(_ context.Context, automation *models.Automation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	ensureID(&automation.ID)

	now := time.Now().UTC()
	automation.CreatedAt = now
	automation.UpdatedAt = now

	if automation.Status == "" {
		automation.Status = models.AutomationStatusActive
	}

	clone := *automation
	r.store.automations[automation.ID] = &clone

	return nil
}

func (r *automationRepository) GetByID(_ context.Context, id string) (*models.Automation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	automation, ok := r.store.automations[id]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", "automation", id, persistence.ErrAutomationNotFound)
	}

	clone := *automation

	return &clone, nil
}

func (r *automationRepository) ListByBusiness(_ context.Context, businessID string) ([]*models.Automation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	automations := make([]*models.Automation, 0)

	for _, automation := range r.store.automations {
		if automation.BusinessID == businessID {
			clone := *automation
			automations = append(automations, &clone)
		}
	}

	return automations, nil
}

func (r *automationRepository) Save(_ context.Context, automation *models.Automation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.automations[automation.ID]; !ok {
		return persistence.NewStoreError("Save", "automation", automation.ID, persistence.ErrAutomationNotFound)
	}

	automation.UpdatedAt = time.Now().UTC()

	clone := *automation
	r.store.automations[automation.ID] = &clone

	return nil
}

type automationLogRepository struct {
	store *Persistence
}

func (r *automationLogRepository) Create(_ context.Context, log *models.AutomationLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	ensureID(&log.ID)
	log.CreatedAt = time.Now().UTC()

	clone := *log
	r.store.autoLogs[log.ID] = &clone

	return nil
}

func (r *automationLogRepository) ListByAutomation(_ context.Context, automationID string) ([]*models.AutomationLog, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	logs := make([]*models.AutomationLog, 0)

	for _, log := range r.store.autoLogs {
		if log.AutomationID == automationID {
			clone := *log
			logs = append(logs, &clone)
		}
	}

	return logs, nil
}

type workflowRepository struct {
	store *Persistence
}

func (r *workflowRepository) Create(_ context.Context, workflow *models.WorkflowDefinition) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	ensureID(&workflow.ID)

	now := time.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusDraft
	}

	clone := *workflow
	r.store.workflows[workflow.ID] = &clone

	return nil
}

func (r *workflowRepository) GetByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	workflow, ok := r.store.workflows[id]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	clone := *workflow

	return &clone, nil
}

func (r *workflowRepository) ListByBusiness(_ context.Context, businessID string) ([]*models.WorkflowDefinition, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	workflows := make([]*models.WorkflowDefinition, 0)

	for _, workflow := range r.store.workflows {
		if workflow.BusinessID == businessID {
			clone := *workflow
			workflows = append(workflows, &clone)
		}
	}

	return workflows, nil
}

func (r *workflowRepository) Save(_ context.Context, workflow *models.WorkflowDefinition) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.workflows[workflow.ID]; !ok {
		return persistence.NewStoreError("Save", "workflow", workflow.ID, persistence.ErrWorkflowNotFound)
	}

	workflow.UpdatedAt = time.Now().UTC()

	clone := *workflow
	r.store.workflows[workflow.ID] = &clone

	return nil
}

type executionRepository struct {
	store *Persistence
}

func (r *executionRepository) Create(_ context.Context, execution *models.WorkflowExecution) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	ensureID(&execution.ID)

	if execution.StartedAt.IsZero() {
		execution.StartedAt = time.Now().UTC()
	}

	clone := *execution
	r.store.executions[execution.ID] = &clone

	return nil
}

func (r *executionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	execution, ok := r.store.executions[id]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", "execution", id, persistence.ErrExecutionNotFound)
	}

	clone := *execution

	return &clone, nil
}

func (r *executionRepository) Save(_ context.Context, execution *models.WorkflowExecution) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.executions[execution.ID]; !ok {
		return persistence.NewStoreError("Save", "execution", execution.ID, persistence.ErrExecutionNotFound)
	}

	clone := *execution
	r.store.executions[execution.ID] = &clone

	return nil
}

func (r *executionRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	executions := make([]*models.WorkflowExecution, 0)

	for _, execution := range r.store.executions {
		if execution.WorkflowID == workflowID {
			clone := *execution
			executions = append(executions, &clone)
		}
	}

	return executions, nil
}

type webhookRepository struct {
	store *Persistence
}

func (r *webhookRepository) Create(_ context.Context, webhook *models.Webhook) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	ensureID(&webhook.ID)

	now := time.Now().UTC()
	webhook.CreatedAt = now
	webhook.UpdatedAt = now

	if webhook.Status == "" {
		webhook.Status = models.WebhookStatusActive
	}

	if webhook.Method == "" {
		webhook.Method = "POST"
	}

	clone := *webhook
	r.store.webhooks[webhook.ID] = &clone

	return nil
}

func (r *webhookRepository) GetByID(_ context.Context, id string) (*models.Webhook, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	webhook, ok := r.store.webhooks[id]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", "webhook", id, persistence.ErrWebhookNotFound)
	}

	clone := *webhook

	return &clone, nil
}

func (r *webhookRepository) ListByBusiness(_ context.Context, businessID string) ([]*models.Webhook, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	webhooks := make([]*models.Webhook, 0)

	for _, webhook := range r.store.webhooks {
		if webhook.BusinessID == businessID {
			clone := *webhook
			webhooks = append(webhooks, &clone)
		}
	}

	return webhooks, nil
}

type webhookLogRepository struct {
	store *Persistence
}

func (r *webhookLogRepository) Create(_ context.Context, log *models.WebhookLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	ensureID(&log.ID)
	log.CreatedAt = time.Now().UTC()

	clone := *log
	r.store.webhookLogs[log.ID] = &clone

	return nil
}

func (r *webhookLogRepository) ListByWebhook(_ context.Context, webhookID string) ([]*models.WebhookLog, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	logs := make([]*models.WebhookLog, 0)

	for _, log := range r.store.webhookLogs {
		if log.WebhookID == webhookID {
			clone := *log
			logs = append(logs, &clone)
		}
	}

	return logs, nil
}

type segmentRepository struct {
	store *Persistence
}

func (r *segmentRepository) Create(_ context.Context, segment *models.Segment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	ensureID(&segment.ID)
	segment.CreatedAt = time.Now().UTC()

	clone := *segment
	r.store.segments[segment.ID] = &clone

	return nil
}

func (r *segmentRepository) GetByID(_ context.Context, id string) (*models.Segment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	segment, ok := r.store.segments[id]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", "segment", id, persistence.ErrSegmentNotFound)
	}

	clone := *segment

	return &clone, nil
}

func (r *segmentRepository) Memberships(_ context.Context, segmentID string) ([]*models.SegmentMembership, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	memberships := make([]*models.SegmentMembership, 0)

	for _, membership := range r.store.memberships {
		if membership.SegmentID == segmentID {
			clone := *membership
			memberships = append(memberships, &clone)
		}
	}

	return memberships, nil
}

func (r *segmentRepository) AddMembership(_ context.Context, membership *models.SegmentMembership) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	ensureID(&membership.ID)

	if membership.AddedAt.IsZero() {
		membership.AddedAt = time.Now().UTC()
	}

	clone := *membership
	r.store.memberships[membership.ID] = &clone

	return nil
}

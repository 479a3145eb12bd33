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

// CustomerRepository handles customer-related database operations.
type CustomerRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *CustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	if customer.ID == "" {
		customer.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	customer.CreatedAt = now
	customer.UpdatedAt = now

	tagsJSON, err := marshalJSON(customer.Tags, "[]")
	if err != nil {
		return err
	}

	metadataJSON, err := marshalJSON(customer.Metadata, "{}")
	if err != nil {
		return err
	}

	query := `
		INSERT INTO customers (id, business_id, name, phone, email, tags, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		customer.ID, customer.BusinessID, customer.Name, customer.Phone,
		customer.Email, tagsJSON, metadataJSON, customer.CreatedAt, customer.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert customer: %w", err)
	}

	return nil
}

func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	query := `
		SELECT id, business_id, name, phone, email, tags, metadata, created_at, updated_at
		FROM customers
		WHERE id = $1
	`

	customer, err := scanCustomer(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "customer", id, persistence.ErrCustomerNotFound)
		}

		return nil, fmt.Errorf("failed to scan customer: %w", err)
	}

	return customer, nil
}

func (r *CustomerRepository) ListByBusiness(ctx context.Context, businessID string) ([]*models.Customer, error) {
	query := `
		SELECT id, business_id, name, phone, email, tags, metadata, created_at, updated_at
		FROM customers
		WHERE business_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	customers := make([]*models.Customer, 0)

	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}

		customers = append(customers, customer)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating customers: %w", err)
	}

	return customers, nil
}

func (r *CustomerRepository) Update(ctx context.Context, id string, update models.CustomerUpdate) (*models.Customer, error) {
	customer, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

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

	customer.UpdatedAt = time.Now().UTC()

	tagsJSON, err := marshalJSON(customer.Tags, "[]")
	if err != nil {
		return nil, err
	}

	metadataJSON, err := marshalJSON(customer.Metadata, "{}")
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE customers
		SET name = $2, phone = $3, email = $4, tags = $5, metadata = $6, updated_at = $7
		WHERE id = $1
	`

	_, err = r.db.ExecContext(ctx, query,
		customer.ID, customer.Name, customer.Phone, customer.Email,
		tagsJSON, metadataJSON, customer.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}

	return customer, nil
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*models.Customer, error) {
	var (
		customer     models.Customer
		email        sql.NullString
		tagsJSON     []byte
		metadataJSON []byte
	)

	err := row.Scan(&customer.ID, &customer.BusinessID, &customer.Name, &customer.Phone,
		&email, &tagsJSON, &metadataJSON, &customer.CreatedAt, &customer.UpdatedAt)
	if err != nil {
		return nil, err
	}

	customer.Email = email.String

	if err := unmarshalJSON(tagsJSON, &customer.Tags); err != nil {
		return nil, err
	}

	if err := unmarshalJSON(metadataJSON, &customer.Metadata); err != nil {
		return nil, err
	}

	return &customer, nil
}

// ConversationRepository handles conversation-related database operations.
type ConversationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *ConversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}

	if conversation.Status == "" {
		conversation.Status = models.ConversationOpen
	}

	now := time.Now().UTC()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now

	query := `
		INSERT INTO conversations (id, business_id, customer_id, channel, status, last_message_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		conversation.ID, conversation.BusinessID, conversation.CustomerID,
		conversation.Channel, conversation.Status, conversation.LastMessageAt,
		conversation.CreatedAt, conversation.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}

	return nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	query := conversationSelect + ` WHERE id = $1`

	conversation, err := scanConversation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "conversation", id, persistence.ErrConversationNotFound)
		}

		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}

	return conversation, nil
}

func (r *ConversationRepository) ListByBusiness(ctx context.Context, businessID string) ([]*models.Conversation, error) {
	query := conversationSelect + ` WHERE business_id = $1 ORDER BY updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	conversations := make([]*models.Conversation, 0)

	for rows.Next() {
		conversation, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}

		conversations = append(conversations, conversation)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}

	return conversations, nil
}

func (r *ConversationRepository) FindByCustomerAndChannel(ctx context.Context, customerID string, channel models.Channel) (*models.Conversation, error) {
	query := conversationSelect + ` WHERE customer_id = $1 AND channel = $2 ORDER BY updated_at DESC LIMIT 1`

	conversation, err := scanConversation(r.db.QueryRowContext(ctx, query, customerID, channel))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("FindByCustomerAndChannel", "conversation", customerID, persistence.ErrConversationNotFound)
		}

		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}

	return conversation, nil
}

func (r *ConversationRepository) FindByCustomer(ctx context.Context, businessID, customerID string) (*models.Conversation, error) {
	query := conversationSelect + ` WHERE business_id = $1 AND customer_id = $2 ORDER BY updated_at DESC LIMIT 1`

	conversation, err := scanConversation(r.db.QueryRowContext(ctx, query, businessID, customerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("FindByCustomer", "conversation", customerID, persistence.ErrConversationNotFound)
		}

		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}

	return conversation, nil
}

const conversationSelect = `
	SELECT id, business_id, customer_id, channel, status, last_message_at, created_at, updated_at
	FROM conversations
`

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var (
		conversation  models.Conversation
		lastMessageAt sql.NullTime
	)

	err := row.Scan(&conversation.ID, &conversation.BusinessID, &conversation.CustomerID,
		&conversation.Channel, &conversation.Status, &lastMessageAt,
		&conversation.CreatedAt, &conversation.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lastMessageAt.Valid {
		at := lastMessageAt.Time
		conversation.LastMessageAt = &at
	}

	return &conversation, nil
}

// MessageRepository handles message-related database operations.
type MessageRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}

	message.CreatedAt = time.Now().UTC()

	metadataJSON, err := marshalJSON(message.Metadata, "{}")
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		INSERT INTO messages (id, conversation_id, business_id, direction, content, channel, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = tx.ExecContext(ctx, query,
		message.ID, message.ConversationID, message.BusinessID, message.Direction,
		message.Content, message.Channel, metadataJSON, message.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET last_message_at = $2, updated_at = $2 WHERE id = $1`,
		message.ConversationID, message.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}

	return nil
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]*models.Message, error) {
	query := `
		SELECT id, conversation_id, business_id, direction, content, channel, metadata, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	messages := make([]*models.Message, 0)

	for rows.Next() {
		var (
			message      models.Message
			metadataJSON []byte
		)

		err := rows.Scan(&message.ID, &message.ConversationID, &message.BusinessID,
			&message.Direction, &message.Content, &message.Channel, &metadataJSON, &message.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		if err := unmarshalJSON(metadataJSON, &message.Metadata); err != nil {
			return nil, err
		}

		messages = append(messages, &message)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// OrderRepository handles order-related database operations.
type OrderRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}

	if order.Status == "" {
		order.Status = models.OrderPending
	}

	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	query := `
		INSERT INTO orders (id, business_id, customer_id, status, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		order.ID, order.BusinessID, order.CustomerID, order.Status,
		order.Total, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `
		SELECT id, business_id, customer_id, status, total, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var order models.Order

	err := r.db.QueryRowContext(ctx, query, id).Scan(&order.ID, &order.BusinessID,
		&order.CustomerID, &order.Status, &order.Total, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "order", id, persistence.ErrOrderNotFound)
		}

		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	return &order, nil
}

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

// SegmentRepository handles segments and their memberships.
type SegmentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *SegmentRepository) Create(ctx context.Context, segment *models.Segment) error {
	if segment.ID == "" {
		segment.ID = uuid.New().String()
	}

	segment.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO segments (id, business_id, name, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		segment.ID, segment.BusinessID, segment.Name, segment.Description, segment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert segment: %w", err)
	}

	return nil
}

func (r *SegmentRepository) GetByID(ctx context.Context, id string) (*models.Segment, error) {
	query := `
		SELECT id, business_id, name, description, created_at
		FROM segments
		WHERE id = $1
	`

	var (
		segment     models.Segment
		description sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(&segment.ID, &segment.BusinessID,
		&segment.Name, &description, &segment.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "segment", id, persistence.ErrSegmentNotFound)
		}

		return nil, fmt.Errorf("failed to scan segment: %w", err)
	}

	segment.Description = description.String

	return &segment, nil
}

func (r *SegmentRepository) Memberships(ctx context.Context, segmentID string) ([]*models.SegmentMembership, error) {
	query := `
		SELECT id, segment_id, customer_id, added_at
		FROM segment_memberships
		WHERE segment_id = $1
		ORDER BY added_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, segmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query segment memberships: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	memberships := make([]*models.SegmentMembership, 0)

	for rows.Next() {
		var membership models.SegmentMembership

		err := rows.Scan(&membership.ID, &membership.SegmentID,
			&membership.CustomerID, &membership.AddedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segment membership: %w", err)
		}

		memberships = append(memberships, &membership)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating segment memberships: %w", err)
	}

	return memberships, nil
}

func (r *SegmentRepository) AddMembership(ctx context.Context, membership *models.SegmentMembership) error {
	if membership.ID == "" {
		membership.ID = uuid.New().String()
	}

	if membership.AddedAt.IsZero() {
		membership.AddedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO segment_memberships (id, segment_id, customer_id, added_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (segment_id, customer_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		membership.ID, membership.SegmentID, membership.CustomerID, membership.AddedAt)
	if err != nil {
		return fmt.Errorf("failed to insert segment membership: %w", err)
	}

	return nil
}

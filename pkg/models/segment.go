package models

import "time"

// Segment is a named customer grouping maintained by the adjacent
// segmentation system (RFM scoring and friends). The workflow engine only
// checks membership.
type Segment struct {
	ID          string    `json:"id"`
	BusinessID  string    `json:"business_id" validate:"required"`
	Name        string    `json:"name"        validate:"required"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SegmentMembership records that a customer currently belongs to a segment.
type SegmentMembership struct {
	ID         string    `json:"id"`
	SegmentID  string    `json:"segment_id"  validate:"required"`
	CustomerID string    `json:"customer_id" validate:"required"`
	AddedAt    time.Time `json:"added_at"`
}

// Package segment answers membership questions against the adjacent
// segmentation system's records.
package segment

import (
	"context"
	"fmt"

	"github.com/chatrail/chatrail/pkg/persistence"
)

// Oracle checks whether a customer currently belongs to a segment.
type Oracle struct {
	persistence persistence.Persistence
}

// NewOracle creates a membership oracle over the given store.
func NewOracle(persistence persistence.Persistence) *Oracle {
	return &Oracle{persistence: persistence}
}

// IsMember reports current membership. A missing segment is a
// configuration error, not a false answer.
func (o *Oracle) IsMember(ctx context.Context, segmentID, customerID string) (bool, error) {
	_, err := o.persistence.Segments().GetByID(ctx, segmentID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve segment: %w", err)
	}

	memberships, err := o.persistence.Segments().Memberships(ctx, segmentID)
	if err != nil {
		return false, fmt.Errorf("failed to load segment memberships: %w", err)
	}

	for _, membership := range memberships {
		if membership.CustomerID == customerID {
			return true, nil
		}
	}

	return false, nil
}

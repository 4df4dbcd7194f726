package theme

import (
	"context"

	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// ListFilter narrows theme queries.  Zero values mean "no constraint".
type ListFilter struct {
	BatchID  common.BatchID
	Decision insight.QualityDecision
	common.Pagination
}

// Repository defines the persistence contract for the Theme context.
type Repository interface {
	Create(ctx context.Context, t *Theme) error
	CreateBatch(ctx context.Context, ts []*Theme) error
	GetByID(ctx context.Context, id common.ID) (*Theme, error)
	List(ctx context.Context, filter ListFilter) ([]*Theme, error)

	// UpdateReview persists a reviewed theme with a compare-and-set on the
	// version the caller read.  When the stored version no longer matches
	// expectedVersion it returns a ConcurrentModification error and writes
	// nothing.
	UpdateReview(ctx context.Context, t *Theme, expectedVersion int) error
}

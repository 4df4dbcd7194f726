package response

import (
	"context"

	"github.com/signalweave/signalweave/pkg/types/common"
)

// ListFilter narrows response queries.  Zero values mean "no constraint".
type ListFilter struct {
	CompanyID common.CompanyID
	BatchID   common.BatchID
	Status    LabelStatus
	common.Pagination
}

// Repository defines the persistence contract for the Response context.
type Repository interface {
	Create(ctx context.Context, r *Response) error
	CreateBatch(ctx context.Context, rs []*Response) error
	GetByID(ctx context.Context, id common.ID) (*Response, error)
	Update(ctx context.Context, r *Response) error
	List(ctx context.Context, filter ListFilter) ([]*Response, error)

	// ListPendingEmbedding returns responses stuck in PENDING_EMBEDDING,
	// oldest first, for the retry worker.
	ListPendingEmbedding(ctx context.Context, limit int) ([]*Response, error)

	// ListCanonical returns labeled responses that are not the duplicate side
	// of any duplicate link, ordered by submission time ascending.  This is
	// the clustering input set.
	ListCanonical(ctx context.Context, batchID common.BatchID) ([]*Response, error)

	// ListUnmigratedLegacy returns responses that still carry a categorical
	// label and no numeric sentiment, for the one-time migration command.
	ListUnmigratedLegacy(ctx context.Context, limit int) ([]*Response, error)
}

// DuplicateLinkRepository persists deduplication outcomes.
type DuplicateLinkRepository interface {
	Create(ctx context.Context, link *DuplicateLink) error
	GetByDuplicateID(ctx context.Context, duplicateID common.ID) (*DuplicateLink, error)
	ListByCanonicalID(ctx context.Context, canonicalID common.ID) ([]*DuplicateLink, error)
	ListByBatch(ctx context.Context, batchID common.BatchID) ([]*DuplicateLink, error)
}

package finding

import (
	"context"

	"github.com/signalweave/signalweave/pkg/types/common"
)

// Repository defines the persistence contract for the Finding context.
// Findings are append-only once validated; there is no update or delete.
type Repository interface {
	Create(ctx context.Context, f *Finding) error
	CreateBatch(ctx context.Context, fs []*Finding) error
	GetByID(ctx context.Context, id common.ID) (*Finding, error)

	// GetByIDs resolves a set of finding ids.  Missing ids are reported by
	// the caller as dangling references, so the result may be shorter than
	// the input.
	GetByIDs(ctx context.Context, ids []common.ID) ([]*Finding, error)

	// ListByBatch returns a batch's findings ordered by creation time
	// ascending, the clustering processing order.
	ListByBatch(ctx context.Context, batchID common.BatchID) ([]*Finding, error)

	ListByCompany(ctx context.Context, companyID common.CompanyID, p common.Pagination) ([]*Finding, error)
}

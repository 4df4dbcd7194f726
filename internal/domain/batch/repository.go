package batch

import (
	"context"

	"github.com/signalweave/signalweave/pkg/types/common"
)

// Repository defines the persistence contract for synthesis batch records.
type Repository interface {
	Create(ctx context.Context, b *SynthesisBatch) error
	GetByBatchID(ctx context.Context, batchID common.BatchID) (*SynthesisBatch, error)
	Update(ctx context.Context, b *SynthesisBatch) error
	List(ctx context.Context, p common.Pagination) ([]*SynthesisBatch, error)
}

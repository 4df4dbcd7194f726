package synthesis

import (
	"context"

	"github.com/signalweave/signalweave/internal/application/dedup"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// IndexFactory builds the similarity index for one batch.  Backends that
// scope their search space per batch (the Milvus adapter filters on batch_id)
// need a fresh index per run; the in-memory index can ignore the id.
type IndexFactory func(ctx context.Context, batchID common.BatchID) (dedup.SimilarityIndex, error)

type perBatchService struct {
	deps    Deps
	factory IndexFactory
}

// NewPerBatchService returns a Service that builds a batch-scoped similarity
// index for every run.  deps.Index is ignored; everything else is passed
// through to the underlying pipeline unchanged.
func NewPerBatchService(deps Deps, factory IndexFactory) (Service, error) {
	if factory == nil {
		return nil, errors.New(errors.ErrCodeBatchConfigInvalid,
			"per-batch synthesis service requires an index factory")
	}
	// Validate the remaining dependencies up front so a misconfigured server
	// fails at startup, not on the first run.
	probe := deps
	probe.Index = dedup.NewFlatIndex()
	if _, err := NewService(probe); err != nil {
		return nil, err
	}
	return &perBatchService{deps: deps, factory: factory}, nil
}

func (s *perBatchService) Run(ctx context.Context, batchID common.BatchID, profile insight.SynthesisProfile) (*Result, error) {
	ix, err := s.factory(ctx, batchID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIndexInsertFailed, "building batch similarity index")
	}
	deps := s.deps
	deps.Index = ix
	svc, err := NewService(deps)
	if err != nil {
		return nil, err
	}
	return svc.Run(ctx, batchID, profile)
}

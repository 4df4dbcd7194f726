package milvus

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/signalweave/signalweave/internal/application/dedup"
	"github.com/signalweave/signalweave/internal/config"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

const (
	fieldID        = "id"
	fieldBatchID   = "batch_id"
	fieldCreatedAt = "created_at"
	fieldEmbedding = "embedding"
)

// ResponseIndex is the Milvus-backed dedup.SimilarityIndex.  All batches share
// one collection; queries are scoped to the index's batch with a filter
// expression, and the COSINE metric makes search scores directly comparable to
// the deduplication threshold.
type ResponseIndex struct {
	client  *Client
	cfg     config.MilvusConfig
	logger  logging.Logger
	batchID common.BatchID

	collection string
	topK       int
}

var _ dedup.SimilarityIndex = (*ResponseIndex)(nil)

// NewResponseIndex ensures the shared collection exists and returns an index
// scoped to one batch.
func NewResponseIndex(ctx context.Context, c *Client, batchID common.BatchID, log logging.Logger) (*ResponseIndex, error) {
	ix := &ResponseIndex{
		client:     c,
		cfg:        c.cfg,
		logger:     log,
		batchID:    batchID,
		collection: c.cfg.CollectionPrefix + "responses",
		topK:       c.cfg.DefaultTopK,
	}
	if ix.topK <= 0 {
		ix.topK = 64
	}
	if err := ix.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return ix, nil
}

func (ix *ResponseIndex) ensureCollection(ctx context.Context) error {
	mc := ix.client.Raw()

	has, err := mc.HasCollection(ctx, ix.collection)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexInsertFailed, "checking collection existence")
	}
	if !has {
		schema := entity.NewSchema().
			WithName(ix.collection).
			WithDescription("response embeddings for deduplication").
			WithField(entity.NewField().WithName(fieldID).
				WithDataType(entity.FieldTypeVarChar).WithMaxLength(36).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName(fieldBatchID).
				WithDataType(entity.FieldTypeVarChar).WithMaxLength(128)).
			WithField(entity.NewField().WithName(fieldCreatedAt).
				WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(fieldEmbedding).
				WithDataType(entity.FieldTypeFloatVector).WithDim(int64(insight.EmbeddingDim)))

		if err := mc.CreateCollection(ctx, schema, 1); err != nil {
			return errors.Wrap(err, errors.ErrCodeIndexInsertFailed, "creating response collection")
		}

		m := ix.cfg.HNSWM
		if m <= 0 {
			m = 16
		}
		ef := ix.cfg.HNSWEfConstruction
		if ef <= 0 {
			ef = 200
		}
		idx, err := entity.NewIndexHNSW(entity.COSINE, m, ef)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeIndexInsertFailed, "building HNSW index descriptor")
		}
		if err := mc.CreateIndex(ctx, ix.collection, fieldEmbedding, idx, false); err != nil {
			return errors.Wrap(err, errors.ErrCodeIndexInsertFailed, "creating HNSW index")
		}
	}

	if err := mc.LoadCollection(ctx, ix.collection, false); err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexInsertFailed, "loading response collection")
	}
	return nil
}

// Insert upserts one vector.  Re-inserting an id rewrites the identical row,
// which keeps reruns idempotent.
func (ix *ResponseIndex) Insert(ctx context.Context, id common.ID, vector []float32, createdAt time.Time) error {
	if len(vector) != insight.EmbeddingDim {
		return errors.New(errors.ErrCodeIndexInsertFailed,
			fmt.Sprintf("vector has %d dimensions, index expects %d", len(vector), insight.EmbeddingDim))
	}

	_, err := ix.client.Raw().Upsert(ctx, ix.collection, "",
		entity.NewColumnVarChar(fieldID, []string{string(id)}),
		entity.NewColumnVarChar(fieldBatchID, []string{string(ix.batchID)}),
		entity.NewColumnInt64(fieldCreatedAt, []int64{createdAt.UnixNano()}),
		entity.NewColumnFloatVector(fieldEmbedding, insight.EmbeddingDim, [][]float32{vector}),
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexInsertFailed, "upserting response vector")
	}

	// Inserts must be visible to the very next query within the batch.
	if err := ix.client.Raw().Flush(ctx, ix.collection, false); err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexInsertFailed, "flushing response vector")
	}
	return nil
}

// QueryNeighbors returns this batch's stored vectors at or above threshold,
// ordered by similarity descending with earlier-created ties first.
func (ix *ResponseIndex) QueryNeighbors(ctx context.Context, vector []float32, threshold float64) ([]dedup.Neighbor, error) {
	if len(vector) != insight.EmbeddingDim {
		return nil, errors.New(errors.ErrCodeIndexQueryFailed,
			"query vector dimension does not match the index")
	}
	if threshold <= 0 || threshold > 1 {
		return nil, errors.New(errors.ErrCodeThresholdInvalid,
			"similarity threshold must be in (0, 1]")
	}

	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIndexQueryFailed, "building search params")
	}

	expr := fmt.Sprintf("%s == %s", fieldBatchID, strconv.Quote(string(ix.batchID)))
	results, err := ix.client.Raw().Search(ctx, ix.collection, nil, expr,
		[]string{fieldID, fieldCreatedAt},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldEmbedding, entity.COSINE, ix.topK, sp,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIndexQueryFailed, "searching response vectors")
	}

	var out []dedup.Neighbor
	for _, res := range results {
		ids, ok := res.IDs.(*entity.ColumnVarChar)
		if !ok {
			return nil, errors.New(errors.ErrCodeIndexQueryFailed, "unexpected id column type")
		}
		var createdCol *entity.ColumnInt64
		for _, f := range res.Fields {
			if c, ok := f.(*entity.ColumnInt64); ok && c.Name() == fieldCreatedAt {
				createdCol = c
			}
		}
		if createdCol == nil {
			return nil, errors.New(errors.ErrCodeIndexQueryFailed, "created_at column missing from results")
		}

		for i := 0; i < res.ResultCount; i++ {
			sim := float64(res.Scores[i])
			if sim < threshold {
				continue
			}
			id, err := ids.ValueByIdx(i)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeIndexQueryFailed, "reading neighbor id")
			}
			nanos, err := createdCol.ValueByIdx(i)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeIndexQueryFailed, "reading neighbor timestamp")
			}
			out = append(out, dedup.Neighbor{
				ID:         common.ID(id),
				Similarity: sim,
				CreatedAt:  time.Unix(0, nanos).UTC(),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

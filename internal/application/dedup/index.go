// Package dedup provides the similarity index port, an in-memory cosine
// index, and the deduplicator that collapses near-identical intra-company
// responses onto an earlier canonical.
package dedup

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// Neighbor is one similarity match returned by a query.
type Neighbor struct {
	ID         common.ID
	Similarity float64
	CreatedAt  time.Time
}

// SimilarityIndex is the nearest-neighbor port over embeddings.  Inserts are
// incremental and the index is queryable mid-batch, so later items in a batch
// can match earlier ones.  Implementations must keep inserts
// order-deterministic: the caller serializes Insert, reads may run
// concurrently with other reads.
type SimilarityIndex interface {
	// Insert adds a vector under an id.  Re-inserting an existing id is a
	// no-op, which keeps deduplication idempotent across reruns.
	Insert(ctx context.Context, id common.ID, vector []float32, createdAt time.Time) error

	// QueryNeighbors returns all stored items with cosine similarity to the
	// query vector at or above threshold, ordered by similarity descending,
	// ties broken by earlier creation time.
	QueryNeighbors(ctx context.Context, vector []float32, threshold float64) ([]Neighbor, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// In-memory flat index
// ─────────────────────────────────────────────────────────────────────────────

type flatEntry struct {
	id        common.ID
	vector    []float32 // unit-normalized at insert
	createdAt time.Time
}

// FlatIndex is a brute-force in-memory cosine index.  It is exact, needs no
// external service, and is fast enough for batch-sized corpora; the Milvus
// adapter satisfies the same port for production volumes.
type FlatIndex struct {
	mu      sync.RWMutex
	entries []flatEntry
	byID    map[common.ID]struct{}
}

// NewFlatIndex creates an empty in-memory index.
func NewFlatIndex() *FlatIndex {
	return &FlatIndex{byID: make(map[common.ID]struct{})}
}

func (ix *FlatIndex) Insert(_ context.Context, id common.ID, vector []float32, createdAt time.Time) error {
	if len(vector) != insight.EmbeddingDim {
		return errors.New(errors.ErrCodeIndexInsertFailed,
			"vector dimension does not match the index")
	}

	norm := normalize(vector)
	if norm == nil {
		return errors.New(errors.ErrCodeIndexInsertFailed,
			"zero vector cannot be indexed")
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.byID[id]; ok {
		return nil
	}
	ix.byID[id] = struct{}{}
	ix.entries = append(ix.entries, flatEntry{id: id, vector: norm, createdAt: createdAt})
	return nil
}

func (ix *FlatIndex) QueryNeighbors(_ context.Context, vector []float32, threshold float64) ([]Neighbor, error) {
	if len(vector) != insight.EmbeddingDim {
		return nil, errors.New(errors.ErrCodeIndexQueryFailed,
			"query vector dimension does not match the index")
	}
	if threshold <= 0 || threshold > 1 {
		return nil, errors.New(errors.ErrCodeThresholdInvalid,
			"similarity threshold must be in (0, 1]")
	}

	q := normalize(vector)
	if q == nil {
		return nil, errors.New(errors.ErrCodeIndexQueryFailed,
			"zero vector cannot be queried")
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []Neighbor
	for _, e := range ix.entries {
		sim := dot(q, e.vector)
		if sim >= threshold {
			out = append(out, Neighbor{ID: e.id, Similarity: sim, CreatedAt: e.createdAt})
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

// Len returns the number of indexed items.
func (ix *FlatIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// normalize returns a unit-length copy of v, or nil for a zero vector.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return nil
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// dot computes the dot product of two unit vectors, the cosine similarity.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

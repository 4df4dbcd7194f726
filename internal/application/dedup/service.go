package dedup

import (
	"context"
	"sort"

	"github.com/signalweave/signalweave/internal/domain/response"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
)

// Outcome describes one response after deduplication.
type Outcome struct {
	Response *response.Response

	// Duplicate is true when the response was linked to an earlier canonical.
	Duplicate bool

	// CanonicalID is set when Duplicate is true.
	CanonicalID common.ID

	// UnverifiedUniqueness is true when the response lacked an embedding and
	// passed through without a dedup decision.
	UnverifiedUniqueness bool
}

// Result is the batch-level deduplication summary.
type Result struct {
	Outcomes   []Outcome
	Canonical  []*response.Response
	Duplicates int
	Unverified int
}

// Deduplicator collapses near-identical intra-company responses.  Inserts go
// through a single goroutine per batch so the earlier-creation-wins rule is
// reproducible; the ordering key is the submission time.
type Deduplicator struct {
	index     SimilarityIndex
	links     response.DuplicateLinkRepository
	threshold float64
	logger    logging.Logger
}

// NewDeduplicator wires a deduplicator for one batch run.
func NewDeduplicator(index SimilarityIndex, links response.DuplicateLinkRepository, threshold float64, logger logging.Logger) (*Deduplicator, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, errors.New(errors.ErrCodeThresholdInvalid,
			"dedup threshold must be in (0, 1]")
	}
	return &Deduplicator{
		index:     index,
		links:     links,
		threshold: threshold,
		logger:    logger,
	}, nil
}

// Run deduplicates a batch of responses.  Processing order is submission time
// ascending regardless of input order, so the earlier item is always indexed
// first and becomes the canonical of any later near-duplicate.  Only
// same-company pairs collapse: a cross-company match above the threshold is
// independent corroboration, never a duplicate.
func (d *Deduplicator) Run(ctx context.Context, batchID common.BatchID, rs []*response.Response) (*Result, error) {
	ordered := make([]*response.Response, len(rs))
	copy(ordered, rs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SubmittedAt.Before(ordered[j].SubmittedAt)
	})

	byID := make(map[common.ID]*response.Response, len(ordered))
	for _, r := range ordered {
		byID[r.ID] = r
	}

	res := &Result{Outcomes: make([]Outcome, 0, len(ordered))}
	for _, r := range ordered {
		if !r.HasEmbedding() {
			res.Outcomes = append(res.Outcomes, Outcome{Response: r, UnverifiedUniqueness: true})
			res.Canonical = append(res.Canonical, r)
			res.Unverified++
			d.logger.Warn("response has no embedding, uniqueness unverified",
				logging.String("response_id", string(r.ID)))
			continue
		}

		neighbors, err := d.index.QueryNeighbors(ctx, r.Embedding, d.threshold)
		if err != nil {
			return nil, err
		}

		canonical := d.pickCanonical(r, neighbors, byID)
		if canonical != "" {
			sim := neighbors[0].Similarity
			for _, n := range neighbors {
				if n.ID == canonical {
					sim = n.Similarity
					break
				}
			}
			if err := d.recordLink(ctx, r.ID, canonical, sim, batchID); err != nil {
				return nil, err
			}
			res.Outcomes = append(res.Outcomes, Outcome{Response: r, Duplicate: true, CanonicalID: canonical})
			res.Duplicates++
		} else {
			res.Outcomes = append(res.Outcomes, Outcome{Response: r})
			res.Canonical = append(res.Canonical, r)
		}

		// Duplicates are indexed too: a still-later response may be closer
		// to the duplicate's phrasing than the canonical's.
		if err := d.index.Insert(ctx, r.ID, r.Embedding, r.SubmittedAt); err != nil {
			return nil, err
		}
	}

	d.logger.Info("deduplication complete",
		logging.String("batch_id", string(batchID)),
		logging.Int("responses", len(ordered)),
		logging.Int("duplicates", res.Duplicates),
		logging.Int("unverified", res.Unverified))
	return res, nil
}

// pickCanonical returns the id of the best same-company neighbor created
// strictly before the response, or "" when the response is unique.  Neighbors
// arrive ordered by similarity descending with earlier-created winning ties,
// so the first qualifying hit is the canonical.  The strict creation-time
// check keeps reruns against an already-populated index from linking an
// earlier item to its own later duplicate.
func (d *Deduplicator) pickCanonical(r *response.Response, neighbors []Neighbor, byID map[common.ID]*response.Response) common.ID {
	for _, n := range neighbors {
		if n.ID == r.ID || !n.CreatedAt.Before(r.SubmittedAt) {
			continue
		}
		other, ok := byID[n.ID]
		if !ok || other.CompanyID != r.CompanyID {
			continue
		}
		return n.ID
	}
	return ""
}

// recordLink persists the duplicate relation unless an identical link already
// exists, which keeps reruns idempotent.
func (d *Deduplicator) recordLink(ctx context.Context, duplicateID, canonicalID common.ID, similarity float64, batchID common.BatchID) error {
	existing, err := d.links.GetByDuplicateID(ctx, duplicateID)
	if err != nil && !errors.IsNotFound(err) {
		return err
	}
	if existing != nil {
		return nil
	}

	link, err := response.NewDuplicateLink(duplicateID, canonicalID, similarity, batchID)
	if err != nil {
		return err
	}
	if err := d.links.Create(ctx, link); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "recording duplicate link")
	}
	d.logger.Debug("duplicate recorded",
		logging.String("duplicate_id", string(duplicateID)),
		logging.String("canonical_id", string(canonicalID)),
		logging.Float64("similarity", similarity))
	return nil
}

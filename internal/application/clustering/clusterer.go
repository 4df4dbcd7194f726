// Package clustering groups deduplicated findings into cross-company pattern
// clusters with a single-pass greedy assignment.  The algorithm is
// order-dependent by construction: processing findings in creation order
// against running-mean centroids trades exactness for determinism and
// linear-time behavior, an accepted property rather than a defect.
package clustering

import (
	"context"
	"math"
	"sort"

	"github.com/signalweave/signalweave/internal/domain/finding"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
)

// Cluster is one candidate pattern: its members, the running-mean centroid,
// and the similarity bookkeeping behind the composite ranking score.
type Cluster struct {
	Members  []*finding.Finding
	centroid []float64 // running mean of member embeddings; nil for vectorless singletons

	// simSum accumulates each member's similarity to the centroid at the
	// moment it was assigned; the first member contributes 1.0.
	simSum float64
}

// Companies returns the distinct contributing company identifiers.
func (c *Cluster) Companies() []common.CompanyID {
	seen := make(map[common.CompanyID]struct{}, len(c.Members))
	out := make([]common.CompanyID, 0, len(c.Members))
	for _, f := range c.Members {
		if _, ok := seen[f.CompanyID]; ok {
			continue
		}
		seen[f.CompanyID] = struct{}{}
		out = append(out, f.CompanyID)
	}
	return out
}

// CompanyCount returns the number of distinct contributing companies.
func (c *Cluster) CompanyCount() int { return len(c.Companies()) }

// AvgSimilarity returns the mean assignment similarity across members.
func (c *Cluster) AvgSimilarity() float64 {
	if len(c.Members) == 0 {
		return 0
	}
	return c.simSum / float64(len(c.Members))
}

// EvidenceCount returns the number of member findings.
func (c *Cluster) EvidenceCount() int { return len(c.Members) }

// ThemeEligible reports whether the cluster can become a theme candidate:
// at least two distinct companies, no exceptions.
func (c *Cluster) ThemeEligible() bool { return c.CompanyCount() >= 2 }

// AlertEligible reports whether the cluster can become an alert candidate: a
// single-company cluster carrying at least one high-impact finding.
func (c *Cluster) AlertEligible() bool {
	if c.CompanyCount() != 1 {
		return false
	}
	for _, f := range c.Members {
		if f.HighImpact {
			return true
		}
	}
	return false
}

// Clusterer runs the greedy assignment for one batch.
type Clusterer struct {
	threshold float64
	logger    logging.Logger
}

// NewClusterer wires a clusterer.  The threshold must sit strictly below the
// dedup threshold; the profile validation enforces that ordering, this guard
// only checks the local range.
func NewClusterer(threshold float64, logger logging.Logger) (*Clusterer, error) {
	if threshold <= 0 || threshold >= 1 {
		return nil, errors.New(errors.ErrCodeThresholdInvalid,
			"cluster threshold must be in (0, 1)")
	}
	return &Clusterer{threshold: threshold, logger: logger}, nil
}

// Run assigns findings to clusters in creation order: each finding joins the
// first existing cluster whose centroid similarity reaches the threshold,
// otherwise it starts a new cluster.  Centroids update incrementally as the
// running mean of member embeddings.  Findings without an embedding cannot be
// compared and become singleton clusters, which keeps a vectorless
// high-impact finding alert-eligible instead of silently dropped.
func (cl *Clusterer) Run(ctx context.Context, findings []*finding.Finding) ([]*Cluster, error) {
	if len(findings) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyBatch, "no findings to cluster")
	}

	ordered := make([]*finding.Finding, len(findings))
	copy(ordered, findings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	var clusters []*Cluster
	for _, f := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeClusteringFailed, "clustering interrupted")
		}

		if !f.HasEmbedding() {
			clusters = append(clusters, singleton(f, nil))
			continue
		}

		vec := toUnit(f.Embedding)
		assigned := false
		for _, c := range clusters {
			if c.centroid == nil {
				continue
			}
			if sim := cosineToCentroid(vec, c.centroid); sim >= cl.threshold {
				c.add(f, vec, sim)
				assigned = true
				break
			}
		}
		if !assigned {
			clusters = append(clusters, singleton(f, vec))
		}
	}

	cl.logger.Info("clustering complete",
		logging.Int("findings", len(ordered)),
		logging.Int("clusters", len(clusters)))
	return clusters, nil
}

func singleton(f *finding.Finding, vec []float64) *Cluster {
	return &Cluster{
		Members:  []*finding.Finding{f},
		centroid: vec,
		simSum:   1.0,
	}
}

// add appends a member and updates the running-mean centroid in place.
func (c *Cluster) add(f *finding.Finding, vec []float64, sim float64) {
	n := float64(len(c.Members))
	for i := range c.centroid {
		c.centroid[i] = (c.centroid[i]*n + vec[i]) / (n + 1)
	}
	c.Members = append(c.Members, f)
	c.simSum += sim
}

// toUnit converts an embedding to a unit-length float64 vector.
func toUnit(v []float32) []float64 {
	out := make([]float64, len(v))
	var sum float64
	for i, x := range v {
		out[i] = float64(x)
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i := range out {
		out[i] *= inv
	}
	return out
}

// cosineToCentroid computes cosine similarity between a unit vector and the
// (not necessarily unit-length) running-mean centroid.
func cosineToCentroid(unit, centroid []float64) float64 {
	var dot, norm float64
	for i := range unit {
		dot += unit[i] * centroid[i]
		norm += centroid[i] * centroid[i]
	}
	if norm == 0 {
		return 0
	}
	return dot / math.Sqrt(norm)
}

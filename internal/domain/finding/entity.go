// Package finding implements the Finding bounded context: the atomic,
// company-attributable insight derived from one or more responses.  Findings
// are the clustering input and the evidence unit referenced by themes and
// strategic alerts.
package finding

import (
	"fmt"
	"time"

	"github.com/signalweave/signalweave/internal/domain/response"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// Finding is an append-only insight traced to at least one source response.
// All source responses belong to the finding's company; the embedding is
// inherited from the primary source response (the first in SourceResponseIDs)
// or computed as an aggregate upstream, but is always either absent or
// exactly insight.EmbeddingDim wide.
type Finding struct {
	common.BaseEntity

	CompanyID common.CompanyID `json:"company_id"`
	BatchID   common.BatchID   `json:"batch_id,omitempty"`

	// Statement is the distilled insight text.
	Statement string `json:"statement"`

	// SourceResponseIDs is the evidence trail, primary source first.
	SourceResponseIDs []common.ID `json:"source_response_ids"`

	// Embedding and Sentiment are derived from the source responses.
	Embedding []float32 `json:"embedding,omitempty"`
	Sentiment float64   `json:"sentiment"`

	// HighImpact marks findings carrying an explicit revenue or competitive
	// signal; it makes a single-company cluster alert-eligible.
	HighImpact bool `json:"high_impact"`

	// UnverifiedUniqueness flags a finding that skipped deduplication because
	// its embedding was absent at index time.
	UnverifiedUniqueness bool `json:"unverified_uniqueness,omitempty"`
}

// New creates a Finding from its source responses, enforcing:
//   - non-empty statement text,
//   - at least one source response,
//   - every source response belongs to companyID,
//   - sentiment within the numeric scale.
//
// The embedding is inherited from the first source response that carries one.
func New(companyID common.CompanyID, statement string, sentiment float64, sources []*response.Response) (*Finding, error) {
	if statement == "" {
		return nil, errors.Validation("finding statement must not be empty")
	}
	if companyID == "" {
		return nil, errors.Validation("finding company id must not be empty")
	}
	if len(sources) == 0 {
		return nil, errors.Validation("a finding must trace to at least one response")
	}
	if sentiment < insight.SentimentMin || sentiment > insight.SentimentMax {
		return nil, errors.New(errors.ErrCodeSentimentOutOfRange,
			fmt.Sprintf("finding sentiment %.1f is outside [%.1f, %.1f]",
				sentiment, insight.SentimentMin, insight.SentimentMax))
	}

	ids := make([]common.ID, 0, len(sources))
	var embedding []float32
	for _, src := range sources {
		if src.CompanyID != companyID {
			return nil, errors.Validation(fmt.Sprintf(
				"source response %s belongs to company %q, finding claims %q",
				src.ID, src.CompanyID, companyID))
		}
		ids = append(ids, src.ID)
		if embedding == nil && src.HasEmbedding() {
			embedding = src.Embedding
		}
	}

	now := time.Now().UTC()
	return &Finding{
		BaseEntity: common.BaseEntity{
			ID:        common.NewID(),
			CreatedAt: now,
			UpdatedAt: now,
			Version:   1,
		},
		CompanyID:            companyID,
		Statement:            statement,
		SourceResponseIDs:    ids,
		Embedding:            embedding,
		Sentiment:            response.RoundSentiment(sentiment),
		UnverifiedUniqueness: embedding == nil,
	}, nil
}

// MarkHighImpact flags the finding as carrying an explicit revenue or
// competitive signal.
func (f *Finding) MarkHighImpact() {
	if f.HighImpact {
		return
	}
	f.HighImpact = true
	f.Touch()
}

// HasEmbedding reports whether the finding carries a usable vector.
func (f *Finding) HasEmbedding() bool {
	return len(f.Embedding) == insight.EmbeddingDim
}

// Validate re-checks the structural invariants of a rehydrated finding, for
// use after loading from storage.
func (f *Finding) Validate() error {
	if f.Statement == "" {
		return errors.Validation("finding statement must not be empty")
	}
	if f.CompanyID == "" {
		return errors.Validation("finding company id must not be empty")
	}
	if len(f.SourceResponseIDs) == 0 {
		return errors.Validation("a finding must trace to at least one response")
	}
	if f.Embedding != nil && len(f.Embedding) != insight.EmbeddingDim {
		return errors.New(errors.ErrCodeEmbeddingDimension,
			fmt.Sprintf("finding embedding has %d dimensions, expected %d",
				len(f.Embedding), insight.EmbeddingDim))
	}
	return nil
}

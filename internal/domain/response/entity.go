// Package response implements the Response bounded context: the labeled
// survey response aggregate, the numeric sentiment scale, the legacy
// categorical label translator, and the deduplication link between a
// duplicate response and its canonical representative.  Persistence and
// vector-index concerns live in the infrastructure layer.
package response

import (
	"fmt"
	"math"
	"time"

	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// ─────────────────────────────────────────────────────────────────────────────
// Labeling status
// ─────────────────────────────────────────────────────────────────────────────

// LabelStatus tracks a response through the labeling pipeline.  A response is
// Labeled only when both the sentiment score and the embedding vector are
// present; PendingEmbedding marks a response whose sentiment was scored but
// whose embedding call failed, so a later retry can complete it.
type LabelStatus string

const (
	StatusUnlabeled        LabelStatus = "UNLABELED"
	StatusPendingEmbedding LabelStatus = "PENDING_EMBEDDING"
	StatusLabeled          LabelStatus = "LABELED"
)

// Valid reports whether s is a known labeling status.
func (s LabelStatus) Valid() bool {
	switch s {
	case StatusUnlabeled, StatusPendingEmbedding, StatusLabeled:
		return true
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Response aggregate root
// ─────────────────────────────────────────────────────────────────────────────

// Response is the aggregate root of the Response bounded context.  It carries
// the verbatim survey answer, the company it came from, and the labeling
// artifacts attached during synthesis.
//
// Two invariants are enforced by every mutation path:
//   - Sentiment, once set, lies in [-5.0, +5.0] with one decimal of precision.
//   - Embedding is either absent (nil) or exactly insight.EmbeddingDim wide.
//     A zero-length or partially filled vector is never stored.
type Response struct {
	common.BaseEntity

	CompanyID common.CompanyID `json:"company_id"`
	BatchID   common.BatchID   `json:"batch_id,omitempty"`

	// Text is the verbatim respondent answer.  Immutable after creation.
	Text string `json:"text"`

	// QuestionKey identifies the survey question the answer belongs to.
	QuestionKey string `json:"question_key,omitempty"`

	// Sentiment is the numeric score on the -5.0..+5.0 scale.  Nil until the
	// labeler has scored the response.
	Sentiment *float64 `json:"sentiment,omitempty"`

	// SentimentRationale is the scorer's short justification, kept for audit.
	SentimentRationale string `json:"sentiment_rationale,omitempty"`

	// Embedding is the dense vector used for similarity search.  Present or
	// absent, never zero-filled.
	Embedding []float32 `json:"embedding,omitempty"`

	Status LabelStatus `json:"status"`

	// LegacyLabel preserves the original categorical label for responses
	// migrated from the pre-numeric pipeline.  Empty for native responses.
	LegacyLabel insight.LegacySentimentLabel `json:"legacy_label,omitempty"`

	// SubmittedAt is when the respondent submitted the answer; it drives the
	// earlier-wins tie break in deduplication, not CreatedAt.
	SubmittedAt time.Time `json:"submitted_at"`

	events []common.DomainEvent
}

// NewResponse creates a Response aggregate, enforcing construction invariants:
// non-empty text, a valid company identifier, and a non-zero submission time.
// The response starts Unlabeled with no sentiment and no embedding.
func NewResponse(companyID common.CompanyID, text, questionKey string, submittedAt time.Time) (*Response, error) {
	if text == "" {
		return nil, errors.New(errors.ErrCodeEmptyResponseText, "response text must not be empty")
	}
	if companyID == "" {
		return nil, errors.Validation("company id must not be empty")
	}
	if submittedAt.IsZero() {
		return nil, errors.Validation("submission time must not be zero")
	}

	now := time.Now().UTC()
	r := &Response{
		BaseEntity: common.BaseEntity{
			ID:        common.NewID(),
			CreatedAt: now,
			UpdatedAt: now,
			Version:   1,
		},
		CompanyID:   companyID,
		Text:        text,
		QuestionKey: questionKey,
		Status:      StatusUnlabeled,
		SubmittedAt: submittedAt.UTC(),
	}
	r.recordEvent(NewResponseCreatedEvent(r.ID, r.CompanyID))
	return r, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Labeling mutations
// ─────────────────────────────────────────────────────────────────────────────

// SetSentiment attaches a sentiment score, rounding it to one decimal and
// rejecting values outside [-5.0, +5.0].  It may be called on an Unlabeled or
// PendingEmbedding response; the status advances to Labeled only once the
// embedding is also present.
func (r *Response) SetSentiment(score float64, rationale string) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return errors.New(errors.ErrCodeSentimentOutOfRange, "sentiment score must be finite")
	}
	rounded := RoundSentiment(score)
	if rounded < insight.SentimentMin || rounded > insight.SentimentMax {
		return errors.New(errors.ErrCodeSentimentOutOfRange,
			fmt.Sprintf("sentiment %.1f is outside [%.1f, %.1f]",
				rounded, insight.SentimentMin, insight.SentimentMax))
	}

	r.Sentiment = &rounded
	r.SentimentRationale = rationale
	r.refreshStatus()
	r.Touch()
	return nil
}

// SetEmbedding attaches the embedding vector.  The vector must be exactly
// insight.EmbeddingDim wide; anything else is rejected so that a truncated or
// placeholder vector can never reach the similarity index.
func (r *Response) SetEmbedding(vec []float32) error {
	if len(vec) != insight.EmbeddingDim {
		return errors.New(errors.ErrCodeEmbeddingDimension,
			fmt.Sprintf("embedding has %d dimensions, expected %d", len(vec), insight.EmbeddingDim))
	}

	r.Embedding = vec
	r.refreshStatus()
	r.Touch()
	return nil
}

// MarkEmbeddingPending records that sentiment scoring succeeded but the
// embedding call did not.  The response stays out of similarity search until
// a retry attaches the vector.
func (r *Response) MarkEmbeddingPending() {
	if r.Embedding != nil {
		return
	}
	r.Status = StatusPendingEmbedding
	r.Touch()
	r.recordEvent(NewEmbeddingPendingEvent(r.ID))
}

// refreshStatus derives the labeling status from which artifacts are present.
func (r *Response) refreshStatus() {
	switch {
	case r.Sentiment != nil && r.Embedding != nil:
		if r.Status != StatusLabeled {
			r.Status = StatusLabeled
			r.recordEvent(NewResponseLabeledEvent(r.ID, *r.Sentiment))
		}
	case r.Sentiment != nil:
		if r.Status == StatusUnlabeled {
			r.Status = StatusPendingEmbedding
		}
	}
}

// HasEmbedding reports whether the response carries a usable vector.
func (r *Response) HasEmbedding() bool {
	return len(r.Embedding) == insight.EmbeddingDim
}

// IsLabeled reports whether both labeling artifacts are present.
func (r *Response) IsLabeled() bool {
	return r.Status == StatusLabeled
}

// RoundSentiment rounds a raw score to the one-decimal precision of the
// sentiment scale.
func RoundSentiment(score float64) float64 {
	return math.Round(score*10) / 10
}

// ─────────────────────────────────────────────────────────────────────────────
// Legacy label translation
// ─────────────────────────────────────────────────────────────────────────────

// TranslatorVersion identifies a legacy-label mapping revision.  Migrated
// responses record the version used so a later remapping can find them.
type TranslatorVersion string

// TranslatorV1 is the initial categorical-to-numeric mapping.
const TranslatorV1 TranslatorVersion = "legacy-v1"

// legacyMappingV1 maps the retired categorical labels onto the numeric scale.
// Mixed and neutral both land on 0.0: the old pipeline never distinguished
// tension from indifference reliably enough to preserve.
var legacyMappingV1 = map[insight.LegacySentimentLabel]float64{
	insight.LegacyPositive: 3.0,
	insight.LegacyNegative: -3.0,
	insight.LegacyMixed:    0.0,
	insight.LegacyNeutral:  0.0,
	insight.LegacyUnset:    0.0,
}

// LegacyTranslator converts retired categorical sentiment labels to the
// numeric scale.  It exists for migration only; newly labeled responses are
// scored directly by the sentiment scorer.
type LegacyTranslator struct {
	version TranslatorVersion
	mapping map[insight.LegacySentimentLabel]float64
}

// NewLegacyTranslator returns the translator for the given mapping version.
func NewLegacyTranslator(version TranslatorVersion) (*LegacyTranslator, error) {
	switch version {
	case TranslatorV1:
		return &LegacyTranslator{version: TranslatorV1, mapping: legacyMappingV1}, nil
	default:
		return nil, errors.Validation(fmt.Sprintf("unknown legacy translator version %q", version))
	}
}

// Version returns the mapping revision this translator applies.
func (t *LegacyTranslator) Version() TranslatorVersion { return t.version }

// Translate returns the numeric score for a legacy label.
func (t *LegacyTranslator) Translate(label insight.LegacySentimentLabel) (float64, error) {
	score, ok := t.mapping[label]
	if !ok {
		return 0, errors.New(errors.ErrCodeLegacyLabelUnknown,
			fmt.Sprintf("legacy sentiment label %q has no numeric mapping", label))
	}
	return score, nil
}

// ApplyLegacyLabel translates a categorical label and installs the resulting
// score on the response, recording the label and advancing status.  Migrated
// responses still need an embedding before they are fully Labeled.
func (r *Response) ApplyLegacyLabel(t *LegacyTranslator, label insight.LegacySentimentLabel) error {
	score, err := t.Translate(label)
	if err != nil {
		return err
	}
	r.LegacyLabel = label
	return r.SetSentiment(score, fmt.Sprintf("migrated from categorical label %q (%s)", label, t.Version()))
}

// ─────────────────────────────────────────────────────────────────────────────
// Duplicate link
// ─────────────────────────────────────────────────────────────────────────────

// DuplicateLink records that one response was judged a near-duplicate of an
// earlier canonical response from the same company.  The duplicate row is
// kept; downstream clustering reads only canonical responses.
type DuplicateLink struct {
	common.BaseEntity

	DuplicateID common.ID `json:"duplicate_id"`
	CanonicalID common.ID `json:"canonical_id"`

	// Similarity is the cosine similarity that triggered the link.
	Similarity float64 `json:"similarity"`

	BatchID common.BatchID `json:"batch_id,omitempty"`
}

// NewDuplicateLink creates a link between a duplicate and its canonical.
// A response can never be its own duplicate.
func NewDuplicateLink(duplicateID, canonicalID common.ID, similarity float64, batchID common.BatchID) (*DuplicateLink, error) {
	if duplicateID == canonicalID {
		return nil, errors.Validation("a response cannot be linked as its own duplicate")
	}
	if err := duplicateID.Validate(); err != nil {
		return nil, errors.Validation("duplicate id is invalid")
	}
	if err := canonicalID.Validate(); err != nil {
		return nil, errors.Validation("canonical id is invalid")
	}
	if similarity < 0 || similarity > 1 {
		return nil, errors.Validation(fmt.Sprintf("similarity %.4f is outside [0, 1]", similarity))
	}

	now := time.Now().UTC()
	return &DuplicateLink{
		BaseEntity: common.BaseEntity{
			ID:        common.NewID(),
			CreatedAt: now,
			UpdatedAt: now,
			Version:   1,
		},
		DuplicateID: duplicateID,
		CanonicalID: canonicalID,
		Similarity:  similarity,
		BatchID:     batchID,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Domain events
// ─────────────────────────────────────────────────────────────────────────────

func (r *Response) recordEvent(ev common.DomainEvent) {
	r.events = append(r.events, ev)
}

// Events returns and clears the pending domain events.
func (r *Response) Events() []common.DomainEvent {
	evs := r.events
	r.events = nil
	return evs
}

// Package theme implements the Theme bounded context: the synthesized
// cross-company statement, its supporting evidence, and the quality-review
// state machine that gates it before publication.
package theme

import (
	"fmt"
	"time"

	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// ─────────────────────────────────────────────────────────────────────────────
// State machine: allowed quality-review transitions
// ─────────────────────────────────────────────────────────────────────────────

// allowedTransitions defines the valid next decisions reachable from each
// quality decision.  Transitions not listed are illegal and rejected by
// Review.  Terminal states have no outgoing transitions; resetting a theme to
// Pending is an administrative operation outside this aggregate.
//
//	Pending ──► Approved
//	   │
//	   ├──────► Rejected
//	   │
//	   └──────► Featured
var allowedTransitions = map[insight.QualityDecision][]insight.QualityDecision{
	insight.DecisionPending: {
		insight.DecisionApproved,
		insight.DecisionRejected,
		insight.DecisionFeatured,
	},
	insight.DecisionApproved: {},
	insight.DecisionRejected: {},
	insight.DecisionFeatured: {},
}

// CanTransition reports whether the state machine permits moving from one
// quality decision to another.
func CanTransition(from, to insight.QualityDecision) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Theme aggregate root
// ─────────────────────────────────────────────────────────────────────────────

// Theme is a validated cross-company statement.  It is created only by the
// contract validator, already proven to satisfy the word-count, company-floor,
// and blocklist rules; the only post-creation mutation is the quality
// decision, which moves through the explicit transition table above.
type Theme struct {
	common.BaseEntity

	BatchID common.BatchID `json:"batch_id"`

	Statement string `json:"statement"`
	WordCount int    `json:"word_count"`

	// FindingIDs is the ordered supporting evidence; it spans CompanyIDs,
	// which always has at least two distinct entries.
	FindingIDs []common.ID        `json:"finding_ids"`
	CompanyIDs []common.CompanyID `json:"company_ids"`

	// CompositeScore is the ranking score computed by the validator
	// (company count × average cluster similarity × evidence count).
	CompositeScore float64 `json:"composite_score"`

	QualityDecision insight.QualityDecision `json:"quality_decision"`
	QualityNotes    string                  `json:"quality_notes,omitempty"`
	ReviewedAt      *time.Time              `json:"reviewed_at,omitempty"`
	ReviewedBy      common.ReviewerID       `json:"reviewed_by,omitempty"`

	events []common.DomainEvent
}

// New creates a Theme in the Pending state.  Structural guards here are a
// backstop; the contract validator performs the full rule set before calling.
func New(batchID common.BatchID, statement string, wordCount int, findingIDs []common.ID, companyIDs []common.CompanyID, compositeScore float64) (*Theme, error) {
	if statement == "" {
		return nil, errors.Validation("theme statement must not be empty")
	}
	if len(findingIDs) == 0 {
		return nil, errors.New(errors.ErrCodeDanglingFinding, "theme must reference at least one finding")
	}
	if distinctCompanies(companyIDs) < 2 {
		return nil, errors.New(errors.ErrCodeCompanyFloor,
			fmt.Sprintf("theme spans %d distinct companies, minimum is 2", distinctCompanies(companyIDs)))
	}

	now := time.Now().UTC()
	th := &Theme{
		BaseEntity: common.BaseEntity{
			ID:        common.NewID(),
			CreatedAt: now,
			UpdatedAt: now,
			Version:   1,
		},
		BatchID:         batchID,
		Statement:       statement,
		WordCount:       wordCount,
		FindingIDs:      findingIDs,
		CompanyIDs:      companyIDs,
		CompositeScore:  compositeScore,
		QualityDecision: insight.DecisionPending,
	}
	th.recordEvent(NewThemeCreatedEvent(th.ID, th.BatchID, len(th.CompanyIDs)))
	return th, nil
}

func distinctCompanies(ids []common.CompanyID) int {
	seen := make(map[common.CompanyID]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}

// ─────────────────────────────────────────────────────────────────────────────
// Quality review
// ─────────────────────────────────────────────────────────────────────────────

// Review applies a quality decision.  It enforces:
//   - the decision is a known enum value,
//   - a reviewer identity is supplied,
//   - the transition is permitted by the state table,
//   - a rejection carries a non-empty note.
//
// On success it stamps reviewed_at and reviewed_by and advances the version;
// the repository uses the prior version for its compare-and-set update.
func (t *Theme) Review(decision insight.QualityDecision, reviewer common.ReviewerID, note string) error {
	if !decision.Valid() {
		return errors.Validation(fmt.Sprintf("unknown quality decision %q", decision))
	}
	if reviewer == "" {
		return errors.New(errors.ErrCodeReviewerRequired, "a reviewer identity is required for every transition")
	}
	if !CanTransition(t.QualityDecision, decision) {
		return errors.New(errors.ErrCodeIllegalTransition,
			fmt.Sprintf("cannot transition theme from %s to %s", t.QualityDecision, decision))
	}
	if decision == insight.DecisionRejected && note == "" {
		return errors.New(errors.ErrCodeRejectionNoteRequired, "rejecting a theme requires a non-empty note")
	}

	now := time.Now().UTC()
	from := t.QualityDecision
	t.QualityDecision = decision
	t.QualityNotes = note
	t.ReviewedAt = &now
	t.ReviewedBy = reviewer
	t.Touch()
	t.recordEvent(NewThemeReviewedEvent(t.ID, from, decision, reviewer))
	return nil
}

// IsTerminal reports whether the theme has left the Pending state.
func (t *Theme) IsTerminal() bool {
	return t.QualityDecision.Terminal()
}

func (t *Theme) recordEvent(ev common.DomainEvent) {
	t.events = append(t.events, ev)
}

// Events returns and clears the pending domain events.
func (t *Theme) Events() []common.DomainEvent {
	evs := t.events
	t.events = nil
	return evs
}

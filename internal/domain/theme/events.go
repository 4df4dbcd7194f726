package theme

import (
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// ThemeCreatedEvent fires when the contract validator emits a new theme.
type ThemeCreatedEvent struct {
	common.BaseEvent
	BatchID      common.BatchID `json:"batch_id"`
	CompanyCount int            `json:"company_count"`
}

// NewThemeCreatedEvent builds the creation event.
func NewThemeCreatedEvent(id common.ID, batchID common.BatchID, companyCount int) ThemeCreatedEvent {
	return ThemeCreatedEvent{
		BaseEvent:    common.NewBaseEvent(string(id)),
		BatchID:      batchID,
		CompanyCount: companyCount,
	}
}

// ThemeReviewedEvent fires on every quality-review transition.
type ThemeReviewedEvent struct {
	common.BaseEvent
	From     insight.QualityDecision `json:"from"`
	To       insight.QualityDecision `json:"to"`
	Reviewer common.ReviewerID       `json:"reviewer"`
}

// NewThemeReviewedEvent builds the review event.
func NewThemeReviewedEvent(id common.ID, from, to insight.QualityDecision, reviewer common.ReviewerID) ThemeReviewedEvent {
	return ThemeReviewedEvent{
		BaseEvent: common.NewBaseEvent(string(id)),
		From:      from,
		To:        to,
		Reviewer:  reviewer,
	}
}

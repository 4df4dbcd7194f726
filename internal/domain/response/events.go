package response

import (
	"github.com/signalweave/signalweave/pkg/types/common"
)

// ResponseCreatedEvent fires when a new response aggregate is constructed.
type ResponseCreatedEvent struct {
	common.BaseEvent
	CompanyID common.CompanyID `json:"company_id"`
}

// NewResponseCreatedEvent builds the creation event.
func NewResponseCreatedEvent(id common.ID, companyID common.CompanyID) ResponseCreatedEvent {
	return ResponseCreatedEvent{
		BaseEvent: common.NewBaseEvent(string(id)),
		CompanyID: companyID,
	}
}

// ResponseLabeledEvent fires when a response reaches the Labeled status, with
// both sentiment and embedding attached.
type ResponseLabeledEvent struct {
	common.BaseEvent
	Sentiment float64 `json:"sentiment"`
}

// NewResponseLabeledEvent builds the labeled event.
func NewResponseLabeledEvent(id common.ID, sentiment float64) ResponseLabeledEvent {
	return ResponseLabeledEvent{
		BaseEvent: common.NewBaseEvent(string(id)),
		Sentiment: sentiment,
	}
}

// EmbeddingPendingEvent fires when sentiment scoring succeeded but the
// embedding call failed, leaving the response awaiting a retry.
type EmbeddingPendingEvent struct {
	common.BaseEvent
}

// NewEmbeddingPendingEvent builds the pending-embedding event.
func NewEmbeddingPendingEvent(id common.ID) EmbeddingPendingEvent {
	return EmbeddingPendingEvent{BaseEvent: common.NewBaseEvent(string(id))}
}

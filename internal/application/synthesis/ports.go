// Package synthesis orchestrates one batch run end to end: snapshot, concurrent
// labeling, serialized deduplication, sequential clustering, candidate
// generation, contract validation, and a single atomic persist.  A batch either
// commits its full validated output or fails with zero output and a logged
// failure record.
package synthesis

import (
	"context"

	"github.com/signalweave/signalweave/internal/application/validation"
	"github.com/signalweave/signalweave/internal/domain/alert"
	"github.com/signalweave/signalweave/internal/domain/batch"
	"github.com/signalweave/signalweave/internal/domain/finding"
	"github.com/signalweave/signalweave/internal/domain/response"
	"github.com/signalweave/signalweave/internal/domain/theme"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// GenerationInput is the fixed request contract of the external generation
// service: the eligible findings and the effective profile.  The profile
// carries any configured overrides so the generator prompts with the same
// bounds the validator enforces.
type GenerationInput struct {
	ThemeFindings [][]*finding.Finding // one group per theme-eligible cluster
	AlertFindings [][]*finding.Finding // one group per alert-eligible cluster
	Profile       insight.SynthesisProfile
}

// GenerationOutput carries the generated candidates plus the raw service
// payload for the audit archive.
type GenerationOutput struct {
	Themes     []validation.ThemeCandidate
	Alerts     []validation.AlertCandidate
	RawPayload []byte
}

// CandidateGenerator is the external text-generation service port.  The
// implementation performs bounded backoff; errors surfacing here are terminal
// for the batch.
type CandidateGenerator interface {
	Generate(ctx context.Context, input GenerationInput) (*GenerationOutput, error)
}

// BatchWriter persists a completed run in one transaction.  Either every row
// lands or none do; partially persisted batches must be impossible.
type BatchWriter interface {
	PersistBatch(
		ctx context.Context,
		rec *batch.SynthesisBatch,
		responses []*response.Response,
		findings []*finding.Finding,
		links []*response.DuplicateLink,
		themes []*theme.Theme,
		alerts []*alert.StrategicAlert,
	) error

	// PersistFailure records a failed batch.  This is the only write a
	// failed run performs.
	PersistFailure(ctx context.Context, rec *batch.SynthesisBatch) error
}

// EventPublisher fans batch outcomes out to the message bus after the commit.
// Publishing is best effort; a publish failure never rolls the batch back.
type EventPublisher interface {
	PublishResponsePending(ctx context.Context, r *response.Response) error
	PublishThemeCreated(ctx context.Context, t *theme.Theme) error
	PublishAlertRaised(ctx context.Context, a *alert.StrategicAlert) error
	PublishBatchCompleted(ctx context.Context, rec *batch.SynthesisBatch) error
}

// Archiver stores the raw generation payload per batch for audit.
type Archiver interface {
	ArchivePayload(ctx context.Context, rec *batch.SynthesisBatch, payload []byte) error
}

// ProvenanceWriter records the evidence graph after a batch commits.
type ProvenanceWriter interface {
	WriteProvenance(ctx context.Context, themes []*theme.Theme, alerts []*alert.StrategicAlert, findings []*finding.Finding) error
}

// StatementIndexer makes emitted statements searchable for the dashboard.
type StatementIndexer interface {
	IndexStatements(ctx context.Context, themes []*theme.Theme, alerts []*alert.StrategicAlert) error
}

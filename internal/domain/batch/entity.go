// Package batch implements the synthesis batch record: the audit trail of one
// synthesis run, its effective profile, and its outcome counts.  A batch is
// the unit of work; it either completes with a fully persisted result set or
// fails with zero output.
package batch

import (
	"time"

	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// Status is the lifecycle state of a synthesis batch.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Counts aggregates the per-stage outcome numbers of a run.
type Counts struct {
	ResponsesLabeled   int `json:"responses_labeled"`
	PendingEmbedding   int `json:"pending_embedding"`
	DuplicatesRecorded int `json:"duplicates_recorded"`
	ClustersFormed     int `json:"clusters_formed"`
	CandidatesRejected int `json:"candidates_rejected"`
	ThemesEmitted      int `json:"themes_emitted"`
	AlertsEmitted      int `json:"alerts_emitted"`
}

// SynthesisBatch records one synthesis run.  The effective profile is frozen
// at start so the run is auditable even after the configuration changes.
type SynthesisBatch struct {
	common.BaseEntity

	BatchID common.BatchID           `json:"batch_id"`
	Profile insight.SynthesisProfile `json:"profile"`

	Status      Status     `json:"status"`
	Counts      Counts     `json:"counts"`
	FailureNote string     `json:"failure_note,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Start creates a running batch record with the effective profile frozen.
// The profile is validated here as the last gate before any write: an invalid
// profile aborts the run with nothing persisted.
func Start(batchID common.BatchID, profile insight.SynthesisProfile) (*SynthesisBatch, error) {
	if batchID == "" {
		return nil, errors.New(errors.ErrCodeBatchConfigInvalid, "batch id must not be empty")
	}
	if err := profile.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBatchConfigInvalid, "synthesis profile is invalid")
	}

	now := time.Now().UTC()
	return &SynthesisBatch{
		BaseEntity: common.BaseEntity{
			ID:        common.NewID(),
			CreatedAt: now,
			UpdatedAt: now,
			Version:   1,
		},
		BatchID:   batchID,
		Profile:   profile,
		Status:    StatusRunning,
		StartedAt: now,
	}, nil
}

// Complete closes the batch successfully with its final counts.
func (b *SynthesisBatch) Complete(counts Counts) {
	now := time.Now().UTC()
	b.Status = StatusCompleted
	b.Counts = counts
	b.FinishedAt = &now
	b.Touch()
}

// Fail closes the batch as failed.  Failed batches persist no themes or
// alerts; the note records why for the rerun.
func (b *SynthesisBatch) Fail(note string) {
	now := time.Now().UTC()
	b.Status = StatusFailed
	b.FailureNote = note
	b.FinishedAt = &now
	b.Touch()
}

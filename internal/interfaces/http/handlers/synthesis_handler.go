package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/signalweave/signalweave/internal/application/synthesis"
	"github.com/signalweave/signalweave/internal/domain/batch"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// BatchLocker serializes runs of the same batch.
type BatchLocker interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

// LockFactory creates the lock for one batch identifier.
type LockFactory func(batchID common.BatchID) BatchLocker

// ProfileResolver returns the effective synthesis profile; an empty name
// selects the deployment default.
type ProfileResolver func(name insight.ProfileName) (insight.SynthesisProfile, error)

// SynthesisHandler starts runs and exposes batch records.
type SynthesisHandler struct {
	service  synthesis.Service
	batches  batch.Repository
	locks    LockFactory
	profiles ProfileResolver
	logger   logging.Logger
}

// NewSynthesisHandler wires the handler.
func NewSynthesisHandler(svc synthesis.Service, batches batch.Repository, locks LockFactory, profiles ProfileResolver, log logging.Logger) *SynthesisHandler {
	return &SynthesisHandler{service: svc, batches: batches, locks: locks, profiles: profiles, logger: log}
}

type startRunRequest struct {
	BatchID string `json:"batch_id" binding:"required"`
	Profile string `json:"profile"`
}

type startRunResponse struct {
	BatchID string       `json:"batch_id"`
	Status  batch.Status `json:"status"`
	Counts  batch.Counts `json:"counts"`
	Themes  int          `json:"themes"`
	Alerts  int          `json:"alerts"`
}

// StartRun handles POST /api/v1/synthesis/runs.  The run executes
// synchronously; long batches belong on the worker via Kafka, this endpoint
// exists for operator-driven runs.
func (h *SynthesisHandler) StartRun(c *gin.Context) {
	var req startRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "decoding run request"))
		return
	}

	profile, err := h.profiles(insight.ProfileName(req.Profile))
	if err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBatchConfigInvalid, "resolving profile"))
		return
	}

	batchID := common.BatchID(req.BatchID)
	lock := h.locks(batchID)
	if err := lock.Acquire(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(c.Request.Context())); err != nil {
			h.logger.Warn("releasing batch lock", logging.Err(err))
		}
	}()

	result, err := h.service.Run(c.Request.Context(), batchID, profile)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, startRunResponse{
		BatchID: string(result.Batch.BatchID),
		Status:  result.Batch.Status,
		Counts:  result.Batch.Counts,
		Themes:  len(result.Themes),
		Alerts:  len(result.Alerts),
	})
}

// GetRun handles GET /api/v1/synthesis/runs/:batch_id.
func (h *SynthesisHandler) GetRun(c *gin.Context) {
	rec, err := h.batches.GetByBatchID(c.Request.Context(), common.BatchID(c.Param("batch_id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// ListRuns handles GET /api/v1/synthesis/runs.
func (h *SynthesisHandler) ListRuns(c *gin.Context) {
	recs, err := h.batches.List(c.Request.Context(), parsePagination(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": recs})
}

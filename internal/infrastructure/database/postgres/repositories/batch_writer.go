package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signalweave/signalweave/internal/domain/alert"
	"github.com/signalweave/signalweave/internal/domain/batch"
	"github.com/signalweave/signalweave/internal/domain/finding"
	"github.com/signalweave/signalweave/internal/domain/response"
	"github.com/signalweave/signalweave/internal/domain/theme"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
)

// BatchWriter commits one synthesis run inside a single transaction: the
// batch record, the updated responses, the derived findings, the duplicate
// links, and the validated themes and alerts all land together or not at all.
type BatchWriter struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewBatchWriter constructs a BatchWriter.
func NewBatchWriter(pool *pgxpool.Pool, logger logging.Logger) *BatchWriter {
	return &BatchWriter{pool: pool, logger: logger}
}

// PersistBatch writes the complete output of a successful run atomically.
func (w *BatchWriter) PersistBatch(
	ctx context.Context,
	rec *batch.SynthesisBatch,
	responses []*response.Response,
	findings []*finding.Finding,
	links []*response.DuplicateLink,
	themes []*theme.Theme,
	alerts []*alert.StrategicAlert,
) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "beginning batch transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batches := NewBatchRepo(tx, w.logger)
	if err := batches.Create(ctx, rec); err != nil {
		return err
	}

	respRepo := NewResponseRepo(tx, w.logger)
	for _, r := range responses {
		if err := respRepo.Update(ctx, r); err != nil {
			if errors.IsNotFound(err) {
				// First sight of this response: insert rather than update.
				if cerr := respRepo.Create(ctx, r); cerr != nil {
					return cerr
				}
				continue
			}
			return err
		}
	}

	linkRepo := NewDuplicateLinkRepo(tx, w.logger)
	for _, link := range links {
		if err := linkRepo.Create(ctx, link); err != nil {
			return err
		}
	}

	if err := NewFindingRepo(tx, w.logger).CreateBatch(ctx, findings); err != nil {
		return err
	}
	if err := NewThemeRepo(tx, w.logger).CreateBatch(ctx, themes); err != nil {
		return err
	}
	if err := NewAlertRepo(tx, w.logger).CreateBatch(ctx, alerts); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "committing batch transaction")
	}

	w.logger.Info("batch committed",
		logging.String("batch_id", string(rec.BatchID)),
		logging.Int("responses", len(responses)),
		logging.Int("findings", len(findings)),
		logging.Int("links", len(links)),
		logging.Int("themes", len(themes)),
		logging.Int("alerts", len(alerts)),
	)
	return nil
}

// PersistFailure records a failed run.  Only the batch record is written; the
// run's partial output is discarded.
func (w *BatchWriter) PersistFailure(ctx context.Context, rec *batch.SynthesisBatch) error {
	return NewBatchRepo(w.pool, w.logger).Create(ctx, rec)
}

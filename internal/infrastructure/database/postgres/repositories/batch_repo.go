package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/signalweave/signalweave/internal/domain/batch"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

const batchColumns = `id, batch_id, profile, status, counts, failure_note,
	started_at, finished_at, created_at, updated_at, version`

// BatchRepo is the PostgreSQL implementation of batch.Repository.  The frozen
// profile and the outcome counts are stored as JSONB for auditability.
type BatchRepo struct {
	db     querier
	logger logging.Logger
}

// NewBatchRepo constructs a BatchRepo.
func NewBatchRepo(db querier, logger logging.Logger) *BatchRepo {
	return &BatchRepo{db: db, logger: logger}
}

// Create inserts a batch record.  Reruns of the same batch identifier replace
// the previous record so the audit trail reflects the latest outcome.
func (r *BatchRepo) Create(ctx context.Context, b *batch.SynthesisBatch) error {
	profileJSON, err := json.Marshal(b.Profile)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encoding batch profile")
	}
	countsJSON, err := json.Marshal(b.Counts)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encoding batch counts")
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO synthesis_batches (`+batchColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (batch_id) DO UPDATE SET
			profile = EXCLUDED.profile, status = EXCLUDED.status,
			counts = EXCLUDED.counts, failure_note = EXCLUDED.failure_note,
			started_at = EXCLUDED.started_at, finished_at = EXCLUDED.finished_at,
			updated_at = EXCLUDED.updated_at, version = EXCLUDED.version`,
		string(b.ID), string(b.BatchID), profileJSON, string(b.Status),
		countsJSON, b.FailureNote, b.StartedAt, b.FinishedAt,
		b.CreatedAt, b.UpdatedAt, b.Version,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "inserting synthesis batch")
	}
	return nil
}

// GetByBatchID loads the record for one batch identifier.
func (r *BatchRepo) GetByBatchID(ctx context.Context, batchID common.BatchID) (*batch.SynthesisBatch, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM synthesis_batches WHERE batch_id = $1`,
		string(batchID))
	b, err := scanBatch(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.New(errors.ErrCodeBatchNotFound,
				fmt.Sprintf("synthesis batch %s not found", batchID))
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "loading synthesis batch")
	}
	return b, nil
}

// Update rewrites the mutable outcome fields of a batch record.
func (r *BatchRepo) Update(ctx context.Context, b *batch.SynthesisBatch) error {
	countsJSON, err := json.Marshal(b.Counts)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encoding batch counts")
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE synthesis_batches SET
			status = $2, counts = $3, failure_note = $4,
			finished_at = $5, updated_at = $6, version = $7
		WHERE id = $1`,
		string(b.ID), string(b.Status), countsJSON, b.FailureNote,
		b.FinishedAt, b.UpdatedAt, b.Version,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "updating synthesis batch")
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.ErrCodeBatchNotFound,
			fmt.Sprintf("synthesis batch %s not found", b.BatchID))
	}
	return nil
}

// List returns batch records, most recent first.
func (r *BatchRepo) List(ctx context.Context, p common.Pagination) ([]*batch.SynthesisBatch, error) {
	sql := `SELECT ` + batchColumns + ` FROM synthesis_batches ORDER BY started_at DESC`
	var args []any
	if limit, offset := limitOffset(p); limit > 0 {
		sql += ` LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "listing synthesis batches")
	}
	defer rows.Close()

	var out []*batch.SynthesisBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scanning batch row")
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterating batch rows")
	}
	return out, nil
}

func scanBatch(row pgx.Row) (*batch.SynthesisBatch, error) {
	var (
		b                       batch.SynthesisBatch
		id, batchID, status     string
		profileJSON, countsJSON []byte
	)
	err := row.Scan(&id, &batchID, &profileJSON, &status, &countsJSON,
		&b.FailureNote, &b.StartedAt, &b.FinishedAt,
		&b.CreatedAt, &b.UpdatedAt, &b.Version)
	if err != nil {
		return nil, err
	}
	var profile insight.SynthesisProfile
	if err := json.Unmarshal(profileJSON, &profile); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(countsJSON, &b.Counts); err != nil {
		return nil, err
	}
	b.ID = common.ID(id)
	b.BatchID = common.BatchID(batchID)
	b.Status = batch.Status(status)
	b.Profile = profile
	return &b, nil
}

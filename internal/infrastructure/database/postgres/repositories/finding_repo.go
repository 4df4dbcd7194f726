package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/signalweave/signalweave/internal/domain/finding"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
)

const findingColumns = `id, company_id, batch_id, statement, source_response_ids,
	embedding, sentiment, high_impact, unverified_uniqueness,
	created_at, updated_at, version`

// FindingRepo is the PostgreSQL implementation of finding.Repository.
// Findings are append-only: there is no update path.
type FindingRepo struct {
	db     querier
	logger logging.Logger
}

// NewFindingRepo constructs a FindingRepo.
func NewFindingRepo(db querier, logger logging.Logger) *FindingRepo {
	return &FindingRepo{db: db, logger: logger}
}

// Create inserts one finding.
func (r *FindingRepo) Create(ctx context.Context, f *finding.Finding) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO findings (`+findingColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		string(f.ID), string(f.CompanyID), string(f.BatchID), f.Statement,
		idsToStrings(f.SourceResponseIDs), f.Embedding, f.Sentiment,
		f.HighImpact, f.UnverifiedUniqueness,
		f.CreatedAt, f.UpdatedAt, f.Version,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "inserting finding")
	}
	return nil
}

// CreateBatch inserts findings in order.
func (r *FindingRepo) CreateBatch(ctx context.Context, fs []*finding.Finding) error {
	for _, f := range fs {
		if err := r.Create(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// GetByID loads one finding.
func (r *FindingRepo) GetByID(ctx context.Context, id common.ID) (*finding.Finding, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+findingColumns+` FROM findings WHERE id = $1`, string(id))
	f, err := scanFinding(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound(fmt.Sprintf("finding %s not found", id))
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "loading finding")
	}
	return f, nil
}

// GetByIDs resolves a set of finding ids; missing ids are simply absent from
// the result, the caller reports them as dangling references.
func (r *FindingRepo) GetByIDs(ctx context.Context, ids []common.ID) ([]*finding.Finding, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+findingColumns+` FROM findings WHERE id = ANY($1) ORDER BY created_at ASC`,
		idsToStrings(ids))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "loading findings by ids")
	}
	defer rows.Close()
	return collectFindings(rows)
}

// ListByBatch returns a batch's findings in creation order, the clustering
// processing order.
func (r *FindingRepo) ListByBatch(ctx context.Context, batchID common.BatchID) ([]*finding.Finding, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+findingColumns+` FROM findings
		 WHERE batch_id = $1 ORDER BY created_at ASC, id ASC`,
		string(batchID))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "listing findings by batch")
	}
	defer rows.Close()
	return collectFindings(rows)
}

// ListByCompany returns one company's findings, newest first.
func (r *FindingRepo) ListByCompany(ctx context.Context, companyID common.CompanyID, p common.Pagination) ([]*finding.Finding, error) {
	sql := `SELECT ` + findingColumns + ` FROM findings
		WHERE company_id = $1 ORDER BY created_at DESC`
	args := []any{string(companyID)}
	if limit, offset := limitOffset(p); limit > 0 {
		sql += ` LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "listing findings by company")
	}
	defer rows.Close()
	return collectFindings(rows)
}

func scanFinding(row pgx.Row) (*finding.Finding, error) {
	var (
		f                      finding.Finding
		id, companyID, batchID string
		sourceIDs              []string
	)
	err := row.Scan(&id, &companyID, &batchID, &f.Statement, &sourceIDs,
		&f.Embedding, &f.Sentiment, &f.HighImpact, &f.UnverifiedUniqueness,
		&f.CreatedAt, &f.UpdatedAt, &f.Version)
	if err != nil {
		return nil, err
	}
	f.ID = common.ID(id)
	f.CompanyID = common.CompanyID(companyID)
	f.BatchID = common.BatchID(batchID)
	f.SourceResponseIDs = stringsToIDs(sourceIDs)
	return &f, nil
}

func collectFindings(rows pgx.Rows) ([]*finding.Finding, error) {
	var out []*finding.Finding
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scanning finding row")
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterating finding rows")
	}
	return out, nil
}

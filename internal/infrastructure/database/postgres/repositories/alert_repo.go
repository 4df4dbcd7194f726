package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/signalweave/signalweave/internal/domain/alert"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

const alertColumns = `id, batch_id, company_id, statement, word_count,
	classification, finding_ids, rationale, created_at, updated_at, version`

// AlertRepo is the PostgreSQL implementation of alert.Repository.  Alerts are
// immutable rows; a newer synthesis pass supersedes older ones with new rows.
type AlertRepo struct {
	db     querier
	logger logging.Logger
}

// NewAlertRepo constructs an AlertRepo.
func NewAlertRepo(db querier, logger logging.Logger) *AlertRepo {
	return &AlertRepo{db: db, logger: logger}
}

// Create inserts one alert.
func (r *AlertRepo) Create(ctx context.Context, a *alert.StrategicAlert) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO strategic_alerts (`+alertColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		string(a.ID), string(a.BatchID), string(a.CompanyID), a.Statement,
		a.WordCount, string(a.Classification), idsToStrings(a.FindingIDs),
		a.Rationale, a.CreatedAt, a.UpdatedAt, a.Version,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "inserting strategic alert")
	}
	return nil
}

// CreateBatch inserts alerts in order.
func (r *AlertRepo) CreateBatch(ctx context.Context, as []*alert.StrategicAlert) error {
	for _, a := range as {
		if err := r.Create(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// GetByID loads one alert.
func (r *AlertRepo) GetByID(ctx context.Context, id common.ID) (*alert.StrategicAlert, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+alertColumns+` FROM strategic_alerts WHERE id = $1`, string(id))
	a, err := scanAlert(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound(fmt.Sprintf("strategic alert %s not found", id))
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "loading strategic alert")
	}
	return a, nil
}

// List returns alerts matching the filter, newest first.
func (r *AlertRepo) List(ctx context.Context, filter alert.ListFilter) ([]*alert.StrategicAlert, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT ` + alertColumns + ` FROM strategic_alerts WHERE 1=1`)
	if filter.BatchID != "" {
		args = append(args, string(filter.BatchID))
		fmt.Fprintf(&sb, " AND batch_id = $%d", len(args))
	}
	if filter.CompanyID != "" {
		args = append(args, string(filter.CompanyID))
		fmt.Fprintf(&sb, " AND company_id = $%d", len(args))
	}
	if filter.Classification != "" {
		args = append(args, string(filter.Classification))
		fmt.Fprintf(&sb, " AND classification = $%d", len(args))
	}
	sb.WriteString(" ORDER BY created_at DESC, id ASC")
	if limit, offset := limitOffset(filter.Pagination); limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
		args = append(args, offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "listing strategic alerts")
	}
	defer rows.Close()

	var out []*alert.StrategicAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scanning alert row")
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterating alert rows")
	}
	return out, nil
}

func scanAlert(row pgx.Row) (*alert.StrategicAlert, error) {
	var (
		a                      alert.StrategicAlert
		id, batchID, companyID string
		classification         string
		findingIDs             []string
	)
	err := row.Scan(&id, &batchID, &companyID, &a.Statement, &a.WordCount,
		&classification, &findingIDs, &a.Rationale,
		&a.CreatedAt, &a.UpdatedAt, &a.Version)
	if err != nil {
		return nil, err
	}
	a.ID = common.ID(id)
	a.BatchID = common.BatchID(batchID)
	a.CompanyID = common.CompanyID(companyID)
	a.Classification = insight.AlertClassification(classification)
	a.FindingIDs = stringsToIDs(findingIDs)
	return &a, nil
}

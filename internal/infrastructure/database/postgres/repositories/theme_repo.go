package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/signalweave/signalweave/internal/domain/theme"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

const themeColumns = `id, batch_id, statement, word_count, finding_ids, company_ids,
	composite_score, quality_decision, quality_notes, reviewed_at, reviewed_by,
	created_at, updated_at, version`

// ThemeRepo is the PostgreSQL implementation of theme.Repository.  The review
// update is a compare-and-set on the version column: two reviewers racing on
// the same theme cannot both win.
type ThemeRepo struct {
	db     querier
	logger logging.Logger
}

// NewThemeRepo constructs a ThemeRepo.
func NewThemeRepo(db querier, logger logging.Logger) *ThemeRepo {
	return &ThemeRepo{db: db, logger: logger}
}

// Create inserts one theme.
func (r *ThemeRepo) Create(ctx context.Context, t *theme.Theme) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO themes (`+themeColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		string(t.ID), string(t.BatchID), t.Statement, t.WordCount,
		idsToStrings(t.FindingIDs), companiesToStrings(t.CompanyIDs),
		t.CompositeScore, string(t.QualityDecision), t.QualityNotes,
		t.ReviewedAt, string(t.ReviewedBy),
		t.CreatedAt, t.UpdatedAt, t.Version,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "inserting theme")
	}
	return nil
}

// CreateBatch inserts themes in ranking order.
func (r *ThemeRepo) CreateBatch(ctx context.Context, ts []*theme.Theme) error {
	for _, t := range ts {
		if err := r.Create(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// GetByID loads one theme.
func (r *ThemeRepo) GetByID(ctx context.Context, id common.ID) (*theme.Theme, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+themeColumns+` FROM themes WHERE id = $1`, string(id))
	t, err := scanTheme(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.New(errors.ErrCodeThemeNotFound,
				fmt.Sprintf("theme %s not found", id))
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "loading theme")
	}
	return t, nil
}

// List returns themes matching the filter, highest composite score first.
func (r *ThemeRepo) List(ctx context.Context, filter theme.ListFilter) ([]*theme.Theme, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT ` + themeColumns + ` FROM themes WHERE 1=1`)
	if filter.BatchID != "" {
		args = append(args, string(filter.BatchID))
		fmt.Fprintf(&sb, " AND batch_id = $%d", len(args))
	}
	if filter.Decision != "" {
		args = append(args, string(filter.Decision))
		fmt.Fprintf(&sb, " AND quality_decision = $%d", len(args))
	}
	sb.WriteString(" ORDER BY composite_score DESC, created_at ASC")
	if limit, offset := limitOffset(filter.Pagination); limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
		args = append(args, offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "listing themes")
	}
	defer rows.Close()
	return collectThemes(rows)
}

// UpdateReview persists a reviewed theme via compare-and-set on the version
// the caller originally read.  A zero-row update means either the theme is
// gone or another reviewer got there first; the two cases are distinguished
// with a follow-up existence check.
func (r *ThemeRepo) UpdateReview(ctx context.Context, t *theme.Theme, expectedVersion int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE themes SET
			quality_decision = $2, quality_notes = $3,
			reviewed_at = $4, reviewed_by = $5,
			updated_at = $6, version = $7
		WHERE id = $1 AND version = $8`,
		string(t.ID), string(t.QualityDecision), t.QualityNotes,
		t.ReviewedAt, string(t.ReviewedBy),
		t.UpdatedAt, t.Version, expectedVersion,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "updating theme review")
	}
	if tag.RowsAffected() == 0 {
		var current int
		err := r.db.QueryRow(ctx,
			`SELECT version FROM themes WHERE id = $1`, string(t.ID)).Scan(&current)
		if err == pgx.ErrNoRows {
			return errors.New(errors.ErrCodeThemeNotFound,
				fmt.Sprintf("theme %s not found", t.ID))
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "checking theme version")
		}
		return errors.ConcurrentModification(fmt.Sprintf(
			"theme %s was modified concurrently: expected version %d, found %d",
			t.ID, expectedVersion, current))
	}
	return nil
}

func scanTheme(row pgx.Row) (*theme.Theme, error) {
	var (
		t                      theme.Theme
		id, batchID            string
		findingIDs, companyIDs []string
		decision, reviewedBy   string
	)
	err := row.Scan(&id, &batchID, &t.Statement, &t.WordCount,
		&findingIDs, &companyIDs, &t.CompositeScore,
		&decision, &t.QualityNotes, &t.ReviewedAt, &reviewedBy,
		&t.CreatedAt, &t.UpdatedAt, &t.Version)
	if err != nil {
		return nil, err
	}
	t.ID = common.ID(id)
	t.BatchID = common.BatchID(batchID)
	t.FindingIDs = stringsToIDs(findingIDs)
	t.CompanyIDs = stringsToCompanies(companyIDs)
	t.QualityDecision = insight.QualityDecision(decision)
	t.ReviewedBy = common.ReviewerID(reviewedBy)
	return &t, nil
}

func collectThemes(rows pgx.Rows) ([]*theme.Theme, error) {
	var out []*theme.Theme
	for rows.Next() {
		t, err := scanTheme(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scanning theme row")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterating theme rows")
	}
	return out, nil
}

package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/signalweave/signalweave/internal/domain/response"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

const responseColumns = `id, company_id, batch_id, text, question_key, sentiment,
	sentiment_rationale, embedding, status, legacy_label, submitted_at,
	created_at, updated_at, version`

// ResponseRepo is the PostgreSQL implementation of response.Repository.
type ResponseRepo struct {
	db     querier
	logger logging.Logger
}

// NewResponseRepo constructs a ResponseRepo on the given pool or transaction.
func NewResponseRepo(db querier, logger logging.Logger) *ResponseRepo {
	return &ResponseRepo{db: db, logger: logger}
}

// Create inserts a new response row.
func (r *ResponseRepo) Create(ctx context.Context, resp *response.Response) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO responses (`+responseColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		responseArgs(resp)...,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "inserting response")
	}
	return nil
}

// CreateBatch inserts responses one statement at a time; callers needing
// atomicity run it inside the batch writer's transaction.
func (r *ResponseRepo) CreateBatch(ctx context.Context, rs []*response.Response) error {
	for _, resp := range rs {
		if err := r.Create(ctx, resp); err != nil {
			return err
		}
	}
	return nil
}

// GetByID loads one response.
func (r *ResponseRepo) GetByID(ctx context.Context, id common.ID) (*response.Response, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+responseColumns+` FROM responses WHERE id = $1`, string(id))
	resp, err := scanResponse(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound(fmt.Sprintf("response %s not found", id))
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "loading response")
	}
	return resp, nil
}

// Update persists the labeling artifacts of an existing response.  Text,
// company, and submission time are immutable and never rewritten.
func (r *ResponseRepo) Update(ctx context.Context, resp *response.Response) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE responses SET
			batch_id = $2, sentiment = $3, sentiment_rationale = $4,
			embedding = $5, status = $6, legacy_label = $7,
			updated_at = $8, version = $9
		WHERE id = $1`,
		string(resp.ID), string(resp.BatchID), resp.Sentiment, resp.SentimentRationale,
		resp.Embedding, string(resp.Status), string(resp.LegacyLabel),
		resp.UpdatedAt, resp.Version,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "updating response")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound(fmt.Sprintf("response %s not found", resp.ID))
	}
	return nil
}

// List returns responses matching the filter, submission order ascending.
func (r *ResponseRepo) List(ctx context.Context, filter response.ListFilter) ([]*response.Response, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT ` + responseColumns + ` FROM responses WHERE 1=1`)
	if filter.CompanyID != "" {
		args = append(args, string(filter.CompanyID))
		fmt.Fprintf(&sb, " AND company_id = $%d", len(args))
	}
	if filter.BatchID != "" {
		args = append(args, string(filter.BatchID))
		fmt.Fprintf(&sb, " AND batch_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		fmt.Fprintf(&sb, " AND status = $%d", len(args))
	}
	sb.WriteString(" ORDER BY submitted_at ASC, id ASC")
	if limit, offset := limitOffset(filter.Pagination); limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
		args = append(args, offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "listing responses")
	}
	defer rows.Close()
	return collectResponses(rows)
}

// ListPendingEmbedding returns responses awaiting an embedding retry, oldest
// first.
func (r *ResponseRepo) ListPendingEmbedding(ctx context.Context, limit int) ([]*response.Response, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+responseColumns+` FROM responses
		WHERE status = $1
		ORDER BY updated_at ASC
		LIMIT $2`,
		string(response.StatusPendingEmbedding), limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "listing pending-embedding responses")
	}
	defer rows.Close()
	return collectResponses(rows)
}

// ListCanonical returns a batch's labeled responses that are not the duplicate
// side of any link, in submission order.
func (r *ResponseRepo) ListCanonical(ctx context.Context, batchID common.BatchID) ([]*response.Response, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+responseColumns+` FROM responses
		WHERE batch_id = $1
		  AND status = $2
		  AND id NOT IN (SELECT duplicate_id FROM duplicate_links WHERE batch_id = $1)
		ORDER BY submitted_at ASC, id ASC`,
		string(batchID), string(response.StatusLabeled),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "listing canonical responses")
	}
	defer rows.Close()
	return collectResponses(rows)
}

// ListUnmigratedLegacy returns responses that still carry only a categorical
// label, for the one-time sentiment migration.
func (r *ResponseRepo) ListUnmigratedLegacy(ctx context.Context, limit int) ([]*response.Response, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+responseColumns+` FROM responses
		WHERE legacy_label <> '' AND sentiment IS NULL
		ORDER BY created_at ASC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "listing unmigrated legacy responses")
	}
	defer rows.Close()
	return collectResponses(rows)
}

func responseArgs(resp *response.Response) []any {
	return []any{
		string(resp.ID), string(resp.CompanyID), string(resp.BatchID),
		resp.Text, resp.QuestionKey, resp.Sentiment, resp.SentimentRationale,
		resp.Embedding, string(resp.Status), string(resp.LegacyLabel),
		resp.SubmittedAt, resp.CreatedAt, resp.UpdatedAt, resp.Version,
	}
}

func scanResponse(row pgx.Row) (*response.Response, error) {
	var (
		resp                   response.Response
		id, companyID, batchID string
		status, legacyLabel    string
	)
	err := row.Scan(
		&id, &companyID, &batchID, &resp.Text, &resp.QuestionKey,
		&resp.Sentiment, &resp.SentimentRationale, &resp.Embedding,
		&status, &legacyLabel, &resp.SubmittedAt,
		&resp.CreatedAt, &resp.UpdatedAt, &resp.Version,
	)
	if err != nil {
		return nil, err
	}
	resp.ID = common.ID(id)
	resp.CompanyID = common.CompanyID(companyID)
	resp.BatchID = common.BatchID(batchID)
	resp.Status = response.LabelStatus(status)
	resp.LegacyLabel = insight.LegacySentimentLabel(legacyLabel)
	return &resp, nil
}

func collectResponses(rows pgx.Rows) ([]*response.Response, error) {
	var out []*response.Response
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scanning response row")
		}
		out = append(out, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterating response rows")
	}
	return out, nil
}

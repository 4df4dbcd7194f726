package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/signalweave/signalweave/internal/domain/response"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
)

const duplicateLinkColumns = `id, duplicate_id, canonical_id, similarity, batch_id,
	created_at, updated_at, version`

// DuplicateLinkRepo is the PostgreSQL implementation of
// response.DuplicateLinkRepository.
type DuplicateLinkRepo struct {
	db     querier
	logger logging.Logger
}

// NewDuplicateLinkRepo constructs a DuplicateLinkRepo.
func NewDuplicateLinkRepo(db querier, logger logging.Logger) *DuplicateLinkRepo {
	return &DuplicateLinkRepo{db: db, logger: logger}
}

// Create inserts a duplicate link.  The duplicate side is unique: a response
// is never the duplicate of two canonicals, and a rerun that rediscovers an
// existing link is a no-op.
func (r *DuplicateLinkRepo) Create(ctx context.Context, link *response.DuplicateLink) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO duplicate_links (`+duplicateLinkColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (duplicate_id) DO NOTHING`,
		string(link.ID), string(link.DuplicateID), string(link.CanonicalID),
		link.Similarity, string(link.BatchID),
		link.CreatedAt, link.UpdatedAt, link.Version,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "inserting duplicate link")
	}
	return nil
}

// GetByDuplicateID loads the link whose duplicate side is the given response.
func (r *DuplicateLinkRepo) GetByDuplicateID(ctx context.Context, duplicateID common.ID) (*response.DuplicateLink, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+duplicateLinkColumns+` FROM duplicate_links WHERE duplicate_id = $1`,
		string(duplicateID))
	link, err := scanDuplicateLink(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound(fmt.Sprintf("no duplicate link for response %s", duplicateID))
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "loading duplicate link")
	}
	return link, nil
}

// ListByCanonicalID returns all links pointing at one canonical response.
func (r *DuplicateLinkRepo) ListByCanonicalID(ctx context.Context, canonicalID common.ID) ([]*response.DuplicateLink, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+duplicateLinkColumns+` FROM duplicate_links
		 WHERE canonical_id = $1 ORDER BY created_at ASC`,
		string(canonicalID))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "listing duplicate links by canonical")
	}
	defer rows.Close()
	return collectDuplicateLinks(rows)
}

// ListByBatch returns a batch's links in creation order.
func (r *DuplicateLinkRepo) ListByBatch(ctx context.Context, batchID common.BatchID) ([]*response.DuplicateLink, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+duplicateLinkColumns+` FROM duplicate_links
		 WHERE batch_id = $1 ORDER BY created_at ASC`,
		string(batchID))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "listing duplicate links by batch")
	}
	defer rows.Close()
	return collectDuplicateLinks(rows)
}

func scanDuplicateLink(row pgx.Row) (*response.DuplicateLink, error) {
	var (
		link                              response.DuplicateLink
		id, duplicateID, canonicalID, bID string
	)
	err := row.Scan(&id, &duplicateID, &canonicalID, &link.Similarity, &bID,
		&link.CreatedAt, &link.UpdatedAt, &link.Version)
	if err != nil {
		return nil, err
	}
	link.ID = common.ID(id)
	link.DuplicateID = common.ID(duplicateID)
	link.CanonicalID = common.ID(canonicalID)
	link.BatchID = common.BatchID(bID)
	return &link, nil
}

func collectDuplicateLinks(rows pgx.Rows) ([]*response.DuplicateLink, error) {
	var out []*response.DuplicateLink
	for rows.Next() {
		link, err := scanDuplicateLink(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scanning duplicate link row")
		}
		out = append(out, link)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterating duplicate link rows")
	}
	return out, nil
}

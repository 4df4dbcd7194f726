// Package repositories provides PostgreSQL-backed implementations of the
// domain repository interfaces.  Every query is parameterised; every method
// takes a context for cancellation propagation.
package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/signalweave/signalweave/pkg/types/common"
)

// querier abstracts pgxpool.Pool and pgx.Tx so the same repository code runs
// standalone or inside the batch writer's transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// idsToStrings converts domain IDs for array parameters.
func idsToStrings(ids []common.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func stringsToIDs(ss []string) []common.ID {
	out := make([]common.ID, len(ss))
	for i, s := range ss {
		out[i] = common.ID(s)
	}
	return out
}

func companiesToStrings(ids []common.CompanyID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func stringsToCompanies(ss []string) []common.CompanyID {
	out := make([]common.CompanyID, len(ss))
	for i, s := range ss {
		out[i] = common.CompanyID(s)
	}
	return out
}

// limitOffset converts pagination to SQL clauses; zero values mean all rows.
func limitOffset(p common.Pagination) (limit, offset int) {
	if p.PageSize <= 0 {
		return 0, 0
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	return p.PageSize, (page - 1) * p.PageSize
}

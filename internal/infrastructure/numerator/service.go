// Package numerator allocates sequential document ids in PostgreSQL.
// It implements core/numerator.SequenceGenerator.
package numerator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	corenumerator "voltstock/internal/core/numerator"
	"voltstock/internal/infrastructure/storage/postgres"
)

// QuerierSource hands out the querier bound to the caller's transaction.
// *postgres.TxManager satisfies it.
type QuerierSource interface {
	GetQuerier(ctx context.Context) postgres.Querier
	InTransaction(ctx context.Context) bool
}

// Service computes max(id)+1 under a transaction-scoped advisory lock.
//
// The lock is keyed by table name and released at commit or rollback, so
// concurrent creators queue up instead of colliding on the primary key. Ids
// that are not plain digits (legacy uuids) are ignored.
type Service struct {
	source QuerierSource
}

var _ corenumerator.SequenceGenerator = (*Service)(nil)

// New creates a numerator service.
func New(source QuerierSource) *Service {
	return &Service{source: source}
}

// NextSequentialID implements corenumerator.SequenceGenerator.
func (s *Service) NextSequentialID(ctx context.Context, table string) (string, error) {
	if !corenumerator.IsSequentialTable(table) {
		return "", fmt.Errorf("table %q does not use sequential ids", table)
	}
	if !s.source.InTransaction(ctx) {
		return "", fmt.Errorf("next id of %s must be allocated inside a transaction", table)
	}

	q := s.source.GetQuerier(ctx)
	if _, err := q.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", table); err != nil {
		return "", fmt.Errorf("lock sequence of %s: %w", table, err)
	}

	sql := fmt.Sprintf(
		`SELECT COALESCE(MAX(id::bigint), 0) + 1 FROM %s WHERE id ~ '^[0-9]+$' AND length(id) <= 18`,
		pgx.Identifier{table}.Sanitize(),
	)
	var next int64
	if err := q.QueryRow(ctx, sql).Scan(&next); err != nil {
		return "", fmt.Errorf("next id of %s: %w", table, err)
	}
	return strconv.FormatInt(next, 10), nil
}

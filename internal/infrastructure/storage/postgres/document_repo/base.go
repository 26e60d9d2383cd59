// Package document_repo provides PostgreSQL repositories for stock requests,
// sales and stock returns.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"voltstock/internal/core/apperror"
	"voltstock/internal/infrastructure/storage/postgres"
)

// baseRepo holds what every document repository shares.
type baseRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
	entity  string
}

func newBaseRepo(txm *postgres.TxManager, entity string) baseRepo {
	return baseRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		entity:  entity,
	}
}

func (r *baseRepo) querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

// get scans one row; a missing row becomes a NotFound AppError for id.
func (r *baseRepo) get(ctx context.Context, dst any, q squirrel.Sqlizer, id string) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, r.querier(ctx), dst, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewNotFound(r.entity, id)
		}
		return fmt.Errorf("get %s: %w", r.entity, err)
	}
	return nil
}

func (r *baseRepo) selectAll(ctx context.Context, dst any, q squirrel.Sqlizer) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.querier(ctx), dst, sql, args...); err != nil {
		return fmt.Errorf("select %s: %w", r.entity, err)
	}
	return nil
}

// exec runs q and, when id is set, reports NotFound if no row was touched.
func (r *baseRepo) exec(ctx context.Context, q squirrel.Sqlizer, id string) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build statement: %w", err)
	}
	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("write %s: %w", r.entity, err)
	}
	if id != "" && tag.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entity, id)
	}
	return nil
}

// count returns the row count of the filtered select q.
func (r *baseRepo) count(ctx context.Context, q squirrel.SelectBuilder) (int64, error) {
	sql, args, err := r.builder.Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var total int64
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", r.entity, err)
	}
	return total, nil
}

func paginate(q squirrel.SelectBuilder, limit, offset int) squirrel.SelectBuilder {
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	return q
}

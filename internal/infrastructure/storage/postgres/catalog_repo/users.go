// Package catalog_repo provides read-only PostgreSQL lookups over reference
// tables owned by other services.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"voltstock/internal/core/apperror"
	"voltstock/internal/domain/directory"
	"voltstock/internal/infrastructure/storage/postgres"
)

const usersTable = "users"

var holderColumns = postgres.ExtractDBColumns[directory.Holder]()

// DirectoryRepo implements directory.Directory over the users table.
type DirectoryRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ directory.Directory = (*DirectoryRepo)(nil)

// NewDirectoryRepo creates a users directory.
func NewDirectoryRepo(txm *postgres.TxManager) *DirectoryRepo {
	return &DirectoryRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *DirectoryRepo) holderQuery(id string) squirrel.SelectBuilder {
	return r.builder.Select(holderColumns...).From(usersTable).Where(squirrel.Eq{"id": id})
}

// GetHolder returns the user with id. Inactive users are returned as is;
// callers decide whether they may take part.
func (r *DirectoryRepo) GetHolder(ctx context.Context, id string) (directory.Holder, error) {
	var h directory.Holder

	sql, args, err := r.holderQuery(id).ToSql()
	if err != nil {
		return h, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &h, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return h, apperror.NewNotFound("user", id)
		}
		return h, fmt.Errorf("get user: %w", err)
	}
	return h, nil
}

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"voltstock/internal/core/apperror"
)

// SQLSTATE codes the ledger cares about.
const (
	sqlStateUniqueViolation      = "23505"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
	sqlStateQueryCanceled        = "57014"
	sqlStateCheckViolation       = "23514"
)

// ClassifyError maps driver failures onto the error taxonomy.
// AppErrors pass through untouched; so does nil.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure:
			return apperror.NewSystem("transaction serialization failure, retry the operation", err)
		case sqlStateDeadlockDetected:
			return apperror.NewSystem("transaction chosen as deadlock victim, retry the operation", err)
		case sqlStateLockNotAvailable, sqlStateQueryCanceled:
			return apperror.NewSystem("timed out waiting for inventory lock, retry the operation", err)
		case sqlStateUniqueViolation:
			return apperror.NewDuplicate(pgErr.TableName, pgErr.ConstraintName).WithCause(err)
		case sqlStateCheckViolation:
			// Non-negative quantity checks are the last line of defence.
			return apperror.NewSystem("ledger constraint violated", err).WithDetail("constraint", pgErr.ConstraintName)
		}
		return apperror.NewSystem("database error", err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperror.NewSystem("operation cancelled", err)
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return apperror.NewSystem("database connection failure", err)
	}
	return apperror.NewInternal(err)
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation
}

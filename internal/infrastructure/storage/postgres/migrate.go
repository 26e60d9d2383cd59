package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"voltstock/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

// schemaLockID serializes concurrent Migrate calls from several replicas.
const schemaLockID = 7_310_442

// Migrate applies the embedded schema. It is safe to run on every start.
func Migrate(ctx context.Context, pool *Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", schemaLockID); err != nil {
		return fmt.Errorf("take schema lock: %w", err)
	}
	defer func() {
		if _, err := conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", schemaLockID); err != nil {
			logger.Warn(ctx, "release schema lock failed", "error", err)
		}
	}()

	if _, err := conn.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.Info(ctx, "database schema applied")
	return nil
}

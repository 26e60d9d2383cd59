// Package postgres provides PostgreSQL infrastructure components.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"voltstock/pkg/logger"
)

// PoolConfig sizes the connection pool. A ledger transaction keeps its
// connection from the first row lock until commit, so MaxConns caps how many
// dispatches, sales and returns run at once.
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPoolConfig returns the server defaults for dsn.
func DefaultPoolConfig(dsn string) PoolConfig {
	return PoolConfig{
		DSN:             dsn,
		MaxConns:        25,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// Pool wraps pgxpool.Pool.
type Pool struct {
	*pgxpool.Pool
}

// NewPool connects and checks that the database answers within ConnectTimeout.
func NewPool(ctx context.Context, cfg PoolConfig) (*Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns >= 0 && cfg.MinConns <= pc.MaxConns {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	// Movement and audit timestamps are compared across sessions.
	pc.ConnConfig.RuntimeParams["application_name"] = "voltstock"
	pc.ConnConfig.RuntimeParams["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info(ctx, "database pool ready", "max_conns", pc.MaxConns, "min_conns", pc.MinConns)
	return &Pool{Pool: pool}, nil
}

// PoolStats is a snapshot of pool usage.
type PoolStats struct {
	Total        int32
	Acquired     int32
	Idle         int32
	Max          int32
	EmptyWaits   int64
	AcquireTotal time.Duration
}

// Saturated reports whether every connection is checked out. New ledger
// calls then wait for a connection before they can even queue on a row lock.
func (s PoolStats) Saturated() bool {
	return s.Max > 0 && s.Acquired >= s.Max
}

// Stats returns current pool usage.
func (p *Pool) Stats() PoolStats {
	st := p.Stat()
	return PoolStats{
		Total:        st.TotalConns(),
		Acquired:     st.AcquiredConns(),
		Idle:         st.IdleConns(),
		Max:          st.MaxConns(),
		EmptyWaits:   st.EmptyAcquireCount(),
		AcquireTotal: st.AcquireDuration(),
	}
}

// LogStats logs a usage snapshot, as a warning when the pool is saturated.
func (p *Pool) LogStats(ctx context.Context) {
	s := p.Stats()
	kv := []any{
		"total", s.Total,
		"acquired", s.Acquired,
		"idle", s.Idle,
		"max", s.Max,
		"empty_waits", s.EmptyWaits,
		"acquire_total", s.AcquireTotal,
	}
	if s.Saturated() {
		logger.Warn(ctx, "database pool saturated", kv...)
		return
	}
	logger.Info(ctx, "database pool stats", kv...)
}

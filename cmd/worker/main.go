// Package main is the entry point for the voltstock background worker.
// It purges expired idempotency keys and reports pool usage.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"voltstock/internal/config"
	"voltstock/internal/infrastructure/storage/postgres"
	"voltstock/pkg/logger"
)

const (
	cleanupInterval = time.Hour
	statsInterval   = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: !cfg.IsProduction(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	if cfg.UsesMemoryStore() {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting voltstock worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = 2
	poolCfg.MinConns = 0
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool, postgres.DefaultTxOptions())
	w := &Worker{
		idempotency: postgres.NewIdempotencyStore(txm, cfg.IdempotencyTTL),
		pool:        pool,
		log:         log.WithComponent("worker"),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.every(gctx, cleanupInterval, w.cleanupIdempotency) })
	g.Go(func() error { return w.every(gctx, statsInterval, w.reportPool) })

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Errorw("worker failed", "error", err)
	}
	log.Info("worker stopped")
}

// Worker runs periodic maintenance jobs.
type Worker struct {
	idempotency *postgres.IdempotencyStore
	pool        *postgres.Pool
	log         *logger.Logger
}

// every runs job immediately and then on each tick until ctx is done.
func (w *Worker) every(ctx context.Context, interval time.Duration, job func(ctx context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	job(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			job(ctx)
		}
	}
}

func (w *Worker) cleanupIdempotency(ctx context.Context) {
	removed, err := w.idempotency.CleanupExpired(ctx)
	if err != nil {
		w.log.Errorw("failed to clean up idempotency keys", "error", err)
		return
	}
	if removed > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", removed)
	}
}

func (w *Worker) reportPool(ctx context.Context) {
	w.pool.LogStats(logger.WithLogger(ctx, w.log))
}

// Package main is the entry point for the voltstock API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"voltstock/internal/config"
	"voltstock/internal/core/security"
	"voltstock/internal/domain/auth"
	v1 "voltstock/internal/infrastructure/http/v1"
	"voltstock/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "voltstock: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: !cfg.IsProduction(),
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	log.Infow("starting voltstock server", "env", cfg.AppEnv, "memory_store", cfg.UsesMemoryStore())

	policy, err := security.NewPolicy(cfg.Policy.Overrides())
	if err != nil {
		return fmt.Errorf("compile authorization rules: %w", err)
	}

	deps, err := buildDependencies(ctx, cfg, policy)
	if err != nil {
		return err
	}
	defer deps.Close()

	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWTSecret, cfg.JWTIssuer))

	routerCfg := v1.RouterConfig{
		Logger:           log,
		TokenValidator:   jwtService,
		Directory:        deps.Directory,
		Policy:           policy,
		IdempotencyStore: deps.Idempotency,
		HealthChecks:     deps.HealthChecks,
		AuditReader:      deps.AuditReader,
		StockRequests:    deps.StockRequests,
		Sales:            deps.Sales,
		StockReturns:     deps.StockReturns,
		Inventory:        deps.Inventory,
	}
	if !cfg.IsProduction() {
		routerCfg.DevTokens = jwtService
		log.Warn("development token endpoint enabled at POST /api/v1/dev/token")
	}
	if deps.Idempotency == nil {
		log.Warn("idempotency keys disabled: set REDIS_ADDR or DATABASE_URL")
	}

	router, err := v1.NewRouter(routerCfg)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

package main

import (
	"context"
	"fmt"

	"voltstock/internal/config"
	"voltstock/internal/core/idempotency"
	"voltstock/internal/core/security"
	"voltstock/internal/domain/audit"
	"voltstock/internal/domain/directory"
	"voltstock/internal/domain/ledger"
	"voltstock/internal/domain/sale"
	"voltstock/internal/domain/stockrequest"
	"voltstock/internal/domain/stockreturn"
	"voltstock/internal/infrastructure/cache"
	"voltstock/internal/infrastructure/http/v1/handlers"
	"voltstock/internal/infrastructure/numerator"
	"voltstock/internal/infrastructure/storage/memory"
	"voltstock/internal/infrastructure/storage/postgres"
	"voltstock/internal/infrastructure/storage/postgres/catalog_repo"
	"voltstock/internal/infrastructure/storage/postgres/document_repo"
	"voltstock/internal/infrastructure/storage/postgres/ledger_repo"
	"voltstock/internal/infrastructure/storage/seed"
	"voltstock/pkg/logger"
)

// dependencies are the services the router needs plus their resources.
type dependencies struct {
	Directory     directory.Directory
	Idempotency   idempotency.Store
	AuditReader   audit.Reader
	HealthChecks  map[string]handlers.Pinger
	StockRequests *stockrequest.Service
	Sales         *sale.Service
	StockReturns  *stockreturn.Service
	Inventory     *ledger.Service

	closers []func()
}

// Close releases pools and clients in reverse order of creation.
func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func buildDependencies(ctx context.Context, cfg *config.Config, policy security.Authorizer) (*dependencies, error) {
	deps := &dependencies{HealthChecks: map[string]handlers.Pinger{}}

	var err error
	if cfg.UsesMemoryStore() {
		buildMemory(ctx, deps, policy)
	} else {
		err = buildPostgres(ctx, cfg, deps, policy)
	}
	if err != nil {
		deps.Close()
		return nil, err
	}

	if cfg.RedisAddr != "" {
		client, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.closers = append(deps.closers, func() { _ = client.Close() })
		deps.HealthChecks["redis"] = handlers.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
		deps.Idempotency = cache.NewIdempotencyStore(client, cfg.IdempotencyTTL)
		logger.Info(ctx, "idempotency keys stored in redis", "addr", cfg.RedisAddr)
	}
	return deps, nil
}

func buildMemory(ctx context.Context, deps *dependencies, policy security.Authorizer) {
	store := memory.NewStore()
	seed.Demo().LoadMemory(store)
	logger.Warn(ctx, "DATABASE_URL not set: using in-memory store with demo data")

	repos := store.Repositories()
	engine := ledger.NewEngine(store, repos.Ledger)

	deps.Directory = repos.Directory
	deps.AuditReader = repos.Audit
	deps.StockRequests = stockrequest.NewService(stockrequest.ServiceConfig{
		Repo:      repos.StockRequests,
		TxManager: store,
		Transfers: engine,
		Catalog:   repos.Ledger,
		Holders:   repos.Directory,
		Sequence:  repos.Sequence,
		Policy:    policy,
		Audit:     repos.Audit,
	})
	deps.Sales = sale.NewService(repos.Sales, store, engine, repos.Ledger, policy, repos.Audit)
	deps.StockReturns = stockreturn.NewService(repos.StockReturns, store, repos.Ledger, engine, policy, repos.Audit)
	deps.Inventory = ledger.NewService(repos.Ledger, engine, policy)
}

func buildPostgres(ctx context.Context, cfg *config.Config, deps *dependencies, policy security.Authorizer) error {
	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	deps.closers = append(deps.closers, pool.Close)
	deps.HealthChecks["postgres"] = handlers.PingFunc(pool.Ping)
	logger.Info(ctx, "database connection established", "max_conns", cfg.DBMaxConns)

	if cfg.DBAutoMigrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	txOpts := postgres.DefaultTxOptions()
	txOpts.StatementTimeout = cfg.TxStatementTimeout
	txOpts.LockTimeout = cfg.TxLockTimeout
	txm := postgres.NewTxManager(pool, txOpts)

	auditRecorder, err := postgres.NewAuditRecorder(txm, cfg.AuditCompressThreshold)
	if err != nil {
		return fmt.Errorf("create audit recorder: %w", err)
	}

	ledgerRepo := ledger_repo.NewLedgerRepo(txm)
	directoryRepo := catalog_repo.NewDirectoryRepo(txm)
	engine := ledger.NewEngine(txm, ledgerRepo)

	deps.Directory = directoryRepo
	deps.AuditReader = auditRecorder
	deps.Idempotency = postgres.NewIdempotencyStore(txm, cfg.IdempotencyTTL)
	deps.StockRequests = stockrequest.NewService(stockrequest.ServiceConfig{
		Repo:      document_repo.NewStockRequestRepo(txm),
		TxManager: txm,
		Transfers: engine,
		Catalog:   ledgerRepo,
		Holders:   directoryRepo,
		Sequence:  numerator.New(txm),
		Policy:    policy,
		Audit:     auditRecorder,
	})
	deps.Sales = sale.NewService(document_repo.NewSaleRepo(txm), txm, engine, ledgerRepo, policy, auditRecorder)
	deps.StockReturns = stockreturn.NewService(document_repo.NewStockReturnRepo(txm), txm, ledgerRepo, engine, policy, auditRecorder)
	deps.Inventory = ledger.NewService(ledgerRepo, engine, policy)
	return nil
}

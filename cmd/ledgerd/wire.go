package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	domainstrategy "github.com/erp/stockledger/internal/domain/shared/strategy"
	"github.com/erp/stockledger/internal/infrastructure/cache"
	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/erp/stockledger/internal/infrastructure/event"
	"github.com/erp/stockledger/internal/infrastructure/lock"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/infrastructure/migration"
	"github.com/erp/stockledger/internal/infrastructure/persistence"
	"github.com/erp/stockledger/internal/infrastructure/persistence/memstore"
	"github.com/erp/stockledger/internal/infrastructure/queue"
	"github.com/erp/stockledger/internal/infrastructure/strategy"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// pendingDispatcher is a repost dispatcher that reports its backlog
type pendingDispatcher interface {
	inventoryapp.RepostDispatcher
	Pending() int
}

// application holds the wired services and the resources they own
type application struct {
	ledger       *inventoryapp.StockLedgerService
	reservations *inventoryapp.ReservationService
	master       *inventoryapp.MasterDataService

	db         *persistence.Database
	redis      *redis.Client
	bus        *event.InMemoryEventBus
	dispatcher pendingDispatcher
	worker     *queue.Worker

	closers []func() error
}

func buildApp(ctx context.Context, cfg *config.Config, obs *observability, log *zap.Logger) (_ *application, err error) {
	app := &application{}
	defer func() {
		if err != nil {
			app.close(log)
		}
	}()

	scope, repos, err := app.openStore(ctx, cfg, obs, log)
	if err != nil {
		return nil, err
	}

	factory := cache.NewFactory(cfg.Redis, cfg.Ledger.CostCacheTTL,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	idempotency, err := factory.CreateIdempotencyStore(ctx)
	if err != nil {
		return nil, err
	}
	costCache, err := factory.CreateCostStateCache(ctx)
	if err != nil {
		return nil, err
	}
	if app.redis = factory.Client(); app.redis != nil {
		app.closers = append(app.closers, app.redis.Close)
	}

	locker, err := newLocker(cfg, app.redis, log)
	if err != nil {
		return nil, err
	}

	registry, err := strategy.NewRegistryWithDefaults(cfg.Ledger.Precision)
	if err != nil {
		return nil, fmt.Errorf("init strategy registry: %w", err)
	}
	batchStrategy, err := registry.GetBatchStrategy(cfg.Ledger.BatchStrategy)
	if err != nil {
		return nil, fmt.Errorf("resolve batch strategy: %w", err)
	}
	engine := inventory.NewValuationEngine(registry, domainstrategy.NegativeStockPolicy(cfg.Ledger.NegativeStockLayerPolicy))

	app.ledger = inventoryapp.NewStockLedgerService(scope, repos, engine, inventory.NewAllocator(batchStrategy), locker,
		inventoryapp.LedgerOptions{
			RepostPolicy:   inventoryapp.RepostPolicy(cfg.Ledger.RepostPolicy),
			RepostHorizon:  cfg.Ledger.RepostHorizon,
			Precision:      cfg.Ledger.Precision,
			IdempotencyTTL: cfg.Ledger.IdempotencyTTL,
		}, log.Named("ledger"))
	app.ledger.SetCostStateCache(costCache)
	app.ledger.SetIdempotencyStore(idempotency)
	app.ledger.SetMetrics(obs.ledger)

	app.reservations = inventoryapp.NewReservationService(scope, repos, locker, cfg.Reservation.DefaultTTL, log.Named("reservation"))
	app.reservations.SetMetrics(obs.ledger)

	app.master = inventoryapp.NewMasterDataService(scope, repos, log.Named("master_data"))

	app.bus = event.NewInMemoryEventBus(log)
	alerts := inventoryapp.NewReorderAlertHandler(log, obs.ledger)
	app.bus.Subscribe(
		event.NewIdempotentHandler(alerts, idempotency, shared.IdempotencyConfig{TTL: cfg.Ledger.IdempotencyTTL, Enabled: true}, log),
		alerts.EventTypes()...,
	)
	if err := app.bus.Start(ctx); err != nil {
		return nil, fmt.Errorf("start event bus: %w", err)
	}
	app.closers = append(app.closers, func() error { return app.bus.Stop(context.Background()) })
	app.ledger.SetEventPublisher(app.bus)
	app.reservations.SetEventPublisher(app.bus)

	app.startDispatcher(ctx, cfg, log)
	app.ledger.SetDispatcher(app.dispatcher)
	if err := obs.ledger.ObservePending(app.dispatcher.Pending); err != nil {
		log.Warn("Repost backlog gauge unavailable", zap.Error(err))
	}

	return app, nil
}

// openStore connects the configured ledger store and brings its schema up to date
func (a *application) openStore(ctx context.Context, cfg *config.Config, obs *observability, log *zap.Logger) (inventory.TransactionScope, inventory.TransactionalRepositories, error) {
	if cfg.Ledger.Store == "memory" {
		log.Warn("Using in-memory ledger store, data is lost on restart")
		store := memstore.New()
		return store, store.Repositories(), nil
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	log.Info("Database connected successfully", zap.String("driver", db.Driver))

	dbSystem := "postgresql"
	if db.Driver == "sqlite" {
		dbSystem = "sqlite"
	}
	tracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        dbSystem,
	}, log)
	if err := tracing.RegisterOtelGorm(db.DB); err != nil {
		return nil, nil, fmt.Errorf("register db tracing: %w", err)
	}
	if err := telemetry.RegisterDBMetrics(db.DB, obs.meter, telemetry.DBMetricsConfig{
		Enabled:            cfg.Telemetry.MetricsEnabled,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log); err != nil {
		return nil, nil, fmt.Errorf("register db metrics: %w", err)
	}

	if err := migrateSchema(ctx, &cfg.Database, db, log); err != nil {
		return nil, nil, err
	}
	return persistence.NewGormTransactionScope(db.DB), persistence.NewRepositories(db.DB), nil
}

// migrateSchema applies the embedded SQL migrations on postgres and auto-migrates sqlite.
// Migrations run on a dedicated connection since closing the migrator closes its sql.DB.
func migrateSchema(ctx context.Context, cfg *config.DatabaseConfig, db *persistence.Database, log *zap.Logger) error {
	if db.Driver == "sqlite" {
		return db.AutoMigrate(ctx)
	}
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	m, err := migration.New(sqlDB, log)
	if err != nil {
		_ = sqlDB.Close()
		return err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			log.Warn("Closing migrator failed", zap.Error(cerr))
		}
	}()
	return m.Up()
}

func newLocker(cfg *config.Config, client *redis.Client, log *zap.Logger) (inventory.KeyLocker, error) {
	if cfg.Ledger.LockBackend != "redis" {
		return lock.NewLocalKeyLocker(64, cfg.Ledger.LockWait), nil
	}
	if client == nil {
		return nil, errors.New("ledger.lock_backend=redis but redis is unreachable")
	}
	opts := lock.DefaultRedisLockOptions()
	opts.TTL = cfg.Ledger.LockTTL
	opts.Wait = cfg.Ledger.LockWait
	return lock.NewRedisKeyLocker(client, opts, log), nil
}

// startDispatcher routes deferred reposts to asynq when the worker is enabled,
// otherwise to an in-process pool
func (a *application) startDispatcher(ctx context.Context, cfg *config.Config, log *zap.Logger) {
	if cfg.Worker.Enabled {
		opt := queue.RedisOpt(cfg.Redis)
		dispatcher := queue.NewAsynqDispatcher(opt, cfg.Worker, log)
		a.closers = append(a.closers, dispatcher.Close)
		a.dispatcher = dispatcher
		a.worker = queue.NewWorker(opt, cfg.Worker, queue.NewRepostHandler(a.ledger, log), log)
		return
	}

	dispatcher := inventoryapp.NewInProcessDispatcher(cfg.Worker.Concurrency, 256, log)
	dispatcher.Start(ctx, a.ledger)
	a.closers = append(a.closers, func() error {
		dispatcher.Stop()
		return nil
	})
	a.dispatcher = dispatcher
}

// close releases resources in reverse acquisition order
func (a *application) close(log *zap.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn("Error releasing resource", zap.Error(err))
		}
	}
	a.closers = nil
}

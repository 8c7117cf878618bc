package main

import (
	"context"
	"net/http"

	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/interfaces/http/handler"
	"github.com/erp/stockledger/internal/interfaces/http/middleware"
	"github.com/erp/stockledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func newEngine(cfg *config.Config, app *application, obs *observability, log *zap.Logger) http.Handler {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.SpanAttributes(),
		middleware.Secure(),
		middleware.CORSWithConfig(corsConfig(cfg)),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.Timeout(cfg.HTTP.RequestTimeout),
	)
	if limiter := newRateLimiter(cfg, app); limiter != nil {
		engine.Use(middleware.RateLimit(limiter, log))
	}
	engine.Use(
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: obs.meter,
			ServiceName:   cfg.Telemetry.ServiceName,
			Enabled:       cfg.Telemetry.MetricsEnabled,
		}),
	)
	if cfg.Profiler.Enabled {
		engine.Use(middleware.Profiling())
	}

	stock := router.NewDomainGroup("stock", "/stock")
	handler.NewStockLedgerHandler(app.ledger).RegisterRoutes(stock)
	handler.NewReservationHandler(app.reservations).RegisterRoutes(stock)
	handler.NewMasterDataHandler(app.master).RegisterRoutes(stock)

	system := router.NewDomainGroup("system", "/system")
	sys := handler.NewSystemHandler(cfg.App.Name, version).WithPending(app.dispatcher)
	if app.db != nil {
		sys.WithCheck("database", app.db.Ping)
	}
	if app.redis != nil {
		sys.WithCheck("redis", func(ctx context.Context) error {
			return app.redis.Ping(ctx).Err()
		})
	}
	sys.RegisterRoutes(system)

	r := router.NewRouter(engine, router.WithAPIVersion("v1")).Register(stock).Register(system)
	r.Setup()
	for _, route := range r.Routes() {
		log.Debug("Route registered", zap.String("method", route.Method), zap.String("path", route.Path))
	}
	return engine
}

func corsConfig(cfg *config.Config) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSOrigins
	return cors
}

// newRateLimiter shares the window across instances when Redis is available
func newRateLimiter(cfg *config.Config, app *application) middleware.Limiter {
	if cfg.HTTP.RateLimit <= 0 {
		return nil
	}
	if app.redis != nil {
		return middleware.NewRedisLimiter(app.redis, cfg.HTTP.RateLimit, cfg.HTTP.RateWindow)
	}
	limiter := middleware.NewMemoryLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateWindow)
	app.closers = append(app.closers, func() error {
		limiter.Stop()
		return nil
	})
	return limiter
}

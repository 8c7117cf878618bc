package main

import (
	"context"
	"fmt"

	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// observability bundles the telemetry providers owned by the process
type observability struct {
	logger   *zap.Logger
	tracer   *telemetry.TracerProvider
	meter    *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
	ledger   *telemetry.LedgerMetrics
}

func setupTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) (*observability, error) {
	obs := &observability{logger: log}

	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("init log exporter: %w", err)
	}
	obs.logs = logs
	if logs.IsEnabled() {
		core := telemetry.NewZapOTELCore(cfg.Telemetry.ServiceName, logs, logger.ParseLevel(cfg.Log.Level))
		obs.logger = telemetry.NewBridgedLogger(log, core)
	}

	obs.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, obs.logger)
	if err != nil {
		obs.shutdown(log)
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	obs.meter, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, obs.logger)
	if err != nil {
		obs.shutdown(log)
		return nil, fmt.Errorf("init meter: %w", err)
	}

	obs.ledger, err = telemetry.NewLedgerMetrics(obs.meter.Meter("stockledger"))
	if err != nil {
		obs.shutdown(log)
		return nil, fmt.Errorf("init ledger metrics: %w", err)
	}

	obs.profiler, err = telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:              cfg.Profiler.Enabled,
		ServerAddress:        cfg.Profiler.ServerAddress,
		ApplicationName:      cfg.Telemetry.ServiceName,
		MutexProfileFraction: 5,
	}, obs.logger)
	if err != nil {
		obs.shutdown(log)
		return nil, fmt.Errorf("init profiler: %w", err)
	}
	if obs.profiler.IsEnabled() && obs.tracer.IsEnabled() {
		obs.tracer.EnableSpanProfiles()
	}

	return obs, nil
}

// shutdown flushes every provider that was created, in reverse order
func (o *observability) shutdown(log *zap.Logger) {
	ctx := context.Background()
	if o.profiler != nil {
		if err := o.profiler.Stop(); err != nil {
			log.Warn("Profiler stop failed", zap.Error(err))
		}
	}
	if o.meter != nil {
		if err := o.meter.Shutdown(ctx); err != nil {
			log.Warn("Meter provider shutdown failed", zap.Error(err))
		}
	}
	if o.tracer != nil {
		if err := o.tracer.Shutdown(ctx); err != nil {
			log.Warn("Tracer provider shutdown failed", zap.Error(err))
		}
	}
	if o.logs != nil {
		if err := o.logs.Shutdown(ctx); err != nil {
			log.Warn("Log provider shutdown failed", zap.Error(err))
		}
	}
}

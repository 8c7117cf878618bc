package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type probeRow struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&probeRow{}))
	return db
}

func TestDBMetricsPlugin_RecordsQueries(t *testing.T) {
	db := openSQLite(t)
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	sqlDB, err := db.DB()
	require.NoError(t, err)
	metrics, err := telemetry.NewDBMetrics(provider.Meter("db.client"),
		telemetry.DBMetricsConfig{Enabled: true, SlowQueryThreshold: time.Hour}, sqlDB)
	require.NoError(t, err)
	require.NoError(t, db.Use(telemetry.NewDBMetricsPlugin(metrics)))

	require.NoError(t, db.Create(&probeRow{Name: "a"}).Error)
	var rows []probeRow
	require.NoError(t, db.Find(&rows).Error)
	require.NoError(t, db.Exec("UPDATE probe_rows SET name = ?", "b").Error)

	got := collect(t, reader)
	queries := got["db_query_total"]
	assert.Equal(t, int64(1), sumFor(t, queries, telemetry.AttrDBOperation.String("INSERT")))
	assert.Equal(t, int64(1), sumFor(t, queries, telemetry.AttrDBOperation.String("SELECT")))
	assert.Equal(t, int64(1), sumFor(t, queries, telemetry.AttrDBOperation.String("UPDATE")))
	_, slow := got["db_slow_query_total"]
	assert.False(t, slow)

	pool, ok := got["db_pool_connections"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Len(t, pool.DataPoints, 3)
}

func TestDBMetrics_SlowQuery(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := telemetry.NewDBMetrics(provider.Meter("db.client"),
		telemetry.DBMetricsConfig{SlowQueryThreshold: 10 * time.Millisecond}, nil)
	require.NoError(t, err)

	metrics.RecordQuery(context.Background(), "select", "stock_ledger_entries", 50*time.Millisecond)
	metrics.RecordQuery(context.Background(), "", "", 50*time.Millisecond)

	got := collect(t, reader)
	assert.Equal(t, int64(1), sumFor(t, got["db_slow_query_total"], telemetry.AttrDBTable.String("stock_ledger_entries")))
	assert.Equal(t, int64(1), sumFor(t, got["db_slow_query_total"], telemetry.AttrDBTable.String("unknown")))
	assert.Equal(t, int64(1), sumFor(t, got["db_query_total"], telemetry.AttrDBOperation.String("UNKNOWN")))
}

func TestRegisterDBMetrics_DisabledProvider(t *testing.T) {
	db := openSQLite(t)
	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.NoError(t, telemetry.RegisterDBMetrics(db, mp, telemetry.DBMetricsConfig{Enabled: true}, zaptest.NewLogger(t)))
}

func TestDBTracingPlugin(t *testing.T) {
	t.Run("disabled registers nothing", func(t *testing.T) {
		db := openSQLite(t)
		plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{Enabled: false}, zaptest.NewLogger(t))
		assert.NoError(t, plugin.RegisterOtelGorm(db))
	})

	t.Run("enabled produces spans for queries", func(t *testing.T) {
		sr := setupTestTracer(t)
		db := openSQLite(t)
		plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			DBSystem:        "sqlite",
			SlowQueryThresh: time.Nanosecond,
		}, zaptest.NewLogger(t))
		require.NoError(t, plugin.RegisterOtelGorm(db))

		ctx, span := telemetry.StartSpan(context.Background(), "parent")
		require.NoError(t, db.WithContext(ctx).Create(&probeRow{Name: "x"}).Error)
		span.End()

		var names []string
		for _, s := range sr.Ended() {
			names = append(names, s.Name())
		}
		assert.Contains(t, names, "parent")
		assert.Greater(t, len(names), 1)
	})
}


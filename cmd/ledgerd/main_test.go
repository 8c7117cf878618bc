package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig() *config.Config {
	return &config.Config{
		App:   config.AppConfig{Name: "stockledger", Env: "test", Port: "0"},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
		Log:   config.LogConfig{Level: "info"},
		HTTP: config.HTTPConfig{
			MaxBodySize:    1 << 20,
			RequestTimeout: 5 * time.Second,
			RateLimit:      3,
			RateWindow:     time.Minute,
		},
		Ledger: config.LedgerConfig{
			Store:                    "memory",
			RepostPolicy:             "sync",
			RepostHorizon:            100,
			Precision:                4,
			NegativeStockLayerPolicy: "reject",
			BatchStrategy:            "fefo",
			LockBackend:              "local",
			LockWait:                 time.Second,
			CostCacheTTL:             time.Minute,
			IdempotencyTTL:           time.Hour,
		},
		Reservation: config.ReservationConfig{DefaultTTL: time.Minute, SweepInterval: 10 * time.Millisecond, SweepBatch: 10},
		Worker:      config.WorkerConfig{Concurrency: 2, Queue: "repost"},
		Telemetry:   config.TelemetryConfig{ServiceName: "stockledger-test", SamplingRatio: 1},
	}
}

func buildTestApp(t *testing.T, cfg *config.Config) (*application, http.Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := zaptest.NewLogger(t)
	obs, err := setupTelemetry(ctx, cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { obs.shutdown(log) })

	app, err := buildApp(ctx, cfg, obs, log)
	require.NoError(t, err)
	handler := newEngine(cfg, app, obs, log)
	t.Cleanup(func() { app.close(log) })
	return app, handler
}

func send(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = "192.0.2.1:4000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestBuildApp_MemoryStore(t *testing.T) {
	app, h := buildTestApp(t, testConfig())

	assert.Nil(t, app.db)
	assert.Nil(t, app.redis)
	assert.Nil(t, app.worker)
	assert.Equal(t, 0, app.dispatcher.Pending())

	w := send(h, http.MethodGet, "/api/v1/system/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	w = send(h, http.MethodPost, "/api/v1/stock/warehouses", `{"code":"WH-1","name":"Main"}`)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = send(h, http.MethodGet, "/api/v1/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusTooManyRequests, send(h, http.MethodGet, "/api/v1/system/ping", "").Code)
}

func TestBuildApp_RedisBackends(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	host, port := mr.Host(), mr.Server().Addr().Port
	cfg.Redis = config.RedisConfig{Enabled: true, Host: host, Port: port}
	cfg.Ledger.LockBackend = "redis"
	cfg.Ledger.LockTTL = 5 * time.Second

	app, h := buildTestApp(t, cfg)
	require.NotNil(t, app.redis)

	w := send(h, http.MethodGet, "/api/v1/system/health", "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"redis":"ok"`)

	send(h, http.MethodGet, "/api/v1/system/ping", "")
	assert.True(t, mr.Exists("ratelimit:192.0.2.1"))
}

func TestBuildApp_RedisLockWithoutRedis(t *testing.T) {
	cfg := testConfig()
	cfg.Ledger.LockBackend = "redis"

	log := zaptest.NewLogger(t)
	obs, err := setupTelemetry(context.Background(), cfg, log)
	require.NoError(t, err)
	defer obs.shutdown(log)

	_, err = buildApp(context.Background(), cfg, obs, log)
	assert.ErrorContains(t, err, "redis is unreachable")
}

func TestBuildApp_BatchStrategy(t *testing.T) {
	t.Run("fifo is resolved from the registry", func(t *testing.T) {
		cfg := testConfig()
		cfg.Ledger.BatchStrategy = "fifo"
		app, _ := buildTestApp(t, cfg)
		assert.NotNil(t, app.ledger)
	})

	t.Run("unknown strategy fails start-up", func(t *testing.T) {
		cfg := testConfig()
		cfg.Ledger.BatchStrategy = "lifo"

		log := zaptest.NewLogger(t)
		obs, err := setupTelemetry(context.Background(), cfg, log)
		require.NoError(t, err)
		defer obs.shutdown(log)

		_, err = buildApp(context.Background(), cfg, obs, log)
		assert.ErrorContains(t, err, "resolve batch strategy")
	})
}

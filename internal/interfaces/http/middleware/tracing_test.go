package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
	})
	return sr
}

func tracedRouter() *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "test-service"}), SpanAttributes())
	router.GET("/stock/balance", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"qty": "10"})
	})
	router.POST("/stock/entries/:id/cancel", func(c *gin.Context) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "already cancelled"})
	})
	router.GET("/stock/verify", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})
	return router
}

func spanNamed(t *testing.T, sr *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, span := range sr.Ended() {
		if span.Name() == name {
			return span
		}
	}
	require.Failf(t, "span not found", "no span named %q", name)
	return nil
}

func attrValues(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracingWithConfig_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{Enabled: false}), SpanAttributes())
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestSpanAttributes_LedgerKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sr := setupTestTracer(t)

	req := httptest.NewRequest(http.MethodGet, "/stock/balance?item_code=ITEM-A&warehouse=WH-1", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	tracedRouter().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	span := spanNamed(t, sr, "GET /stock/balance")
	attrs := attrValues(span)
	assert.Equal(t, "req-123", attrs["request_id"].AsString())
	assert.Equal(t, "ITEM-A", attrs["ledger.item_code"].AsString())
	assert.Equal(t, "WH-1", attrs["ledger.warehouse"].AsString())
	_, hasResource := attrs["ledger.resource_id"]
	assert.False(t, hasResource)
	assert.Equal(t, codes.Unset, span.Status().Code)
}

func TestSpanAttributes_ErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		method   string
		path     string
		spanName string
		status   int
		desc     string
	}{
		{"client error", http.MethodPost, "/stock/entries/abc/cancel", "POST /stock/entries/:id/cancel", http.StatusUnprocessableEntity, "Unprocessable Entity"},
		{"server error", http.MethodGet, "/stock/verify", "GET /stock/verify", http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := setupTestTracer(t)
			w := httptest.NewRecorder()
			tracedRouter().ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			require.Equal(t, tt.status, w.Code)

			span := spanNamed(t, sr, tt.spanName)
			assert.Equal(t, codes.Error, span.Status().Code)
			if tt.desc != "" {
				assert.Equal(t, tt.desc, span.Status().Description)
			}
			assert.Equal(t, int64(tt.status), attrValues(span)["http.status_code"].AsInt64())
		})
	}
}

func TestSpanAttributes_ResourceIDAndTruncation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sr := setupTestTracer(t)

	req := httptest.NewRequest(http.MethodPost, "/stock/entries/e-42/cancel", nil)
	req.Header.Set(IdempotencyKeyHeader, strings.Repeat("k", 300))
	tracedRouter().ServeHTTP(httptest.NewRecorder(), req)

	attrs := attrValues(spanNamed(t, sr, "POST /stock/entries/:id/cancel"))
	assert.Equal(t, "e-42", attrs["ledger.resource_id"].AsString())
	assert.Len(t, attrs["ledger.idempotency_key"].AsString(), MaxAttributeLength)
}

func TestSpanAttributes_NoSpan(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(SpanAttributes())
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "stock-ledger", cfg.ServiceName)
}

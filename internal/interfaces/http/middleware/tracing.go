package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxAttributeLength caps header-derived span attributes.
const MaxAttributeLength = 128

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "stock-ledger",
		Enabled:     true,
	}
}

// Tracing returns OpenTelemetry tracing middleware with default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig starts a server span per request via otelgin. Pair it
// with SpanAttributes, registered after it, to tag the span with ledger
// identifiers and error status.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanAttributes enriches the current span with the request id and the stock
// key being addressed, and marks 4xx/5xx responses as errors. Only 4xx
// spans keep the status text as their description.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		span.SetAttributes(ledgerAttributes(c)...)
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		// otelgin sets the status of 5xx spans itself once this returns
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

func ledgerAttributes(c *gin.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	add := func(key, value string) {
		if value == "" {
			return
		}
		if len(value) > MaxAttributeLength {
			value = value[:MaxAttributeLength]
		}
		attrs = append(attrs, attribute.String(key, value))
	}

	add("request_id", requestIDFromContext(c))
	add("ledger.idempotency_key", c.GetHeader(IdempotencyKeyHeader))
	add("ledger.item_code", firstNonEmpty(c.Query("item_code"), c.Param("code")))
	add("ledger.warehouse", c.Query("warehouse"))
	add("ledger.resource_id", c.Param("id"))
	return attrs
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

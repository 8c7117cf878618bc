package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

// sumFor adds up the counter values of every data point carrying all attrs.
func sumFor(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		matched := true
		for _, attr := range attrs {
			if v, ok := dp.Attributes.Value(attr.Key); !ok || v != attr.Value {
				matched = false
				break
			}
		}
		if matched {
			total += dp.Value
		}
	}
	return total
}

func newTestLedgerMetrics(t *testing.T) (*telemetry.LedgerMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := telemetry.NewLedgerMetrics(provider.Meter(telemetry.LedgerMeterName))
	require.NoError(t, err)
	return m, reader
}

func TestLedgerMetrics_RecordPosting(t *testing.T) {
	m, reader := newTestLedgerMetrics(t)
	ctx := context.Background()

	m.RecordPosting(ctx, "receipt", 1, 5*time.Millisecond, nil)
	m.RecordPosting(ctx, "transfer", 2, 8*time.Millisecond, nil)
	m.RecordPosting(ctx, "issue", 0, time.Millisecond, errors.New("insufficient stock"))

	got := collect(t, reader)
	postings := got["ledger_postings_total"]
	assert.Equal(t, int64(2), sumFor(t, postings, telemetry.AttrOutcome.String("success")))
	assert.Equal(t, int64(1), sumFor(t, postings, telemetry.AttrOutcome.String("error")))
	assert.Equal(t, int64(1), sumFor(t, postings,
		telemetry.AttrOutcome.String("success"), telemetry.AttrMovementType.String("receipt")))
	assert.Len(t, postings.Data.(metricdata.Sum[int64]).DataPoints, 3)
	assert.Equal(t, int64(2), sumFor(t, got["ledger_entries_appended_total"], telemetry.AttrMovementType.String("transfer")))

	hist, ok := got["ledger_posting_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestLedgerMetrics_RecordRepost(t *testing.T) {
	m, reader := newTestLedgerMetrics(t)
	ctx := context.Background()

	m.RecordRepost(ctx, 40, time.Second, false)
	m.RecordRepost(ctx, 0, time.Millisecond, true)
	m.RecordDeferred(ctx, "repost")
	m.RecordDeferred(ctx, "repost")

	got := collect(t, reader)
	assert.Equal(t, int64(1), sumFor(t, got["ledger_reposts_total"], telemetry.AttrOutcome.String("completed")))
	assert.Equal(t, int64(1), sumFor(t, got["ledger_reposts_total"], telemetry.AttrOutcome.String("aborted")))
	assert.Equal(t, int64(2), sumFor(t, got["ledger_reposts_deferred_total"], telemetry.AttrKind.String("repost")))

	replayed := got["ledger_repost_entries_total"].Data.(metricdata.Sum[int64])
	require.Len(t, replayed.DataPoints, 1)
	assert.Equal(t, int64(40), replayed.DataPoints[0].Value)
}

func TestLedgerMetrics_AlertsReservationsAndCancels(t *testing.T) {
	m, reader := newTestLedgerMetrics(t)
	ctx := context.Background()

	m.RecordThresholdAlert(ctx, "stock.below_reorder_level")
	m.RecordReservation(ctx, "created")
	m.RecordReservation(ctx, "expired")
	m.RecordCancel(ctx, 2, nil)
	m.RecordCancel(ctx, 0, errors.New("already cancelled"))

	got := collect(t, reader)
	assert.Equal(t, int64(1), sumFor(t, got["ledger_threshold_alerts_total"], telemetry.AttrEventType.String("stock.below_reorder_level")))
	assert.Equal(t, int64(1), sumFor(t, got["ledger_reservations_total"], telemetry.AttrAction.String("expired")))
	assert.Equal(t, int64(1), sumFor(t, got["ledger_cancels_total"], telemetry.AttrOutcome.String("error")))
	assert.Equal(t, int64(2), sumFor(t, got["ledger_entries_appended_total"], telemetry.AttrMovementType.String("cancel")))
}

func TestLedgerMetrics_ObservePending(t *testing.T) {
	m, reader := newTestLedgerMetrics(t)

	pending := 7
	require.NoError(t, m.ObservePending(func() int { return pending }))

	gauge, ok := collect(t, reader)["ledger_reposts_pending"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(7), gauge.DataPoints[0].Value)

	pending = 2
	gauge = collect(t, reader)["ledger_reposts_pending"].Data.(metricdata.Gauge[int64])
	assert.Equal(t, int64(2), gauge.DataPoints[0].Value)
}

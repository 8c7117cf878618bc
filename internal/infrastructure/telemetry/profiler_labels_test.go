package telemetry

import (
	"context"
	"runtime/pprof"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestSanitizeLabels(t *testing.T) {
	pairs := sanitizeLabels(map[string]string{
		"Movement-Type": "transfer",
		"item_code":     "WIDGET",
		"route":         "",
		"operation":     strings.Repeat("x", 200),
		"!!!":           "dropped",
	})

	assert.Equal(t, []string{
		"movement_type", "transfer",
		"operation", strings.Repeat("x", MaxLabelValueLength),
	}, pairs)
}

func TestSanitizeLabelKey(t *testing.T) {
	tests := map[string]string{
		"operation":     "operation",
		"Ticket Kind":   "ticket_kind",
		"movement-type": "movement_type",
		"a.b/c":         "abc",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeLabelKey(in), in)
	}
}

func TestWithProfilingLabels(t *testing.T) {
	t.Run("attaches pprof labels", func(t *testing.T) {
		var got string
		WithProfilingLabels(context.Background(), map[string]string{
			ProfilingLabelOperation: "repost",
		}, func(ctx context.Context) {
			got, _ = pprof.Label(ctx, ProfilingLabelOperation)
		})
		assert.Equal(t, "repost", got)
	})

	t.Run("runs fn without labels", func(t *testing.T) {
		called := false
		WithProfilingLabels(context.Background(), nil, func(context.Context) { called = true })
		assert.True(t, called)
	})
}

func TestNewProfiler(t *testing.T) {
	t.Run("disabled is a no-op", func(t *testing.T) {
		p, err := NewProfiler(ProfilerConfig{Enabled: false}, zaptest.NewLogger(t))
		assert.NoError(t, err)
		assert.False(t, p.IsEnabled())
		assert.NoError(t, p.Stop())
	})

	t.Run("enabled requires an address", func(t *testing.T) {
		_, err := NewProfiler(ProfilerConfig{Enabled: true, ApplicationName: "stockledger"}, zaptest.NewLogger(t))
		assert.ErrorContains(t, err, "server address")
	})

	t.Run("enabled requires an application name", func(t *testing.T) {
		_, err := NewProfiler(ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"}, zaptest.NewLogger(t))
		assert.ErrorContains(t, err, "application name")
	})
}

package inventory

import (
	"context"
	"time"
)

// RepostPolicy decides when a backdated correction is replayed
type RepostPolicy string

const (
	// RepostSync replays inside the posting transaction while the downstream chain fits the horizon
	RepostSync RepostPolicy = "sync"
	// RepostDeferred always hands backdated corrections to the repost worker
	RepostDeferred RepostPolicy = "deferred"
)

// IsValid returns true for known policies
func (p RepostPolicy) IsValid() bool {
	return p == RepostSync || p == RepostDeferred
}

// LedgerOptions configures the stock ledger service
type LedgerOptions struct {
	RepostPolicy   RepostPolicy
	RepostHorizon  int
	Precision      int32
	IdempotencyTTL time.Duration
}

// DefaultLedgerOptions returns the default ledger options
func DefaultLedgerOptions() LedgerOptions {
	return LedgerOptions{
		RepostPolicy:   RepostSync,
		RepostHorizon:  500,
		Precision:      4,
		IdempotencyTTL: 24 * time.Hour,
	}
}

// LedgerMetrics receives ledger measurements
type LedgerMetrics interface {
	RecordPosting(ctx context.Context, movement string, entries int, duration time.Duration, err error)
	RecordCancel(ctx context.Context, entries int, err error)
	RecordRepost(ctx context.Context, replayed int, duration time.Duration, aborted bool)
	RecordDeferred(ctx context.Context, kind string)
	RecordThresholdAlert(ctx context.Context, eventType string)
	RecordReservation(ctx context.Context, action string)
}

type noopMetrics struct{}

func (noopMetrics) RecordPosting(context.Context, string, int, time.Duration, error) {}
func (noopMetrics) RecordCancel(context.Context, int, error) {}
func (noopMetrics) RecordRepost(context.Context, int, time.Duration, bool) {}
func (noopMetrics) RecordDeferred(context.Context, string) {}
func (noopMetrics) RecordThresholdAlert(context.Context, string) {}
func (noopMetrics) RecordReservation(context.Context, string) {}

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// LedgerMeterName is the instrumentation scope of ledger metrics
const LedgerMeterName = "stockledger/ledger"

// LedgerMetrics records posting, cancel, repost and reservation activity.
type LedgerMetrics struct {
	meter metric.Meter

	postingsTotal   *Counter
	postingEntries  *Counter
	postingDuration *Histogram
	cancelsTotal    *Counter
	repostsTotal    *Counter
	repostReplayed  *Counter
	repostDuration  *Histogram
	deferredTotal   *Counter
	alertsTotal     *Counter
	reservations    *Counter
}

// NewLedgerMetrics creates the ledger instruments on meter
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	m := &LedgerMetrics{meter: meter}
	var err error

	if m.postingsTotal, err = NewCounter(meter, "ledger_postings_total",
		"Stock movements posted, by movement type and outcome", "{movement}"); err != nil {
		return nil, err
	}
	if m.postingEntries, err = NewCounter(meter, "ledger_entries_appended_total",
		"Ledger entries written by successful postings", "{entry}"); err != nil {
		return nil, err
	}
	if m.postingDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_posting_duration_seconds",
		Description: "Time spent posting a stock movement",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.cancelsTotal, err = NewCounter(meter, "ledger_cancels_total",
		"Movement cancellations, by outcome", "{movement}"); err != nil {
		return nil, err
	}
	if m.repostsTotal, err = NewCounter(meter, "ledger_reposts_total",
		"Repost runs, by outcome", "{repost}"); err != nil {
		return nil, err
	}
	if m.repostReplayed, err = NewCounter(meter, "ledger_repost_entries_total",
		"Ledger entries rewritten by repost runs", "{entry}"); err != nil {
		return nil, err
	}
	if m.repostDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_repost_duration_seconds",
		Description: "Time spent replaying a stock key",
		Unit:        "s",
		Boundaries:  RepostDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.deferredTotal, err = NewCounter(meter, "ledger_reposts_deferred_total",
		"Repost tickets handed to the worker, by ticket kind", "{ticket}"); err != nil {
		return nil, err
	}
	if m.alertsTotal, err = NewCounter(meter, "ledger_threshold_alerts_total",
		"Stock threshold events raised, by event type", "{event}"); err != nil {
		return nil, err
	}
	if m.reservations, err = NewCounter(meter, "ledger_reservations_total",
		"Reservation lifecycle actions", "{reservation}"); err != nil {
		return nil, err
	}
	return m, nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordPosting records one PostMovement call
func (m *LedgerMetrics) RecordPosting(ctx context.Context, movement string, entries int, duration time.Duration, err error) {
	m.postingsTotal.Inc(ctx, AttrMovementType.String(movement), AttrOutcome.String(outcome(err)))
	m.postingDuration.RecordDuration(ctx, duration, AttrMovementType.String(movement))
	if err == nil && entries > 0 {
		m.postingEntries.Add(ctx, int64(entries), AttrMovementType.String(movement))
	}
}

// RecordCancel records one CancelMovement call
func (m *LedgerMetrics) RecordCancel(ctx context.Context, entries int, err error) {
	m.cancelsTotal.Inc(ctx, AttrOutcome.String(outcome(err)))
	if err == nil && entries > 0 {
		m.postingEntries.Add(ctx, int64(entries), AttrMovementType.String("cancel"))
	}
}

// RecordRepost records one replay of a stock key
func (m *LedgerMetrics) RecordRepost(ctx context.Context, replayed int, duration time.Duration, aborted bool) {
	result := "completed"
	if aborted {
		result = "aborted"
	}
	m.repostsTotal.Inc(ctx, AttrOutcome.String(result))
	m.repostDuration.RecordDuration(ctx, duration, AttrOutcome.String(result))
	if !aborted && replayed > 0 {
		m.repostReplayed.Add(ctx, int64(replayed))
	}
}

// RecordDeferred records a ticket handed to the repost worker
func (m *LedgerMetrics) RecordDeferred(ctx context.Context, kind string) {
	m.deferredTotal.Inc(ctx, AttrKind.String(kind))
}

// RecordThresholdAlert records a published threshold event
func (m *LedgerMetrics) RecordThresholdAlert(ctx context.Context, eventType string) {
	m.alertsTotal.Inc(ctx, AttrEventType.String(eventType))
}

// RecordReservation records a reservation create, release, consume or expiry
func (m *LedgerMetrics) RecordReservation(ctx context.Context, action string) {
	m.reservations.Inc(ctx, AttrAction.String(action))
}

// ObservePending exports the dispatcher backlog as a gauge read at collection time
func (m *LedgerMetrics) ObservePending(pending func() int) error {
	_, err := m.meter.Int64ObservableGauge(
		"ledger_reposts_pending",
		metric.WithDescription("Repost tickets waiting for a worker"),
		metric.WithUnit("{ticket}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(pending()))
			return nil
		}),
	)
	return err
}

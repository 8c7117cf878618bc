package batch

import (
	"context"
	"sort"
	"time"

	"github.com/erp/stockledger/internal/domain/shared/strategy"
)

// FEFOBatchStrategy implements First Expired First Out batch selection.
// Batches without an expiry date are consumed after every dated batch.
type FEFOBatchStrategy struct {
	strategy.BaseStrategy
}

// NewFEFOBatchStrategy creates a new FEFO batch strategy
func NewFEFOBatchStrategy() *FEFOBatchStrategy {
	return &FEFOBatchStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"fefo",
			strategy.StrategyTypeBatch,
			"First Expired First Out - earliest expiry first, expired batches skipped",
		),
	}
}

// SelectBatches selects batches in FEFO order by expiry date
func (s *FEFOBatchStrategy) SelectBatches(
	ctx context.Context,
	selCtx strategy.BatchSelectionContext,
	batches []strategy.Batch,
) (strategy.BatchSelectionResult, error) {
	filtered := filterAvailableBatches(batches, selCtx.ItemCode, selCtx.Warehouse)
	filtered = filterNonExpiredBatches(filtered, selCtx.Date)

	sort.SliceStable(filtered, func(i, j int) bool {
		iExpiry := filtered[i].ExpiryDate
		jExpiry := filtered[j].ExpiryDate

		if iExpiry.IsZero() && jExpiry.IsZero() {
			return filtered[i].ManufactureDate.Before(filtered[j].ManufactureDate)
		}
		if iExpiry.IsZero() {
			return false
		}
		if jExpiry.IsZero() {
			return true
		}
		if iExpiry.Equal(jExpiry) {
			return filtered[i].BatchNo < filtered[j].BatchNo
		}
		return iExpiry.Before(jExpiry)
	})

	if selCtx.PreferBatch != "" {
		filtered = prioritizePreferredBatch(filtered, selCtx.PreferBatch)
	}

	return selectFromBatches(filtered, selCtx.Quantity), nil
}

// ConsidersExpiry returns true as FEFO considers expiry dates
func (s *FEFOBatchStrategy) ConsidersExpiry() bool {
	return true
}

// SupportsFEFO returns true as this is FEFO strategy
func (s *FEFOBatchStrategy) SupportsFEFO() bool {
	return true
}

// filterNonExpiredBatches drops batches whose expiry is before the posting date.
// A batch expiring on the posting date is still usable.
func filterNonExpiredBatches(batches []strategy.Batch, postingDate time.Time) []strategy.Batch {
	if postingDate.IsZero() {
		postingDate = time.Now()
	}
	day := truncateDay(postingDate)

	filtered := make([]strategy.Batch, 0, len(batches))
	for _, b := range batches {
		if b.ExpiryDate.IsZero() || !truncateDay(b.ExpiryDate).Before(day) {
			filtered = append(filtered, b)
		}
	}
	return filtered
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

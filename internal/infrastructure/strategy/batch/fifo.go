package batch

import (
	"context"
	"sort"
	"time"

	"github.com/erp/stockledger/internal/domain/shared/strategy"
)

// FIFOBatchStrategy issues the batch that entered the warehouse first.
// Expired batches are skipped the same way FEFO skips them; undated expiry never excludes.
type FIFOBatchStrategy struct {
	strategy.BaseStrategy
}

// NewFIFOBatchStrategy creates a new FIFO batch strategy
func NewFIFOBatchStrategy() *FIFOBatchStrategy {
	return &FIFOBatchStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"fifo",
			strategy.StrategyTypeBatch,
			"First In First Out - earliest received batch first, expired batches skipped",
		),
	}
}

// SelectBatches orders usable batches by arrival and takes from the oldest
func (s *FIFOBatchStrategy) SelectBatches(
	ctx context.Context,
	selCtx strategy.BatchSelectionContext,
	batches []strategy.Batch,
) (strategy.BatchSelectionResult, error) {
	usable := filterNonExpiredBatches(filterAvailableBatches(batches, selCtx.ItemCode, selCtx.Warehouse), selCtx.Date)

	sort.SliceStable(usable, func(i, j int) bool {
		ai, aj := arrival(usable[i]), arrival(usable[j])
		if ai.Equal(aj) {
			return usable[i].BatchNo < usable[j].BatchNo
		}
		return ai.Before(aj)
	})

	if selCtx.PreferBatch != "" {
		usable = prioritizePreferredBatch(usable, selCtx.PreferBatch)
	}
	return selectFromBatches(usable, selCtx.Quantity), nil
}

// ConsidersExpiry is true: expired batches are never issued
func (s *FIFOBatchStrategy) ConsidersExpiry() bool {
	return true
}

// SupportsFEFO returns false
func (s *FIFOBatchStrategy) SupportsFEFO() bool {
	return false
}

// arrival is when the batch was received, or manufactured when the receipt date is unknown
func arrival(b strategy.Batch) time.Time {
	if !b.ReceivedDate.IsZero() {
		return b.ReceivedDate
	}
	return b.ManufactureDate
}

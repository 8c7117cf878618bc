package batch

import (
	"github.com/erp/stockledger/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// filterAvailableBatches keeps batches of the item and warehouse with positive quantity
func filterAvailableBatches(batches []strategy.Batch, itemCode, warehouse string) []strategy.Batch {
	filtered := make([]strategy.Batch, 0, len(batches))
	for _, b := range batches {
		if b.ItemCode == itemCode && b.Warehouse == warehouse && b.AvailableQty.IsPositive() {
			filtered = append(filtered, b)
		}
	}
	return filtered
}

// prioritizePreferredBatch moves the preferred batch to the front of the list
func prioritizePreferredBatch(batches []strategy.Batch, preferredBatch string) []strategy.Batch {
	result := make([]strategy.Batch, 0, len(batches))
	var preferred *strategy.Batch

	for i := range batches {
		if batches[i].BatchNo == preferredBatch {
			preferred = &batches[i]
		} else {
			result = append(result, batches[i])
		}
	}

	if preferred != nil {
		result = append([]strategy.Batch{*preferred}, result...)
	}
	return result
}

// selectFromBatches takes quantity from sorted batches until the request is met
func selectFromBatches(batches []strategy.Batch, quantity decimal.Decimal) strategy.BatchSelectionResult {
	remaining := quantity
	selections := make([]strategy.BatchSelection, 0)
	total := decimal.Zero

	for _, b := range batches {
		if !remaining.IsPositive() {
			break
		}

		take := decimal.Min(remaining, b.AvailableQty)
		selections = append(selections, strategy.BatchSelection{
			BatchNo:    b.BatchNo,
			Quantity:   take,
			ExpiryDate: b.ExpiryDate,
		})

		remaining = remaining.Sub(take)
		total = total.Add(take)
	}

	return strategy.BatchSelectionResult{
		Selections:   selections,
		TotalQty:     total,
		ShortfallQty: remaining,
	}
}

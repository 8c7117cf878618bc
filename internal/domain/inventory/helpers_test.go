package inventory

import (
	"testing"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/strategy"
	"github.com/erp/stockledger/internal/infrastructure/strategy/cost"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type testStrategies map[strategy.CostMethod]strategy.CostCalculationStrategy

func (p testStrategies) CostStrategyFor(method strategy.CostMethod) (strategy.CostCalculationStrategy, error) {
	s, ok := p[method]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return s, nil
}

func newTestStrategies() testStrategies {
	return testStrategies{
		strategy.CostMethodMovingAverage: cost.NewMovingAverageCostStrategy(4),
		strategy.CostMethodFIFO:          cost.NewFIFOCostStrategy(4),
		strategy.CostMethodLIFO:          cost.NewLIFOCostStrategy(4),
		strategy.CostMethodStandard:      cost.NewStandardCostStrategy(4),
	}
}

func newTestEngine() *ValuationEngine {
	return NewValuationEngine(newTestStrategies(), strategy.NegativeStockReject)
}

func newTestItem(t *testing.T, method strategy.CostMethod) *Item {
	t.Helper()
	item, err := NewItem("ITEM-001", "Widget", "Nos", method)
	require.NoError(t, err)
	return item
}

var testBase = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func at(day int) time.Time {
	return testBase.AddDate(0, 0, day)
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

var testKey = StockKey{ItemCode: "ITEM-001", Warehouse: "WH-A"}

func inward(day int, qty, rate string) *LedgerEntry {
	e := NewLedgerEntry(uuid.New(), testKey, MovementReceipt, at(day), dec(qty), "Purchase Receipt", "PR-1")
	e.IncomingRate = dec(rate)
	return e
}

func outward(day int, qty string) *LedgerEntry {
	return NewLedgerEntry(uuid.New(), testKey, MovementIssue, at(day), dec(qty).Neg(), "Delivery Note", "DN-1")
}

// timeline assigns sequences in slice order and sorts by position
func timeline(entries ...*LedgerEntry) []*LedgerEntry {
	for i, e := range entries {
		e.Sequence = int64(i + 1)
	}
	SortEntries(entries)
	return entries
}

package inventory

import (
	"fmt"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// ValuationEngine applies ledger entries to a key's cost state with the item's costing method
// and writes the derived valuation fields back onto the entry.
type ValuationEngine struct {
	strategies     CostStrategyProvider
	negativePolicy strategy.NegativeStockPolicy
}

// NewValuationEngine creates a valuation engine
func NewValuationEngine(strategies CostStrategyProvider, negativePolicy strategy.NegativeStockPolicy) *ValuationEngine {
	if !negativePolicy.IsValid() {
		negativePolicy = strategy.NegativeStockReject
	}
	return &ValuationEngine{
		strategies:     strategies,
		negativePolicy: negativePolicy,
	}
}

// NegativePolicy returns the configured negative-stock layer policy
func (e *ValuationEngine) NegativePolicy() strategy.NegativeStockPolicy {
	return e.negativePolicy
}

// Apply values entry against state and returns the state after it.
// The entry's derived fields are overwritten; state is never mutated.
func (e *ValuationEngine) Apply(state strategy.CostState, item *Item, entry *LedgerEntry) (strategy.CostState, error) {
	method := item.CostMethodAt(entry.PostingDateTime)
	strat, err := e.strategies.CostStrategyFor(method)
	if err != nil {
		return state, err
	}

	current := state.Clone()
	revaluation := decimal.Zero
	switch {
	case current.Method == "":
		current.Method = method
	case current.Method != method:
		current = strat.Rebase(current)
		if method == strategy.CostMethodStandard {
			current, revaluation = revalueAtStandard(current, item.StandardRate)
		}
	}

	var out strategy.CostOutcome
	switch {
	case entry.Qty.IsPositive():
		out, err = e.inward(strat, current, item, entry)
	case entry.Qty.IsNegative():
		out, err = e.outward(strat, current, item, entry)
	default:
		err = shared.ErrNoOpMovement
	}
	if err != nil {
		return state, err
	}

	entry.ValuationRate = out.State.Rate
	entry.BalanceQty = out.State.Qty
	entry.BalanceValue = out.State.Value
	entry.StockValueDifference = out.ValueDelta.Add(revaluation.Neg())
	entry.PriceVariance = out.Variance.Add(revaluation)
	return out.State, nil
}

// revalueAtStandard restates carried stock at the standard rate.
// The returned variance is the carried value less the restated value.
func revalueAtStandard(state strategy.CostState, std decimal.Decimal) (strategy.CostState, decimal.Decimal) {
	restated := state.Qty.Mul(std)
	variance := state.Value.Sub(restated)
	state.Value = restated
	state.Rate = std
	return state, variance
}

func (e *ValuationEngine) inward(
	strat strategy.CostCalculationStrategy,
	state strategy.CostState,
	item *Item,
	entry *LedgerEntry,
) (strategy.CostOutcome, error) {
	if entry.AutoRate {
		entry.IncomingRate = state.Rate
	}

	effective := entry.IncomingRate
	if strat.Method() == strategy.CostMethodStandard {
		effective = item.StandardRate
	}
	if effective.IsZero() && !item.AllowZeroValuation {
		return strategy.CostOutcome{}, fmt.Errorf("%w: item %s at %s",
			shared.ErrZeroValuation, item.Code, entry.PostingDateTime.Format("2006-01-02 15:04:05"))
	}

	entry.OutgoingRate = decimal.Zero
	return strat.Inward(state, strategy.InwardRequest{
		EntryID:      entry.ID,
		Qty:          entry.Qty,
		Rate:         entry.IncomingRate,
		StandardRate: item.StandardRate,
	})
}

func (e *ValuationEngine) outward(
	strat strategy.CostCalculationStrategy,
	state strategy.CostState,
	item *Item,
	entry *LedgerEntry,
) (strategy.CostOutcome, error) {
	qty := entry.Qty.Neg()
	if !item.AllowNegativeStock && qty.GreaterThan(state.Qty) {
		return strategy.CostOutcome{}, fmt.Errorf("%w: %s needs %s, balance %s at %s",
			shared.ErrInsufficientStock, entry.Key(), qty, state.Qty,
			entry.PostingDateTime.Format("2006-01-02 15:04:05"))
	}

	out, err := strat.Outward(state, strategy.OutwardRequest{
		EntryID:        entry.ID,
		Qty:            qty,
		StandardRate:   item.StandardRate,
		AllowNegative:  item.AllowNegativeStock,
		NegativePolicy: e.negativePolicy,
	})
	if err != nil {
		return out, err
	}
	entry.IncomingRate = decimal.Zero
	entry.OutgoingRate = out.Rate
	return out, nil
}

// Record snapshots state onto an entry that does not move stock, such as a reversal
func (e *ValuationEngine) Record(state strategy.CostState, entry *LedgerEntry) {
	entry.ValuationRate = state.Rate
	entry.BalanceQty = state.Qty
	entry.BalanceValue = state.Value
	entry.StockValueDifference = decimal.Zero
	entry.OutgoingRate = decimal.Zero
	entry.PriceVariance = decimal.Zero
}

// Fold rebuilds the cost state after entries without modifying them
func (e *ValuationEngine) Fold(item *Item, entries []*LedgerEntry) (strategy.CostState, error) {
	state := strategy.NewCostState("")
	for _, entry := range entries {
		if !entry.Counts() {
			continue
		}
		next, err := e.Apply(state, item, entry.Clone())
		if err != nil {
			return state, fmt.Errorf("fold %s at entry %s: %w", entry.Key(), entry.ID, err)
		}
		state = next
	}
	return state, nil
}

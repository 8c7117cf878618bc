package cost

import (
	"fmt"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// MovingAverageCostStrategy implements weighted moving average costing.
// Value is carried as a running sum; the rate is re-derived from it on every receipt.
type MovingAverageCostStrategy struct {
	strategy.BaseStrategy
	places int32
}

// NewMovingAverageCostStrategy creates a new moving average cost strategy
func NewMovingAverageCostStrategy(places int32) *MovingAverageCostStrategy {
	if places <= 0 {
		places = DefaultPrecision
	}
	return &MovingAverageCostStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"moving_average",
			strategy.StrategyTypeCost,
			"Weighted moving average cost",
		),
		places: places,
	}
}

// Method returns the costing method
func (s *MovingAverageCostStrategy) Method() strategy.CostMethod {
	return strategy.CostMethodMovingAverage
}

// Inward recomputes rate = (oldValue + qty*rate) / (oldQty + qty)
func (s *MovingAverageCostStrategy) Inward(state strategy.CostState, req strategy.InwardRequest) (strategy.CostOutcome, error) {
	if !req.Qty.IsPositive() {
		return strategy.CostOutcome{}, fmt.Errorf("%w: inward quantity must be positive", shared.ErrValidation)
	}

	st := strategy.NewCostState(strategy.CostMethodMovingAverage)
	st.Qty = state.Qty.Add(req.Qty)

	switch {
	case !state.Qty.IsPositive():
		// recovering from zero or negative stock: the receipt sets the rate
		st.Rate = req.Rate
		st.Value = st.Qty.Mul(req.Rate).Round(s.places)
	default:
		st.Value = state.Value.Add(req.Qty.Mul(req.Rate)).Round(s.places)
		if st.Qty.IsPositive() {
			st.Rate = st.Value.Div(st.Qty).Round(s.places)
		}
	}

	return strategy.CostOutcome{
		State:      st,
		Rate:       req.Rate,
		ValueDelta: st.Value.Sub(state.Value),
	}, nil
}

// Outward keeps the rate and reduces value by qty*rate
func (s *MovingAverageCostStrategy) Outward(state strategy.CostState, req strategy.OutwardRequest) (strategy.CostOutcome, error) {
	if !req.Qty.IsPositive() {
		return strategy.CostOutcome{}, fmt.Errorf("%w: outward quantity must be positive", shared.ErrValidation)
	}
	if req.Qty.GreaterThan(state.Qty) && !req.AllowNegative {
		return strategy.CostOutcome{}, fmt.Errorf("%w: need %s, balance %s",
			shared.ErrInsufficientStock, req.Qty.String(), state.Qty.String())
	}

	st := strategy.NewCostState(strategy.CostMethodMovingAverage)
	st.Rate = state.Rate
	st.Qty = state.Qty.Sub(req.Qty)
	if st.Qty.IsZero() {
		st.Value = decimal.Zero
	} else {
		st.Value = state.Value.Sub(req.Qty.Mul(state.Rate)).Round(s.places)
	}

	return strategy.CostOutcome{
		State:      st,
		Rate:       state.Rate,
		ValueDelta: st.Value.Sub(state.Value),
	}, nil
}

// Rebase collapses any layers into a single average
func (s *MovingAverageCostStrategy) Rebase(state strategy.CostState) strategy.CostState {
	st := strategy.NewCostState(strategy.CostMethodMovingAverage)
	st.Qty = state.Qty
	st.Value = state.Value
	st.Rate = state.Rate
	if state.Qty.IsPositive() {
		st.Rate = state.Value.Div(state.Qty).Round(s.places)
	}
	return st
}

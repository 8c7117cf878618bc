package cost

import (
	"fmt"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// StandardCostStrategy values every movement at the item's fixed standard rate.
// The difference between a supplied receipt rate and the standard is returned as variance.
type StandardCostStrategy struct {
	strategy.BaseStrategy
	places int32
}

// NewStandardCostStrategy creates a new standard cost strategy
func NewStandardCostStrategy(places int32) *StandardCostStrategy {
	if places <= 0 {
		places = DefaultPrecision
	}
	return &StandardCostStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"standard",
			strategy.StrategyTypeCost,
			"Fixed standard cost with price variance",
		),
		places: places,
	}
}

// Method returns the costing method
func (s *StandardCostStrategy) Method() strategy.CostMethod {
	return strategy.CostMethodStandard
}

// Inward ignores the supplied rate and books stock at the standard rate
func (s *StandardCostStrategy) Inward(state strategy.CostState, req strategy.InwardRequest) (strategy.CostOutcome, error) {
	if !req.Qty.IsPositive() {
		return strategy.CostOutcome{}, fmt.Errorf("%w: inward quantity must be positive", shared.ErrValidation)
	}

	std := req.StandardRate
	st := strategy.NewCostState(strategy.CostMethodStandard)
	st.Rate = std
	st.Qty = state.Qty.Add(req.Qty)
	st.Value = state.Value.Add(req.Qty.Mul(std)).Round(s.places)

	variance := decimal.Zero
	if req.Rate.IsPositive() {
		variance = req.Rate.Sub(std).Mul(req.Qty).Round(s.places)
	}

	return strategy.CostOutcome{
		State:      st,
		Rate:       std,
		ValueDelta: st.Value.Sub(state.Value),
		Variance:   variance,
	}, nil
}

// Outward relieves stock at the standard rate
func (s *StandardCostStrategy) Outward(state strategy.CostState, req strategy.OutwardRequest) (strategy.CostOutcome, error) {
	if !req.Qty.IsPositive() {
		return strategy.CostOutcome{}, fmt.Errorf("%w: outward quantity must be positive", shared.ErrValidation)
	}
	if req.Qty.GreaterThan(state.Qty) && !req.AllowNegative {
		return strategy.CostOutcome{}, fmt.Errorf("%w: need %s, balance %s",
			shared.ErrInsufficientStock, req.Qty.String(), state.Qty.String())
	}

	std := req.StandardRate
	st := strategy.NewCostState(strategy.CostMethodStandard)
	st.Rate = std
	st.Qty = state.Qty.Sub(req.Qty)
	if st.Qty.IsZero() {
		st.Value = decimal.Zero
	} else {
		st.Value = state.Value.Sub(req.Qty.Mul(std)).Round(s.places)
	}

	return strategy.CostOutcome{
		State:      st,
		Rate:       std,
		ValueDelta: st.Value.Sub(state.Value),
	}, nil
}

// Rebase drops layers; the engine restates the carried value at the standard rate
func (s *StandardCostStrategy) Rebase(state strategy.CostState) strategy.CostState {
	st := strategy.NewCostState(strategy.CostMethodStandard)
	st.Qty = state.Qty
	st.Value = state.Value
	st.Rate = state.Rate
	return st
}

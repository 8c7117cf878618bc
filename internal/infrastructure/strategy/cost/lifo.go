package cost

import (
	"github.com/erp/stockledger/internal/domain/shared/strategy"
)

// LIFOCostStrategy implements Last-In-First-Out layer costing
type LIFOCostStrategy struct {
	strategy.BaseStrategy
	queue layerQueue
}

// NewLIFOCostStrategy creates a new LIFO cost strategy rounding to the given precision
func NewLIFOCostStrategy(places int32) *LIFOCostStrategy {
	if places <= 0 {
		places = DefaultPrecision
	}
	return &LIFOCostStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"lifo",
			strategy.StrategyTypeCost,
			"Last-In-First-Out cost layers",
		),
		queue: layerQueue{places: places, newestFirst: true},
	}
}

// Method returns the costing method
func (s *LIFOCostStrategy) Method() strategy.CostMethod {
	return strategy.CostMethodLIFO
}

// Inward pushes a new cost layer
func (s *LIFOCostStrategy) Inward(state strategy.CostState, req strategy.InwardRequest) (strategy.CostOutcome, error) {
	return s.queue.inward(state, req)
}

// Outward consumes layers newest first
func (s *LIFOCostStrategy) Outward(state strategy.CostState, req strategy.OutwardRequest) (strategy.CostOutcome, error) {
	return s.queue.outward(state, req)
}

// Rebase turns an averaged state into a single layer
func (s *LIFOCostStrategy) Rebase(state strategy.CostState) strategy.CostState {
	return s.queue.rebase(state, strategy.CostMethodLIFO)
}

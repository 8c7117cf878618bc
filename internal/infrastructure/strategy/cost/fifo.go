package cost

import (
	"github.com/erp/stockledger/internal/domain/shared/strategy"
)

// FIFOCostStrategy implements First-In-First-Out layer costing.
// Outward movements consume the oldest open layer first.
type FIFOCostStrategy struct {
	strategy.BaseStrategy
	queue layerQueue
}

// NewFIFOCostStrategy creates a new FIFO cost strategy rounding to the given precision
func NewFIFOCostStrategy(places int32) *FIFOCostStrategy {
	if places <= 0 {
		places = DefaultPrecision
	}
	return &FIFOCostStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"fifo",
			strategy.StrategyTypeCost,
			"First-In-First-Out cost layers",
		),
		queue: layerQueue{places: places},
	}
}

// Method returns the costing method
func (s *FIFOCostStrategy) Method() strategy.CostMethod {
	return strategy.CostMethodFIFO
}

// Inward pushes a new cost layer
func (s *FIFOCostStrategy) Inward(state strategy.CostState, req strategy.InwardRequest) (strategy.CostOutcome, error) {
	return s.queue.inward(state, req)
}

// Outward consumes layers oldest first
func (s *FIFOCostStrategy) Outward(state strategy.CostState, req strategy.OutwardRequest) (strategy.CostOutcome, error) {
	return s.queue.outward(state, req)
}

// Rebase turns an averaged state into a single layer
func (s *FIFOCostStrategy) Rebase(state strategy.CostState) strategy.CostState {
	return s.queue.rebase(state, strategy.CostMethodFIFO)
}

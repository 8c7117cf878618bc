package strategy

import (
	"github.com/erp/stockledger/internal/domain/shared/strategy"
	"github.com/erp/stockledger/internal/infrastructure/strategy/batch"
	"github.com/erp/stockledger/internal/infrastructure/strategy/cost"
)

// NewRegistryWithDefaults creates a registry holding every costing method and batch policy.
// Rates and values are rounded to places decimals; moving average and FEFO are the defaults.
func NewRegistryWithDefaults(places int32) (*StrategyRegistry, error) {
	r := NewStrategyRegistry()

	movingAvg := cost.NewMovingAverageCostStrategy(places)
	costStrategies := []strategy.CostCalculationStrategy{
		movingAvg,
		cost.NewFIFOCostStrategy(places),
		cost.NewLIFOCostStrategy(places),
		cost.NewStandardCostStrategy(places),
	}
	for _, s := range costStrategies {
		if err := r.RegisterCostStrategy(s); err != nil {
			return nil, err
		}
	}

	fefo := batch.NewFEFOBatchStrategy()
	if err := r.RegisterBatchStrategy(fefo); err != nil {
		return nil, err
	}
	if err := r.RegisterBatchStrategy(batch.NewFIFOBatchStrategy()); err != nil {
		return nil, err
	}

	if err := r.SetDefault(strategy.StrategyTypeCost, movingAvg.Name()); err != nil {
		return nil, err
	}
	if err := r.SetDefault(strategy.StrategyTypeBatch, fefo.Name()); err != nil {
		return nil, err
	}
	return r, nil
}

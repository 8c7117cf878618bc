package cost

import (
	"fmt"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// DefaultPrecision is the number of decimal places rates and values are rounded to
const DefaultPrecision int32 = 4

// layerQueue implements the shared mechanics of FIFO and LIFO costing.
// The only difference between the two is which end of the queue outward movements consume.
type layerQueue struct {
	places      int32
	newestFirst bool
}

func (q layerQueue) inward(state strategy.CostState, req strategy.InwardRequest) (strategy.CostOutcome, error) {
	if !req.Qty.IsPositive() {
		return strategy.CostOutcome{}, fmt.Errorf("%w: inward quantity must be positive", shared.ErrValidation)
	}

	st := state.Clone()
	remaining := req.Qty

	// stock issued ahead of receipt is settled before a new layer opens
	for remaining.IsPositive() && len(st.Layers) > 0 && st.Layers[0].Qty.IsNegative() {
		owed := st.Layers[0].Qty.Neg()
		take := decimal.Min(owed, remaining)
		st.Layers[0].Qty = st.Layers[0].Qty.Add(take)
		if st.Layers[0].Qty.IsZero() {
			st.Layers = st.Layers[1:]
		}
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		st.Layers = append(st.Layers, strategy.CostLayer{
			Qty:           remaining,
			UnitCost:      req.Rate,
			OriginEntryID: req.EntryID,
		})
	}

	q.settle(&st, state.Rate)
	return strategy.CostOutcome{
		State:      st,
		Rate:       req.Rate,
		ValueDelta: st.Value.Sub(state.Value),
	}, nil
}

func (q layerQueue) outward(state strategy.CostState, req strategy.OutwardRequest) (strategy.CostOutcome, error) {
	if !req.Qty.IsPositive() {
		return strategy.CostOutcome{}, fmt.Errorf("%w: outward quantity must be positive", shared.ErrValidation)
	}

	st := state.Clone()
	available := decimal.Zero
	for _, l := range st.Layers {
		if l.Qty.IsPositive() {
			available = available.Add(l.Qty)
		}
	}

	if req.Qty.GreaterThan(available) {
		if !req.AllowNegative || req.NegativePolicy != strategy.NegativeStockLastRate {
			return strategy.CostOutcome{}, fmt.Errorf("%w: need %s, cost layers hold %s",
				shared.ErrInsufficientStock, req.Qty.String(), available.String())
		}
	}

	need := req.Qty
	consumed := decimal.Zero
	lastCost := state.Rate

	for need.IsPositive() {
		idx := q.nextLayer(st.Layers)
		if idx < 0 {
			break
		}
		layer := &st.Layers[idx]
		take := decimal.Min(layer.Qty, need)
		consumed = consumed.Add(take.Mul(layer.UnitCost))
		lastCost = layer.UnitCost
		layer.Qty = layer.Qty.Sub(take)
		need = need.Sub(take)
		if layer.Qty.IsZero() {
			st.Layers = append(st.Layers[:idx], st.Layers[idx+1:]...)
		}
	}

	if need.IsPositive() {
		consumed = consumed.Add(need.Mul(lastCost))
		st.Layers = append(st.Layers, strategy.CostLayer{
			Qty:           need.Neg(),
			UnitCost:      lastCost,
			OriginEntryID: req.EntryID,
		})
	}

	q.settle(&st, state.Rate)
	return strategy.CostOutcome{
		State:      st,
		Rate:       consumed.Div(req.Qty).Round(q.places),
		ValueDelta: st.Value.Sub(state.Value),
	}, nil
}

// nextLayer returns the index of the next positive layer to consume, or -1
func (q layerQueue) nextLayer(layers []strategy.CostLayer) int {
	if q.newestFirst {
		for i := len(layers) - 1; i >= 0; i-- {
			if layers[i].Qty.IsPositive() {
				return i
			}
		}
		return -1
	}
	for i := range layers {
		if layers[i].Qty.IsPositive() {
			return i
		}
	}
	return -1
}

// settle recomputes quantity, value and valuation rate from the layers
func (q layerQueue) settle(st *strategy.CostState, previousRate decimal.Decimal) {
	if len(st.Layers) == 0 {
		st.Layers = nil
	}
	st.Qty = st.LayerQty()
	st.Value = st.LayerValue().Round(q.places)
	if st.Qty.IsPositive() {
		st.Rate = st.Value.Div(st.Qty).Round(q.places)
	} else if len(st.Layers) > 0 {
		st.Rate = st.Layers[len(st.Layers)-1].UnitCost
	} else {
		st.Rate = previousRate
	}
}

func (q layerQueue) rebase(state strategy.CostState, method strategy.CostMethod) strategy.CostState {
	st := strategy.CostState{
		Method: method,
		Qty:    state.Qty,
		Value:  state.Value,
		Rate:   state.Rate,
	}
	if state.Method.UsesLayers() {
		st.Layers = state.Clone().Layers
		return st
	}
	if !state.Qty.IsZero() {
		unitCost := state.Rate
		if !state.Value.IsZero() {
			unitCost = state.Value.Div(state.Qty).Round(q.places)
		}
		st.Layers = []strategy.CostLayer{{Qty: state.Qty, UnitCost: unitCost}}
	}
	q.settle(&st, state.Rate)
	return st
}

package strategy

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CostMethod represents the inventory costing method
type CostMethod string

const (
	CostMethodMovingAverage CostMethod = "moving_average"
	CostMethodFIFO          CostMethod = "fifo"
	CostMethodLIFO          CostMethod = "lifo"
	CostMethodStandard      CostMethod = "standard"
)

// String returns the string representation of the cost method
func (m CostMethod) String() string {
	return string(m)
}

// IsValid returns true for the supported costing methods
func (m CostMethod) IsValid() bool {
	switch m {
	case CostMethodMovingAverage, CostMethodFIFO, CostMethodLIFO, CostMethodStandard:
		return true
	default:
		return false
	}
}

// UsesLayers returns true when the method values stock as a queue of cost layers
func (m CostMethod) UsesLayers() bool {
	return m == CostMethodFIFO || m == CostMethodLIFO
}

// NegativeStockPolicy decides how layer-based methods value a shortfall
// when an item allows negative stock.
type NegativeStockPolicy string

const (
	// NegativeStockReject refuses any layer shortfall, even if the item allows negative stock
	NegativeStockReject NegativeStockPolicy = "reject"
	// NegativeStockLastRate books the shortfall as a negative layer at the last known unit cost
	NegativeStockLastRate NegativeStockPolicy = "last_rate"
)

// IsValid returns true for the supported policies
func (p NegativeStockPolicy) IsValid() bool {
	return p == NegativeStockReject || p == NegativeStockLastRate
}

// CostLayer is an unconsumed inward lot with its own unit cost.
// A negative Qty represents stock issued ahead of receipt.
type CostLayer struct {
	Qty           decimal.Decimal `json:"qty"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	OriginEntryID uuid.UUID       `json:"origin_entry_id"`
}

// Value returns the layer's monetary value
func (l CostLayer) Value() decimal.Decimal {
	return l.Qty.Mul(l.UnitCost)
}

// CostState is the derived valuation state of one stock key at a point in its timeline.
// It is a cache and can always be rebuilt by folding the key's ledger entries.
type CostState struct {
	Method CostMethod      `json:"method"`
	Qty    decimal.Decimal `json:"qty"`
	Value  decimal.Decimal `json:"value"`
	Rate   decimal.Decimal `json:"rate"`
	Layers []CostLayer     `json:"layers,omitempty"`
}

// NewCostState returns an empty state for a method
func NewCostState(method CostMethod) CostState {
	return CostState{
		Method: method,
		Qty:    decimal.Zero,
		Value:  decimal.Zero,
		Rate:   decimal.Zero,
	}
}

// Clone returns a deep copy so strategies never mutate a caller's layers
func (s CostState) Clone() CostState {
	out := s
	if s.Layers != nil {
		out.Layers = make([]CostLayer, len(s.Layers))
		copy(out.Layers, s.Layers)
	}
	return out
}

// LayerQty sums the quantity held in layers
func (s CostState) LayerQty() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Layers {
		total = total.Add(l.Qty)
	}
	return total
}

// LayerValue sums the value held in layers
func (s CostState) LayerValue() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Layers {
		total = total.Add(l.Value())
	}
	return total
}

// InwardRequest describes an inward movement in stock units
type InwardRequest struct {
	EntryID      uuid.UUID
	Qty          decimal.Decimal // positive
	Rate         decimal.Decimal
	StandardRate decimal.Decimal
}

// OutwardRequest describes an outward movement in stock units
type OutwardRequest struct {
	EntryID        uuid.UUID
	Qty            decimal.Decimal // positive magnitude
	StandardRate   decimal.Decimal
	AllowNegative  bool
	NegativePolicy NegativeStockPolicy
}

// CostOutcome is the result of applying one movement to a cost state
type CostOutcome struct {
	State CostState
	// Rate is the incoming rate for inward movements and the blended outgoing rate for outward ones
	Rate decimal.Decimal
	// ValueDelta is the signed change in stock value
	ValueDelta decimal.Decimal
	// Variance is the purchase price variance booked by standard costing
	Variance decimal.Decimal
}

// CostCalculationStrategy computes valuation for one costing method
type CostCalculationStrategy interface {
	Strategy
	// Method returns the costing method used by this strategy
	Method() CostMethod
	// Inward applies a receipt to the state
	Inward(state CostState, req InwardRequest) (CostOutcome, error)
	// Outward applies an issue to the state
	Outward(state CostState, req OutwardRequest) (CostOutcome, error)
	// Rebase converts a state built by another method into this method's shape,
	// keeping quantity and value
	Rebase(state CostState) CostState
}

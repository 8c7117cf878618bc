package service

import (
	"fmt"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// NormalizedMovement is a movement quantity and rate expressed in the item's stock unit
type NormalizedMovement struct {
	SourceUnit string
	StockUnit  string
	Factor     decimal.Decimal
	Qty        decimal.Decimal
	Rate       decimal.Decimal
	HasRate    bool
}

// UnitCatalog resolves a unit code for an item.
// The item's own stock unit always resolves with factor 1.
type UnitCatalog interface {
	StockUnit() string
	UnitFor(code string) (valueobject.Unit, bool)
}

// UOMNormalizer converts movement quantities into the item's stock unit
// before any other ledger component sees them.
type UOMNormalizer struct {
	places int32
}

// NewUOMNormalizer creates a normalizer rounding to the given number of decimal places
func NewUOMNormalizer(places int32) *UOMNormalizer {
	if places <= 0 {
		places = 4
	}
	return &UOMNormalizer{places: places}
}

// Normalize converts a signed quantity (and optional per-unit rate) from unitCode into stock units.
// An empty unitCode means the quantity is already in stock units.
func (n *UOMNormalizer) Normalize(catalog UnitCatalog, unitCode string, qty decimal.Decimal, rate *decimal.Decimal) (NormalizedMovement, error) {
	stockUnit := catalog.StockUnit()
	if unitCode == "" {
		unitCode = stockUnit
	}

	unit, ok := catalog.UnitFor(unitCode)
	if !ok {
		return NormalizedMovement{}, fmt.Errorf("%w: unit %s has no conversion to %s", shared.ErrValidation, unitCode, stockUnit)
	}

	out := NormalizedMovement{
		SourceUnit: unit.Code(),
		StockUnit:  stockUnit,
		Factor:     unit.ConversionRate(),
		Qty:        unit.ToBase(qty, n.places),
	}
	if rate != nil {
		if rate.IsNegative() {
			return NormalizedMovement{}, fmt.Errorf("%w: rate cannot be negative", shared.ErrValidation)
		}
		out.Rate = unit.RateToBase(*rate, n.places)
		out.HasRate = true
	}
	if out.Qty.IsZero() {
		return NormalizedMovement{}, shared.ErrNoOpMovement
	}
	return out, nil
}

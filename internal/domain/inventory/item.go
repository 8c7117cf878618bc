package inventory

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/strategy"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UOMConversion converts one unit of UOM into Factor stock units of an item
type UOMConversion struct {
	ID       uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ItemCode string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_uom_item_unit" json:"item_code"`
	UOM      string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_uom_item_unit" json:"uom"`
	Factor   decimal.Decimal `gorm:"type:decimal(28,8);not null" json:"factor"`
}

// TableName returns the table name for GORM
func (UOMConversion) TableName() string {
	return "item_uom_conversions"
}

// CostMethodChange records a forward-only switch of an item's costing method
type CostMethodChange struct {
	ID             uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	ItemCode       string              `gorm:"type:varchar(100);not null;index" json:"item_code"`
	PreviousMethod strategy.CostMethod `gorm:"type:varchar(20);not null" json:"previous_method"`
	Method         strategy.CostMethod `gorm:"type:varchar(20);not null" json:"method"`
	EffectiveFrom  time.Time           `gorm:"not null" json:"effective_from"`
}

// TableName returns the table name for GORM
func (CostMethodChange) TableName() string {
	return "item_cost_method_changes"
}

// Item is the stock-keeping master record a ledger key belongs to
type Item struct {
	shared.BaseEntity
	Code               string              `gorm:"type:varchar(100);not null;uniqueIndex" json:"code"`
	Name               string              `gorm:"type:varchar(200)" json:"name"`
	StockUOM           string              `gorm:"type:varchar(20);not null" json:"stock_uom"`
	CostMethod         strategy.CostMethod `gorm:"type:varchar(20);not null" json:"cost_method"`
	HasBatchNo         bool                `gorm:"not null;default:false" json:"has_batch_no"`
	HasSerialNo        bool                `gorm:"not null;default:false" json:"has_serial_no"`
	MinQty             decimal.Decimal     `gorm:"type:decimal(28,8);not null;default:0" json:"min_qty"`
	MaxQty             decimal.Decimal     `gorm:"type:decimal(28,8);not null;default:0" json:"max_qty"`
	AllowNegativeStock bool                `gorm:"not null;default:false" json:"allow_negative_stock"`
	AllowZeroValuation bool                `gorm:"not null;default:false" json:"allow_zero_valuation"`
	StandardRate       decimal.Decimal     `gorm:"type:decimal(28,8);not null;default:0" json:"standard_rate"`
	Disabled           bool                `gorm:"not null;default:false" json:"disabled"`
	Conversions        []UOMConversion     `gorm:"foreignKey:ItemCode;references:Code" json:"conversions,omitempty"`
	CostMethodChanges  []CostMethodChange  `gorm:"foreignKey:ItemCode;references:Code" json:"cost_method_changes,omitempty"`
}

// TableName returns the table name for GORM
func (Item) TableName() string {
	return "items"
}

// NewItem creates a new item valued with the given costing method
func NewItem(code, name, stockUOM string, method strategy.CostMethod) (*Item, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: item code cannot be empty", shared.ErrValidation)
	}
	unit, err := valueobject.NewBaseUnit(stockUOM)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if method == "" {
		method = strategy.CostMethodMovingAverage
	}
	if !method.IsValid() {
		return nil, fmt.Errorf("%w: unknown costing method %q", shared.ErrValidation, method)
	}

	return &Item{
		BaseEntity:   shared.NewBaseEntity(),
		Code:         code,
		Name:         name,
		StockUOM:     unit.Code(),
		CostMethod:   method,
		MinQty:       decimal.Zero,
		MaxQty:       decimal.Zero,
		StandardRate: decimal.Zero,
	}, nil
}

// StockUnit returns the unit all ledger quantities of the item are kept in
func (i *Item) StockUnit() string {
	return i.StockUOM
}

// UnitFor resolves a unit code to its conversion into the stock unit
func (i *Item) UnitFor(code string) (valueobject.Unit, bool) {
	code = strings.TrimSpace(strings.ToUpper(code))
	if code == i.StockUOM {
		u, err := valueobject.NewBaseUnit(code)
		return u, err == nil
	}
	for _, c := range i.Conversions {
		if c.UOM == code {
			u, err := valueobject.NewUnit(c.UOM, c.Factor)
			return u, err == nil
		}
	}
	return valueobject.Unit{}, false
}

// AddConversion registers or replaces a UOM conversion factor
func (i *Item) AddConversion(uom string, factor decimal.Decimal) error {
	unit, err := valueobject.NewUnit(uom, factor)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if unit.Code() == i.StockUOM {
		return fmt.Errorf("%w: %s is the stock unit", shared.ErrValidation, unit.Code())
	}
	for idx := range i.Conversions {
		if i.Conversions[idx].UOM == unit.Code() {
			i.Conversions[idx].Factor = factor
			i.Touch()
			return nil
		}
	}
	i.Conversions = append(i.Conversions, UOMConversion{
		ID:       uuid.New(),
		ItemCode: i.Code,
		UOM:      unit.Code(),
		Factor:   factor,
	})
	i.Touch()
	return nil
}

// SetReorderBounds sets the reorder thresholds. A zero MaxQty means no upper bound.
func (i *Item) SetReorderBounds(minQty, maxQty decimal.Decimal) error {
	if minQty.IsNegative() || maxQty.IsNegative() {
		return fmt.Errorf("%w: reorder bounds cannot be negative", shared.ErrValidation)
	}
	if maxQty.IsPositive() && minQty.GreaterThan(maxQty) {
		return fmt.Errorf("%w: min qty %s exceeds max qty %s", shared.ErrValidation, minQty, maxQty)
	}
	i.MinQty = minQty
	i.MaxQty = maxQty
	i.Touch()
	return nil
}

// SetStandardRate sets the rate used by standard costing
func (i *Item) SetStandardRate(rate decimal.Decimal) error {
	if rate.IsNegative() {
		return fmt.Errorf("%w: standard rate cannot be negative", shared.ErrValidation)
	}
	i.StandardRate = rate
	i.Touch()
	return nil
}

// CostMethodAt returns the costing method in force at a posting time
func (i *Item) CostMethodAt(at time.Time) strategy.CostMethod {
	if len(i.CostMethodChanges) == 0 {
		return i.CostMethod
	}
	changes := i.sortedChanges()
	method := changes[0].PreviousMethod
	for _, c := range changes {
		if c.EffectiveFrom.After(at) {
			break
		}
		method = c.Method
	}
	return method
}

// ChangeCostMethod switches the costing method from effectiveFrom onwards.
// Entries posted before effectiveFrom keep their original valuation.
func (i *Item) ChangeCostMethod(method strategy.CostMethod, effectiveFrom time.Time) error {
	if !method.IsValid() {
		return fmt.Errorf("%w: unknown costing method %q", shared.ErrValidation, method)
	}
	if method == i.CostMethod {
		return fmt.Errorf("%w: item %s already uses %s", shared.ErrInvalidState, i.Code, method)
	}
	if n := len(i.CostMethodChanges); n > 0 {
		last := i.sortedChanges()[n-1]
		if !effectiveFrom.After(last.EffectiveFrom) {
			return fmt.Errorf("%w: costing method changes must move forward in time", shared.ErrValidation)
		}
	}
	i.CostMethodChanges = append(i.CostMethodChanges, CostMethodChange{
		ID:             uuid.New(),
		ItemCode:       i.Code,
		PreviousMethod: i.CostMethod,
		Method:         method,
		EffectiveFrom:  effectiveFrom,
	})
	i.CostMethod = method
	i.Touch()
	return nil
}

func (i *Item) sortedChanges() []CostMethodChange {
	changes := make([]CostMethodChange, len(i.CostMethodChanges))
	copy(changes, i.CostMethodChanges)
	sort.SliceStable(changes, func(a, b int) bool {
		return changes[a].EffectiveFrom.Before(changes[b].EffectiveFrom)
	})
	return changes
}

// IsTracked returns true when the item's stock is split by batch or serial
func (i *Item) IsTracked() bool {
	return i.HasBatchNo || i.HasSerialNo
}

// EnsureActive fails when the item is disabled
func (i *Item) EnsureActive() error {
	if i.Disabled {
		return fmt.Errorf("%w: item %s", shared.ErrDisabled, i.Code)
	}
	return nil
}

// Disable soft-disables the item
func (i *Item) Disable() {
	i.Disabled = true
	i.Touch()
}

// Enable re-enables a disabled item
func (i *Item) Enable() {
	i.Disabled = false
	i.Touch()
}

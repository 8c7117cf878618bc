package strategy

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Batch is a candidate batch for allocation with its ledger-derived quantity
type Batch struct {
	ItemCode        string
	Warehouse       string
	BatchNo         string
	AvailableQty    decimal.Decimal
	ManufactureDate time.Time
	ExpiryDate      time.Time
	ReceivedDate    time.Time
}

// BatchSelection represents a selection of batch for consumption
type BatchSelection struct {
	BatchNo    string
	Quantity   decimal.Decimal
	ExpiryDate time.Time
}

// BatchSelectionContext provides context for batch selection
type BatchSelectionContext struct {
	ItemCode    string
	Warehouse   string
	Quantity    decimal.Decimal
	Date        time.Time
	PreferBatch string // optional: batch to consume first
}

// BatchSelectionResult contains the result of batch selection
type BatchSelectionResult struct {
	Selections   []BatchSelection
	TotalQty     decimal.Decimal
	ShortfallQty decimal.Decimal
}

// BatchManagementStrategy defines the interface for batch selection
type BatchManagementStrategy interface {
	Strategy
	// SelectBatches selects batches for consumption based on strategy rules
	SelectBatches(ctx context.Context, selCtx BatchSelectionContext, batches []Batch) (BatchSelectionResult, error)
	// ConsidersExpiry returns true if the strategy skips expired batches
	ConsidersExpiry() bool
	// SupportsFEFO returns true if the strategy is First Expired First Out
	SupportsFEFO() bool
}

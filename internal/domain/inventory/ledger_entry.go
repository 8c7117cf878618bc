package inventory

import (
	"fmt"
	"sort"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType classifies a physical stock movement
type MovementType string

const (
	MovementReceipt     MovementType = "receipt"
	MovementIssue       MovementType = "issue"
	MovementConsumption MovementType = "consumption"
	MovementScrap       MovementType = "scrap"
	MovementTransfer    MovementType = "transfer"
	MovementReturn      MovementType = "return"
	MovementAdjustment  MovementType = "adjustment"
)

// IsValid returns true for known movement types
func (m MovementType) IsValid() bool {
	switch m {
	case MovementReceipt, MovementIssue, MovementConsumption, MovementScrap,
		MovementTransfer, MovementReturn, MovementAdjustment:
		return true
	default:
		return false
	}
}

// ValidateSign checks that the signed quantity matches the movement direction
func (m MovementType) ValidateSign(qty decimal.Decimal) error {
	if qty.IsZero() {
		return shared.ErrNoOpMovement
	}
	switch m {
	case MovementReceipt, MovementReturn:
		if qty.IsNegative() {
			return fmt.Errorf("%w: %s must be inward", shared.ErrValidation, m)
		}
	case MovementIssue, MovementConsumption, MovementScrap:
		if qty.IsPositive() {
			return fmt.Errorf("%w: %s must be outward", shared.ErrValidation, m)
		}
	case MovementTransfer, MovementAdjustment:
	default:
		return fmt.Errorf("%w: unknown movement type %q", shared.ErrValidation, m)
	}
	return nil
}

// SerialOutcome is the status a serial ends in after an outward movement of this type
func (m MovementType) SerialOutcome() SerialStatus {
	switch m {
	case MovementConsumption:
		return SerialStatusConsumed
	case MovementScrap, MovementAdjustment:
		return SerialStatusScrapped
	default:
		return SerialStatusDelivered
	}
}

// Position is a point in a key's timeline, ordered by posting time then sequence
type Position struct {
	At       time.Time
	Sequence int64
}

// Before reports whether p sorts before o
func (p Position) Before(o Position) bool {
	if !p.At.Equal(o.At) {
		return p.At.Before(o.At)
	}
	return p.Sequence < o.Sequence
}

// LedgerEntry is one immutable stock movement of a key.
// Only the derived valuation fields and the cancellation flag change after insertion.
type LedgerEntry struct {
	ID              uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	PostingID       uuid.UUID    `gorm:"type:uuid;not null;index" json:"posting_id"`
	VoucherType     string       `gorm:"type:varchar(50);not null;index:idx_sle_voucher" json:"voucher_type"`
	VoucherRef      string       `gorm:"type:varchar(100);index:idx_sle_voucher" json:"voucher_ref"`
	MovementType    MovementType `gorm:"type:varchar(20);not null" json:"movement_type"`
	ItemCode        string       `gorm:"type:varchar(100);not null;uniqueIndex:idx_sle_key_seq,priority:1;index:idx_sle_key_time,priority:1" json:"item_code"`
	Warehouse       string       `gorm:"type:varchar(100);not null;uniqueIndex:idx_sle_key_seq,priority:2;index:idx_sle_key_time,priority:2" json:"warehouse"`
	BatchNo         string       `gorm:"type:varchar(100);not null;default:'';uniqueIndex:idx_sle_key_seq,priority:3;index:idx_sle_key_time,priority:3" json:"batch_no,omitempty"`
	SerialNo        string       `gorm:"type:varchar(100);not null;default:'';uniqueIndex:idx_sle_key_seq,priority:4;index:idx_sle_key_time,priority:4" json:"serial_no,omitempty"`
	PostingDateTime time.Time    `gorm:"not null;index:idx_sle_key_time,priority:5" json:"posting_datetime"`
	Sequence        int64        `gorm:"not null;uniqueIndex:idx_sle_key_seq,priority:5" json:"sequence"`

	Qty decimal.Decimal `gorm:"type:decimal(28,8);not null" json:"qty"`
	// IncomingRate is the supplied rate of an inward movement.
	// When AutoRate is set it is resolved from the key's valuation rate at the entry's position.
	IncomingRate         decimal.Decimal `gorm:"type:decimal(28,8);not null;default:0" json:"incoming_rate"`
	AutoRate             bool            `gorm:"not null;default:false" json:"auto_rate"`
	OutgoingRate         decimal.Decimal `gorm:"type:decimal(28,8);not null;default:0" json:"outgoing_rate"`
	ValuationRate        decimal.Decimal `gorm:"type:decimal(28,8);not null;default:0" json:"valuation_rate"`
	BalanceQty           decimal.Decimal `gorm:"type:decimal(28,8);not null;default:0" json:"balance_qty"`
	BalanceValue         decimal.Decimal `gorm:"type:decimal(28,8);not null;default:0" json:"balance_value"`
	StockValueDifference decimal.Decimal `gorm:"type:decimal(28,8);not null;default:0" json:"stock_value_difference"`
	PriceVariance        decimal.Decimal `gorm:"type:decimal(28,8);not null;default:0" json:"price_variance"`

	IsCancelled bool       `gorm:"not null;default:false;index" json:"is_cancelled"`
	ReversalOf  *uuid.UUID `gorm:"type:uuid;index" json:"reversal_of,omitempty"`

	PrevSerialStatus    SerialStatus `gorm:"type:varchar(20)" json:"-"`
	PrevSerialWarehouse string       `gorm:"type:varchar(100)" json:"-"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// TableName returns the table name for GORM
func (LedgerEntry) TableName() string {
	return "stock_ledger_entries"
}

// NewLedgerEntry creates an entry for a key. Sequence is assigned by the store on append.
func NewLedgerEntry(
	postingID uuid.UUID,
	key StockKey,
	movement MovementType,
	postingTime time.Time,
	qty decimal.Decimal,
	voucherType, voucherRef string,
) *LedgerEntry {
	return &LedgerEntry{
		ID:                   uuid.New(),
		PostingID:            postingID,
		VoucherType:          voucherType,
		VoucherRef:           voucherRef,
		MovementType:         movement,
		ItemCode:             key.ItemCode,
		Warehouse:            key.Warehouse,
		BatchNo:              key.BatchNo,
		SerialNo:             key.SerialNo,
		PostingDateTime:      postingTime,
		Qty:                  qty,
		IncomingRate:         decimal.Zero,
		OutgoingRate:         decimal.Zero,
		ValuationRate:        decimal.Zero,
		BalanceQty:           decimal.Zero,
		BalanceValue:         decimal.Zero,
		StockValueDifference: decimal.Zero,
		PriceVariance:        decimal.Zero,
		CreatedAt:            time.Now(),
	}
}

// Key returns the stock key the entry belongs to
func (e *LedgerEntry) Key() StockKey {
	return StockKey{
		ItemCode:  e.ItemCode,
		Warehouse: e.Warehouse,
		BatchNo:   e.BatchNo,
		SerialNo:  e.SerialNo,
	}
}

// Position returns the entry's place in its key timeline
func (e *LedgerEntry) Position() Position {
	return Position{At: e.PostingDateTime, Sequence: e.Sequence}
}

// IsInward returns true for entries that add stock
func (e *LedgerEntry) IsInward() bool {
	return e.Qty.IsPositive()
}

// IsReversal returns true for the mirror entry appended by a cancellation
func (e *LedgerEntry) IsReversal() bool {
	return e.ReversalOf != nil
}

// Counts reports whether the entry contributes to balances
func (e *LedgerEntry) Counts() bool {
	return !e.IsCancelled
}

// NewReversal builds the mirror entry of a cancellation.
// The reversal shares the original's posting time and is itself flagged cancelled.
func (e *LedgerEntry) NewReversal() *LedgerEntry {
	rev := NewLedgerEntry(e.PostingID, e.Key(), e.MovementType, e.PostingDateTime, e.Qty.Neg(), e.VoucherType, e.VoucherRef)
	origID := e.ID
	rev.ReversalOf = &origID
	rev.IncomingRate = e.IncomingRate
	rev.IsCancelled = true
	return rev
}

// Clone returns a copy safe to mutate
func (e *LedgerEntry) Clone() *LedgerEntry {
	out := *e
	if e.ReversalOf != nil {
		id := *e.ReversalOf
		out.ReversalOf = &id
	}
	return &out
}

// SameDerived reports whether two entries carry identical derived valuation fields
func (e *LedgerEntry) SameDerived(o *LedgerEntry) bool {
	return e.ValuationRate.Equal(o.ValuationRate) &&
		e.OutgoingRate.Equal(o.OutgoingRate) &&
		e.BalanceQty.Equal(o.BalanceQty) &&
		e.BalanceValue.Equal(o.BalanceValue) &&
		e.StockValueDifference.Equal(o.StockValueDifference) &&
		e.PriceVariance.Equal(o.PriceVariance)
}

// SortEntries orders entries by posting time then sequence
func SortEntries(entries []*LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Position().Before(entries[j].Position())
	})
}

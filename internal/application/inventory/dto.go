package inventory

import (
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementCommand posts one physical movement. Qty is signed: positive inward, negative outward.
type MovementCommand struct {
	ItemCode        string                 `json:"item_code"`
	Warehouse       string                 `json:"warehouse"`
	BatchNo         string                 `json:"batch_no,omitempty"`
	SerialNos       []string               `json:"serial_nos,omitempty"`
	MovementType    inventory.MovementType `json:"movement_type"`
	Qty             decimal.Decimal        `json:"qty"`
	UOM             string                 `json:"uom,omitempty"`
	Rate            *decimal.Decimal       `json:"rate,omitempty"`
	PostingDateTime time.Time              `json:"posting_datetime"`
	VoucherType     string                 `json:"voucher_type"`
	VoucherRef      string                 `json:"voucher_ref"`
	IdempotencyKey  string                 `json:"idempotency_key,omitempty"`
}

// TransferCommand moves stock between two warehouses in one unit of work
type TransferCommand struct {
	ItemCode        string          `json:"item_code"`
	FromWarehouse   string          `json:"from_warehouse"`
	ToWarehouse     string          `json:"to_warehouse"`
	BatchNo         string          `json:"batch_no,omitempty"`
	SerialNos       []string        `json:"serial_nos,omitempty"`
	Qty             decimal.Decimal `json:"qty"`
	UOM             string          `json:"uom,omitempty"`
	PostingDateTime time.Time       `json:"posting_datetime"`
	VoucherRef      string          `json:"voucher_ref"`
	IdempotencyKey  string          `json:"idempotency_key,omitempty"`
}

// CancelOptions tunes a cancellation
type CancelOptions struct {
	Reason string `json:"reason,omitempty"`
	// WholePosting cancels every entry created by the same command.
	// Transfers are always cancelled as a whole.
	WholePosting bool `json:"whole_posting,omitempty"`
}

// LedgerEntryDTO is the external view of a ledger entry
type LedgerEntryDTO struct {
	ID                   uuid.UUID              `json:"id"`
	PostingID            uuid.UUID              `json:"posting_id"`
	ItemCode             string                 `json:"item_code"`
	Warehouse            string                 `json:"warehouse"`
	BatchNo              string                 `json:"batch_no,omitempty"`
	SerialNo             string                 `json:"serial_no,omitempty"`
	MovementType         inventory.MovementType `json:"movement_type"`
	VoucherType          string                 `json:"voucher_type"`
	VoucherRef           string                 `json:"voucher_ref"`
	PostingDateTime      time.Time              `json:"posting_datetime"`
	Sequence             int64                  `json:"sequence"`
	Qty                  decimal.Decimal        `json:"qty"`
	IncomingRate         decimal.Decimal        `json:"incoming_rate"`
	OutgoingRate         decimal.Decimal        `json:"outgoing_rate"`
	ValuationRate        decimal.Decimal        `json:"valuation_rate"`
	BalanceQty           decimal.Decimal        `json:"balance_qty"`
	BalanceValue         decimal.Decimal        `json:"balance_value"`
	StockValueDifference decimal.Decimal        `json:"stock_value_difference"`
	PriceVariance        decimal.Decimal        `json:"price_variance"`
	IsCancelled          bool                   `json:"is_cancelled"`
	ReversalOf           *uuid.UUID             `json:"reversal_of,omitempty"`
}

// ToLedgerEntryDTO converts a domain entry
func ToLedgerEntryDTO(e *inventory.LedgerEntry) LedgerEntryDTO {
	return LedgerEntryDTO{
		ID:                   e.ID,
		PostingID:            e.PostingID,
		ItemCode:             e.ItemCode,
		Warehouse:            e.Warehouse,
		BatchNo:              e.BatchNo,
		SerialNo:             e.SerialNo,
		MovementType:         e.MovementType,
		VoucherType:          e.VoucherType,
		VoucherRef:           e.VoucherRef,
		PostingDateTime:      e.PostingDateTime,
		Sequence:             e.Sequence,
		Qty:                  e.Qty,
		IncomingRate:         e.IncomingRate,
		OutgoingRate:         e.OutgoingRate,
		ValuationRate:        e.ValuationRate,
		BalanceQty:           e.BalanceQty,
		BalanceValue:         e.BalanceValue,
		StockValueDifference: e.StockValueDifference,
		PriceVariance:        e.PriceVariance,
		IsCancelled:          e.IsCancelled,
		ReversalOf:           e.ReversalOf,
	}
}

// PostingResult reports what a movement or transfer wrote.
// A deferred posting wrote nothing yet and carries the ticket that will.
type PostingResult struct {
	PostingID uuid.UUID        `json:"posting_id"`
	EntryIDs  []uuid.UUID      `json:"entry_ids"`
	Entries   []LedgerEntryDTO `json:"entries"`
	Reposted  bool             `json:"reposted"`
	Replayed  int              `json:"replayed"`
	Deferred  bool             `json:"deferred"`
	Ticket    *RepostTicket    `json:"ticket,omitempty"`
}

// CancelResult reports a cancellation
type CancelResult struct {
	CancelledIDs []uuid.UUID   `json:"cancelled_ids"`
	ReversalIDs  []uuid.UUID   `json:"reversal_ids"`
	Replayed     int           `json:"replayed"`
	Deferred     bool          `json:"deferred"`
	Ticket       *RepostTicket `json:"ticket,omitempty"`
}

// BalanceDTO is the balance of a key at a point in time
type BalanceDTO struct {
	Key           inventory.StockKey `json:"key"`
	AsOf          time.Time          `json:"as_of"`
	Qty           decimal.Decimal    `json:"qty"`
	Value         decimal.Decimal    `json:"value"`
	ValuationRate decimal.Decimal    `json:"valuation_rate"`
	LastEntryID   *uuid.UUID         `json:"last_entry_id,omitempty"`
}

// ValuationLineDTO is one key inside a valuation summary
type ValuationLineDTO struct {
	Key           inventory.StockKey `json:"key"`
	Qty           decimal.Decimal    `json:"qty"`
	Value         decimal.Decimal    `json:"value"`
	ValuationRate decimal.Decimal    `json:"valuation_rate"`
	ReservedQty   decimal.Decimal    `json:"reserved_qty"`
}

// ValuationSummaryDTO aggregates an item across sub-keys and child warehouses
type ValuationSummaryDTO struct {
	ItemCode      string             `json:"item_code"`
	Warehouse     string             `json:"warehouse,omitempty"`
	Qty           decimal.Decimal    `json:"qty"`
	Value         decimal.Decimal    `json:"value"`
	ValuationRate decimal.Decimal    `json:"valuation_rate"`
	ReservedQty   decimal.Decimal    `json:"reserved_qty"`
	AvailableQty  decimal.Decimal    `json:"available_qty"`
	Lines         []ValuationLineDTO `json:"lines"`
}

// VerifyResult compares stored derived fields against a fresh fold of the key
type VerifyResult struct {
	Key           inventory.StockKey `json:"key"`
	Entries       int                `json:"entries"`
	StoredQty     decimal.Decimal    `json:"stored_qty"`
	StoredValue   decimal.Decimal    `json:"stored_value"`
	RefoldedQty   decimal.Decimal    `json:"refolded_qty"`
	RefoldedValue decimal.Decimal    `json:"refolded_value"`
	Drift         bool               `json:"drift"`
	Mismatched    []uuid.UUID        `json:"mismatched,omitempty"`
}

// ReserveCommand holds stock of a key for a pending document
type ReserveCommand struct {
	Key        inventory.StockKey `json:"key"`
	Qty        decimal.Decimal    `json:"qty"`
	SourceType string             `json:"source_type"`
	SourceRef  string             `json:"source_ref"`
	TTL        time.Duration      `json:"ttl,omitempty"`
}

// ReservationDTO is the external view of a reservation
type ReservationDTO struct {
	ID            uuid.UUID          `json:"id"`
	Key           inventory.StockKey `json:"key"`
	Qty           decimal.Decimal    `json:"qty"`
	SourceType    string             `json:"source_type"`
	SourceRef     string             `json:"source_ref"`
	ExpireAt      time.Time          `json:"expire_at"`
	Released      bool               `json:"released"`
	ReleasedAt    *time.Time         `json:"released_at,omitempty"`
	ReleaseReason string             `json:"release_reason,omitempty"`
}

// ToReservationDTO converts a domain reservation
func ToReservationDTO(r *inventory.Reservation) ReservationDTO {
	return ReservationDTO{
		ID:            r.ID,
		Key:           r.Key(),
		Qty:           r.Quantity,
		SourceType:    r.SourceType,
		SourceRef:     r.SourceRef,
		ExpireAt:      r.ExpireAt,
		Released:      r.Released,
		ReleasedAt:    r.ReleasedAt,
		ReleaseReason: r.ReleaseReason,
	}
}

// AvailabilityDTO splits a key's balance into reserved and free quantity
type AvailabilityDTO struct {
	Key       inventory.StockKey `json:"key"`
	Balance   decimal.Decimal    `json:"balance"`
	Reserved  decimal.Decimal    `json:"reserved"`
	Available decimal.Decimal    `json:"available"`
}

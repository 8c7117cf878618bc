package inventory

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeStockKey    = "StockKey"
	AggregateTypeReservation = "Reservation"
)

// Event type constants
const (
	EventTypeStockMovementPosted  = "StockMovementPosted"
	EventTypeLedgerEntryCancelled = "LedgerEntryCancelled"
	EventTypeRepostCompleted      = "RepostCompleted"
	EventTypeRepostAborted        = "RepostAborted"
	EventTypeStockBelowMinimum    = "StockBelowMinimum"
	EventTypeStockAboveMaximum    = "StockAboveMaximum"
	EventTypeReservationCreated   = "ReservationCreated"
	EventTypeReservationReleased  = "ReservationReleased"
	EventTypeReservationExpired   = "ReservationExpired"
)

// StockMovementPostedEvent is raised after a ledger entry has been committed
type StockMovementPostedEvent struct {
	shared.BaseDomainEvent
	EntryID              uuid.UUID       `json:"entry_id"`
	PostingID            uuid.UUID       `json:"posting_id"`
	Key                  StockKey        `json:"key"`
	MovementType         MovementType    `json:"movement_type"`
	VoucherType          string          `json:"voucher_type"`
	VoucherRef           string          `json:"voucher_ref"`
	PostingDateTime      time.Time       `json:"posting_datetime"`
	Qty                  decimal.Decimal `json:"qty"`
	ValuationRate        decimal.Decimal `json:"valuation_rate"`
	BalanceQty           decimal.Decimal `json:"balance_qty"`
	BalanceValue         decimal.Decimal `json:"balance_value"`
	StockValueDifference decimal.Decimal `json:"stock_value_difference"`
}

// NewStockMovementPostedEvent creates a StockMovementPostedEvent from a committed entry
func NewStockMovementPostedEvent(e *LedgerEntry) *StockMovementPostedEvent {
	return &StockMovementPostedEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent(EventTypeStockMovementPosted, AggregateTypeStockKey, e.Key().String()),
		EntryID:              e.ID,
		PostingID:            e.PostingID,
		Key:                  e.Key(),
		MovementType:         e.MovementType,
		VoucherType:          e.VoucherType,
		VoucherRef:           e.VoucherRef,
		PostingDateTime:      e.PostingDateTime,
		Qty:                  e.Qty,
		ValuationRate:        e.ValuationRate,
		BalanceQty:           e.BalanceQty,
		BalanceValue:         e.BalanceValue,
		StockValueDifference: e.StockValueDifference,
	}
}

// LedgerEntryCancelledEvent is raised when an entry and its reversal have been committed
type LedgerEntryCancelledEvent struct {
	shared.BaseDomainEvent
	EntryID    uuid.UUID       `json:"entry_id"`
	ReversalID uuid.UUID       `json:"reversal_id"`
	Key        StockKey        `json:"key"`
	Qty        decimal.Decimal `json:"qty"`
	Reason     string          `json:"reason,omitempty"`
}

// NewLedgerEntryCancelledEvent creates a LedgerEntryCancelledEvent
func NewLedgerEntryCancelledEvent(original, reversal *LedgerEntry, reason string) *LedgerEntryCancelledEvent {
	return &LedgerEntryCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerEntryCancelled, AggregateTypeStockKey, original.Key().String()),
		EntryID:         original.ID,
		ReversalID:      reversal.ID,
		Key:             original.Key(),
		Qty:             original.Qty,
		Reason:          reason,
	}
}

// RepostCompletedEvent is raised after downstream entries of a key were recomputed
type RepostCompletedEvent struct {
	shared.BaseDomainEvent
	Key             StockKey   `json:"key"`
	From            time.Time  `json:"from"`
	EntriesReplayed int        `json:"entries_replayed"`
	TicketID        *uuid.UUID `json:"ticket_id,omitempty"`
}

// NewRepostCompletedEvent creates a RepostCompletedEvent
func NewRepostCompletedEvent(key StockKey, from time.Time, replayed int, ticketID *uuid.UUID) *RepostCompletedEvent {
	return &RepostCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRepostCompleted, AggregateTypeStockKey, key.String()),
		Key:             key,
		From:            from,
		EntriesReplayed: replayed,
		TicketID:        ticketID,
	}
}

// RepostAbortedEvent is raised when a deferred correction was rejected
type RepostAbortedEvent struct {
	shared.BaseDomainEvent
	Keys     []StockKey `json:"keys"`
	Reason   string     `json:"reason"`
	TicketID uuid.UUID  `json:"ticket_id"`
}

// NewRepostAbortedEvent creates a RepostAbortedEvent
func NewRepostAbortedEvent(ticketID uuid.UUID, keys []StockKey, reason string) *RepostAbortedEvent {
	return &RepostAbortedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRepostAborted, AggregateTypeStockKey, ticketID.String()),
		Keys:            keys,
		Reason:          reason,
		TicketID:        ticketID,
	}
}

// StockThresholdEvent carries an item-warehouse balance that crossed a reorder bound
type StockThresholdEvent struct {
	shared.BaseDomainEvent
	ItemCode   string          `json:"item_code"`
	Warehouse  string          `json:"warehouse"`
	BalanceQty decimal.Decimal `json:"balance_qty"`
	Threshold  decimal.Decimal `json:"threshold"`
}

// NewStockBelowMinimumEvent creates a StockBelowMinimum event
func NewStockBelowMinimumEvent(itemCode, warehouse string, balance, minQty decimal.Decimal) *StockThresholdEvent {
	return newThresholdEvent(EventTypeStockBelowMinimum, itemCode, warehouse, balance, minQty)
}

// NewStockAboveMaximumEvent creates a StockAboveMaximum event
func NewStockAboveMaximumEvent(itemCode, warehouse string, balance, maxQty decimal.Decimal) *StockThresholdEvent {
	return newThresholdEvent(EventTypeStockAboveMaximum, itemCode, warehouse, balance, maxQty)
}

func newThresholdEvent(eventType, itemCode, warehouse string, balance, threshold decimal.Decimal) *StockThresholdEvent {
	key := StockKey{ItemCode: itemCode, Warehouse: warehouse}
	return &StockThresholdEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeStockKey, key.String()),
		ItemCode:        itemCode,
		Warehouse:       warehouse,
		BalanceQty:      balance,
		Threshold:       threshold,
	}
}

// ReservationEvent carries a reservation lifecycle change
type ReservationEvent struct {
	shared.BaseDomainEvent
	ReservationID uuid.UUID       `json:"reservation_id"`
	Key           StockKey        `json:"key"`
	Quantity      decimal.Decimal `json:"quantity"`
	SourceType    string          `json:"source_type"`
	SourceRef     string          `json:"source_ref"`
	ExpireAt      time.Time       `json:"expire_at"`
	Reason        string          `json:"reason,omitempty"`
}

// NewReservationCreatedEvent creates a ReservationCreated event
func NewReservationCreatedEvent(r *Reservation) *ReservationEvent {
	return newReservationEvent(EventTypeReservationCreated, r)
}

// NewReservationReleasedEvent creates a ReservationReleased event
func NewReservationReleasedEvent(r *Reservation) *ReservationEvent {
	return newReservationEvent(EventTypeReservationReleased, r)
}

// NewReservationExpiredEvent creates a ReservationExpired event
func NewReservationExpiredEvent(r *Reservation) *ReservationEvent {
	return newReservationEvent(EventTypeReservationExpired, r)
}

func newReservationEvent(eventType string, r *Reservation) *ReservationEvent {
	return &ReservationEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeReservation, r.ID.String()),
		ReservationID:   r.ID,
		Key:             r.Key(),
		Quantity:        r.Quantity,
		SourceType:      r.SourceType,
		SourceRef:       r.SourceRef,
		ExpireAt:        r.ExpireAt,
		Reason:          r.ReleaseReason,
	}
}

package inventory

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerFilter narrows a paginated ledger listing
type LedgerFilter struct {
	shared.Filter
	ItemCode      string
	Warehouse     string
	BatchNo       string
	SerialNo      string
	VoucherRef    string
	From          *time.Time
	To            *time.Time
	WithCancelled bool
}

// LedgerRepository is the append-only store of ledger entries.
// Entries of a key are always returned ordered by (PostingDateTime, Sequence).
type LedgerRepository interface {
	// Append assigns the next sequence of the key and stores the entry.
	// It fails with ErrRepostRequired when the entry is earlier than the key's latest entry,
	// and with ErrConcurrencyConflict when another writer took the same sequence.
	Append(ctx context.Context, entry *LedgerEntry) error

	// Insert assigns the next sequence and stores the entry without the chronology check.
	// It is used by the repost path, which recomputes everything after the entry.
	Insert(ctx context.Context, entry *LedgerEntry) error

	// Latest returns the last entry of the key, cancelled or not
	Latest(ctx context.Context, key StockKey) (*LedgerEntry, error)

	// ListByKey returns every entry of the key in timeline order
	ListByKey(ctx context.Context, key StockKey) ([]*LedgerEntry, error)

	// ListAfter returns the entries of the key strictly after pos
	ListAfter(ctx context.Context, key StockKey, pos Position) ([]*LedgerEntry, error)

	// CountAfter counts the entries of the key strictly after pos
	CountAfter(ctx context.Context, key StockKey, pos Position) (int64, error)

	// FindByID finds an entry by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*LedgerEntry, error)

	// FindByPosting returns the entries created by one posting command
	FindByPosting(ctx context.Context, postingID uuid.UUID) ([]*LedgerEntry, error)

	// MarkCancelled flags entries as cancelled
	MarkCancelled(ctx context.Context, ids ...uuid.UUID) error

	// UpdateDerived persists recomputed valuation fields
	UpdateDerived(ctx context.Context, entries []*LedgerEntry) error

	// BalanceAsOf returns the latest non-cancelled entry with PostingDateTime <= asOf
	BalanceAsOf(ctx context.Context, key StockKey, asOf time.Time) (*LedgerEntry, error)

	// ListKeys returns the distinct keys of an item, optionally restricted to warehouses
	ListKeys(ctx context.Context, itemCode string, warehouses []string) ([]StockKey, error)

	// List returns a page of entries matching the filter
	List(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, int64, error)

	// BatchBalances sums non-cancelled quantities per batch of an item in a warehouse
	BatchBalances(ctx context.Context, itemCode, warehouse string) (map[string]decimal.Decimal, error)
}

// ItemRepository persists items with their UOM conversions and costing history
type ItemRepository interface {
	FindByCode(ctx context.Context, code string) (*Item, error)
	Save(ctx context.Context, item *Item) error
	List(ctx context.Context, filter shared.Filter) ([]Item, int64, error)
}

// WarehouseRepository persists warehouses
type WarehouseRepository interface {
	FindByCode(ctx context.Context, code string) (*Warehouse, error)
	FindChildren(ctx context.Context, parentCode string) ([]Warehouse, error)
	Save(ctx context.Context, warehouse *Warehouse) error
	List(ctx context.Context, filter shared.Filter) ([]Warehouse, int64, error)
}

// BatchRepository persists batches
type BatchRepository interface {
	Find(ctx context.Context, itemCode, batchNo string) (*Batch, error)
	ListByItem(ctx context.Context, itemCode string) ([]Batch, error)
	Save(ctx context.Context, batch *Batch) error
}

// SerialNoRepository persists serial numbers
type SerialNoRepository interface {
	Find(ctx context.Context, itemCode, serialNo string) (*SerialNo, error)
	Save(ctx context.Context, serial *SerialNo) error
}

// ReservationRepository persists reservations
type ReservationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)
	// ListActiveByKey returns unreleased reservations of a key, expired ones included
	ListActiveByKey(ctx context.Context, key StockKey) ([]Reservation, error)
	// ListExpired returns up to limit unreleased reservations expired at now
	ListExpired(ctx context.Context, now time.Time, limit int) ([]Reservation, error)
	Save(ctx context.Context, reservation *Reservation) error
}

// TransactionalRepositories exposes repositories sharing one unit of work
type TransactionalRepositories interface {
	Ledger() LedgerRepository
	Items() ItemRepository
	Warehouses() WarehouseRepository
	Batches() BatchRepository
	Serials() SerialNoRepository
	Reservations() ReservationRepository
}

// TransactionScope runs fn in a unit of work that commits only when fn returns nil
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// KeyLocker serializes work per stock key.
// Lock acquires every key in sorted order and returns a function releasing them all.
type KeyLocker interface {
	Lock(ctx context.Context, keys ...StockKey) (unlock func(), err error)
}

// CachedCostState is the cost state of a key after its tail entry
type CachedCostState struct {
	TailEntryID uuid.UUID          `json:"tail_entry_id"`
	State       strategy.CostState `json:"state"`
}

// CostStateCache keeps the incremental cost state of keys.
// A miss or stale tail means the state is rebuilt by folding the ledger.
type CostStateCache interface {
	Get(ctx context.Context, key StockKey) (*CachedCostState, error)
	Put(ctx context.Context, key StockKey, state CachedCostState) error
	Invalidate(ctx context.Context, keys ...StockKey) error
}

// CostStrategyProvider resolves the strategy implementing a costing method
type CostStrategyProvider interface {
	CostStrategyFor(method strategy.CostMethod) (strategy.CostCalculationStrategy, error)
}

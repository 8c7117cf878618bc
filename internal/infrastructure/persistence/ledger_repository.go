package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const timelineOrder = "posting_date_time ASC, sequence ASC"

// GormLedgerRepository implements LedgerRepository using GORM
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// byKey scopes a query to one stock key
func byKey(key inventory.StockKey) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("item_code = ? AND warehouse = ? AND batch_no = ? AND serial_no = ?",
			key.ItemCode, key.Warehouse, key.BatchNo, key.SerialNo)
	}
}

// Append stores an entry at the end of its key timeline
func (r *GormLedgerRepository) Append(ctx context.Context, entry *inventory.LedgerEntry) error {
	return r.write(ctx, entry, true)
}

// Insert stores an entry without the chronology check
func (r *GormLedgerRepository) Insert(ctx context.Context, entry *inventory.LedgerEntry) error {
	return r.write(ctx, entry, false)
}

func (r *GormLedgerRepository) write(ctx context.Context, entry *inventory.LedgerEntry, strict bool) error {
	key := entry.Key()
	if err := key.Validate(); err != nil {
		return err
	}
	entry.PostingDateTime = entry.PostingDateTime.UTC()

	if strict {
		latest, err := r.Latest(ctx, key)
		switch {
		case err == nil:
			if entry.PostingDateTime.Before(latest.PostingDateTime) {
				return fmt.Errorf("%w: %s at %s", shared.ErrRepostRequired, key, entry.PostingDateTime.Format(time.RFC3339))
			}
		case !errors.Is(err, shared.ErrNotFound):
			return err
		}
	}

	var top int64
	if err := r.db.WithContext(ctx).
		Model(&inventory.LedgerEntry{}).
		Scopes(byKey(key)).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&top).Error; err != nil {
		return fmt.Errorf("failed to read sequence of %s: %w", key, err)
	}

	entry.Sequence = top + 1
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: sequence %d of %s was taken", shared.ErrConcurrencyConflict, entry.Sequence, key)
		}
		return fmt.Errorf("failed to store ledger entry: %w", err)
	}
	return nil
}

// Latest returns the last entry of the key, cancelled or not
func (r *GormLedgerRepository) Latest(ctx context.Context, key inventory.StockKey) (*inventory.LedgerEntry, error) {
	var entry inventory.LedgerEntry
	err := r.db.WithContext(ctx).
		Scopes(byKey(key)).
		Order("posting_date_time DESC, sequence DESC").
		First(&entry).Error
	if err != nil {
		return nil, translateError(err, "no entries for %s", key)
	}
	return &entry, nil
}

// ListByKey returns every entry of the key in timeline order
func (r *GormLedgerRepository) ListByKey(ctx context.Context, key inventory.StockKey) ([]*inventory.LedgerEntry, error) {
	var entries []*inventory.LedgerEntry
	if err := r.db.WithContext(ctx).
		Scopes(byKey(key)).
		Order(timelineOrder).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListAfter returns the entries of the key strictly after pos
func (r *GormLedgerRepository) ListAfter(ctx context.Context, key inventory.StockKey, pos inventory.Position) ([]*inventory.LedgerEntry, error) {
	var entries []*inventory.LedgerEntry
	if err := r.after(ctx, key, pos).
		Order(timelineOrder).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// CountAfter counts the entries of the key strictly after pos
func (r *GormLedgerRepository) CountAfter(ctx context.Context, key inventory.StockKey, pos inventory.Position) (int64, error) {
	var count int64
	if err := r.after(ctx, key, pos).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormLedgerRepository) after(ctx context.Context, key inventory.StockKey, pos inventory.Position) *gorm.DB {
	at := pos.At.UTC()
	return r.db.WithContext(ctx).
		Model(&inventory.LedgerEntry{}).
		Scopes(byKey(key)).
		Where("(posting_date_time > ? OR (posting_date_time = ? AND sequence > ?))", at, at, pos.Sequence)
}

// FindByID finds an entry by its ID
func (r *GormLedgerRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.LedgerEntry, error) {
	var entry inventory.LedgerEntry
	if err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "ledger entry %s", id)
	}
	return &entry, nil
}

// FindByPosting returns the entries created by one posting command
func (r *GormLedgerRepository) FindByPosting(ctx context.Context, postingID uuid.UUID) ([]*inventory.LedgerEntry, error) {
	var entries []*inventory.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("posting_id = ?", postingID).
		Order("created_at ASC, sequence ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: posting %s", shared.ErrNotFound, postingID)
	}
	return entries, nil
}

// MarkCancelled flags entries as cancelled
func (r *GormLedgerRepository) MarkCancelled(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).
		Model(&inventory.LedgerEntry{}).
		Where("id IN ?", ids).
		Update("is_cancelled", true)
	if result.Error != nil {
		return fmt.Errorf("failed to cancel ledger entries: %w", result.Error)
	}
	if result.RowsAffected != int64(len(ids)) {
		return fmt.Errorf("%w: %d of %d ledger entries", shared.ErrNotFound, int64(len(ids))-result.RowsAffected, len(ids))
	}
	return nil
}

// UpdateDerived persists recomputed valuation fields
func (r *GormLedgerRepository) UpdateDerived(ctx context.Context, entries []*inventory.LedgerEntry) error {
	for _, e := range entries {
		result := r.db.WithContext(ctx).
			Model(&inventory.LedgerEntry{}).
			Where("id = ?", e.ID).
			Updates(map[string]any{
				"incoming_rate":          e.IncomingRate,
				"outgoing_rate":          e.OutgoingRate,
				"valuation_rate":         e.ValuationRate,
				"balance_qty":            e.BalanceQty,
				"balance_value":          e.BalanceValue,
				"stock_value_difference": e.StockValueDifference,
				"price_variance":         e.PriceVariance,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update ledger entry %s: %w", e.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: ledger entry %s", shared.ErrNotFound, e.ID)
		}
	}
	return nil
}

// BalanceAsOf returns the latest non-cancelled entry with PostingDateTime <= asOf
func (r *GormLedgerRepository) BalanceAsOf(ctx context.Context, key inventory.StockKey, asOf time.Time) (*inventory.LedgerEntry, error) {
	var entry inventory.LedgerEntry
	err := r.db.WithContext(ctx).
		Scopes(byKey(key)).
		Where("is_cancelled = ? AND posting_date_time <= ?", false, asOf.UTC()).
		Order("posting_date_time DESC, sequence DESC").
		First(&entry).Error
	if err != nil {
		return nil, translateError(err, "no balance for %s", key)
	}
	return &entry, nil
}

// ListKeys returns the distinct keys of an item, optionally restricted to warehouses
func (r *GormLedgerRepository) ListKeys(ctx context.Context, itemCode string, warehouses []string) ([]inventory.StockKey, error) {
	query := r.db.WithContext(ctx).
		Model(&inventory.LedgerEntry{}).
		Distinct("item_code", "warehouse", "batch_no", "serial_no").
		Where("item_code = ?", itemCode)
	if len(warehouses) > 0 {
		query = query.Where("warehouse IN ?", warehouses)
	}

	var keys []inventory.StockKey
	if err := query.Scan(&keys).Error; err != nil {
		return nil, err
	}
	return inventory.SortKeys(keys), nil
}

// List returns a page of entries matching the filter
func (r *GormLedgerRepository) List(ctx context.Context, filter inventory.LedgerFilter) ([]inventory.LedgerEntry, int64, error) {
	query := r.db.WithContext(ctx).Model(&inventory.LedgerEntry{})

	if !filter.WithCancelled {
		query = query.Where("is_cancelled = ?", false)
	}
	if filter.ItemCode != "" {
		query = query.Where("item_code = ?", filter.ItemCode)
	}
	if filter.Warehouse != "" {
		query = query.Where("warehouse = ?", filter.Warehouse)
	}
	if filter.BatchNo != "" {
		query = query.Where("batch_no = ?", filter.BatchNo)
	}
	if filter.SerialNo != "" {
		query = query.Where("serial_no = ?", filter.SerialNo)
	}
	if filter.VoucherRef != "" {
		query = query.Where("voucher_ref = ?", filter.VoucherRef)
	}
	if filter.From != nil {
		query = query.Where("posting_date_time >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("posting_date_time <= ?", filter.To.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []inventory.LedgerEntry
	if err := query.
		Order(orderBy(filter.Filter, "posting_date_time", "created_at")).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// BatchBalances sums non-cancelled quantities per batch of an item in a warehouse
func (r *GormLedgerRepository) BatchBalances(ctx context.Context, itemCode, warehouse string) (map[string]decimal.Decimal, error) {
	var rows []struct {
		BatchNo string
		Qty     decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&inventory.LedgerEntry{}).
		Select("batch_no, COALESCE(SUM(qty), 0) AS qty").
		Where("item_code = ? AND warehouse = ? AND batch_no <> '' AND is_cancelled = ?", itemCode, warehouse, false).
		Group("batch_no").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.BatchNo] = row.Qty
	}
	return out, nil
}

var _ inventory.LedgerRepository = (*GormLedgerRepository)(nil)

package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ledgerRepo struct {
	v *view
}

// resolve returns a private copy of a committed entry with the unit of work's changes applied
func (v *view) resolve(e inventory.LedgerEntry) *inventory.LedgerEntry {
	if v.tx != nil {
		if u, ok := v.tx.updated[e.ID]; ok {
			e = u
		}
	}
	return e.Clone()
}

// keyEntries returns copies of every entry of a key in timeline order
func (v *view) keyEntries(key inventory.StockKey) []*inventory.LedgerEntry {
	v.s.mu.RLock()
	idx := v.s.byKey[key]
	out := make([]*inventory.LedgerEntry, 0, len(idx))
	for _, i := range idx {
		out = append(out, v.resolve(v.s.arena[i]))
	}
	v.s.mu.RUnlock()

	if v.tx != nil {
		for i := range v.tx.added {
			if v.tx.added[i].Key() == key {
				out = append(out, v.tx.added[i].Clone())
			}
		}
		inventory.SortEntries(out)
	}
	return out
}

// allEntries returns copies of every entry in the store
func (v *view) allEntries() []*inventory.LedgerEntry {
	v.s.mu.RLock()
	out := make([]*inventory.LedgerEntry, 0, len(v.s.arena))
	for i := range v.s.arena {
		out = append(out, v.resolve(v.s.arena[i]))
	}
	v.s.mu.RUnlock()

	if v.tx != nil {
		for i := range v.tx.added {
			out = append(out, v.tx.added[i].Clone())
		}
	}
	return out
}

func (v *view) findEntry(id uuid.UUID) (*inventory.LedgerEntry, bool) {
	if v.tx != nil {
		for i := range v.tx.added {
			if v.tx.added[i].ID == id {
				return v.tx.added[i].Clone(), true
			}
		}
	}
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	i, ok := v.s.byID[id]
	if !ok {
		return nil, false
	}
	return v.resolve(v.s.arena[i]), true
}

// storeEntry writes back a modified entry
func (v *view) storeEntry(e *inventory.LedgerEntry) error {
	if v.tx == nil {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
		i, ok := v.s.byID[e.ID]
		if !ok {
			return fmt.Errorf("%w: ledger entry %s", shared.ErrNotFound, e.ID)
		}
		v.s.arena[i] = *e.Clone()
		return nil
	}
	for i := range v.tx.added {
		if v.tx.added[i].ID == e.ID {
			v.tx.added[i] = *e.Clone()
			return nil
		}
	}
	v.tx.updated[e.ID] = *e.Clone()
	return nil
}

func (r *ledgerRepo) write(entry *inventory.LedgerEntry, strict bool) error {
	key := entry.Key()
	if err := key.Validate(); err != nil {
		return err
	}
	if _, exists := r.v.findEntry(entry.ID); exists {
		return fmt.Errorf("%w: ledger entry %s", shared.ErrAlreadyExists, entry.ID)
	}

	entries := r.v.keyEntries(key)
	var top int64
	for _, e := range entries {
		if e.Sequence > top {
			top = e.Sequence
		}
	}
	if strict && len(entries) > 0 && entry.PostingDateTime.Before(entries[len(entries)-1].PostingDateTime) {
		return fmt.Errorf("%w: %s at %s", shared.ErrRepostRequired, key, entry.PostingDateTime.Format(time.RFC3339))
	}

	entry.Sequence = top + 1
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if r.v.tx != nil {
		r.v.tx.added = append(r.v.tx.added, *entry.Clone())
		return nil
	}

	tx := newTxn()
	tx.added = append(tx.added, *entry.Clone())
	return r.v.s.commit(tx)
}

func (r *ledgerRepo) Append(_ context.Context, entry *inventory.LedgerEntry) error {
	return r.write(entry, true)
}

func (r *ledgerRepo) Insert(_ context.Context, entry *inventory.LedgerEntry) error {
	return r.write(entry, false)
}

func (r *ledgerRepo) Latest(_ context.Context, key inventory.StockKey) (*inventory.LedgerEntry, error) {
	entries := r.v.keyEntries(key)
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries for %s", shared.ErrNotFound, key)
	}
	return entries[len(entries)-1], nil
}

func (r *ledgerRepo) ListByKey(_ context.Context, key inventory.StockKey) ([]*inventory.LedgerEntry, error) {
	return r.v.keyEntries(key), nil
}

func (r *ledgerRepo) ListAfter(_ context.Context, key inventory.StockKey, pos inventory.Position) ([]*inventory.LedgerEntry, error) {
	var out []*inventory.LedgerEntry
	for _, e := range r.v.keyEntries(key) {
		if pos.Before(e.Position()) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *ledgerRepo) CountAfter(ctx context.Context, key inventory.StockKey, pos inventory.Position) (int64, error) {
	after, err := r.ListAfter(ctx, key, pos)
	return int64(len(after)), err
}

func (r *ledgerRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.LedgerEntry, error) {
	e, ok := r.v.findEntry(id)
	if !ok {
		return nil, fmt.Errorf("%w: ledger entry %s", shared.ErrNotFound, id)
	}
	return e, nil
}

func (r *ledgerRepo) FindByPosting(_ context.Context, postingID uuid.UUID) ([]*inventory.LedgerEntry, error) {
	var out []*inventory.LedgerEntry
	for _, e := range r.v.allEntries() {
		if e.PostingID == postingID {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: posting %s", shared.ErrNotFound, postingID)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *ledgerRepo) MarkCancelled(_ context.Context, ids ...uuid.UUID) error {
	for _, id := range ids {
		e, ok := r.v.findEntry(id)
		if !ok {
			return fmt.Errorf("%w: ledger entry %s", shared.ErrNotFound, id)
		}
		e.IsCancelled = true
		if err := r.v.storeEntry(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *ledgerRepo) UpdateDerived(_ context.Context, entries []*inventory.LedgerEntry) error {
	for _, src := range entries {
		e, ok := r.v.findEntry(src.ID)
		if !ok {
			return fmt.Errorf("%w: ledger entry %s", shared.ErrNotFound, src.ID)
		}
		e.IncomingRate = src.IncomingRate
		e.OutgoingRate = src.OutgoingRate
		e.ValuationRate = src.ValuationRate
		e.BalanceQty = src.BalanceQty
		e.BalanceValue = src.BalanceValue
		e.StockValueDifference = src.StockValueDifference
		e.PriceVariance = src.PriceVariance
		if err := r.v.storeEntry(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *ledgerRepo) BalanceAsOf(_ context.Context, key inventory.StockKey, asOf time.Time) (*inventory.LedgerEntry, error) {
	entries := r.v.keyEntries(key)
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Counts() && !e.PostingDateTime.After(asOf) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: no balance for %s", shared.ErrNotFound, key)
}

func (r *ledgerRepo) ListKeys(_ context.Context, itemCode string, warehouses []string) ([]inventory.StockKey, error) {
	allowed := make(map[string]struct{}, len(warehouses))
	for _, wh := range warehouses {
		allowed[wh] = struct{}{}
	}

	var keys []inventory.StockKey
	for _, e := range r.v.allEntries() {
		if e.ItemCode != itemCode {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[e.Warehouse]; !ok {
				continue
			}
		}
		keys = append(keys, e.Key())
	}
	return inventory.SortKeys(keys), nil
}

func (r *ledgerRepo) List(_ context.Context, filter inventory.LedgerFilter) ([]inventory.LedgerEntry, int64, error) {
	var matched []*inventory.LedgerEntry
	for _, e := range r.v.allEntries() {
		if matches(e, filter) {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.PostingDateTime.Equal(b.PostingDateTime) {
			return a.PostingDateTime.Before(b.PostingDateTime)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	if filter.OrderDir == "desc" {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	page := paginate(matched, filter.Filter)
	out := make([]inventory.LedgerEntry, 0, len(page))
	for _, e := range page {
		out = append(out, *e)
	}
	return out, int64(len(matched)), nil
}

func matches(e *inventory.LedgerEntry, f inventory.LedgerFilter) bool {
	switch {
	case !f.WithCancelled && e.IsCancelled:
		return false
	case f.ItemCode != "" && e.ItemCode != f.ItemCode:
		return false
	case f.Warehouse != "" && e.Warehouse != f.Warehouse:
		return false
	case f.BatchNo != "" && e.BatchNo != f.BatchNo:
		return false
	case f.SerialNo != "" && e.SerialNo != f.SerialNo:
		return false
	case f.VoucherRef != "" && e.VoucherRef != f.VoucherRef:
		return false
	case f.From != nil && e.PostingDateTime.Before(*f.From):
		return false
	case f.To != nil && e.PostingDateTime.After(*f.To):
		return false
	}
	return true
}

func (r *ledgerRepo) BatchBalances(_ context.Context, itemCode, warehouse string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for _, e := range r.v.allEntries() {
		if e.ItemCode != itemCode || e.Warehouse != warehouse || e.BatchNo == "" || !e.Counts() {
			continue
		}
		out[e.BatchNo] = out[e.BatchNo].Add(e.Qty)
	}
	return out, nil
}

var _ inventory.LedgerRepository = (*ledgerRepo)(nil)

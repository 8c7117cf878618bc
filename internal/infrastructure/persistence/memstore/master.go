package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

func cloneItem(item inventory.Item) *inventory.Item {
	out := item
	out.Conversions = append([]inventory.UOMConversion(nil), item.Conversions...)
	out.CostMethodChanges = append([]inventory.CostMethodChange(nil), item.CostMethodChanges...)
	return &out
}

type itemRepo struct {
	v *view
}

func (r *itemRepo) FindByCode(_ context.Context, code string) (*inventory.Item, error) {
	if r.v.tx != nil {
		if item, ok := r.v.tx.items[code]; ok {
			return cloneItem(item), nil
		}
	}
	r.v.s.mu.RLock()
	defer r.v.s.mu.RUnlock()
	item, ok := r.v.s.items[code]
	if !ok {
		return nil, fmt.Errorf("%w: item %s", shared.ErrNotFound, code)
	}
	return cloneItem(item), nil
}

func (r *itemRepo) Save(_ context.Context, item *inventory.Item) error {
	stored := *cloneItem(*item)
	if r.v.tx != nil {
		r.v.tx.items[item.Code] = stored
		return nil
	}
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()
	r.v.s.items[item.Code] = stored
	return nil
}

func (r *itemRepo) List(_ context.Context, filter shared.Filter) ([]inventory.Item, int64, error) {
	merged := make(map[string]inventory.Item)
	r.v.s.mu.RLock()
	for k, v := range r.v.s.items {
		merged[k] = v
	}
	r.v.s.mu.RUnlock()
	if r.v.tx != nil {
		for k, v := range r.v.tx.items {
			merged[k] = v
		}
	}

	all := make([]inventory.Item, 0, len(merged))
	for _, item := range merged {
		all = append(all, *cloneItem(item))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	return paginate(all, filter), int64(len(all)), nil
}

type warehouseRepo struct {
	v *view
}

func (r *warehouseRepo) all() []inventory.Warehouse {
	merged := make(map[string]inventory.Warehouse)
	r.v.s.mu.RLock()
	for k, v := range r.v.s.warehouses {
		merged[k] = v
	}
	r.v.s.mu.RUnlock()
	if r.v.tx != nil {
		for k, v := range r.v.tx.warehouses {
			merged[k] = v
		}
	}
	out := make([]inventory.Warehouse, 0, len(merged))
	for _, w := range merged {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (r *warehouseRepo) FindByCode(_ context.Context, code string) (*inventory.Warehouse, error) {
	if r.v.tx != nil {
		if w, ok := r.v.tx.warehouses[code]; ok {
			return &w, nil
		}
	}
	r.v.s.mu.RLock()
	defer r.v.s.mu.RUnlock()
	w, ok := r.v.s.warehouses[code]
	if !ok {
		return nil, fmt.Errorf("%w: warehouse %s", shared.ErrNotFound, code)
	}
	return &w, nil
}

func (r *warehouseRepo) FindChildren(_ context.Context, parentCode string) ([]inventory.Warehouse, error) {
	var out []inventory.Warehouse
	for _, w := range r.all() {
		if w.ParentCode == parentCode {
			out = append(out, w)
		}
	}
	return out, nil
}

func (r *warehouseRepo) Save(_ context.Context, warehouse *inventory.Warehouse) error {
	if r.v.tx != nil {
		r.v.tx.warehouses[warehouse.Code] = *warehouse
		return nil
	}
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()
	r.v.s.warehouses[warehouse.Code] = *warehouse
	return nil
}

func (r *warehouseRepo) List(_ context.Context, filter shared.Filter) ([]inventory.Warehouse, int64, error) {
	all := r.all()
	return paginate(all, filter), int64(len(all)), nil
}

type batchRepo struct {
	v *view
}

func (r *batchRepo) Find(_ context.Context, itemCode, batchNo string) (*inventory.Batch, error) {
	k := pairKey{item: itemCode, code: batchNo}
	if r.v.tx != nil {
		if b, ok := r.v.tx.batches[k]; ok {
			return &b, nil
		}
	}
	r.v.s.mu.RLock()
	defer r.v.s.mu.RUnlock()
	b, ok := r.v.s.batches[k]
	if !ok {
		return nil, fmt.Errorf("%w: batch %s of item %s", shared.ErrNotFound, batchNo, itemCode)
	}
	return &b, nil
}

func (r *batchRepo) ListByItem(_ context.Context, itemCode string) ([]inventory.Batch, error) {
	merged := make(map[pairKey]inventory.Batch)
	r.v.s.mu.RLock()
	for k, b := range r.v.s.batches {
		if k.item == itemCode {
			merged[k] = b
		}
	}
	r.v.s.mu.RUnlock()
	if r.v.tx != nil {
		for k, b := range r.v.tx.batches {
			if k.item == itemCode {
				merged[k] = b
			}
		}
	}
	out := make([]inventory.Batch, 0, len(merged))
	for _, b := range merged {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BatchNo < out[j].BatchNo })
	return out, nil
}

func (r *batchRepo) Save(_ context.Context, batch *inventory.Batch) error {
	k := pairKey{item: batch.ItemCode, code: batch.BatchNo}
	if r.v.tx != nil {
		r.v.tx.batches[k] = *batch
		return nil
	}
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()
	r.v.s.batches[k] = *batch
	return nil
}

type serialRepo struct {
	v *view
}

func (r *serialRepo) Find(_ context.Context, itemCode, serialNo string) (*inventory.SerialNo, error) {
	k := pairKey{item: itemCode, code: serialNo}
	if r.v.tx != nil {
		if s, ok := r.v.tx.serials[k]; ok {
			return &s, nil
		}
	}
	r.v.s.mu.RLock()
	defer r.v.s.mu.RUnlock()
	s, ok := r.v.s.serials[k]
	if !ok {
		return nil, fmt.Errorf("%w: serial %s of item %s", shared.ErrNotFound, serialNo, itemCode)
	}
	return &s, nil
}

func (r *serialRepo) Save(_ context.Context, serial *inventory.SerialNo) error {
	k := pairKey{item: serial.ItemCode, code: serial.SerialNo}
	if r.v.tx != nil {
		r.v.tx.serials[k] = *serial
		return nil
	}
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()
	r.v.s.serials[k] = *serial
	return nil
}

type reservationRepo struct {
	v *view
}

func (r *reservationRepo) all() []inventory.Reservation {
	merged := make(map[uuid.UUID]inventory.Reservation)
	r.v.s.mu.RLock()
	for k, v := range r.v.s.reservations {
		merged[k] = v
	}
	r.v.s.mu.RUnlock()
	if r.v.tx != nil {
		for k, v := range r.v.tx.reservations {
			merged[k] = v
		}
	}
	out := make([]inventory.Reservation, 0, len(merged))
	for _, v := range merged {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *reservationRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.Reservation, error) {
	if r.v.tx != nil {
		if res, ok := r.v.tx.reservations[id]; ok {
			return &res, nil
		}
	}
	r.v.s.mu.RLock()
	defer r.v.s.mu.RUnlock()
	res, ok := r.v.s.reservations[id]
	if !ok {
		return nil, fmt.Errorf("%w: reservation %s", shared.ErrNotFound, id)
	}
	return &res, nil
}

func (r *reservationRepo) ListActiveByKey(_ context.Context, key inventory.StockKey) ([]inventory.Reservation, error) {
	var out []inventory.Reservation
	for _, res := range r.all() {
		if res.IsActive() && res.Key() == key {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *reservationRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]inventory.Reservation, error) {
	var out []inventory.Reservation
	for _, res := range r.all() {
		if res.IsActive() && res.IsExpiredAt(now) {
			out = append(out, res)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExpireAt.Before(out[j].ExpireAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *reservationRepo) Save(_ context.Context, reservation *inventory.Reservation) error {
	if r.v.tx != nil {
		r.v.tx.reservations[reservation.ID] = *reservation
		return nil
	}
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()
	r.v.s.reservations[reservation.ID] = *reservation
	return nil
}

// Package memstore is an in-memory implementation of the inventory repositories.
// Ledger entries live in an append-only arena indexed per stock key.
// A unit of work buffers its writes and applies them atomically on commit.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

type pairKey struct {
	item string
	code string
}

// Store holds every record in memory
type Store struct {
	mu           sync.RWMutex
	arena        []inventory.LedgerEntry
	byID         map[uuid.UUID]int
	byKey        map[inventory.StockKey][]int
	items        map[string]inventory.Item
	warehouses   map[string]inventory.Warehouse
	batches      map[pairKey]inventory.Batch
	serials      map[pairKey]inventory.SerialNo
	reservations map[uuid.UUID]inventory.Reservation
}

// New creates an empty store
func New() *Store {
	return &Store{
		byID:         make(map[uuid.UUID]int),
		byKey:        make(map[inventory.StockKey][]int),
		items:        make(map[string]inventory.Item),
		warehouses:   make(map[string]inventory.Warehouse),
		batches:      make(map[pairKey]inventory.Batch),
		serials:      make(map[pairKey]inventory.SerialNo),
		reservations: make(map[uuid.UUID]inventory.Reservation),
	}
}

// Repositories returns repositories that read committed state and write through immediately
func (s *Store) Repositories() inventory.TransactionalRepositories {
	return &view{s: s}
}

// Execute runs fn against a buffered unit of work and commits it when fn succeeds
func (s *Store) Execute(ctx context.Context, fn func(repos inventory.TransactionalRepositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := newTxn()
	if err := fn(&view{s: s, tx: tx}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(tx)
}

// Len returns the number of ledger entries in the arena
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.arena)
}

// txn is the write buffer of one unit of work
type txn struct {
	added        []inventory.LedgerEntry
	updated      map[uuid.UUID]inventory.LedgerEntry
	items        map[string]inventory.Item
	warehouses   map[string]inventory.Warehouse
	batches      map[pairKey]inventory.Batch
	serials      map[pairKey]inventory.SerialNo
	reservations map[uuid.UUID]inventory.Reservation
}

func newTxn() *txn {
	return &txn{
		updated:      make(map[uuid.UUID]inventory.LedgerEntry),
		items:        make(map[string]inventory.Item),
		warehouses:   make(map[string]inventory.Warehouse),
		batches:      make(map[pairKey]inventory.Batch),
		serials:      make(map[pairKey]inventory.SerialNo),
		reservations: make(map[uuid.UUID]inventory.Reservation),
	}
}

// commit applies a unit of work. A sequence another writer already took fails the whole commit.
func (s *Store) commit(tx *txn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	baseMax := make(map[inventory.StockKey]int64)
	for _, e := range tx.added {
		key := e.Key()
		if _, ok := baseMax[key]; !ok {
			baseMax[key] = s.maxSequenceLocked(key)
		}
		if e.Sequence <= baseMax[key] {
			return fmt.Errorf("%w: sequence %d of %s was taken", shared.ErrConcurrencyConflict, e.Sequence, key)
		}
		if _, ok := s.byID[e.ID]; ok {
			return fmt.Errorf("%w: entry %s", shared.ErrConcurrencyConflict, e.ID)
		}
	}

	for id, e := range tx.updated {
		if i, ok := s.byID[id]; ok {
			s.arena[i] = e
		}
	}
	for _, e := range tx.added {
		s.appendLocked(e)
	}
	for k, v := range tx.items {
		s.items[k] = v
	}
	for k, v := range tx.warehouses {
		s.warehouses[k] = v
	}
	for k, v := range tx.batches {
		s.batches[k] = v
	}
	for k, v := range tx.serials {
		s.serials[k] = v
	}
	for k, v := range tx.reservations {
		s.reservations[k] = v
	}
	return nil
}

func (s *Store) maxSequenceLocked(key inventory.StockKey) int64 {
	var top int64
	for _, i := range s.byKey[key] {
		if s.arena[i].Sequence > top {
			top = s.arena[i].Sequence
		}
	}
	return top
}

// appendLocked adds an entry to the arena and keeps the key index in timeline order
func (s *Store) appendLocked(e inventory.LedgerEntry) {
	s.arena = append(s.arena, e)
	pos := len(s.arena) - 1
	s.byID[e.ID] = pos

	key := e.Key()
	idx := append(s.byKey[key], pos)
	sort.SliceStable(idx, func(a, b int) bool {
		return s.arena[idx[a]].Position().Before(s.arena[idx[b]].Position())
	})
	s.byKey[key] = idx
}

// view is a repository set over committed state, optionally with a unit of work on top
type view struct {
	s  *Store
	tx *txn
}

func (v *view) Ledger() inventory.LedgerRepository { return &ledgerRepo{v: v} }
func (v *view) Items() inventory.ItemRepository { return &itemRepo{v: v} }
func (v *view) Warehouses() inventory.WarehouseRepository { return &warehouseRepo{v: v} }
func (v *view) Batches() inventory.BatchRepository { return &batchRepo{v: v} }
func (v *view) Serials() inventory.SerialNoRepository { return &serialRepo{v: v} }
func (v *view) Reservations() inventory.ReservationRepository { return &reservationRepo{v: v} }

func paginate[T any](items []T, filter shared.Filter) []T {
	offset := filter.Offset()
	if offset >= len(items) {
		return []T{}
	}
	end := offset + filter.Limit()
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

var (
	_ inventory.TransactionScope          = (*Store)(nil)
	_ inventory.TransactionalRepositories = (*view)(nil)
)

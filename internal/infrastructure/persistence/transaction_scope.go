package persistence

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos inventory.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// gormRepositories provides access to all repositories sharing one connection or transaction.
type gormRepositories struct {
	tx *gorm.DB
}

// NewRepositories returns repositories bound to db. Outside a transaction every call commits on its own.
func NewRepositories(db *gorm.DB) inventory.TransactionalRepositories {
	return &gormRepositories{tx: db}
}

// Ledger returns the ledger repository scoped to the current transaction.
func (r *gormRepositories) Ledger() inventory.LedgerRepository {
	return NewGormLedgerRepository(r.tx)
}

// Items returns the item repository scoped to the current transaction.
func (r *gormRepositories) Items() inventory.ItemRepository {
	return NewGormItemRepository(r.tx)
}

// Warehouses returns the warehouse repository scoped to the current transaction.
func (r *gormRepositories) Warehouses() inventory.WarehouseRepository {
	return NewGormWarehouseRepository(r.tx)
}

// Batches returns the batch repository scoped to the current transaction.
func (r *gormRepositories) Batches() inventory.BatchRepository {
	return NewGormBatchRepository(r.tx)
}

// Serials returns the serial number repository scoped to the current transaction.
func (r *gormRepositories) Serials() inventory.SerialNoRepository {
	return NewGormSerialNoRepository(r.tx)
}

// Reservations returns the reservation repository scoped to the current transaction.
func (r *gormRepositories) Reservations() inventory.ReservationRepository {
	return NewGormReservationRepository(r.tx)
}

var (
	_ inventory.TransactionScope          = (*GormTransactionScope)(nil)
	_ inventory.TransactionalRepositories = (*gormRepositories)(nil)
)

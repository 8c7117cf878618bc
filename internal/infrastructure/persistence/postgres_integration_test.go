//go:build integration

package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/migration"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newPostgresDB starts a throwaway postgres and applies the embedded migrations
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("stockledger_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(8)

	m, err := migration.New(sqlDB, nil)
	require.NoError(t, err)
	require.NoError(t, m.Up())

	return db
}

func TestPostgres_LedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newPostgresDB(t)
	repo := NewGormLedgerRepository(db)
	key := inventory.StockKey{ItemCode: "ITEM-A", Warehouse: "WH-1", BatchNo: "B1"}

	require.NoError(t, repo.Append(ctx, newEntry(key, t0, 10)))
	require.NoError(t, repo.Append(ctx, newEntry(key, t0.Add(time.Hour), 5)))

	err := repo.Append(ctx, newEntry(key, t0.Add(-time.Hour), 1))
	assert.ErrorIs(t, err, shared.ErrRepostRequired)

	balances, err := repo.BatchBalances(ctx, "ITEM-A", "WH-1")
	require.NoError(t, err)
	assert.True(t, balances["B1"].Equal(decimal.NewFromInt(15)))

	entries, err := repo.ListByKey(ctx, key)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].PostingDateTime.Equal(t0))
}

func TestPostgres_ConcurrentAppendsConflict(t *testing.T) {
	ctx := context.Background()
	db := newPostgresDB(t)
	scope := NewGormTransactionScope(db)
	key := inventory.StockKey{ItemCode: "ITEM-A", Warehouse: "WH-1"}

	// The first writer holds its sequence uncommitted while the second reads the same max
	firstAppended := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = scope.Execute(ctx, func(tx inventory.TransactionalRepositories) error {
			err := tx.Ledger().Append(ctx, newEntry(key, t0, 1))
			close(firstAppended)
			if err != nil {
				return err
			}
			time.Sleep(500 * time.Millisecond)
			return nil
		})
	}()
	go func() {
		defer wg.Done()
		<-firstAppended
		errs[1] = scope.Execute(ctx, func(tx inventory.TransactionalRepositories) error {
			return tx.Ledger().Append(ctx, newEntry(key, t0, 1))
		})
	}()
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, shared.ErrConcurrencyConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	entries, err := NewGormLedgerRepository(db).ListByKey(ctx, key)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

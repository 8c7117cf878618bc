package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0  = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	key = inventory.StockKey{ItemCode: "ITEM-A", Warehouse: "WH-1"}
)

func receipt(at time.Time, qty int64) *inventory.LedgerEntry {
	return inventory.NewLedgerEntry(uuid.New(), key, inventory.MovementReceipt, at, decimal.NewFromInt(qty), "Stock Entry", "SE-1")
}

func TestStore_AppendAndOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	ledger := s.Repositories().Ledger()

	require.NoError(t, ledger.Append(ctx, receipt(t0.Add(2*time.Hour), 1)))
	require.NoError(t, ledger.Append(ctx, receipt(t0.Add(2*time.Hour), 2)))

	err := ledger.Append(ctx, receipt(t0, 3))
	assert.True(t, errors.Is(err, shared.ErrRepostRequired))

	backdated := receipt(t0, 3)
	require.NoError(t, ledger.Insert(ctx, backdated))
	assert.Equal(t, int64(3), backdated.Sequence)

	entries, err := ledger.ListByKey(ctx, key)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, backdated.ID, entries[0].ID)
	assert.Equal(t, int64(1), entries[1].Sequence)
	assert.Equal(t, int64(2), entries[2].Sequence)
	assert.Equal(t, 3, s.Len())

	after, err := ledger.ListAfter(ctx, key, backdated.Position())
	require.NoError(t, err)
	assert.Len(t, after, 2)
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	ledger := New().Repositories().Ledger()

	entry := receipt(t0, 5)
	require.NoError(t, ledger.Append(ctx, entry))

	got, err := ledger.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	got.Qty = decimal.NewFromInt(999)

	again, err := ledger.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, again.Qty.Equal(decimal.NewFromInt(5)))
}

func TestStore_ExecuteIsolatesUntilCommit(t *testing.T) {
	ctx := context.Background()
	s := New()
	committed := s.Repositories().Ledger()

	err := s.Execute(ctx, func(repos inventory.TransactionalRepositories) error {
		require.NoError(t, repos.Ledger().Append(ctx, receipt(t0, 1)))
		require.NoError(t, repos.Ledger().Append(ctx, receipt(t0, 2)))

		inTx, err := repos.Ledger().ListByKey(ctx, key)
		require.NoError(t, err)
		assert.Len(t, inTx, 2)

		outside, err := committed.ListByKey(ctx, key)
		require.NoError(t, err)
		assert.Empty(t, outside)
		return nil
	})
	require.NoError(t, err)

	entries, err := committed.ListByKey(ctx, key)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestStore_ExecuteDiscardsOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.Execute(ctx, func(repos inventory.TransactionalRepositories) error {
		require.NoError(t, repos.Ledger().Append(ctx, receipt(t0, 1)))
		wh, err := inventory.NewWarehouse("WH-1", "Main", "", false)
		require.NoError(t, err)
		require.NoError(t, repos.Warehouses().Save(ctx, wh))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Len())

	_, err = s.Repositories().Warehouses().FindByCode(ctx, "WH-1")
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestStore_ConflictingUnitsOfWork(t *testing.T) {
	ctx := context.Background()
	s := New()

	// the outer unit of work picks sequence 1, then another writer commits sequence 1 first
	err := s.Execute(ctx, func(repos inventory.TransactionalRepositories) error {
		require.NoError(t, repos.Ledger().Append(ctx, receipt(t0, 1)))
		return s.Repositories().Ledger().Append(ctx, receipt(t0, 2))
	})
	assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))
	assert.Equal(t, 1, s.Len())
}

func TestStore_CancelAndDerived(t *testing.T) {
	ctx := context.Background()
	s := New()
	ledger := s.Repositories().Ledger()

	first := receipt(t0, 10)
	second := receipt(t0.Add(time.Hour), 5)
	require.NoError(t, ledger.Append(ctx, first))
	require.NoError(t, ledger.Append(ctx, second))

	err := s.Execute(ctx, func(repos inventory.TransactionalRepositories) error {
		if err := repos.Ledger().MarkCancelled(ctx, second.ID); err != nil {
			return err
		}
		first.ValuationRate = decimal.NewFromInt(7)
		return repos.Ledger().UpdateDerived(ctx, []*inventory.LedgerEntry{first})
	})
	require.NoError(t, err)

	balance, err := ledger.BalanceAsOf(ctx, key, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first.ID, balance.ID)
	assert.True(t, balance.ValuationRate.Equal(decimal.NewFromInt(7)))

	_, total, err := ledger.List(ctx, inventory.LedgerFilter{ItemCode: "ITEM-A"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	err = ledger.MarkCancelled(ctx, uuid.New())
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestStore_BatchBalancesAndKeys(t *testing.T) {
	ctx := context.Background()
	ledger := New().Repositories().Ledger()

	for _, k := range []inventory.StockKey{
		{ItemCode: "ITEM-B", Warehouse: "WH-1", BatchNo: "B2"},
		{ItemCode: "ITEM-B", Warehouse: "WH-1", BatchNo: "B1"},
		{ItemCode: "ITEM-B", Warehouse: "WH-2", BatchNo: "B1"},
	} {
		e := inventory.NewLedgerEntry(uuid.New(), k, inventory.MovementReceipt, t0, decimal.NewFromInt(4), "Purchase Receipt", "PR-1")
		require.NoError(t, ledger.Append(ctx, e))
	}

	balances, err := ledger.BatchBalances(ctx, "ITEM-B", "WH-1")
	require.NoError(t, err)
	assert.Len(t, balances, 2)
	assert.True(t, balances["B1"].Equal(decimal.NewFromInt(4)))

	keys, err := ledger.ListKeys(ctx, "ITEM-B", []string{"WH-1"})
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "B1", keys[0].BatchNo)
}

func TestStore_Reservations(t *testing.T) {
	ctx := context.Background()
	repo := New().Repositories().Reservations()

	soon, err := inventory.NewReservation(key, decimal.NewFromInt(1), "Sales Order", "SO-1", t0.Add(time.Hour))
	require.NoError(t, err)
	later, err := inventory.NewReservation(key, decimal.NewFromInt(1), "Sales Order", "SO-2", t0.Add(48*time.Hour))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, later))
	require.NoError(t, repo.Save(ctx, soon))

	expired, err := repo.ListExpired(ctx, t0.Add(2*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, soon.ID, expired[0].ID)

	require.NoError(t, soon.Release(inventory.ReleaseReasonManual, t0))
	require.NoError(t, repo.Save(ctx, soon))

	active, err := repo.ListActiveByKey(ctx, key)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, later.ID, active[0].ID)
}

package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/strategy"
	"github.com/erp/stockledger/internal/infrastructure/strategy/batch"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	LedgerRepository
	balances map[string]decimal.Decimal
}

func (f *fakeLedger) BatchBalances(_ context.Context, _, _ string) (map[string]decimal.Decimal, error) {
	return f.balances, nil
}

type fakeBatches struct {
	BatchRepository
	batches []Batch
}

func (f *fakeBatches) Find(_ context.Context, itemCode, batchNo string) (*Batch, error) {
	for i := range f.batches {
		if f.batches[i].ItemCode == itemCode && f.batches[i].BatchNo == batchNo {
			return &f.batches[i], nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *fakeBatches) ListByItem(_ context.Context, itemCode string) ([]Batch, error) {
	return f.batches, nil
}

type fakeSerials struct {
	SerialNoRepository
	serials map[string]*SerialNo
}

func (f *fakeSerials) Find(_ context.Context, _, serialNo string) (*SerialNo, error) {
	s, ok := f.serials[serialNo]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return s, nil
}

type fakeRepos struct {
	TransactionalRepositories
	ledger  *fakeLedger
	batches *fakeBatches
	serials *fakeSerials
}

func (f *fakeRepos) Ledger() LedgerRepository { return f.ledger }
func (f *fakeRepos) Batches() BatchRepository { return f.batches }
func (f *fakeRepos) Serials() SerialNoRepository { return f.serials }

func newFakeRepos() *fakeRepos {
	return &fakeRepos{
		ledger:  &fakeLedger{balances: map[string]decimal.Decimal{}},
		batches: &fakeBatches{},
		serials: &fakeSerials{serials: map[string]*SerialNo{}},
	}
}

func (f *fakeRepos) addBatch(t *testing.T, no string, expiry time.Time, qty string) {
	t.Helper()
	b, err := NewBatch("ITEM-001", no, nil, &expiry)
	require.NoError(t, err)
	f.batches.batches = append(f.batches.batches, *b)
	f.ledger.balances[no] = dec(qty)
}

func TestAllocator_UntrackedItem(t *testing.T) {
	allocator := NewAllocator(batch.NewFEFOBatchStrategy())
	item := newTestItem(t, strategy.CostMethodMovingAverage)

	lines, err := allocator.Allocate(context.Background(), newFakeRepos(), item, AllocationRequest{
		Warehouse: "WH-A", Qty: dec("-3"), MovementType: MovementIssue, PostingDateTime: at(0),
	})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, testKey, lines[0].Key)

	_, err = allocator.Allocate(context.Background(), newFakeRepos(), item, AllocationRequest{
		Warehouse: "WH-A", BatchNo: "B1", Qty: dec("3"), MovementType: MovementReceipt,
	})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = allocator.Allocate(context.Background(), newFakeRepos(), item, AllocationRequest{
		Warehouse: "WH-A", Qty: dec("3"), MovementType: MovementIssue,
	})
	assert.ErrorIs(t, err, shared.ErrValidation, "issue must be outward")
}

func TestAllocator_FEFOScenario(t *testing.T) {
	allocator := NewAllocator(batch.NewFEFOBatchStrategy())
	item := newTestItem(t, strategy.CostMethodFIFO)
	item.HasBatchNo = true

	repos := newFakeRepos()
	repos.addBatch(t, "B1", at(10), "5")
	repos.addBatch(t, "B2", at(5), "5")

	lines, err := allocator.Allocate(context.Background(), repos, item, AllocationRequest{
		Warehouse: "WH-A", Qty: dec("-7"), MovementType: MovementIssue, PostingDateTime: at(0),
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "B2", lines[0].Key.BatchNo)
	assertDec(t, "-5", lines[0].Qty)
	assert.Equal(t, "B1", lines[1].Key.BatchNo)
	assertDec(t, "-2", lines[1].Qty)
}

func TestAllocator_FIFOByArrival(t *testing.T) {
	allocator := NewAllocator(batch.NewFIFOBatchStrategy())
	item := newTestItem(t, strategy.CostMethodFIFO)
	item.HasBatchNo = true

	repos := newFakeRepos()
	repos.addBatch(t, "B1", at(10), "5")
	repos.addBatch(t, "B2", at(5), "5")
	repos.batches.batches[0].CreatedAt = at(-5)
	repos.batches.batches[1].CreatedAt = at(-1)

	lines, err := allocator.Allocate(context.Background(), repos, item, AllocationRequest{
		Warehouse: "WH-A", Qty: dec("-7"), MovementType: MovementIssue, PostingDateTime: at(0),
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "B1", lines[0].Key.BatchNo)
	assertDec(t, "-5", lines[0].Qty)
	assert.Equal(t, "B2", lines[1].Key.BatchNo)
	assertDec(t, "-2", lines[1].Qty)
}

func TestAllocator_BatchRules(t *testing.T) {
	allocator := NewAllocator(batch.NewFEFOBatchStrategy())
	item := newTestItem(t, strategy.CostMethodFIFO)
	item.HasBatchNo = true
	ctx := context.Background()

	t.Run("expired batches are skipped and shortfall fails", func(t *testing.T) {
		repos := newFakeRepos()
		repos.addBatch(t, "OLD", at(-1), "10")
		repos.addBatch(t, "NEW", at(30), "3")

		_, err := allocator.Allocate(ctx, repos, item, AllocationRequest{
			Warehouse: "WH-A", Qty: dec("-5"), MovementType: MovementIssue, PostingDateTime: at(0),
		})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	})

	t.Run("inward needs a batch", func(t *testing.T) {
		_, err := allocator.Allocate(ctx, newFakeRepos(), item, AllocationRequest{
			Warehouse: "WH-A", Qty: dec("5"), MovementType: MovementReceipt, PostingDateTime: at(0),
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("unknown batch", func(t *testing.T) {
		_, err := allocator.Allocate(ctx, newFakeRepos(), item, AllocationRequest{
			Warehouse: "WH-A", BatchNo: "NOPE", Qty: dec("5"), MovementType: MovementReceipt,
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("disabled batch", func(t *testing.T) {
		repos := newFakeRepos()
		repos.addBatch(t, "B1", at(10), "0")
		repos.batches.batches[0].Disable()

		_, err := allocator.Allocate(ctx, repos, item, AllocationRequest{
			Warehouse: "WH-A", BatchNo: "B1", Qty: dec("5"), MovementType: MovementReceipt,
		})
		assert.ErrorIs(t, err, shared.ErrDisabled)
	})

	t.Run("explicit batch gives one line", func(t *testing.T) {
		repos := newFakeRepos()
		repos.addBatch(t, "B1", at(10), "0")

		lines, err := allocator.Allocate(ctx, repos, item, AllocationRequest{
			Warehouse: "WH-A", BatchNo: "B1", Qty: dec("5"), MovementType: MovementReceipt,
		})
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, "B1", lines[0].Key.BatchNo)
	})
}

func TestAllocator_Serials(t *testing.T) {
	allocator := NewAllocator(batch.NewFEFOBatchStrategy())
	item := newTestItem(t, strategy.CostMethodFIFO)
	item.HasSerialNo = true
	ctx := context.Background()

	t.Run("quantity must match serial count", func(t *testing.T) {
		_, err := allocator.Allocate(ctx, newFakeRepos(), item, AllocationRequest{
			Warehouse: "WH-A", SerialNos: []string{"SN-1"}, Qty: dec("2"), MovementType: MovementReceipt,
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("receipt of new serials", func(t *testing.T) {
		lines, err := allocator.Allocate(ctx, newFakeRepos(), item, AllocationRequest{
			Warehouse: "WH-A", SerialNos: []string{"SN-1", "SN-2"}, Qty: dec("2"), MovementType: MovementReceipt,
		})
		require.NoError(t, err)
		require.Len(t, lines, 2)
		assert.Equal(t, "SN-2", lines[1].Key.SerialNo)
		assertDec(t, "1", lines[1].Qty)
	})

	t.Run("duplicate serial", func(t *testing.T) {
		_, err := allocator.Allocate(ctx, newFakeRepos(), item, AllocationRequest{
			Warehouse: "WH-A", SerialNos: []string{"SN-1", "SN-1"}, Qty: dec("2"), MovementType: MovementReceipt,
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("issue of unknown serial", func(t *testing.T) {
		_, err := allocator.Allocate(ctx, newFakeRepos(), item, AllocationRequest{
			Warehouse: "WH-A", SerialNos: []string{"SN-9"}, Qty: dec("-1"), MovementType: MovementIssue,
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("issue of a delivered serial", func(t *testing.T) {
		repos := newFakeRepos()
		repos.serials.serials["SN-1"] = &SerialNo{ItemCode: "ITEM-001", SerialNo: "SN-1", Status: SerialStatusDelivered}

		_, err := allocator.Allocate(ctx, repos, item, AllocationRequest{
			Warehouse: "WH-A", SerialNos: []string{"SN-1"}, Qty: dec("-1"), MovementType: MovementIssue,
		})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	})

	t.Run("validation does not change the serial", func(t *testing.T) {
		repos := newFakeRepos()
		serial := &SerialNo{ItemCode: "ITEM-001", SerialNo: "SN-1", Status: SerialStatusAvailable, Warehouse: "WH-A"}
		repos.serials.serials["SN-1"] = serial

		lines, err := allocator.Allocate(ctx, repos, item, AllocationRequest{
			Warehouse: "WH-A", SerialNos: []string{"SN-1"}, Qty: dec("-1"), MovementType: MovementIssue,
		})
		require.NoError(t, err)
		assertDec(t, "-1", lines[0].Qty)
		assert.Equal(t, SerialStatusAvailable, serial.Status)
		assert.Equal(t, "WH-A", serial.Warehouse)
	})
}

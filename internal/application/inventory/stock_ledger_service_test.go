package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/strategy"
	"github.com/erp/stockledger/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockLedgerService_MovingAverage(t *testing.T) {
	h := newHarness(t, DefaultLedgerOptions())
	h.item(t, CreateItemCommand{Code: "ITEM-MA", CostMethod: strategy.CostMethodMovingAverage})
	key := inventory.StockKey{ItemCode: "ITEM-MA", Warehouse: "WH-1"}

	first := h.receive(t, "ITEM-MA", "WH-1", at(0), "10", "5")
	require.Len(t, first.Entries, 1)
	assertDec(t, "10", first.Entries[0].BalanceQty)
	assertDec(t, "5", first.Entries[0].ValuationRate)
	assertDec(t, "50", first.Entries[0].BalanceValue)

	second := h.receive(t, "ITEM-MA", "WH-1", at(1), "10", "7")
	assertDec(t, "20", second.Entries[0].BalanceQty)
	assertDec(t, "6", second.Entries[0].ValuationRate)
	assertDec(t, "120", second.Entries[0].BalanceValue)

	out := h.issue(t, "ITEM-MA", "WH-1", at(2), "5")
	assertDec(t, "15", out.Entries[0].BalanceQty)
	assertDec(t, "6", out.Entries[0].ValuationRate)
	assertDec(t, "90", out.Entries[0].BalanceValue)
	assertDec(t, "6", out.Entries[0].OutgoingRate)
	assertDec(t, "-30", out.Entries[0].StockValueDifference)
	assert.False(t, out.Reposted)

	t.Run("balance as of a posting time returns what was posted", func(t *testing.T) {
		b := h.balance(t, key, at(0))
		assertDec(t, "10", b.Qty)
		assertDec(t, "50", b.Value)
		require.NotNil(t, b.LastEntryID)
		assert.Equal(t, first.EntryIDs[0], *b.LastEntryID)

		b = h.balance(t, key, at(1))
		assertDec(t, "120", b.Value)
	})

	t.Run("balance before the first entry is zero", func(t *testing.T) {
		b := h.balance(t, key, at(-1))
		assertDec(t, "0", b.Qty)
		assert.Nil(t, b.LastEntryID)
	})

	t.Run("events follow the commit", func(t *testing.T) {
		assert.Len(t, h.events.ofType(inventory.EventTypeStockMovementPosted), 3)
	})
}

func TestStockLedgerService_PostMovementRejects(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultLedgerOptions())
	h.item(t, CreateItemCommand{Code: "ITEM-A"})
	h.receive(t, "ITEM-A", "WH-1", at(0), "10", "5")

	tests := []struct {
		name string
		cmd  MovementCommand
		want error
	}{
		{"zero quantity", MovementCommand{ItemCode: "ITEM-A", Warehouse: "WH-1", MovementType: inventory.MovementReceipt, Qty: dec("0"), PostingDateTime: at(1)}, shared.ErrNoOpMovement},
		{"wrong sign", MovementCommand{ItemCode: "ITEM-A", Warehouse: "WH-1", MovementType: inventory.MovementIssue, Qty: dec("3"), PostingDateTime: at(1)}, shared.ErrValidation},
		{"unknown item", MovementCommand{ItemCode: "NOPE", Warehouse: "WH-1", MovementType: inventory.MovementReceipt, Qty: dec("3"), PostingDateTime: at(1)}, shared.ErrNotFound},
		{"missing warehouse", MovementCommand{ItemCode: "ITEM-A", MovementType: inventory.MovementReceipt, Qty: dec("3"), PostingDateTime: at(1)}, shared.ErrValidation},
		{"more than on hand", issueCmd("ITEM-A", "WH-1", at(1), "11"), shared.ErrInsufficientStock},
		{"batch on untracked item", MovementCommand{ItemCode: "ITEM-A", Warehouse: "WH-1", BatchNo: "B1", MovementType: inventory.MovementReceipt, Qty: dec("3"), PostingDateTime: at(1)}, shared.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.ledger.PostMovement(ctx, tt.cmd)
			assert.Truef(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
	assert.Equal(t, 1, h.store.Len())

	t.Run("disabled warehouse", func(t *testing.T) {
		_, err := h.master.DisableWarehouse(ctx, "WH-2")
		require.NoError(t, err)
		r := dec("5")
		_, err = h.ledger.PostMovement(ctx, MovementCommand{
			ItemCode: "ITEM-A", Warehouse: "WH-2", MovementType: inventory.MovementReceipt,
			Qty: dec("1"), Rate: &r, PostingDateTime: at(1),
		})
		assert.True(t, errors.Is(err, shared.ErrDisabled))
	})
}

func TestStockLedgerService_BackdatedFIFO(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultLedgerOptions())
	h.item(t, CreateItemCommand{Code: "ITEM-F", CostMethod: strategy.CostMethodFIFO})
	key := inventory.StockKey{ItemCode: "ITEM-F", Warehouse: "WH-1"}

	h.receive(t, "ITEM-F", "WH-1", at(0), "10", "5")
	out := h.issue(t, "ITEM-F", "WH-1", at(48), "4")
	assertDec(t, "5", out.Entries[0].OutgoingRate)
	assertDec(t, "6", out.Entries[0].BalanceQty)
	assertDec(t, "30", out.Entries[0].BalanceValue)

	backdated := h.receive(t, "ITEM-F", "WH-1", at(24), "5", "8")
	assert.True(t, backdated.Reposted)
	assert.Equal(t, 1, backdated.Replayed)
	assertDec(t, "15", backdated.Entries[0].BalanceQty)
	assertDec(t, "90", backdated.Entries[0].BalanceValue)

	replayed, err := h.ledger.GetEntry(ctx, out.EntryIDs[0])
	require.NoError(t, err)
	assertDec(t, "5", replayed.OutgoingRate)
	assertDec(t, "11", replayed.BalanceQty)
	assertDec(t, "70", replayed.BalanceValue)

	b := h.balance(t, key, time.Time{})
	assertDec(t, "11", b.Qty)
	assertDec(t, "70", b.Value)

	completed := h.events.ofType(inventory.EventTypeRepostCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, 1, completed[0].(*inventory.RepostCompletedEvent).EntriesReplayed)

	verify, err := h.ledger.VerifyKey(ctx, key)
	require.NoError(t, err)
	assert.False(t, verify.Drift)
	assert.Equal(t, 3, verify.Entries)
	assertDec(t, "70", verify.RefoldedValue)
}

func TestStockLedgerService_BackdatedCorrectionAborts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultLedgerOptions())
	h.item(t, CreateItemCommand{Code: "ITEM-A"})
	key := inventory.StockKey{ItemCode: "ITEM-A", Warehouse: "WH-1"}

	h.receive(t, "ITEM-A", "WH-1", at(0), "10", "5")
	h.issue(t, "ITEM-A", "WH-1", at(48), "8")

	_, err := h.ledger.PostMovement(ctx, issueCmd("ITEM-A", "WH-1", at(24), "5"))
	assert.True(t, errors.Is(err, shared.ErrRepostAborted))
	assert.Equal(t, 2, h.store.Len())

	b := h.balance(t, key, time.Time{})
	assertDec(t, "2", b.Qty)
	assertDec(t, "10", b.Value)
}

func TestStockLedgerService_DeferredRepost(t *testing.T) {
	ctx := context.Background()
	opts := DefaultLedgerOptions()
	opts.RepostPolicy = RepostDeferred
	h := newHarness(t, opts)
	dispatcher := &recordingDispatcher{}
	h.ledger.SetDispatcher(dispatcher)
	h.item(t, CreateItemCommand{Code: "ITEM-A"})
	key := inventory.StockKey{ItemCode: "ITEM-A", Warehouse: "WH-1"}

	h.receive(t, "ITEM-A", "WH-1", at(24), "10", "5")

	r := dec("8")
	result, err := h.ledger.PostMovement(ctx, MovementCommand{
		ItemCode: "ITEM-A", Warehouse: "WH-1", MovementType: inventory.MovementReceipt,
		Qty: dec("5"), Rate: &r, PostingDateTime: at(0), VoucherRef: "PR-LATE",
	})
	require.NoError(t, err)
	assert.True(t, result.Deferred)
	require.NotNil(t, result.Ticket)
	assert.Equal(t, TicketMovement, result.Ticket.Kind)
	assert.Equal(t, []inventory.StockKey{key}, result.Ticket.Keys)
	require.Len(t, dispatcher.tickets, 1)
	assert.Equal(t, 1, h.store.Len())

	assert.Equal(t, result.PostingID, result.Ticket.PostingID)

	require.NoError(t, h.ledger.ExecuteRepost(ctx, dispatcher.tickets[0]))
	assert.Equal(t, 2, h.store.Len())

	posted, err := h.store.Repositories().Ledger().FindByPosting(ctx, result.PostingID)
	require.NoError(t, err)
	require.Len(t, posted, 1)
	assert.Equal(t, "PR-LATE", posted[0].VoucherRef)

	b := h.balance(t, key, time.Time{})
	assertDec(t, "15", b.Qty)
	assertDec(t, "90", b.Value)
	assertDec(t, "6", b.ValuationRate)

	completed := h.events.ofType(inventory.EventTypeRepostCompleted)
	require.Len(t, completed, 1)
	ticketID := completed[0].(*inventory.RepostCompletedEvent).TicketID
	require.NotNil(t, ticketID)
	assert.Equal(t, result.Ticket.ID, *ticketID)

	t.Run("in-order postings are never deferred", func(t *testing.T) {
		tail := h.issue(t, "ITEM-A", "WH-1", at(48), "1")
		assert.False(t, tail.Deferred)
		assert.Len(t, dispatcher.tickets, 1)
	})
}

func TestStockLedgerService_RepostHorizon(t *testing.T) {
	opts := DefaultLedgerOptions()
	opts.RepostHorizon = 1
	h := newHarness(t, opts)
	dispatcher := &recordingDispatcher{}
	h.ledger.SetDispatcher(dispatcher)
	h.item(t, CreateItemCommand{Code: "ITEM-A"})

	h.receive(t, "ITEM-A", "WH-1", at(10), "1", "5")
	h.receive(t, "ITEM-A", "WH-1", at(20), "1", "5")

	within := h.receive(t, "ITEM-A", "WH-1", at(15), "1", "5")
	assert.False(t, within.Deferred)
	assert.True(t, within.Reposted)

	beyond := h.receive(t, "ITEM-A", "WH-1", at(0), "1", "5")
	assert.True(t, beyond.Deferred)
	assert.Len(t, dispatcher.tickets, 1)
	assert.Equal(t, 3, h.store.Len())
}

func TestStockLedgerService_Idempotency(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultLedgerOptions())
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	h.ledger.SetIdempotencyStore(store)
	h.item(t, CreateItemCommand{Code: "ITEM-A"})

	r := dec("5")
	receipt := MovementCommand{
		ItemCode: "ITEM-A", Warehouse: "WH-1", MovementType: inventory.MovementReceipt,
		Qty: dec("10"), Rate: &r, PostingDateTime: at(0), IdempotencyKey: "PR-1",
	}
	_, err := h.ledger.PostMovement(ctx, receipt)
	require.NoError(t, err)

	_, err = h.ledger.PostMovement(ctx, receipt)
	assert.True(t, errors.Is(err, shared.ErrAlreadyExists))
	assert.Equal(t, 1, h.store.Len())

	t.Run("a failed command can be retried under the same key", func(t *testing.T) {
		cmd := issueCmd("ITEM-A", "WH-1", at(1), "15")
		cmd.IdempotencyKey = "DN-1"
		_, err := h.ledger.PostMovement(ctx, cmd)
		require.True(t, errors.Is(err, shared.ErrInsufficientStock))

		cmd.Qty = dec("-5")
		_, err = h.ledger.PostMovement(ctx, cmd)
		require.NoError(t, err)
		assert.Equal(t, 2, h.store.Len())
	})
}

func TestStockLedgerService_CostStateCache(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultLedgerOptions())
	costCache := cache.NewInMemoryCostStateCache()
	t.Cleanup(func() { _ = costCache.Close() })
	h.ledger.SetCostStateCache(costCache)
	h.item(t, CreateItemCommand{Code: "ITEM-A"})
	key := inventory.StockKey{ItemCode: "ITEM-A", Warehouse: "WH-1"}

	first := h.receive(t, "ITEM-A", "WH-1", at(0), "10", "5")
	cached, err := costCache.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, first.EntryIDs[0], cached.TailEntryID)
	assertDec(t, "50", cached.State.Value)

	h.receive(t, "ITEM-A", "WH-1", at(1), "10", "7")
	out := h.issue(t, "ITEM-A", "WH-1", at(2), "5")
	assertDec(t, "90", out.Entries[0].BalanceValue)

	hits, _ := costCache.GetStats()
	assert.Positive(t, hits)
}

func TestStockLedgerService_Transfer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultLedgerOptions())
	h.item(t, CreateItemCommand{Code: "ITEM-A"})

	h.receive(t, "ITEM-A", "WH-1", at(0), "10", "5")
	h.receive(t, "ITEM-A", "WH-1", at(1), "10", "7")

	result, err := h.ledger.PostTransfer(ctx, TransferCommand{
		ItemCode: "ITEM-A", FromWarehouse: "WH-1", ToWarehouse: "WH-2",
		Qty: dec("4"), PostingDateTime: at(2), VoucherRef: "ST-1",
	})
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, "WH-1", result.Entries[0].Warehouse)
	assertDec(t, "-4", result.Entries[0].Qty)
	assert.Equal(t, "WH-2", result.Entries[1].Warehouse)
	assertDec(t, "6", result.Entries[1].IncomingRate)
	assert.Equal(t, result.PostingID, result.Entries[1].PostingID)

	to := h.balance(t, inventory.StockKey{ItemCode: "ITEM-A", Warehouse: "WH-2"}, time.Time{})
	assertDec(t, "4", to.Qty)
	assertDec(t, "24", to.Value)
	from := h.balance(t, inventory.StockKey{ItemCode: "ITEM-A", Warehouse: "WH-1"}, time.Time{})
	assertDec(t, "16", from.Qty)
	assertDec(t, "96", from.Value)

	summary, err := h.ledger.GetValuationSummary(ctx, "ITEM-A", "")
	require.NoError(t, err)
	assertDec(t, "20", summary.Qty)
	assertDec(t, "120", summary.Value)
	assert.Len(t, summary.Lines, 2)

	t.Run("same warehouse is rejected", func(t *testing.T) {
		_, err := h.ledger.PostTransfer(ctx, TransferCommand{
			ItemCode: "ITEM-A", FromWarehouse: "WH-1", ToWarehouse: "WH-1", Qty: dec("1"),
		})
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("shortfall leaves both warehouses untouched", func(t *testing.T) {
		before := h.store.Len()
		_, err := h.ledger.PostTransfer(ctx, TransferCommand{
			ItemCode: "ITEM-A", FromWarehouse: "WH-2", ToWarehouse: "WH-1",
			Qty: dec("5"), PostingDateTime: at(3),
		})
		assert.True(t, errors.Is(err, shared.ErrInsufficientStock))
		assert.Equal(t, before, h.store.Len())
	})
}

func TestStockLedgerService_ValuationSummaryByGroup(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultLedgerOptions())
	h.item(t, CreateItemCommand{Code: "ITEM-A"})

	_, err := h.master.CreateWarehouse(ctx, CreateWarehouseCommand{Code: "EAST", Name: "East", IsGroup: true})
	require.NoError(t, err)
	for _, code := range []string{"EAST-1", "EAST-2"} {
		_, err := h.master.CreateWarehouse(ctx, CreateWarehouseCommand{Code: code, Name: code, ParentCode: "EAST"})
		require.NoError(t, err)
	}

	h.receive(t, "ITEM-A", "EAST-1", at(0), "2", "10")
	h.receive(t, "ITEM-A", "EAST-2", at(0), "6", "20")
	h.receive(t, "ITEM-A", "WH-1", at(0), "100", "1")

	summary, err := h.ledger.GetValuationSummary(ctx, "ITEM-A", "EAST")
	require.NoError(t, err)
	assertDec(t, "8", summary.Qty)
	assertDec(t, "140", summary.Value)
	assertDec(t, "17.5", summary.ValuationRate)
	assert.Len(t, summary.Lines, 2)

	_, err = h.ledger.GetValuationSummary(ctx, "ITEM-A", "NOWHERE")
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	t.Run("posting against a group is rejected", func(t *testing.T) {
		r := dec("1")
		_, err := h.ledger.PostMovement(ctx, MovementCommand{
			ItemCode: "ITEM-A", Warehouse: "EAST", MovementType: inventory.MovementReceipt,
			Qty: dec("1"), Rate: &r, PostingDateTime: at(1),
		})
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})
}

func TestStockLedgerService_FEFOAllocation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultLedgerOptions())
	h.item(t, CreateItemCommand{Code: "ITEM-B", HasBatchNo: true})

	for no, days := range map[string]int{"B1": 10, "B2": 5} {
		expiry := t0.AddDate(0, 0, days)
		_, err := h.master.CreateBatch(ctx, CreateBatchCommand{ItemCode: "ITEM-B", BatchNo: no, ExpiryDate: &expiry})
		require.NoError(t, err)

		r := dec("3")
		_, err = h.ledger.PostMovement(ctx, MovementCommand{
			ItemCode: "ITEM-B", Warehouse: "WH-1", BatchNo: no, MovementType: inventory.MovementReceipt,
			Qty: dec("5"), Rate: &r, PostingDateTime: at(0),
		})
		require.NoError(t, err)
	}

	result := h.issue(t, "ITEM-B", "WH-1", at(1), "7")
	require.Len(t, result.Entries, 2)
	assert.Equal(t, "B2", result.Entries[0].BatchNo)
	assertDec(t, "-5", result.Entries[0].Qty)
	assert.Equal(t, "B1", result.Entries[1].BatchNo)
	assertDec(t, "-2", result.Entries[1].Qty)

	t.Run("inward movement needs a batch", func(t *testing.T) {
		r := dec("3")
		_, err := h.ledger.PostMovement(ctx, MovementCommand{
			ItemCode: "ITEM-B", Warehouse: "WH-1", MovementType: inventory.MovementReceipt,
			Qty: dec("1"), Rate: &r, PostingDateTime: at(2),
		})
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("shortfall across batches", func(t *testing.T) {
		_, err := h.ledger.PostMovement(ctx, issueCmd("ITEM-B", "WH-1", at(2), "4"))
		assert.True(t, errors.Is(err, shared.ErrInsufficientStock))
	})
}

func TestStockLedgerService_SerialNumbers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultLedgerOptions())
	h.item(t, CreateItemCommand{Code: "ITEM-S", HasSerialNo: true})
	serials := h.store.Repositories().Serials()

	r := dec("100")
	result, err := h.ledger.PostMovement(ctx, MovementCommand{
		ItemCode: "ITEM-S", Warehouse: "WH-1", SerialNos: []string{"SN-1", "SN-2"},
		MovementType: inventory.MovementReceipt, Qty: dec("2"), Rate: &r, PostingDateTime: at(0),
	})
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, "SN-1", result.Entries[0].SerialNo)

	sn, err := serials.Find(ctx, "ITEM-S", "SN-1")
	require.NoError(t, err)
	assert.Equal(t, inventory.SerialStatusAvailable, sn.Status)

	cmd := issueCmd("ITEM-S", "WH-1", at(1), "1")
	cmd.SerialNos = []string{"SN-1"}
	_, err = h.ledger.PostMovement(ctx, cmd)
	require.NoError(t, err)

	sn, err = serials.Find(ctx, "ITEM-S", "SN-1")
	require.NoError(t, err)
	assert.Equal(t, inventory.SerialStatusDelivered, sn.Status)

	t.Run("a delivered serial cannot leave again", func(t *testing.T) {
		_, err := h.ledger.PostMovement(ctx, cmd)
		assert.Error(t, err)
	})

	t.Run("quantity must match the serial count", func(t *testing.T) {
		bad := issueCmd("ITEM-S", "WH-1", at(2), "2")
		bad.SerialNos = []string{"SN-2"}
		_, err := h.ledger.PostMovement(ctx, bad)
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})
}

func TestStockLedgerService_Thresholds(t *testing.T) {
	h := newHarness(t, DefaultLedgerOptions())
	h.item(t, CreateItemCommand{Code: "ITEM-T", MinQty: dec("5"), MaxQty: dec("20")})

	h.receive(t, "ITEM-T", "WH-1", at(0), "10", "1")
	assert.Empty(t, h.events.ofType(inventory.EventTypeStockBelowMinimum))

	h.issue(t, "ITEM-T", "WH-1", at(1), "6")
	below := h.events.ofType(inventory.EventTypeStockBelowMinimum)
	require.Len(t, below, 1)
	assertDec(t, "4", below[0].(*inventory.StockThresholdEvent).BalanceQty)

	h.issue(t, "ITEM-T", "WH-1", at(2), "1")
	assert.Len(t, h.events.ofType(inventory.EventTypeStockBelowMinimum), 1)

	h.receive(t, "ITEM-T", "WH-1", at(3), "30", "1")
	above := h.events.ofType(inventory.EventTypeStockAboveMaximum)
	require.Len(t, above, 1)
	assertDec(t, "20", above[0].(*inventory.StockThresholdEvent).Threshold)
}

func TestStockLedgerService_VerifyKeyDetectsDrift(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultLedgerOptions())
	h.item(t, CreateItemCommand{Code: "ITEM-A"})
	key := inventory.StockKey{ItemCode: "ITEM-A", Warehouse: "WH-1"}

	h.receive(t, "ITEM-A", "WH-1", at(0), "10", "5")
	last := h.receive(t, "ITEM-A", "WH-1", at(1), "10", "7")

	clean, err := h.ledger.VerifyKey(ctx, key)
	require.NoError(t, err)
	assert.False(t, clean.Drift)

	ledger := h.store.Repositories().Ledger()
	stored, err := ledger.FindByID(ctx, last.EntryIDs[0])
	require.NoError(t, err)
	stored.BalanceValue = dec("999")
	require.NoError(t, ledger.UpdateDerived(ctx, []*inventory.LedgerEntry{stored}))

	drifted, err := h.ledger.VerifyKey(ctx, key)
	require.NoError(t, err)
	assert.True(t, drifted.Drift)
	assertDec(t, "999", drifted.StoredValue)
	assertDec(t, "120", drifted.RefoldedValue)
	assert.Equal(t, last.EntryIDs, drifted.Mismatched)

	_, err = h.ledger.VerifyKey(ctx, inventory.StockKey{ItemCode: "ITEM-A"})
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestStockLedgerService_ListEntries(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultLedgerOptions())
	h.item(t, CreateItemCommand{Code: "ITEM-A"})
	for i := 0; i < 3; i++ {
		h.receive(t, "ITEM-A", "WH-1", at(i), "1", "5")
	}

	page, err := h.ledger.ListEntries(ctx, inventory.LedgerFilter{
		Filter:   shared.Filter{Page: 1, PageSize: 2},
		ItemCode: "ITEM-A",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 2)

	from, to := at(2), at(1)
	_, err = h.ledger.ListEntries(ctx, inventory.LedgerFilter{From: &from, To: &to})
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

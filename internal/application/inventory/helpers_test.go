package inventory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	domainstrategy "github.com/erp/stockledger/internal/domain/shared/strategy"
	"github.com/erp/stockledger/internal/infrastructure/lock"
	"github.com/erp/stockledger/internal/infrastructure/persistence/memstore"
	"github.com/erp/stockledger/internal/infrastructure/strategy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func at(hours int) time.Time {
	return t0.Add(time.Duration(hours) * time.Hour)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msg ...any) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got.String(), msg)
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.DomainEvent
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// recordingDispatcher keeps tickets instead of running them
type recordingDispatcher struct {
	mu      sync.Mutex
	tickets []*RepostTicket
}

func (d *recordingDispatcher) Dispatch(_ context.Context, ticket *RepostTicket) error {
	if err := ticket.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tickets = append(d.tickets, ticket)
	return nil
}

type harness struct {
	store        *memstore.Store
	ledger       *StockLedgerService
	master       *MasterDataService
	reservations *ReservationService
	events       *recordingPublisher
}

func newHarness(t *testing.T, opts LedgerOptions) *harness {
	t.Helper()
	registry, err := strategy.NewRegistryWithDefaults(opts.Precision)
	require.NoError(t, err)
	batchStrategy, err := registry.DefaultBatchStrategy()
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	store := memstore.New()
	repos := store.Repositories()
	locker := lock.NewLocalKeyLocker(16, time.Second)
	engine := inventory.NewValuationEngine(registry, domainstrategy.NegativeStockReject)

	events := &recordingPublisher{}
	ledger := NewStockLedgerService(store, repos, engine, inventory.NewAllocator(batchStrategy), locker, opts, logger)
	ledger.SetEventPublisher(events)

	reservations := NewReservationService(store, repos, locker, time.Hour, logger)
	reservations.SetEventPublisher(events)

	h := &harness{
		store:        store,
		ledger:       ledger,
		master:       NewMasterDataService(store, repos, logger),
		reservations: reservations,
		events:       events,
	}
	for _, code := range []string{"WH-1", "WH-2"} {
		_, err := h.master.CreateWarehouse(context.Background(), CreateWarehouseCommand{Code: code, Name: code})
		require.NoError(t, err)
	}
	return h
}

func (h *harness) item(t *testing.T, cmd CreateItemCommand) *inventory.Item {
	t.Helper()
	if cmd.Name == "" {
		cmd.Name = cmd.Code
	}
	if cmd.StockUOM == "" {
		cmd.StockUOM = "EA"
	}
	item, err := h.master.CreateItem(context.Background(), cmd)
	require.NoError(t, err)
	return item
}

func (h *harness) receive(t *testing.T, itemCode, warehouse string, when time.Time, qty, rate string) *PostingResult {
	t.Helper()
	r := dec(rate)
	result, err := h.ledger.PostMovement(context.Background(), MovementCommand{
		ItemCode:        itemCode,
		Warehouse:       warehouse,
		MovementType:    inventory.MovementReceipt,
		Qty:             dec(qty),
		Rate:            &r,
		PostingDateTime: when,
		VoucherType:     "Purchase Receipt",
		VoucherRef:      "PR-" + qty,
	})
	require.NoError(t, err)
	return result
}

func issueCmd(itemCode, warehouse string, when time.Time, qty string) MovementCommand {
	return MovementCommand{
		ItemCode:        itemCode,
		Warehouse:       warehouse,
		MovementType:    inventory.MovementIssue,
		Qty:             dec(qty).Neg(),
		PostingDateTime: when,
		VoucherType:     "Delivery Note",
		VoucherRef:      "DN-" + qty,
	}
}

func (h *harness) issue(t *testing.T, itemCode, warehouse string, when time.Time, qty string) *PostingResult {
	t.Helper()
	result, err := h.ledger.PostMovement(context.Background(), issueCmd(itemCode, warehouse, when, qty))
	require.NoError(t, err)
	return result
}

func (h *harness) balance(t *testing.T, key inventory.StockKey, asOf time.Time) *BalanceDTO {
	t.Helper()
	b, err := h.ledger.GetBalance(context.Background(), key, asOf)
	require.NoError(t, err)
	return b
}

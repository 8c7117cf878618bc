package inventory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/service"
	"github.com/erp/stockledger/internal/domain/shared/strategy"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// endOfTime bounds "current balance" lookups so future-dated entries are included
var endOfTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// StockLedgerService posts movements, transfers and cancellations to the stock ledger
// and answers balance and valuation queries.
type StockLedgerService struct {
	scope      inventory.TransactionScope
	repos      inventory.TransactionalRepositories
	engine     *inventory.ValuationEngine
	reposter   *inventory.Reposter
	allocator  *inventory.Allocator
	normalizer *service.UOMNormalizer
	locker     inventory.KeyLocker
	opts       LedgerOptions
	logger     *zap.Logger

	cache       inventory.CostStateCache
	idempotency shared.IdempotencyStore
	dispatcher  RepostDispatcher
	publisher   shared.EventPublisher
	metrics     LedgerMetrics
}

// NewStockLedgerService creates a new StockLedgerService.
// repos is used for reads outside a unit of work; writes always go through scope.
func NewStockLedgerService(
	scope inventory.TransactionScope,
	repos inventory.TransactionalRepositories,
	engine *inventory.ValuationEngine,
	allocator *inventory.Allocator,
	locker inventory.KeyLocker,
	opts LedgerOptions,
	logger *zap.Logger,
) *StockLedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !opts.RepostPolicy.IsValid() {
		opts.RepostPolicy = RepostSync
	}
	if opts.RepostHorizon <= 0 {
		opts.RepostHorizon = DefaultLedgerOptions().RepostHorizon
	}
	if opts.Precision <= 0 {
		opts.Precision = DefaultLedgerOptions().Precision
	}
	return &StockLedgerService{
		scope:      scope,
		repos:      repos,
		engine:     engine,
		reposter:   inventory.NewReposter(engine),
		allocator:  allocator,
		normalizer: service.NewUOMNormalizer(opts.Precision),
		locker:     locker,
		opts:       opts,
		logger:     logger,
		metrics:    noopMetrics{},
	}
}

// SetEventPublisher sets the publisher receiving events after commit
func (s *StockLedgerService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetDispatcher enables deferred reposts
func (s *StockLedgerService) SetDispatcher(dispatcher RepostDispatcher) {
	s.dispatcher = dispatcher
}

// SetCostStateCache sets the incremental cost state cache
func (s *StockLedgerService) SetCostStateCache(cache inventory.CostStateCache) {
	s.cache = cache
}

// SetIdempotencyStore enables duplicate command detection
func (s *StockLedgerService) SetIdempotencyStore(store shared.IdempotencyStore) {
	s.idempotency = store
}

// SetMetrics sets the metrics recorder
func (s *StockLedgerService) SetMetrics(metrics LedgerMetrics) {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	s.metrics = metrics
}

// PostMovement records one physical movement.
// Tracked items may fan out into one entry per batch or serial number; all of them commit together.
func (s *StockLedgerService) PostMovement(ctx context.Context, cmd MovementCommand) (*PostingResult, error) {
	return s.postMovement(ctx, cmd, nil)
}

func (s *StockLedgerService) postMovement(ctx context.Context, cmd MovementCommand, ticket *RepostTicket) (result *PostingResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock_ledger", "post_movement",
		telemetry.WithAttribute(telemetry.SpanAttrItemCode, cmd.ItemCode),
		telemetry.WithAttribute(telemetry.SpanAttrWarehouse, cmd.Warehouse),
		telemetry.WithAttribute(telemetry.SpanAttrMovementType, string(cmd.MovementType)),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		entries := 0
		if result != nil {
			entries = len(result.EntryIDs)
		}
		if err != nil {
			telemetry.RecordError(span, err)
		}
		s.metrics.RecordPosting(ctx, string(cmd.MovementType), entries, time.Since(start), err)
	}()

	if cmd.PostingDateTime.IsZero() {
		cmd.PostingDateTime = time.Now()
	}
	if err := validateMovement(cmd); err != nil {
		return nil, err
	}

	forget, err := s.claim(ctx, cmd.IdempotencyKey, ticket)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			forget()
		}
	}()

	item, err := s.loadItem(ctx, cmd.ItemCode)
	if err != nil {
		return nil, err
	}
	if err := s.checkWarehouse(ctx, cmd.Warehouse); err != nil {
		return nil, err
	}

	norm, err := s.normalizer.Normalize(item, cmd.UOM, cmd.Qty, cmd.Rate)
	if err != nil {
		return nil, err
	}

	voucherType := cmd.VoucherType
	if voucherType == "" {
		voucherType = string(cmd.MovementType)
	}
	request := inventory.AllocationRequest{
		Warehouse:       cmd.Warehouse,
		BatchNo:         cmd.BatchNo,
		SerialNos:       cmd.SerialNos,
		Qty:             norm.Qty,
		MovementType:    cmd.MovementType,
		PostingDateTime: cmd.PostingDateTime,
	}

	postingID := postingIDFor(ticket)
	build := func(repos inventory.TransactionalRepositories) ([]linePlan, error) {
		lines, err := s.allocator.Allocate(ctx, repos, item, request)
		if err != nil {
			return nil, err
		}
		plans := make([]linePlan, 0, len(lines))
		for _, line := range lines {
			entry := inventory.NewLedgerEntry(postingID, line.Key, cmd.MovementType, cmd.PostingDateTime, line.Qty, voucherType, cmd.VoucherRef)
			if entry.IsInward() {
				if norm.HasRate {
					entry.IncomingRate = norm.Rate
				} else {
					entry.AutoRate = true
				}
			}
			plans = append(plans, linePlan{entry: entry})
		}
		return plans, nil
	}

	unit, plans, err := s.commit(ctx, item, build, ticket != nil)
	if errors.Is(err, errDeferred) {
		deferred := cmd
		t, err := s.deferTicket(ctx, &RepostTicket{Kind: TicketMovement, Movement: &deferred, PostingID: postingID, Keys: keysOf(plans)})
		if err != nil {
			return nil, err
		}
		return &PostingResult{PostingID: postingID, Deferred: true, Ticket: t}, nil
	}
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, item, unit, ticketID(ticket))
	s.logger.Info("Stock movement posted",
		zap.String("posting_id", postingID.String()),
		zap.String("item_code", item.Code),
		zap.String("warehouse", cmd.Warehouse),
		zap.String("movement_type", string(cmd.MovementType)),
		zap.String("qty", norm.Qty.String()),
		zap.Int("entries", len(unit.entries)),
		zap.Int("replayed", unit.replayed()),
	)
	return unit.postingResult(postingID), nil
}

// PostTransfer moves stock between warehouses. The outward legs are valued at the source
// and each inward leg arrives at its outward leg's rate, all in one unit of work.
func (s *StockLedgerService) PostTransfer(ctx context.Context, cmd TransferCommand) (*PostingResult, error) {
	return s.postTransfer(ctx, cmd, nil)
}

func (s *StockLedgerService) postTransfer(ctx context.Context, cmd TransferCommand, ticket *RepostTicket) (result *PostingResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock_ledger", "post_transfer",
		telemetry.WithAttribute(telemetry.SpanAttrItemCode, cmd.ItemCode),
		telemetry.WithAttribute(telemetry.SpanAttrWarehouse, cmd.FromWarehouse),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		entries := 0
		if result != nil {
			entries = len(result.EntryIDs)
		}
		if err != nil {
			telemetry.RecordError(span, err)
		}
		s.metrics.RecordPosting(ctx, string(inventory.MovementTransfer), entries, time.Since(start), err)
	}()

	if cmd.PostingDateTime.IsZero() {
		cmd.PostingDateTime = time.Now()
	}
	if err := validateTransfer(cmd); err != nil {
		return nil, err
	}

	forget, err := s.claim(ctx, cmd.IdempotencyKey, ticket)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			forget()
		}
	}()

	item, err := s.loadItem(ctx, cmd.ItemCode)
	if err != nil {
		return nil, err
	}
	if err := s.checkWarehouse(ctx, cmd.FromWarehouse); err != nil {
		return nil, err
	}
	if err := s.checkWarehouse(ctx, cmd.ToWarehouse); err != nil {
		return nil, err
	}

	norm, err := s.normalizer.Normalize(item, cmd.UOM, cmd.Qty.Neg(), nil)
	if err != nil {
		return nil, err
	}

	request := inventory.AllocationRequest{
		Warehouse:       cmd.FromWarehouse,
		BatchNo:         cmd.BatchNo,
		SerialNos:       cmd.SerialNos,
		Qty:             norm.Qty,
		MovementType:    inventory.MovementTransfer,
		PostingDateTime: cmd.PostingDateTime,
	}

	postingID := postingIDFor(ticket)
	build := func(repos inventory.TransactionalRepositories) ([]linePlan, error) {
		lines, err := s.allocator.Allocate(ctx, repos, item, request)
		if err != nil {
			return nil, err
		}
		plans := make([]linePlan, 0, 2*len(lines))
		for _, line := range lines {
			out := inventory.NewLedgerEntry(postingID, line.Key, inventory.MovementTransfer, cmd.PostingDateTime,
				line.Qty, string(inventory.MovementTransfer), cmd.VoucherRef)
			inKey := line.Key
			inKey.Warehouse = cmd.ToWarehouse
			in := inventory.NewLedgerEntry(postingID, inKey, inventory.MovementTransfer, cmd.PostingDateTime,
				line.Qty.Neg(), string(inventory.MovementTransfer), cmd.VoucherRef)
			plans = append(plans, linePlan{entry: out}, linePlan{entry: in, rateFrom: out})
		}
		return plans, nil
	}

	unit, plans, err := s.commit(ctx, item, build, ticket != nil)
	if errors.Is(err, errDeferred) {
		deferred := cmd
		t, err := s.deferTicket(ctx, &RepostTicket{Kind: TicketTransfer, Transfer: &deferred, PostingID: postingID, Keys: keysOf(plans)})
		if err != nil {
			return nil, err
		}
		return &PostingResult{PostingID: postingID, Deferred: true, Ticket: t}, nil
	}
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, item, unit, ticketID(ticket))
	s.logger.Info("Stock transfer posted",
		zap.String("posting_id", postingID.String()),
		zap.String("item_code", item.Code),
		zap.String("from", cmd.FromWarehouse),
		zap.String("to", cmd.ToWarehouse),
		zap.String("qty", norm.Qty.Neg().String()),
	)
	return unit.postingResult(postingID), nil
}

// ExecuteRepost runs a deferred ticket with a forced synchronous replay.
// A failure publishes RepostAborted and frees the command's idempotency key.
func (s *StockLedgerService) ExecuteRepost(ctx context.Context, ticket *RepostTicket) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock_ledger", "execute_repost",
		telemetry.WithAttribute(telemetry.SpanAttrTicketID, ticket.ID.String()),
	)
	defer span.End()

	if err := ticket.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	var err error
	switch ticket.Kind {
	case TicketMovement:
		_, err = s.postMovement(ctx, *ticket.Movement, ticket)
	case TicketTransfer:
		_, err = s.postTransfer(ctx, *ticket.Transfer, ticket)
	case TicketCancel:
		opts := CancelOptions{}
		if ticket.CancelOptions != nil {
			opts = *ticket.CancelOptions
		}
		_, err = s.cancel(ctx, *ticket.CancelEntryID, opts, ticket)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Warn("Repost ticket aborted",
			zap.String("ticket_id", ticket.ID.String()),
			zap.String("kind", string(ticket.Kind)),
			zap.Error(err),
		)
		s.publish(ctx, inventory.NewRepostAbortedEvent(ticket.ID, ticket.Keys, err.Error()))
		return err
	}
	return nil
}

// maxReplans bounds how often commit re-plans when allocation moves to keys it does not hold
const maxReplans = 3

// errReplan aborts a unit of work whose allocation picked keys outside the held locks
var errReplan = errors.New("allocation changed under lock")

// commit plans the entries, locks their keys and writes them in one unit of work.
// The plan is built again inside the transaction so allocation sees balances no other
// writer can change; if it now needs a key that is not locked, the locks are retaken.
func (s *StockLedgerService) commit(
	ctx context.Context,
	item *inventory.Item,
	build func(repos inventory.TransactionalRepositories) ([]linePlan, error),
	force bool,
) (*postingUnit, []linePlan, error) {
	plans, err := build(s.repos)
	if err != nil {
		return nil, nil, err
	}

	for attempt := 0; ; attempt++ {
		unit, fresh, err := s.commitLocked(ctx, item, keysOf(plans), build, force)
		if fresh != nil {
			plans = fresh
		}
		if !errors.Is(err, errReplan) {
			return unit, plans, err
		}
		if attempt+1 >= maxReplans {
			return nil, plans, fmt.Errorf("%w: allocation of %s kept moving between keys", shared.ErrConcurrencyConflict, item.Code)
		}
		s.logger.Debug("Re-planning allocation", zap.String("item_code", item.Code), zap.Int("attempt", attempt+1))
	}
}

func (s *StockLedgerService) commitLocked(
	ctx context.Context,
	item *inventory.Item,
	keys []inventory.StockKey,
	build func(repos inventory.TransactionalRepositories) ([]linePlan, error),
	force bool,
) (*postingUnit, []linePlan, error) {
	unlock, err := s.locker.Lock(ctx, keys...)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	held := make(map[inventory.StockKey]struct{}, len(keys))
	for _, k := range keys {
		held[k] = struct{}{}
	}

	var plans []linePlan
	unit := newPostingUnit()
	err = s.scope.Execute(ctx, func(repos inventory.TransactionalRepositories) error {
		unit = newPostingUnit()
		fresh, err := build(repos)
		if err != nil {
			return err
		}
		plans = fresh
		for _, k := range keysOf(fresh) {
			if _, ok := held[k]; !ok {
				return errReplan
			}
		}

		for _, p := range fresh {
			if p.rateFrom != nil {
				p.entry.IncomingRate = p.rateFrom.OutgoingRate
			}
			if p.entry.SerialNo != "" {
				if err := s.moveSerial(ctx, repos, p.entry); err != nil {
					return err
				}
			}
			if err := s.applyLine(ctx, repos, item, p.entry, force, unit); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, plans, err
	}
	return unit, plans, nil
}

// moveSerial advances the serial's lifecycle and remembers where it was for cancellation
func (s *StockLedgerService) moveSerial(ctx context.Context, repos inventory.TransactionalRepositories, entry *inventory.LedgerEntry) error {
	serial, err := repos.Serials().Find(ctx, entry.ItemCode, entry.SerialNo)
	if errors.Is(err, shared.ErrNotFound) && entry.MovementType == inventory.MovementReceipt {
		serial, err = inventory.NewSerialNo(entry.ItemCode, entry.SerialNo)
	}
	if err != nil {
		return err
	}

	prevStatus, prevWarehouse, err := serial.ApplyMovement(entry.MovementType, entry.IsInward(), entry.Warehouse)
	if err != nil {
		return err
	}
	entry.PrevSerialStatus = prevStatus
	entry.PrevSerialWarehouse = prevWarehouse
	return repos.Serials().Save(ctx, serial)
}

// applyLine values and stores one entry. Entries at or after the key's tail take the fast path;
// earlier entries are inserted and everything after them is replayed.
func (s *StockLedgerService) applyLine(
	ctx context.Context,
	repos inventory.TransactionalRepositories,
	item *inventory.Item,
	entry *inventory.LedgerEntry,
	force bool,
	unit *postingUnit,
) error {
	key := entry.Key()
	ledger := repos.Ledger()

	latest, err := ledger.Latest(ctx, key)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	if latest == nil || !entry.PostingDateTime.Before(latest.PostingDateTime) {
		state, err := s.tailState(ctx, repos, item, key, latest)
		if err != nil {
			return err
		}
		next, err := s.engine.Apply(state, item, entry)
		if err != nil {
			return err
		}
		if err := ledger.Append(ctx, entry); err != nil {
			return err
		}
		unit.record(entry, entry.ID, next)
		return nil
	}

	if !force {
		downstream, err := ledger.CountAfter(ctx, key, inventory.Position{At: entry.PostingDateTime, Sequence: math.MaxInt64})
		if err != nil {
			return err
		}
		if s.shouldDefer(downstream) {
			return errDeferred
		}
	}

	start := time.Now()
	if err := ledger.Insert(ctx, entry); err != nil {
		return err
	}
	entries, err := ledger.ListByKey(ctx, key)
	if err != nil {
		return err
	}
	result, err := s.reposter.Repost(item, entries, entry.Position())
	if err != nil {
		s.metrics.RecordRepost(ctx, 0, time.Since(start), errors.Is(err, shared.ErrRepostAborted))
		return err
	}
	if err := ledger.UpdateDerived(ctx, result.Changed); err != nil {
		return err
	}
	for _, e := range entries {
		if e.ID == entry.ID {
			copyDerived(entry, e)
			break
		}
	}

	unit.record(entry, entries[len(entries)-1].ID, result.State)
	unit.repost(key, entry.PostingDateTime, result.Replayed-1)
	s.metrics.RecordRepost(ctx, result.Replayed, time.Since(start), false)
	return nil
}

// tailState returns the cost state after the key's latest entry, from cache when it is current
func (s *StockLedgerService) tailState(
	ctx context.Context,
	repos inventory.TransactionalRepositories,
	item *inventory.Item,
	key inventory.StockKey,
	latest *inventory.LedgerEntry,
) (strategy.CostState, error) {
	if latest == nil {
		return strategy.NewCostState(""), nil
	}
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("Cost state cache read failed", zap.String("key", key.String()), zap.Error(err))
		} else if cached != nil && cached.TailEntryID == latest.ID {
			return cached.State, nil
		}
	}
	entries, err := repos.Ledger().ListByKey(ctx, key)
	if err != nil {
		return strategy.CostState{}, err
	}
	return s.engine.Fold(item, entries)
}

func (s *StockLedgerService) shouldDefer(downstream int64) bool {
	if s.dispatcher == nil {
		return false
	}
	if s.opts.RepostPolicy == RepostDeferred {
		return downstream > 0
	}
	return downstream > int64(s.opts.RepostHorizon)
}

// postingIDFor keeps the posting id a deferred ticket handed out, or starts a new one
func postingIDFor(ticket *RepostTicket) uuid.UUID {
	if ticket != nil && ticket.PostingID != uuid.Nil {
		return ticket.PostingID
	}
	return uuid.New()
}

func (s *StockLedgerService) deferTicket(ctx context.Context, ticket *RepostTicket) (*RepostTicket, error) {
	ticket.ID = uuid.New()
	ticket.CreatedAt = time.Now()
	if err := s.dispatcher.Dispatch(ctx, ticket); err != nil {
		return nil, err
	}
	s.metrics.RecordDeferred(ctx, string(ticket.Kind))
	s.logger.Info("Backdated correction deferred",
		zap.String("ticket_id", ticket.ID.String()),
		zap.String("kind", string(ticket.Kind)),
		zap.Int("keys", len(ticket.Keys)),
	)
	return ticket, nil
}

// claim reserves the command's idempotency key. The returned func frees it again.
// Tickets were claimed when first submitted, so they only get the release.
func (s *StockLedgerService) claim(ctx context.Context, key string, ticket *RepostTicket) (func(), error) {
	if key == "" || s.idempotency == nil {
		return func() {}, nil
	}
	storeKey := "stock:" + key
	forget := func() {
		if err := s.idempotency.Forget(context.WithoutCancel(ctx), storeKey); err != nil {
			s.logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
		}
	}
	if ticket != nil {
		return forget, nil
	}

	claimed, err := s.idempotency.MarkProcessed(ctx, storeKey, s.opts.IdempotencyTTL)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("%w: command %s was already submitted", shared.ErrAlreadyExists, key)
	}
	return forget, nil
}

// afterCommit refreshes the cache, publishes events and raises threshold alerts
func (s *StockLedgerService) afterCommit(ctx context.Context, item *inventory.Item, unit *postingUnit, ticketID *uuid.UUID) {
	if s.cache != nil {
		for key, state := range unit.states {
			if err := s.cache.Put(ctx, key, state); err != nil {
				s.logger.Warn("Cost state cache write failed", zap.String("key", key.String()), zap.Error(err))
				_ = s.cache.Invalidate(ctx, key)
			}
		}
	}

	events := make([]shared.DomainEvent, 0, len(unit.entries)+len(unit.cancellations)+len(unit.reposts))
	for _, e := range unit.entries {
		events = append(events, inventory.NewStockMovementPostedEvent(e))
	}
	for _, c := range unit.cancellations {
		events = append(events, inventory.NewLedgerEntryCancelledEvent(c.original, c.reversal, c.reason))
	}
	for _, r := range unit.reposts {
		events = append(events, inventory.NewRepostCompletedEvent(r.key, r.from, r.replayed, ticketID))
	}
	events = append(events, s.thresholdEvents(ctx, item, unit)...)
	s.publish(ctx, events...)
}

// thresholdEvents fires when a warehouse balance crosses the item's reorder bounds
func (s *StockLedgerService) thresholdEvents(ctx context.Context, item *inventory.Item, unit *postingUnit) []shared.DomainEvent {
	if !item.MinQty.IsPositive() && !item.MaxQty.IsPositive() {
		return nil
	}

	var events []shared.DomainEvent
	for _, warehouse := range unit.warehouses() {
		balance, err := s.warehouseBalance(ctx, item.Code, []string{warehouse})
		if err != nil {
			s.logger.Warn("Threshold check skipped", zap.String("warehouse", warehouse), zap.Error(err))
			continue
		}
		previous := balance.Sub(unit.deltas[warehouse])

		if item.MinQty.IsPositive() && balance.LessThan(item.MinQty) && !previous.LessThan(item.MinQty) {
			events = append(events, inventory.NewStockBelowMinimumEvent(item.Code, warehouse, balance, item.MinQty))
		}
		if item.MaxQty.IsPositive() && balance.GreaterThan(item.MaxQty) && !previous.GreaterThan(item.MaxQty) {
			events = append(events, inventory.NewStockAboveMaximumEvent(item.Code, warehouse, balance, item.MaxQty))
		}
	}
	return events
}

// warehouseBalance sums the current quantity of every sub-key of an item in the warehouses
func (s *StockLedgerService) warehouseBalance(ctx context.Context, itemCode string, warehouses []string) (decimal.Decimal, error) {
	keys, err := s.repos.Ledger().ListKeys(ctx, itemCode, warehouses)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, key := range keys {
		entry, err := s.repos.Ledger().BalanceAsOf(ctx, key, endOfTime)
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(entry.BalanceQty)
	}
	return total, nil
}

func (s *StockLedgerService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Error("Failed to publish ledger events", zap.Int("count", len(events)), zap.Error(err))
	}
}

func (s *StockLedgerService) loadItem(ctx context.Context, code string) (*inventory.Item, error) {
	item, err := s.repos.Items().FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := item.EnsureActive(); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *StockLedgerService) checkWarehouse(ctx context.Context, code string) error {
	warehouse, err := s.repos.Warehouses().FindByCode(ctx, code)
	if err != nil {
		return err
	}
	return warehouse.EnsurePostable()
}

func validateMovement(cmd MovementCommand) error {
	if cmd.ItemCode == "" || cmd.Warehouse == "" {
		return fmt.Errorf("%w: item code and warehouse are required", shared.ErrValidation)
	}
	if !cmd.MovementType.IsValid() {
		return fmt.Errorf("%w: unknown movement type %q", shared.ErrValidation, cmd.MovementType)
	}
	return cmd.MovementType.ValidateSign(cmd.Qty)
}

func validateTransfer(cmd TransferCommand) error {
	if cmd.ItemCode == "" || cmd.FromWarehouse == "" || cmd.ToWarehouse == "" {
		return fmt.Errorf("%w: item code and both warehouses are required", shared.ErrValidation)
	}
	if cmd.FromWarehouse == cmd.ToWarehouse {
		return fmt.Errorf("%w: source and target warehouse are the same", shared.ErrValidation)
	}
	if cmd.Qty.IsZero() {
		return shared.ErrNoOpMovement
	}
	if cmd.Qty.IsNegative() {
		return fmt.Errorf("%w: transfer quantity must be positive", shared.ErrValidation)
	}
	return nil
}

func ticketID(ticket *RepostTicket) *uuid.UUID {
	if ticket == nil {
		return nil
	}
	id := ticket.ID
	return &id
}

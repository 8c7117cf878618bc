package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Cancel reverses a committed entry. The original is flagged cancelled, a mirror reversal is
// appended at the original's posting time and every later entry of the key is replayed.
// Transfers, and postings cancelled with WholePosting, are reversed leg by leg in one unit of work.
func (s *StockLedgerService) Cancel(ctx context.Context, entryID uuid.UUID, opts CancelOptions) (*CancelResult, error) {
	return s.cancel(ctx, entryID, opts, nil)
}

func (s *StockLedgerService) cancel(ctx context.Context, entryID uuid.UUID, opts CancelOptions, ticket *RepostTicket) (result *CancelResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock_ledger", "cancel",
		telemetry.WithAttribute(telemetry.SpanAttrEntryID, entryID.String()),
	)
	defer span.End()
	defer func() {
		cancelled := 0
		if result != nil {
			cancelled = len(result.CancelledIDs)
		}
		if err != nil {
			telemetry.RecordError(span, err)
		}
		s.metrics.RecordCancel(ctx, cancelled, err)
	}()

	entry, err := s.repos.Ledger().FindByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.IsReversal() {
		return nil, fmt.Errorf("%w: entry %s is a reversal", shared.ErrInvalidState, entryID)
	}
	if entry.IsCancelled {
		return nil, fmt.Errorf("%w: entry %s", shared.ErrAlreadyCancelled, entryID)
	}

	targets, err := s.cancelTargets(ctx, entry, opts)
	if err != nil {
		return nil, err
	}

	item, err := s.repos.Items().FindByCode(ctx, entry.ItemCode)
	if err != nil {
		return nil, err
	}

	keys := make([]inventory.StockKey, 0, len(targets))
	for _, t := range targets {
		keys = append(keys, t.Key())
	}
	keys = inventory.SortKeys(keys)

	unlock, err := s.locker.Lock(ctx, keys...)
	if err != nil {
		return nil, err
	}
	unit := newPostingUnit()
	err = s.scope.Execute(ctx, func(repos inventory.TransactionalRepositories) error {
		for _, t := range targets {
			if err := s.cancelEntry(ctx, repos, item, t.ID, ticket != nil, opts.Reason, unit); err != nil {
				return err
			}
		}
		return nil
	})
	unlock()

	if errors.Is(err, errDeferred) {
		id := entryID
		cancelOpts := opts
		t, err := s.deferTicket(ctx, &RepostTicket{
			Kind:          TicketCancel,
			CancelEntryID: &id,
			CancelOptions: &cancelOpts,
			Keys:          keys,
		})
		if err != nil {
			return nil, err
		}
		return &CancelResult{Deferred: true, Ticket: t}, nil
	}
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, item, unit, ticketID(ticket))
	s.logger.Info("Ledger entries cancelled",
		zap.String("entry_id", entryID.String()),
		zap.String("item_code", item.Code),
		zap.Int("cancelled", len(unit.cancellations)),
		zap.Int("replayed", unit.replayed()),
		zap.String("reason", opts.Reason),
	)
	return unit.cancelResult(), nil
}

// cancelTargets expands a cancellation to the whole posting when required.
// Inward legs go first so serial numbers unwind in reverse order of their moves.
func (s *StockLedgerService) cancelTargets(ctx context.Context, entry *inventory.LedgerEntry, opts CancelOptions) ([]*inventory.LedgerEntry, error) {
	if !opts.WholePosting && entry.MovementType != inventory.MovementTransfer {
		return []*inventory.LedgerEntry{entry}, nil
	}

	siblings, err := s.repos.Ledger().FindByPosting(ctx, entry.PostingID)
	if err != nil {
		return nil, err
	}
	targets := make([]*inventory.LedgerEntry, 0, len(siblings))
	for _, e := range siblings {
		if e.IsReversal() {
			continue
		}
		if e.IsCancelled {
			return nil, fmt.Errorf("%w: entry %s of posting %s", shared.ErrAlreadyCancelled, e.ID, entry.PostingID)
		}
		targets = append(targets, e)
	}
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].IsInward() && !targets[j].IsInward()
	})
	return targets, nil
}

// cancelEntry reverses one entry inside the unit of work
func (s *StockLedgerService) cancelEntry(
	ctx context.Context,
	repos inventory.TransactionalRepositories,
	item *inventory.Item,
	id uuid.UUID,
	force bool,
	reason string,
	unit *postingUnit,
) error {
	ledger := repos.Ledger()

	original, err := ledger.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if original.IsCancelled {
		return fmt.Errorf("%w: entry %s", shared.ErrAlreadyCancelled, id)
	}
	key := original.Key()

	if !force {
		downstream, err := ledger.CountAfter(ctx, key, original.Position())
		if err != nil {
			return err
		}
		if s.shouldDefer(downstream) {
			return errDeferred
		}
	}

	start := time.Now()
	if err := ledger.MarkCancelled(ctx, original.ID); err != nil {
		return err
	}
	original.IsCancelled = true

	reversal := original.NewReversal()
	if err := ledger.Insert(ctx, reversal); err != nil {
		return err
	}

	entries, err := ledger.ListByKey(ctx, key)
	if err != nil {
		return err
	}
	result, err := s.reposter.Repost(item, entries, original.Position())
	if err != nil {
		s.metrics.RecordRepost(ctx, 0, time.Since(start), errors.Is(err, shared.ErrRepostAborted))
		return err
	}
	if err := ledger.UpdateDerived(ctx, result.Changed); err != nil {
		return err
	}
	for _, e := range entries {
		if e.ID == reversal.ID {
			copyDerived(reversal, e)
			break
		}
	}

	if original.SerialNo != "" && original.PrevSerialStatus != "" {
		if err := s.restoreSerial(ctx, repos, original); err != nil {
			return err
		}
	}

	unit.cancel(original, reversal, reason)
	unit.setState(key, entries[len(entries)-1].ID, result.State)
	if downstream := result.Replayed - 2; downstream > 0 {
		unit.repost(key, original.PostingDateTime, downstream)
		s.metrics.RecordRepost(ctx, downstream, time.Since(start), false)
	}
	return nil
}

func (s *StockLedgerService) restoreSerial(ctx context.Context, repos inventory.TransactionalRepositories, original *inventory.LedgerEntry) error {
	serial, err := repos.Serials().Find(ctx, original.ItemCode, original.SerialNo)
	if err != nil {
		return err
	}
	serial.Restore(original.PrevSerialStatus, original.PrevSerialWarehouse)
	return repos.Serials().Save(ctx, serial)
}

package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GetBalance returns the running balance of a key at asOf. A zero asOf means now.
// Keys without entries at that time report a zero balance.
func (s *StockLedgerService) GetBalance(ctx context.Context, key inventory.StockKey, asOf time.Time) (*BalanceDTO, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}

	out := &BalanceDTO{
		Key:           key,
		AsOf:          asOf,
		Qty:           decimal.Zero,
		Value:         decimal.Zero,
		ValuationRate: decimal.Zero,
	}
	entry, err := s.repos.Ledger().BalanceAsOf(ctx, key, asOf)
	if errors.Is(err, shared.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	id := entry.ID
	out.Qty = entry.BalanceQty
	out.Value = entry.BalanceValue
	out.ValuationRate = entry.ValuationRate
	out.LastEntryID = &id
	return out, nil
}

// GetValuationSummary aggregates an item over its batch and serial sub-keys.
// A group warehouse includes all of its descendants; an empty warehouse means everywhere.
func (s *StockLedgerService) GetValuationSummary(ctx context.Context, itemCode, warehouse string) (*ValuationSummaryDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock_ledger", "valuation_summary",
		telemetry.WithAttribute(telemetry.SpanAttrItemCode, itemCode),
		telemetry.WithAttribute(telemetry.SpanAttrWarehouse, warehouse),
	)
	defer span.End()

	if itemCode == "" {
		return nil, fmt.Errorf("%w: item code is required", shared.ErrValidation)
	}
	if _, err := s.repos.Items().FindByCode(ctx, itemCode); err != nil {
		return nil, err
	}

	var warehouses []string
	if warehouse != "" {
		var err error
		warehouses, err = s.descendants(ctx, warehouse)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	keys, err := s.repos.Ledger().ListKeys(ctx, itemCode, warehouses)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := time.Now()
	summary := &ValuationSummaryDTO{
		ItemCode:      itemCode,
		Warehouse:     warehouse,
		Qty:           decimal.Zero,
		Value:         decimal.Zero,
		ValuationRate: decimal.Zero,
		ReservedQty:   decimal.Zero,
		AvailableQty:  decimal.Zero,
		Lines:         make([]ValuationLineDTO, 0, len(keys)),
	}
	for _, key := range keys {
		line := ValuationLineDTO{Key: key, Qty: decimal.Zero, Value: decimal.Zero, ValuationRate: decimal.Zero}
		entry, err := s.repos.Ledger().BalanceAsOf(ctx, key, endOfTime)
		switch {
		case errors.Is(err, shared.ErrNotFound):
		case err != nil:
			telemetry.RecordError(span, err)
			return nil, err
		default:
			line.Qty = entry.BalanceQty
			line.Value = entry.BalanceValue
			line.ValuationRate = entry.ValuationRate
		}

		reserved, err := s.reservedQty(ctx, key, now)
		if err != nil {
			return nil, err
		}
		line.ReservedQty = reserved

		summary.Qty = summary.Qty.Add(line.Qty)
		summary.Value = summary.Value.Add(line.Value)
		summary.ReservedQty = summary.ReservedQty.Add(reserved)
		summary.Lines = append(summary.Lines, line)
	}
	if !summary.Qty.IsZero() {
		summary.ValuationRate = summary.Value.Div(summary.Qty).Round(s.opts.Precision)
	}
	summary.AvailableQty = summary.Qty.Sub(summary.ReservedQty)
	return summary, nil
}

// descendants walks the warehouse tree below root, root included
func (s *StockLedgerService) descendants(ctx context.Context, root string) ([]string, error) {
	if _, err := s.repos.Warehouses().FindByCode(ctx, root); err != nil {
		return nil, err
	}
	seen := map[string]struct{}{root: {}}
	out := []string{root}
	queue := []string{root}
	for len(queue) > 0 {
		code := queue[0]
		queue = queue[1:]
		children, err := s.repos.Warehouses().FindChildren(ctx, code)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if _, ok := seen[child.Code]; ok {
				continue
			}
			seen[child.Code] = struct{}{}
			out = append(out, child.Code)
			queue = append(queue, child.Code)
		}
	}
	return out, nil
}

func (s *StockLedgerService) reservedQty(ctx context.Context, key inventory.StockKey, now time.Time) (decimal.Decimal, error) {
	reservations, err := s.repos.Reservations().ListActiveByKey(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for i := range reservations {
		if reservations[i].IsExpiredAt(now) {
			continue
		}
		total = total.Add(reservations[i].Quantity)
	}
	return total, nil
}

// ListEntries returns a page of ledger entries
func (s *StockLedgerService) ListEntries(ctx context.Context, filter inventory.LedgerFilter) (*shared.Paginated[LedgerEntryDTO], error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, fmt.Errorf("%w: date range is inverted", shared.ErrValidation)
	}
	entries, total, err := s.repos.Ledger().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]LedgerEntryDTO, 0, len(entries))
	for i := range entries {
		items = append(items, ToLedgerEntryDTO(&entries[i]))
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.Limit())
	return &page, nil
}

// GetEntry returns one ledger entry
func (s *StockLedgerService) GetEntry(ctx context.Context, id uuid.UUID) (*LedgerEntryDTO, error) {
	entry, err := s.repos.Ledger().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := ToLedgerEntryDTO(entry)
	return &dto, nil
}

// VerifyKey refolds a key from its first entry and reports entries whose stored
// derived fields differ from the recomputed ones. Nothing is written.
func (s *StockLedgerService) VerifyKey(ctx context.Context, key inventory.StockKey) (*VerifyResult, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	item, err := s.repos.Items().FindByCode(ctx, key.ItemCode)
	if err != nil {
		return nil, err
	}
	stored, err := s.repos.Ledger().ListByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	out := &VerifyResult{
		Key:           key,
		Entries:       len(stored),
		StoredQty:     decimal.Zero,
		StoredValue:   decimal.Zero,
		RefoldedQty:   decimal.Zero,
		RefoldedValue: decimal.Zero,
	}
	if len(stored) == 0 {
		return out, nil
	}
	for i := len(stored) - 1; i >= 0; i-- {
		if stored[i].Counts() || stored[i].IsReversal() {
			out.StoredQty = stored[i].BalanceQty
			out.StoredValue = stored[i].BalanceValue
			break
		}
	}

	clones := make([]*inventory.LedgerEntry, len(stored))
	for i, e := range stored {
		clones[i] = e.Clone()
	}
	result, err := s.reposter.Repost(item, clones, inventory.Position{})
	if err != nil {
		return nil, err
	}
	out.RefoldedQty = result.State.Qty
	out.RefoldedValue = result.State.Value
	for _, e := range result.Changed {
		out.Mismatched = append(out.Mismatched, e.ID)
	}
	out.Drift = len(out.Mismatched) > 0 ||
		!out.StoredQty.Equal(out.RefoldedQty) ||
		!out.StoredValue.Equal(out.RefoldedValue)
	return out, nil
}

package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// AllocationRequest is a normalized movement that still needs batch or serial resolution
type AllocationRequest struct {
	Warehouse       string
	BatchNo         string
	SerialNos       []string
	Qty             decimal.Decimal // signed, stock units
	MovementType    MovementType
	PostingDateTime time.Time
}

// AllocationLine is one key-level share of a movement
type AllocationLine struct {
	Key StockKey
	Qty decimal.Decimal
}

// Allocator resolves movements of batch- and serial-tracked items into per-key lines
type Allocator struct {
	batchStrategy strategy.BatchManagementStrategy
}

// NewAllocator creates an allocator picking batches with the given strategy
func NewAllocator(batchStrategy strategy.BatchManagementStrategy) *Allocator {
	return &Allocator{batchStrategy: batchStrategy}
}

// Allocate splits a movement into lines. It reads batch balances and serial records
// but writes nothing.
func (a *Allocator) Allocate(ctx context.Context, repos TransactionalRepositories, item *Item, req AllocationRequest) ([]AllocationLine, error) {
	if err := req.MovementType.ValidateSign(req.Qty); err != nil {
		return nil, err
	}

	if !item.IsTracked() {
		if req.BatchNo != "" || len(req.SerialNos) > 0 {
			return nil, fmt.Errorf("%w: item %s is not batch or serial tracked", shared.ErrValidation, item.Code)
		}
		return []AllocationLine{{
			Key: StockKey{ItemCode: item.Code, Warehouse: req.Warehouse},
			Qty: req.Qty,
		}}, nil
	}

	if !item.HasBatchNo && req.BatchNo != "" {
		return nil, fmt.Errorf("%w: item %s is not batch tracked", shared.ErrValidation, item.Code)
	}
	if item.HasSerialNo {
		return a.allocateSerials(ctx, repos, item, req)
	}
	if len(req.SerialNos) > 0 {
		return nil, fmt.Errorf("%w: item %s is not serial tracked", shared.ErrValidation, item.Code)
	}
	return a.allocateBatches(ctx, repos, item, req)
}

func (a *Allocator) allocateBatches(ctx context.Context, repos TransactionalRepositories, item *Item, req AllocationRequest) ([]AllocationLine, error) {
	if req.BatchNo != "" {
		if err := a.checkBatch(ctx, repos, item, req.BatchNo); err != nil {
			return nil, err
		}
		return []AllocationLine{{
			Key: StockKey{ItemCode: item.Code, Warehouse: req.Warehouse, BatchNo: req.BatchNo},
			Qty: req.Qty,
		}}, nil
	}
	if req.Qty.IsPositive() {
		return nil, fmt.Errorf("%w: inward movement of item %s needs a batch", shared.ErrValidation, item.Code)
	}

	selections, err := a.selectBatches(ctx, repos, item, req.Warehouse, req.Qty.Neg(), req.PostingDateTime)
	if err != nil {
		return nil, err
	}
	lines := make([]AllocationLine, 0, len(selections))
	for _, sel := range selections {
		lines = append(lines, AllocationLine{
			Key: StockKey{ItemCode: item.Code, Warehouse: req.Warehouse, BatchNo: sel.BatchNo},
			Qty: sel.Quantity.Neg(),
		})
	}
	return lines, nil
}

// selectBatches picks batches for an outward quantity. Any shortfall is an error.
func (a *Allocator) selectBatches(
	ctx context.Context,
	repos TransactionalRepositories,
	item *Item,
	warehouse string,
	qty decimal.Decimal,
	at time.Time,
) ([]strategy.BatchSelection, error) {
	balances, err := repos.Ledger().BatchBalances(ctx, item.Code, warehouse)
	if err != nil {
		return nil, err
	}
	batches, err := repos.Batches().ListByItem(ctx, item.Code)
	if err != nil {
		return nil, err
	}

	candidates := make([]strategy.Batch, 0, len(batches))
	for _, b := range batches {
		available, ok := balances[b.BatchNo]
		if !ok || !available.IsPositive() || b.Disabled {
			continue
		}
		c := strategy.Batch{
			ItemCode:     item.Code,
			Warehouse:    warehouse,
			BatchNo:      b.BatchNo,
			AvailableQty: available,
			ReceivedDate: b.CreatedAt,
		}
		if b.ManufactureDate != nil {
			c.ManufactureDate = *b.ManufactureDate
		}
		if b.ExpiryDate != nil {
			c.ExpiryDate = *b.ExpiryDate
		}
		candidates = append(candidates, c)
	}

	result, err := a.batchStrategy.SelectBatches(ctx, strategy.BatchSelectionContext{
		ItemCode:  item.Code,
		Warehouse: warehouse,
		Quantity:  qty,
		Date:      at,
	}, candidates)
	if err != nil {
		return nil, err
	}
	if result.ShortfallQty.IsPositive() {
		return nil, fmt.Errorf("%w: item %s in %s is short by %s across usable batches",
			shared.ErrInsufficientStock, item.Code, warehouse, result.ShortfallQty)
	}
	return result.Selections, nil
}

func (a *Allocator) checkBatch(ctx context.Context, repos TransactionalRepositories, item *Item, batchNo string) error {
	batch, err := repos.Batches().Find(ctx, item.Code, batchNo)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("%w: batch %s of item %s", shared.ErrNotFound, batchNo, item.Code)
		}
		return err
	}
	return batch.EnsureActive()
}

func (a *Allocator) allocateSerials(ctx context.Context, repos TransactionalRepositories, item *Item, req AllocationRequest) ([]AllocationLine, error) {
	count := req.Qty.Abs()
	if !count.Equal(decimal.NewFromInt(int64(len(req.SerialNos)))) {
		return nil, fmt.Errorf("%w: quantity %s does not match %d serial numbers",
			shared.ErrValidation, count, len(req.SerialNos))
	}
	if item.HasBatchNo {
		if req.BatchNo == "" {
			return nil, fmt.Errorf("%w: serial movement of item %s needs a batch", shared.ErrValidation, item.Code)
		}
		if err := a.checkBatch(ctx, repos, item, req.BatchNo); err != nil {
			return nil, err
		}
	}

	unit := decimal.NewFromInt(1)
	if req.Qty.IsNegative() {
		unit = unit.Neg()
	}

	seen := make(map[string]struct{}, len(req.SerialNos))
	lines := make([]AllocationLine, 0, len(req.SerialNos))
	for _, no := range req.SerialNos {
		if _, dup := seen[no]; dup {
			return nil, fmt.Errorf("%w: serial %s listed twice", shared.ErrValidation, no)
		}
		seen[no] = struct{}{}

		if err := a.checkSerial(ctx, repos, item, no, req); err != nil {
			return nil, err
		}
		lines = append(lines, AllocationLine{
			Key: StockKey{ItemCode: item.Code, Warehouse: req.Warehouse, BatchNo: req.BatchNo, SerialNo: no},
			Qty: unit,
		})
	}
	return lines, nil
}

// checkSerial verifies the serial's lifecycle allows the movement without changing it
func (a *Allocator) checkSerial(ctx context.Context, repos TransactionalRepositories, item *Item, serialNo string, req AllocationRequest) error {
	serial, err := repos.Serials().Find(ctx, item.Code, serialNo)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		if req.Qty.IsPositive() && req.MovementType == MovementReceipt {
			return nil
		}
		return fmt.Errorf("%w: serial %s of item %s", shared.ErrNotFound, serialNo, item.Code)
	case err != nil:
		return err
	}

	probe := *serial
	_, _, err = probe.ApplyMovement(req.MovementType, req.Qty.IsPositive(), req.Warehouse)
	return err
}

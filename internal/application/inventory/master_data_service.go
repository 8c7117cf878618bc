package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateItemCommand registers an item
type CreateItemCommand struct {
	Code               string                     `json:"code"`
	Name               string                     `json:"name"`
	StockUOM           string                     `json:"stock_uom"`
	CostMethod         strategy.CostMethod        `json:"cost_method"`
	HasBatchNo         bool                       `json:"has_batch_no"`
	HasSerialNo        bool                       `json:"has_serial_no"`
	MinQty             decimal.Decimal            `json:"min_qty"`
	MaxQty             decimal.Decimal            `json:"max_qty"`
	AllowNegativeStock bool                       `json:"allow_negative_stock"`
	AllowZeroValuation bool                       `json:"allow_zero_valuation"`
	StandardRate       decimal.Decimal            `json:"standard_rate"`
	Conversions        map[string]decimal.Decimal `json:"conversions,omitempty"`
}

// UpdateItemCommand changes the mutable settings of an item. Nil fields are left alone.
type UpdateItemCommand struct {
	Name               *string          `json:"name,omitempty"`
	MinQty             *decimal.Decimal `json:"min_qty,omitempty"`
	MaxQty             *decimal.Decimal `json:"max_qty,omitempty"`
	AllowNegativeStock *bool            `json:"allow_negative_stock,omitempty"`
	AllowZeroValuation *bool            `json:"allow_zero_valuation,omitempty"`
	StandardRate       *decimal.Decimal `json:"standard_rate,omitempty"`
}

// CreateWarehouseCommand registers a warehouse
type CreateWarehouseCommand struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	ParentCode string `json:"parent_code,omitempty"`
	Bin        string `json:"bin,omitempty"`
	IsGroup    bool   `json:"is_group"`
}

// CreateBatchCommand registers a batch of an item
type CreateBatchCommand struct {
	ItemCode        string     `json:"item_code"`
	BatchNo         string     `json:"batch_no"`
	ManufactureDate *time.Time `json:"manufacture_date,omitempty"`
	ExpiryDate      *time.Time `json:"expiry_date,omitempty"`
}

// MasterDataService maintains items, warehouses and batches.
// Master records are soft-disabled, never deleted.
type MasterDataService struct {
	scope  inventory.TransactionScope
	repos  inventory.TransactionalRepositories
	logger *zap.Logger
}

// NewMasterDataService creates a new MasterDataService
func NewMasterDataService(scope inventory.TransactionScope, repos inventory.TransactionalRepositories, logger *zap.Logger) *MasterDataService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MasterDataService{scope: scope, repos: repos, logger: logger}
}

// CreateItem registers a new item
func (s *MasterDataService) CreateItem(ctx context.Context, cmd CreateItemCommand) (*inventory.Item, error) {
	item, err := inventory.NewItem(cmd.Code, cmd.Name, cmd.StockUOM, cmd.CostMethod)
	if err != nil {
		return nil, err
	}
	item.HasBatchNo = cmd.HasBatchNo
	item.HasSerialNo = cmd.HasSerialNo
	item.AllowNegativeStock = cmd.AllowNegativeStock
	item.AllowZeroValuation = cmd.AllowZeroValuation
	if err := item.SetReorderBounds(cmd.MinQty, cmd.MaxQty); err != nil {
		return nil, err
	}
	if err := item.SetStandardRate(cmd.StandardRate); err != nil {
		return nil, err
	}
	for uom, factor := range cmd.Conversions {
		if err := item.AddConversion(uom, factor); err != nil {
			return nil, err
		}
	}

	err = s.scope.Execute(ctx, func(repos inventory.TransactionalRepositories) error {
		if err := ensureAbsent(repos.Items().FindByCode(ctx, item.Code)); err != nil {
			return fmt.Errorf("%w: item %s", err, item.Code)
		}
		return repos.Items().Save(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Item created",
		zap.String("item_code", item.Code),
		zap.String("cost_method", string(item.CostMethod)),
	)
	return item, nil
}

// GetItem returns an item by code
func (s *MasterDataService) GetItem(ctx context.Context, code string) (*inventory.Item, error) {
	return s.repos.Items().FindByCode(ctx, code)
}

// ListItems returns a page of items
func (s *MasterDataService) ListItems(ctx context.Context, filter shared.Filter) (*shared.Paginated[inventory.Item], error) {
	items, total, err := s.repos.Items().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.Limit())
	return &page, nil
}

// UpdateItem changes item settings
func (s *MasterDataService) UpdateItem(ctx context.Context, code string, cmd UpdateItemCommand) (*inventory.Item, error) {
	return s.mutateItem(ctx, code, func(item *inventory.Item) error {
		if cmd.Name != nil {
			item.Name = *cmd.Name
		}
		if cmd.MinQty != nil || cmd.MaxQty != nil {
			minQty, maxQty := item.MinQty, item.MaxQty
			if cmd.MinQty != nil {
				minQty = *cmd.MinQty
			}
			if cmd.MaxQty != nil {
				maxQty = *cmd.MaxQty
			}
			if err := item.SetReorderBounds(minQty, maxQty); err != nil {
				return err
			}
		}
		if cmd.AllowNegativeStock != nil {
			item.AllowNegativeStock = *cmd.AllowNegativeStock
		}
		if cmd.AllowZeroValuation != nil {
			item.AllowZeroValuation = *cmd.AllowZeroValuation
		}
		if cmd.StandardRate != nil {
			if err := item.SetStandardRate(*cmd.StandardRate); err != nil {
				return err
			}
		}
		item.Touch()
		return nil
	})
}

// AddUOMConversion registers a conversion factor into the item's stock unit
func (s *MasterDataService) AddUOMConversion(ctx context.Context, code, uom string, factor decimal.Decimal) (*inventory.Item, error) {
	return s.mutateItem(ctx, code, func(item *inventory.Item) error {
		return item.AddConversion(uom, factor)
	})
}

// ChangeCostMethod switches an item's costing method from effectiveFrom onwards.
// The switch cannot reach back over entries already posted.
func (s *MasterDataService) ChangeCostMethod(ctx context.Context, code string, method strategy.CostMethod, effectiveFrom time.Time) (*inventory.Item, error) {
	return s.mutateItemTx(ctx, code, func(repos inventory.TransactionalRepositories, item *inventory.Item) error {
		filter := inventory.LedgerFilter{
			Filter:   shared.Filter{Page: 1, PageSize: 1},
			ItemCode: code,
			From:     &effectiveFrom,
		}
		_, later, err := repos.Ledger().List(ctx, filter)
		if err != nil {
			return err
		}
		if later > 0 {
			return fmt.Errorf("%w: item %s has %d entries at or after %s",
				shared.ErrInvalidState, code, later, effectiveFrom.Format(time.RFC3339))
		}
		return item.ChangeCostMethod(method, effectiveFrom)
	})
}

// DisableItem soft-disables an item
func (s *MasterDataService) DisableItem(ctx context.Context, code string) (*inventory.Item, error) {
	return s.mutateItem(ctx, code, func(item *inventory.Item) error {
		item.Disable()
		return nil
	})
}

// EnableItem re-enables an item
func (s *MasterDataService) EnableItem(ctx context.Context, code string) (*inventory.Item, error) {
	return s.mutateItem(ctx, code, func(item *inventory.Item) error {
		item.Enable()
		return nil
	})
}

func (s *MasterDataService) mutateItem(ctx context.Context, code string, fn func(item *inventory.Item) error) (*inventory.Item, error) {
	return s.mutateItemTx(ctx, code, func(_ inventory.TransactionalRepositories, item *inventory.Item) error {
		return fn(item)
	})
}

func (s *MasterDataService) mutateItemTx(
	ctx context.Context,
	code string,
	fn func(repos inventory.TransactionalRepositories, item *inventory.Item) error,
) (*inventory.Item, error) {
	var out *inventory.Item
	err := s.scope.Execute(ctx, func(repos inventory.TransactionalRepositories) error {
		item, err := repos.Items().FindByCode(ctx, code)
		if err != nil {
			return err
		}
		if err := fn(repos, item); err != nil {
			return err
		}
		if err := repos.Items().Save(ctx, item); err != nil {
			return err
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Item updated", zap.String("item_code", code))
	return out, nil
}

// CreateWarehouse registers a warehouse. The parent, when given, must be a group.
func (s *MasterDataService) CreateWarehouse(ctx context.Context, cmd CreateWarehouseCommand) (*inventory.Warehouse, error) {
	warehouse, err := inventory.NewWarehouse(cmd.Code, cmd.Name, cmd.ParentCode, cmd.IsGroup)
	if err != nil {
		return nil, err
	}
	warehouse.Bin = cmd.Bin

	err = s.scope.Execute(ctx, func(repos inventory.TransactionalRepositories) error {
		if err := ensureAbsent(repos.Warehouses().FindByCode(ctx, warehouse.Code)); err != nil {
			return fmt.Errorf("%w: warehouse %s", err, warehouse.Code)
		}
		if warehouse.ParentCode != "" {
			parent, err := repos.Warehouses().FindByCode(ctx, warehouse.ParentCode)
			if err != nil {
				return err
			}
			if !parent.IsGroup {
				return fmt.Errorf("%w: parent %s is not a group warehouse", shared.ErrValidation, parent.Code)
			}
		}
		return repos.Warehouses().Save(ctx, warehouse)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Warehouse created", zap.String("warehouse", warehouse.Code), zap.String("parent", warehouse.ParentCode))
	return warehouse, nil
}

// GetWarehouse returns a warehouse by code
func (s *MasterDataService) GetWarehouse(ctx context.Context, code string) (*inventory.Warehouse, error) {
	return s.repos.Warehouses().FindByCode(ctx, code)
}

// ListWarehouses returns a page of warehouses
func (s *MasterDataService) ListWarehouses(ctx context.Context, filter shared.Filter) (*shared.Paginated[inventory.Warehouse], error) {
	warehouses, total, err := s.repos.Warehouses().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(warehouses, total, filter.Page, filter.Limit())
	return &page, nil
}

// DisableWarehouse soft-disables a warehouse
func (s *MasterDataService) DisableWarehouse(ctx context.Context, code string) (*inventory.Warehouse, error) {
	var out *inventory.Warehouse
	err := s.scope.Execute(ctx, func(repos inventory.TransactionalRepositories) error {
		warehouse, err := repos.Warehouses().FindByCode(ctx, code)
		if err != nil {
			return err
		}
		warehouse.Disable()
		out = warehouse
		return repos.Warehouses().Save(ctx, warehouse)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateBatch registers a batch of a batch-tracked item
func (s *MasterDataService) CreateBatch(ctx context.Context, cmd CreateBatchCommand) (*inventory.Batch, error) {
	batch, err := inventory.NewBatch(cmd.ItemCode, cmd.BatchNo, cmd.ManufactureDate, cmd.ExpiryDate)
	if err != nil {
		return nil, err
	}

	err = s.scope.Execute(ctx, func(repos inventory.TransactionalRepositories) error {
		item, err := repos.Items().FindByCode(ctx, cmd.ItemCode)
		if err != nil {
			return err
		}
		if !item.HasBatchNo {
			return fmt.Errorf("%w: item %s is not batch tracked", shared.ErrValidation, item.Code)
		}
		if err := ensureAbsent(repos.Batches().Find(ctx, batch.ItemCode, batch.BatchNo)); err != nil {
			return fmt.Errorf("%w: batch %s of item %s", err, batch.BatchNo, batch.ItemCode)
		}
		return repos.Batches().Save(ctx, batch)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Batch created", zap.String("item_code", batch.ItemCode), zap.String("batch_no", batch.BatchNo))
	return batch, nil
}

// ListBatches returns every batch of an item
func (s *MasterDataService) ListBatches(ctx context.Context, itemCode string) ([]inventory.Batch, error) {
	return s.repos.Batches().ListByItem(ctx, itemCode)
}

// DisableBatch soft-disables a batch
func (s *MasterDataService) DisableBatch(ctx context.Context, itemCode, batchNo string) (*inventory.Batch, error) {
	var out *inventory.Batch
	err := s.scope.Execute(ctx, func(repos inventory.TransactionalRepositories) error {
		batch, err := repos.Batches().Find(ctx, itemCode, batchNo)
		if err != nil {
			return err
		}
		batch.Disable()
		out = batch
		return repos.Batches().Save(ctx, batch)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ensureAbsent turns a lookup result into ErrAlreadyExists when something was found
func ensureAbsent[T any](found *T, err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return shared.ErrAlreadyExists
}

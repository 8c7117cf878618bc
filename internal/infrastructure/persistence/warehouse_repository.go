package persistence

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"gorm.io/gorm"
)

// GormWarehouseRepository implements WarehouseRepository using GORM
type GormWarehouseRepository struct {
	db *gorm.DB
}

// NewGormWarehouseRepository creates a new GormWarehouseRepository
func NewGormWarehouseRepository(db *gorm.DB) *GormWarehouseRepository {
	return &GormWarehouseRepository{db: db}
}

// FindByCode finds a warehouse by its code
func (r *GormWarehouseRepository) FindByCode(ctx context.Context, code string) (*inventory.Warehouse, error) {
	var warehouse inventory.Warehouse
	if err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&warehouse).Error; err != nil {
		return nil, translateError(err, "warehouse %s", code)
	}
	return &warehouse, nil
}

// FindChildren returns the direct children of a group warehouse
func (r *GormWarehouseRepository) FindChildren(ctx context.Context, parentCode string) ([]inventory.Warehouse, error) {
	var warehouses []inventory.Warehouse
	if err := r.db.WithContext(ctx).
		Where("parent_code = ?", parentCode).
		Order("code ASC").
		Find(&warehouses).Error; err != nil {
		return nil, err
	}
	return warehouses, nil
}

// Save creates or updates a warehouse
func (r *GormWarehouseRepository) Save(ctx context.Context, warehouse *inventory.Warehouse) error {
	return translateError(r.db.WithContext(ctx).Save(warehouse).Error, "warehouse %s", warehouse.Code)
}

// List returns a page of warehouses ordered by code
func (r *GormWarehouseRepository) List(ctx context.Context, filter shared.Filter) ([]inventory.Warehouse, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&inventory.Warehouse{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var warehouses []inventory.Warehouse
	if err := r.db.WithContext(ctx).
		Order(orderBy(filter, "code")).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&warehouses).Error; err != nil {
		return nil, 0, err
	}
	return warehouses, total, nil
}

var _ inventory.WarehouseRepository = (*GormWarehouseRepository)(nil)

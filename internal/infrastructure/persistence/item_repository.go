package persistence

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"gorm.io/gorm"
)

// GormItemRepository implements ItemRepository using GORM.
// UOM conversions and costing history are stored in child tables keyed by item code.
type GormItemRepository struct {
	db *gorm.DB
}

// NewGormItemRepository creates a new GormItemRepository
func NewGormItemRepository(db *gorm.DB) *GormItemRepository {
	return &GormItemRepository{db: db}
}

func withItemChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Conversions", func(db *gorm.DB) *gorm.DB { return db.Order("uom ASC") }).
		Preload("CostMethodChanges", func(db *gorm.DB) *gorm.DB { return db.Order("effective_from ASC") })
}

// FindByCode finds an item by its code
func (r *GormItemRepository) FindByCode(ctx context.Context, code string) (*inventory.Item, error) {
	var item inventory.Item
	if err := r.db.WithContext(ctx).
		Scopes(withItemChildren).
		Where("code = ?", code).
		First(&item).Error; err != nil {
		return nil, translateError(err, "item %s", code)
	}
	return &item, nil
}

// Save creates or updates an item together with its conversions and costing history
func (r *GormItemRepository) Save(ctx context.Context, item *inventory.Item) error {
	err := r.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(item).Error
	return translateError(err, "item %s", item.Code)
}

// List returns a page of items ordered by code
func (r *GormItemRepository) List(ctx context.Context, filter shared.Filter) ([]inventory.Item, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&inventory.Item{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []inventory.Item
	if err := r.db.WithContext(ctx).
		Scopes(withItemChildren).
		Order(orderBy(filter, "code")).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

var _ inventory.ItemRepository = (*GormItemRepository)(nil)

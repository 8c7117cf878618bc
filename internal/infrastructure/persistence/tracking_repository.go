package persistence

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
	"gorm.io/gorm"
)

// GormBatchRepository implements BatchRepository using GORM
type GormBatchRepository struct {
	db *gorm.DB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// Find finds a batch of an item by number
func (r *GormBatchRepository) Find(ctx context.Context, itemCode, batchNo string) (*inventory.Batch, error) {
	var batch inventory.Batch
	if err := r.db.WithContext(ctx).
		Where("item_code = ? AND batch_no = ?", itemCode, batchNo).
		First(&batch).Error; err != nil {
		return nil, translateError(err, "batch %s of item %s", batchNo, itemCode)
	}
	return &batch, nil
}

// ListByItem returns every batch of an item ordered by number
func (r *GormBatchRepository) ListByItem(ctx context.Context, itemCode string) ([]inventory.Batch, error) {
	var batches []inventory.Batch
	if err := r.db.WithContext(ctx).
		Where("item_code = ?", itemCode).
		Order("batch_no ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// Save creates or updates a batch
func (r *GormBatchRepository) Save(ctx context.Context, batch *inventory.Batch) error {
	return translateError(r.db.WithContext(ctx).Save(batch).Error, "batch %s of item %s", batch.BatchNo, batch.ItemCode)
}

// GormSerialNoRepository implements SerialNoRepository using GORM
type GormSerialNoRepository struct {
	db *gorm.DB
}

// NewGormSerialNoRepository creates a new GormSerialNoRepository
func NewGormSerialNoRepository(db *gorm.DB) *GormSerialNoRepository {
	return &GormSerialNoRepository{db: db}
}

// Find finds a serial number of an item
func (r *GormSerialNoRepository) Find(ctx context.Context, itemCode, serialNo string) (*inventory.SerialNo, error) {
	var serial inventory.SerialNo
	if err := r.db.WithContext(ctx).
		Where("item_code = ? AND serial_no = ?", itemCode, serialNo).
		First(&serial).Error; err != nil {
		return nil, translateError(err, "serial %s of item %s", serialNo, itemCode)
	}
	return &serial, nil
}

// Save creates or updates a serial number
func (r *GormSerialNoRepository) Save(ctx context.Context, serial *inventory.SerialNo) error {
	return translateError(r.db.WithContext(ctx).Save(serial).Error, "serial %s of item %s", serial.SerialNo, serial.ItemCode)
}

var (
	_ inventory.BatchRepository    = (*GormBatchRepository)(nil)
	_ inventory.SerialNoRepository = (*GormSerialNoRepository)(nil)
)

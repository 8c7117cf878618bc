package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
)

// Batch is a lot of an item. Its quantity always comes from the ledger.
type Batch struct {
	shared.BaseEntity
	ItemCode        string     `gorm:"type:varchar(100);not null;uniqueIndex:idx_batch_item_no" json:"item_code"`
	BatchNo         string     `gorm:"type:varchar(100);not null;uniqueIndex:idx_batch_item_no" json:"batch_no"`
	ManufactureDate *time.Time `json:"manufacture_date,omitempty"`
	ExpiryDate      *time.Time `gorm:"index" json:"expiry_date,omitempty"`
	Disabled        bool       `gorm:"not null;default:false" json:"disabled"`
}

// TableName returns the table name for GORM
func (Batch) TableName() string {
	return "batches"
}

// NewBatch creates a batch of an item
func NewBatch(itemCode, batchNo string, manufactureDate, expiryDate *time.Time) (*Batch, error) {
	batchNo = strings.TrimSpace(batchNo)
	if itemCode == "" || batchNo == "" {
		return nil, fmt.Errorf("%w: item code and batch number are required", shared.ErrValidation)
	}
	if manufactureDate != nil && expiryDate != nil && expiryDate.Before(*manufactureDate) {
		return nil, fmt.Errorf("%w: expiry date before manufacture date", shared.ErrValidation)
	}
	return &Batch{
		BaseEntity:      shared.NewBaseEntity(),
		ItemCode:        itemCode,
		BatchNo:         batchNo,
		ManufactureDate: manufactureDate,
		ExpiryDate:      expiryDate,
	}, nil
}

// IsExpiredOn reports whether the batch expired before the given day.
// A batch expiring on the posting date is still usable that day.
func (b *Batch) IsExpiredOn(at time.Time) bool {
	if b.ExpiryDate == nil {
		return false
	}
	return truncateDay(*b.ExpiryDate).Before(truncateDay(at))
}

// EnsureActive fails when the batch is disabled
func (b *Batch) EnsureActive() error {
	if b.Disabled {
		return fmt.Errorf("%w: batch %s of item %s", shared.ErrDisabled, b.BatchNo, b.ItemCode)
	}
	return nil
}

// Disable soft-disables the batch
func (b *Batch) Disable() {
	b.Disabled = true
	b.Touch()
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

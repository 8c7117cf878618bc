package inventory

import (
	"fmt"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Release reasons
const (
	ReleaseReasonManual  = "manual"
	ReleaseReasonExpired = "expired"
)

// Reservation holds stock of a key for a pending document without touching the ledger
type Reservation struct {
	shared.BaseEntity
	ItemCode      string          `gorm:"type:varchar(100);not null;index:idx_resv_key,priority:1" json:"item_code"`
	Warehouse     string          `gorm:"type:varchar(100);not null;index:idx_resv_key,priority:2" json:"warehouse"`
	BatchNo       string          `gorm:"type:varchar(100);not null;default:'';index:idx_resv_key,priority:3" json:"batch_no,omitempty"`
	SerialNo      string          `gorm:"type:varchar(100);not null;default:'';index:idx_resv_key,priority:4" json:"serial_no,omitempty"`
	Quantity      decimal.Decimal `gorm:"type:decimal(28,8);not null" json:"quantity"`
	SourceType    string          `gorm:"type:varchar(50);not null;index:idx_resv_src" json:"source_type"`
	SourceRef     string          `gorm:"type:varchar(100);not null;index:idx_resv_src" json:"source_ref"`
	ExpireAt      time.Time       `gorm:"not null;index" json:"expire_at"`
	Released      bool            `gorm:"not null;default:false;index" json:"released"`
	ReleasedAt    *time.Time      `json:"released_at,omitempty"`
	ReleaseReason string          `gorm:"type:varchar(20)" json:"release_reason,omitempty"`
}

// TableName returns the table name for GORM
func (Reservation) TableName() string {
	return "stock_reservations"
}

// NewReservation creates a reservation that expires at expireAt
func NewReservation(key StockKey, quantity decimal.Decimal, sourceType, sourceRef string, expireAt time.Time) (*Reservation, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%w: reserved quantity must be positive", shared.ErrValidation)
	}
	if sourceType == "" || sourceRef == "" {
		return nil, fmt.Errorf("%w: reservation source is required", shared.ErrValidation)
	}
	return &Reservation{
		BaseEntity: shared.NewBaseEntity(),
		ItemCode:   key.ItemCode,
		Warehouse:  key.Warehouse,
		BatchNo:    key.BatchNo,
		SerialNo:   key.SerialNo,
		Quantity:   quantity,
		SourceType: sourceType,
		SourceRef:  sourceRef,
		ExpireAt:   expireAt,
	}, nil
}

// Key returns the stock key being held
func (r *Reservation) Key() StockKey {
	return StockKey{ItemCode: r.ItemCode, Warehouse: r.Warehouse, BatchNo: r.BatchNo, SerialNo: r.SerialNo}
}

// IsActive returns true if the hold has not been released
func (r *Reservation) IsActive() bool {
	return !r.Released
}

// IsExpiredAt returns true once the expiry time has passed
func (r *Reservation) IsExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpireAt)
}

// Release frees the hold. Releasing twice fails with ErrInvalidState.
func (r *Reservation) Release(reason string, now time.Time) error {
	if r.Released {
		return fmt.Errorf("%w: reservation %s already released", shared.ErrInvalidState, r.ID)
	}
	r.Released = true
	r.ReleasedAt = &now
	r.ReleaseReason = reason
	r.UpdatedAt = now
	return nil
}

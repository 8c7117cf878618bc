package inventory

import (
	"fmt"
	"strings"

	"github.com/erp/stockledger/internal/domain/shared"
)

// Warehouse is a stock location. Group warehouses only aggregate their children.
type Warehouse struct {
	shared.BaseEntity
	Code       string `gorm:"type:varchar(100);not null;uniqueIndex" json:"code"`
	Name       string `gorm:"type:varchar(200)" json:"name"`
	ParentCode string `gorm:"type:varchar(100);index" json:"parent_code,omitempty"`
	Bin        string `gorm:"type:varchar(100)" json:"bin,omitempty"`
	IsGroup    bool   `gorm:"not null;default:false" json:"is_group"`
	Disabled   bool   `gorm:"not null;default:false" json:"disabled"`
}

// TableName returns the table name for GORM
func (Warehouse) TableName() string {
	return "warehouses"
}

// NewWarehouse creates a warehouse, optionally nested under parentCode
func NewWarehouse(code, name, parentCode string, isGroup bool) (*Warehouse, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: warehouse code cannot be empty", shared.ErrValidation)
	}
	if code == parentCode {
		return nil, fmt.Errorf("%w: warehouse cannot be its own parent", shared.ErrValidation)
	}
	return &Warehouse{
		BaseEntity: shared.NewBaseEntity(),
		Code:       code,
		Name:       name,
		ParentCode: strings.TrimSpace(parentCode),
		IsGroup:    isGroup,
	}, nil
}

// EnsurePostable fails when stock cannot be posted against the warehouse
func (w *Warehouse) EnsurePostable() error {
	if w.Disabled {
		return fmt.Errorf("%w: warehouse %s", shared.ErrDisabled, w.Code)
	}
	if w.IsGroup {
		return fmt.Errorf("%w: warehouse %s is a group", shared.ErrValidation, w.Code)
	}
	return nil
}

// Disable soft-disables the warehouse
func (w *Warehouse) Disable() {
	w.Disabled = true
	w.Touch()
}

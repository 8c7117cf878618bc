package inventory

import (
	"fmt"
	"strings"

	"github.com/erp/stockledger/internal/domain/shared"
)

// SerialStatus is the lifecycle state of a serial number
type SerialStatus string

const (
	SerialStatusCreated   SerialStatus = "created"
	SerialStatusAvailable SerialStatus = "available"
	SerialStatusReserved  SerialStatus = "reserved"
	SerialStatusDelivered SerialStatus = "delivered"
	SerialStatusConsumed  SerialStatus = "consumed"
	SerialStatusScrapped  SerialStatus = "scrapped"
	SerialStatusReturned  SerialStatus = "returned"
)

var serialTransitions = map[SerialStatus][]SerialStatus{
	SerialStatusCreated:   {SerialStatusAvailable},
	SerialStatusAvailable: {SerialStatusReserved, SerialStatusDelivered, SerialStatusConsumed, SerialStatusScrapped},
	SerialStatusReserved:  {SerialStatusAvailable, SerialStatusDelivered, SerialStatusConsumed, SerialStatusScrapped},
	SerialStatusDelivered: {SerialStatusReturned},
	SerialStatusConsumed:  {SerialStatusReturned},
	SerialStatusScrapped:  {SerialStatusReturned},
	SerialStatusReturned:  {SerialStatusAvailable},
}

// CanTransitionTo reports whether the state machine allows moving to next
func (s SerialStatus) CanTransitionTo(next SerialStatus) bool {
	for _, allowed := range serialTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsOut returns true when the unit has left stock
func (s SerialStatus) IsOut() bool {
	return s == SerialStatusDelivered || s == SerialStatusConsumed || s == SerialStatusScrapped
}

// SerialNo is a single tracked unit of an item
type SerialNo struct {
	shared.BaseEntity
	ItemCode  string       `gorm:"type:varchar(100);not null;uniqueIndex:idx_serial_item_no" json:"item_code"`
	SerialNo  string       `gorm:"type:varchar(100);not null;uniqueIndex:idx_serial_item_no" json:"serial_no"`
	Warehouse string       `gorm:"type:varchar(100);index" json:"warehouse,omitempty"`
	Status    SerialStatus `gorm:"type:varchar(20);not null" json:"status"`
}

// TableName returns the table name for GORM
func (SerialNo) TableName() string {
	return "serial_nos"
}

// NewSerialNo registers a serial number that has not been received yet
func NewSerialNo(itemCode, serialNo string) (*SerialNo, error) {
	serialNo = strings.TrimSpace(serialNo)
	if itemCode == "" || serialNo == "" {
		return nil, fmt.Errorf("%w: item code and serial number are required", shared.ErrValidation)
	}
	return &SerialNo{
		BaseEntity: shared.NewBaseEntity(),
		ItemCode:   itemCode,
		SerialNo:   serialNo,
		Status:     SerialStatusCreated,
	}, nil
}

// TransitionTo moves the serial to next, enforcing the lifecycle state machine
func (s *SerialNo) TransitionTo(next SerialStatus) error {
	if !s.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: serial %s cannot move from %s to %s",
			shared.ErrInvalidSerialStateTransition, s.SerialNo, s.Status, next)
	}
	s.Status = next
	if next.IsOut() {
		s.Warehouse = ""
	}
	s.Touch()
	return nil
}

// Receive brings the serial into stock at a warehouse
func (s *SerialNo) Receive(warehouse string) error {
	if err := s.TransitionTo(SerialStatusAvailable); err != nil {
		return err
	}
	s.Warehouse = warehouse
	return nil
}

// EnsureAt fails unless the serial is in stock at warehouse
func (s *SerialNo) EnsureAt(warehouse string) error {
	if s.Warehouse != warehouse || (s.Status != SerialStatusAvailable && s.Status != SerialStatusReserved) {
		return fmt.Errorf("%w: serial %s is not in stock at %s", shared.ErrInsufficientStock, s.SerialNo, warehouse)
	}
	return nil
}

// Restore puts the serial back to a recorded status and location.
// It is a correction and bypasses the state machine.
func (s *SerialNo) Restore(status SerialStatus, warehouse string) {
	s.Status = status
	s.Warehouse = warehouse
	s.Touch()
}

// ApplyMovement moves the serial according to a posted ledger line.
// It returns the status and warehouse held before the move so a cancellation can restore them.
func (s *SerialNo) ApplyMovement(movement MovementType, inward bool, warehouse string) (SerialStatus, string, error) {
	prevStatus, prevWarehouse := s.Status, s.Warehouse

	var err error
	switch {
	case movement == MovementTransfer && inward:
		if s.Status != SerialStatusAvailable || s.Warehouse != "" {
			err = fmt.Errorf("%w: serial %s is not in transit", shared.ErrInvalidSerialStateTransition, s.SerialNo)
			break
		}
		s.Warehouse = warehouse
		s.Touch()
	case movement == MovementTransfer:
		if err = s.EnsureAt(warehouse); err != nil {
			break
		}
		if s.Status == SerialStatusReserved {
			err = fmt.Errorf("%w: serial %s is reserved", shared.ErrInvalidSerialStateTransition, s.SerialNo)
			break
		}
		s.Warehouse = ""
		s.Touch()
	case movement == MovementReturn:
		if err = s.TransitionTo(SerialStatusReturned); err != nil {
			break
		}
		err = s.Receive(warehouse)
	case inward:
		err = s.Receive(warehouse)
	default:
		if err = s.EnsureAt(warehouse); err != nil {
			break
		}
		err = s.TransitionTo(movement.SerialOutcome())
	}
	if err != nil {
		s.Status, s.Warehouse = prevStatus, prevWarehouse
		return "", "", err
	}
	return prevStatus, prevWarehouse, nil
}

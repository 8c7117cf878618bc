package persistence

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormReservationRepository implements ReservationRepository using GORM
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GormReservationRepository
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// FindByID finds a reservation by its ID
func (r *GormReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Reservation, error) {
	var reservation inventory.Reservation
	if err := r.db.WithContext(ctx).First(&reservation, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "reservation %s", id)
	}
	return &reservation, nil
}

// ListActiveByKey returns unreleased reservations of a key, expired ones included
func (r *GormReservationRepository) ListActiveByKey(ctx context.Context, key inventory.StockKey) ([]inventory.Reservation, error) {
	var reservations []inventory.Reservation
	if err := r.db.WithContext(ctx).
		Scopes(byKey(key)).
		Where("released = ?", false).
		Order("created_at ASC").
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// ListExpired returns up to limit unreleased reservations expired at now, oldest expiry first
func (r *GormReservationRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]inventory.Reservation, error) {
	query := r.db.WithContext(ctx).
		Where("released = ? AND expire_at <= ?", false, now.UTC()).
		Order("expire_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var reservations []inventory.Reservation
	if err := query.Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// Save creates or updates a reservation
func (r *GormReservationRepository) Save(ctx context.Context, reservation *inventory.Reservation) error {
	reservation.ExpireAt = reservation.ExpireAt.UTC()
	return translateError(r.db.WithContext(ctx).Save(reservation).Error, "reservation %s", reservation.ID)
}

var _ inventory.ReservationRepository = (*GormReservationRepository)(nil)

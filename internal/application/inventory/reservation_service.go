package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultReservationTTL is used when a reserve command carries no TTL
const DefaultReservationTTL = 30 * time.Minute

// ReservationService places soft holds on stock keys.
// Holds never touch the ledger; they only shrink what can be reserved next.
type ReservationService struct {
	scope     inventory.TransactionScope
	repos     inventory.TransactionalRepositories
	locker    inventory.KeyLocker
	publisher shared.EventPublisher
	metrics   LedgerMetrics
	logger    *zap.Logger
	ttl       time.Duration
	now       func() time.Time
}

// NewReservationService creates a new ReservationService
func NewReservationService(
	scope inventory.TransactionScope,
	repos inventory.TransactionalRepositories,
	locker inventory.KeyLocker,
	ttl time.Duration,
	logger *zap.Logger,
) *ReservationService {
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationService{
		scope:   scope,
		repos:   repos,
		locker:  locker,
		metrics: noopMetrics{},
		logger:  logger,
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetEventPublisher sets the event publisher
func (s *ReservationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetMetrics sets the metrics recorder
func (s *ReservationService) SetMetrics(metrics LedgerMetrics) {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	s.metrics = metrics
}

// Reserve holds qty of a key. It fails with ErrInsufficientAvailable when the balance
// minus the other live holds cannot cover it. Expired holds met on the way are released.
func (s *ReservationService) Reserve(ctx context.Context, cmd ReserveCommand) (*ReservationDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reservation", "reserve",
		telemetry.WithAttribute(telemetry.SpanAttrItemCode, cmd.Key.ItemCode),
		telemetry.WithAttribute(telemetry.SpanAttrWarehouse, cmd.Key.Warehouse),
	)
	defer span.End()

	if err := cmd.Key.Validate(); err != nil {
		return nil, err
	}
	if !cmd.Qty.IsPositive() {
		return nil, fmt.Errorf("%w: reserved quantity must be positive", shared.ErrValidation)
	}
	if cmd.SourceType == "" || cmd.SourceRef == "" {
		return nil, fmt.Errorf("%w: reservation source is required", shared.ErrValidation)
	}
	ttl := cmd.TTL
	if ttl <= 0 {
		ttl = s.ttl
	}

	unlock, err := s.locker.Lock(ctx, cmd.Key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.now()
	var (
		created *inventory.Reservation
		expired []*inventory.Reservation
	)
	err = s.scope.Execute(ctx, func(repos inventory.TransactionalRepositories) error {
		created, expired = nil, nil

		item, err := repos.Items().FindByCode(ctx, cmd.Key.ItemCode)
		if err != nil {
			return err
		}
		if err := item.EnsureActive(); err != nil {
			return err
		}

		balance, err := keyBalance(ctx, repos, cmd.Key)
		if err != nil {
			return err
		}
		reserved, released, err := s.liveHolds(ctx, repos, cmd.Key, now)
		if err != nil {
			return err
		}
		expired = released

		available := balance.Sub(reserved)
		if cmd.Qty.GreaterThan(available) {
			return fmt.Errorf("%w: %s requested %s, available %s",
				shared.ErrInsufficientAvailable, cmd.Key, cmd.Qty, available)
		}

		if cmd.Key.SerialNo != "" {
			if err := s.holdSerial(ctx, repos, cmd.Key); err != nil {
				return err
			}
		}

		r, err := inventory.NewReservation(cmd.Key, cmd.Qty, cmd.SourceType, cmd.SourceRef, now.Add(ttl))
		if err != nil {
			return err
		}
		if err := repos.Reservations().Save(ctx, r); err != nil {
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	events := make([]shared.DomainEvent, 0, len(expired)+1)
	for _, r := range expired {
		events = append(events, inventory.NewReservationExpiredEvent(r))
		s.metrics.RecordReservation(ctx, inventory.ReleaseReasonExpired)
	}
	events = append(events, inventory.NewReservationCreatedEvent(created))
	s.metrics.RecordReservation(ctx, "created")
	s.publish(ctx, events...)

	s.logger.Info("Stock reserved",
		zap.String("reservation_id", created.ID.String()),
		zap.String("key", cmd.Key.String()),
		zap.String("qty", cmd.Qty.String()),
		zap.String("source_ref", cmd.SourceRef),
	)
	dto := ToReservationDTO(created)
	return &dto, nil
}

// Release frees a hold
func (s *ReservationService) Release(ctx context.Context, id uuid.UUID) (*ReservationDTO, error) {
	r, err := s.release(ctx, id, inventory.ReleaseReasonManual)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, inventory.NewReservationReleasedEvent(r))
	s.metrics.RecordReservation(ctx, inventory.ReleaseReasonManual)
	dto := ToReservationDTO(r)
	return &dto, nil
}

func (s *ReservationService) release(ctx context.Context, id uuid.UUID, reason string) (*inventory.Reservation, error) {
	found, err := s.repos.Reservations().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, found.Key())
	if err != nil {
		return nil, err
	}
	defer unlock()

	var released *inventory.Reservation
	err = s.scope.Execute(ctx, func(repos inventory.TransactionalRepositories) error {
		r, err := repos.Reservations().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.releaseHold(ctx, repos, r, reason); err != nil {
			return err
		}
		released = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

// Available reports the free quantity of a key. Expired holds found on the way are released.
func (s *ReservationService) Available(ctx context.Context, key inventory.StockKey) (*AvailabilityDTO, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.now()
	var (
		balance  decimal.Decimal
		reserved decimal.Decimal
		expired  []*inventory.Reservation
	)
	err = s.scope.Execute(ctx, func(repos inventory.TransactionalRepositories) error {
		var err error
		if balance, err = keyBalance(ctx, repos, key); err != nil {
			return err
		}
		reserved, expired, err = s.liveHolds(ctx, repos, key, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(expired) > 0 {
		events := make([]shared.DomainEvent, 0, len(expired))
		for _, r := range expired {
			events = append(events, inventory.NewReservationExpiredEvent(r))
			s.metrics.RecordReservation(ctx, inventory.ReleaseReasonExpired)
		}
		s.publish(ctx, events...)
	}

	return &AvailabilityDTO{
		Key:       key,
		Balance:   balance,
		Reserved:  reserved,
		Available: balance.Sub(reserved),
	}, nil
}

// SweepExpired releases up to limit holds whose expiry has passed and returns how many it released
func (s *ReservationService) SweepExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	expired, err := s.repos.Reservations().ListExpired(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range expired {
		r, err := s.release(ctx, expired[i].ID, inventory.ReleaseReasonExpired)
		if errors.Is(err, shared.ErrInvalidState) {
			continue
		}
		if err != nil {
			s.logger.Warn("Failed to expire reservation",
				zap.String("reservation_id", expired[i].ID.String()),
				zap.Error(err),
			)
			continue
		}
		s.publish(ctx, inventory.NewReservationExpiredEvent(r))
		s.metrics.RecordReservation(ctx, inventory.ReleaseReasonExpired)
		count++
	}
	if count > 0 {
		s.logger.Info("Expired reservations released", zap.Int("count", count))
	}
	return count, nil
}

// liveHolds sums the unexpired holds of a key and releases the expired ones it finds
func (s *ReservationService) liveHolds(
	ctx context.Context,
	repos inventory.TransactionalRepositories,
	key inventory.StockKey,
	now time.Time,
) (decimal.Decimal, []*inventory.Reservation, error) {
	holds, err := repos.Reservations().ListActiveByKey(ctx, key)
	if err != nil {
		return decimal.Zero, nil, err
	}
	total := decimal.Zero
	var expired []*inventory.Reservation
	for i := range holds {
		r := &holds[i]
		if !r.IsExpiredAt(now) {
			total = total.Add(r.Quantity)
			continue
		}
		if err := s.releaseHold(ctx, repos, r, inventory.ReleaseReasonExpired); err != nil {
			return decimal.Zero, nil, err
		}
		expired = append(expired, r)
	}
	return total, expired, nil
}

func (s *ReservationService) releaseHold(ctx context.Context, repos inventory.TransactionalRepositories, r *inventory.Reservation, reason string) error {
	if err := r.Release(reason, s.now()); err != nil {
		return err
	}
	if r.SerialNo != "" {
		serial, err := repos.Serials().Find(ctx, r.ItemCode, r.SerialNo)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if serial != nil && serial.Status == inventory.SerialStatusReserved {
			if err := serial.TransitionTo(inventory.SerialStatusAvailable); err != nil {
				return err
			}
			if err := repos.Serials().Save(ctx, serial); err != nil {
				return err
			}
		}
	}
	return repos.Reservations().Save(ctx, r)
}

func (s *ReservationService) holdSerial(ctx context.Context, repos inventory.TransactionalRepositories, key inventory.StockKey) error {
	serial, err := repos.Serials().Find(ctx, key.ItemCode, key.SerialNo)
	if err != nil {
		return err
	}
	if serial.Warehouse != key.Warehouse || serial.Status != inventory.SerialStatusAvailable {
		return fmt.Errorf("%w: serial %s is not free at %s", shared.ErrInsufficientAvailable, key.SerialNo, key.Warehouse)
	}
	if err := serial.TransitionTo(inventory.SerialStatusReserved); err != nil {
		return err
	}
	return repos.Serials().Save(ctx, serial)
}

func (s *ReservationService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Error("Failed to publish reservation events", zap.Error(err))
	}
}

// keyBalance returns the current quantity of a key
func keyBalance(ctx context.Context, repos inventory.TransactionalRepositories, key inventory.StockKey) (decimal.Decimal, error) {
	entry, err := repos.Ledger().BalanceAsOf(ctx, key, endOfTime)
	if errors.Is(err, shared.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return entry.BalanceQty, nil
}

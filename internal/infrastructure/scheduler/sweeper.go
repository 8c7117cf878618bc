package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReservationReleaser releases reservations whose expiry has passed
type ReservationReleaser interface {
	SweepExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// SweeperConfig holds configuration for the reservation sweeper
type SweeperConfig struct {
	// Interval is how often expired reservations are released
	Interval time.Duration
	// BatchSize caps the reservations released per pass
	BatchSize int
}

// DefaultSweeperConfig returns default sweeper configuration
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:  time.Minute,
		BatchSize: 200,
	}
}

// SweeperStats summarizes the sweeper's activity
type SweeperStats struct {
	Runs     int64     `json:"runs"`
	Released int64     `json:"released"`
	Failures int64     `json:"failures"`
	LastRun  time.Time `json:"last_run"`
}

// ReservationSweeper periodically releases expired reservations
type ReservationSweeper struct {
	config   SweeperConfig
	releaser ReservationReleaser
	logger   *zap.Logger
	now      func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	sweeping  sync.Mutex
	stats     SweeperStats
}

// NewReservationSweeper creates a new sweeper
func NewReservationSweeper(config SweeperConfig, releaser ReservationReleaser, logger *zap.Logger) (*ReservationSweeper, error) {
	if config.Interval <= 0 || config.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: interval and batch size must be positive", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationSweeper{
		config:   config,
		releaser: releaser,
		logger:   logger.Named("reservation_sweeper"),
		now:      time.Now,
	}, nil
}

// Start starts the sweep loop
func (s *ReservationSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Reservation sweeper started",
		zap.Duration("interval", s.config.Interval),
		zap.Int("batch_size", s.config.BatchSize),
	)
	return nil
}

// Stop stops the sweep loop and waits for an in-flight pass
func (s *ReservationSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Reservation sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the sweeper and blocks until ctx is cancelled
func (s *ReservationSweeper) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Stop(stopCtx)
}

func (s *ReservationSweeper) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepNow(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("Reservation sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepNow runs one pass immediately, releasing at most one batch
func (s *ReservationSweeper) SweepNow(ctx context.Context) (int, error) {
	if !s.sweeping.TryLock() {
		return 0, ErrSweeperRunning
	}
	defer s.sweeping.Unlock()

	now := s.now()
	released, err := s.releaser.SweepExpired(ctx, now, s.config.BatchSize)

	s.mu.Lock()
	s.stats.Runs++
	s.stats.LastRun = now
	s.stats.Released += int64(released)
	if err != nil {
		s.stats.Failures++
	}
	s.mu.Unlock()

	if err != nil {
		return released, err
	}
	if released > 0 {
		s.logger.Info("Expired reservations released", zap.Int("count", released))
	}
	if released == s.config.BatchSize {
		s.logger.Debug("Sweep batch full, remaining reservations wait for the next pass")
	}
	return released, nil
}

// Stats returns a snapshot of the sweeper's counters
func (s *ReservationSweeper) Stats() SweeperStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

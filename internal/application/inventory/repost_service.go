package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TicketKind names the command a repost ticket re-executes
type TicketKind string

const (
	TicketMovement TicketKind = "movement"
	TicketTransfer TicketKind = "transfer"
	TicketCancel   TicketKind = "cancel"
)

// RepostTicket carries a backdated correction to be replayed off the calling path.
// The worker re-executes the command with a forced synchronous replay under the same key locks.
type RepostTicket struct {
	ID            uuid.UUID            `json:"id"`
	Kind          TicketKind           `json:"kind"`
	Movement      *MovementCommand     `json:"movement,omitempty"`
	Transfer      *TransferCommand     `json:"transfer,omitempty"`
	CancelEntryID *uuid.UUID           `json:"cancel_entry_id,omitempty"`
	CancelOptions *CancelOptions       `json:"cancel_options,omitempty"`
	PostingID     uuid.UUID            `json:"posting_id,omitempty"`
	Keys          []inventory.StockKey `json:"keys"`
	CreatedAt     time.Time            `json:"created_at"`
}

// Validate checks the ticket carries the payload its kind needs
func (t *RepostTicket) Validate() error {
	switch t.Kind {
	case TicketMovement:
		if t.Movement == nil {
			return fmt.Errorf("%w: movement ticket without command", shared.ErrValidation)
		}
	case TicketTransfer:
		if t.Transfer == nil {
			return fmt.Errorf("%w: transfer ticket without command", shared.ErrValidation)
		}
	case TicketCancel:
		if t.CancelEntryID == nil {
			return fmt.Errorf("%w: cancel ticket without entry", shared.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown ticket kind %q", shared.ErrValidation, t.Kind)
	}
	return nil
}

// RepostDispatcher hands tickets to whatever executes them
type RepostDispatcher interface {
	Dispatch(ctx context.Context, ticket *RepostTicket) error
}

// RepostExecutor runs a ticket
type RepostExecutor interface {
	ExecuteRepost(ctx context.Context, ticket *RepostTicket) error
}

// ErrRepostQueueFull is returned when the in-process queue cannot take another ticket
var ErrRepostQueueFull = shared.NewRetryableError(shared.CodeConcurrencyConflict, "repost queue is full")

// InProcessDispatcher executes tickets on a bounded pool of goroutines
type InProcessDispatcher struct {
	tickets chan *RepostTicket
	workers int
	logger  *zap.Logger

	mu       sync.Mutex
	started  bool
	stopped  bool
	stop     chan struct{}
	wg       sync.WaitGroup
	executor RepostExecutor
}

// NewInProcessDispatcher creates a dispatcher with the given worker count and queue size
func NewInProcessDispatcher(workers, buffer int, logger *zap.Logger) *InProcessDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InProcessDispatcher{
		tickets: make(chan *RepostTicket, buffer),
		workers: workers,
		logger:  logger,
		stop:    make(chan struct{}),
	}
}

// Start launches the workers. Tickets dispatched before Start wait in the queue.
func (d *InProcessDispatcher) Start(ctx context.Context, executor RepostExecutor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true
	d.executor = executor

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run(ctx)
	}
	d.logger.Info("Repost dispatcher started", zap.Int("workers", d.workers))
}

func (d *InProcessDispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case ticket := <-d.tickets:
			if err := d.executor.ExecuteRepost(ctx, ticket); err != nil {
				d.logger.Warn("Repost ticket failed",
					zap.String("ticket_id", ticket.ID.String()),
					zap.String("kind", string(ticket.Kind)),
					zap.Error(err))
			}
		}
	}
}

// Dispatch queues a ticket without blocking
func (d *InProcessDispatcher) Dispatch(ctx context.Context, ticket *RepostTicket) error {
	if err := ticket.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return errors.New("repost dispatcher is stopped")
	}

	select {
	case d.tickets <- ticket:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrRepostQueueFull
	}
}

// Stop stops the workers and waits for running tickets to finish
func (d *InProcessDispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.stop)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("Repost dispatcher stopped", zap.Int("pending", len(d.tickets)))
}

// Pending returns the number of queued tickets
func (d *InProcessDispatcher) Pending() int {
	return len(d.tickets)
}

var _ RepostDispatcher = (*InProcessDispatcher)(nil)

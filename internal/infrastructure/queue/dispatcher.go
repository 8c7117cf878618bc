package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	appinventory "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// RedisOpt builds asynq connection options from the Redis config
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// AsynqDispatcher enqueues repost tickets on a Redis-backed asynq queue
type AsynqDispatcher struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
	maxRetry  int
	timeout   time.Duration
	logger    *zap.Logger
}

// DispatcherOption configures an AsynqDispatcher
type DispatcherOption func(*AsynqDispatcher)

// WithTaskTimeout bounds how long a single repost attempt may run
func WithTaskTimeout(d time.Duration) DispatcherOption {
	return func(a *AsynqDispatcher) {
		a.timeout = d
	}
}

// NewAsynqDispatcher creates a dispatcher for the worker's queue
func NewAsynqDispatcher(opt asynq.RedisConnOpt, cfg config.WorkerConfig, logger *zap.Logger, opts ...DispatcherOption) *AsynqDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "repost"
	}
	d := &AsynqDispatcher{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		queue:     queue,
		maxRetry:  cfg.MaxRetry,
		timeout:   5 * time.Minute,
		logger:    logger.Named("repost_queue"),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch enqueues the ticket. The ticket ID is the task ID, so a ticket that
// is already queued is not enqueued twice.
func (d *AsynqDispatcher) Dispatch(ctx context.Context, ticket *appinventory.RepostTicket) error {
	if err := ticket.Validate(); err != nil {
		return err
	}
	task, err := NewRepostTask(ticket)
	if err != nil {
		return err
	}

	info, err := d.client.EnqueueContext(ctx, task,
		asynq.Queue(d.queue),
		asynq.MaxRetry(d.maxRetry),
		asynq.TaskID(ticket.ID.String()),
		asynq.Timeout(d.timeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		d.logger.Debug("Repost ticket already queued", zap.String("ticket_id", ticket.ID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue repost ticket %s: %w", ticket.ID, err)
	}

	d.logger.Info("Repost ticket queued",
		zap.String("ticket_id", info.ID),
		zap.String("queue", info.Queue),
		zap.String("kind", string(ticket.Kind)),
		zap.Int("keys", len(ticket.Keys)),
	)
	return nil
}

// Pending returns the number of tickets waiting or scheduled for retry.
// It reports zero when the queue cannot be inspected.
func (d *AsynqDispatcher) Pending() int {
	info, err := d.inspector.GetQueueInfo(d.queue)
	if err != nil {
		if !errors.Is(err, asynq.ErrQueueNotFound) {
			d.logger.Debug("Failed to inspect repost queue", zap.Error(err))
		}
		return 0
	}
	return info.Pending + info.Retry + info.Scheduled
}

// Queue returns the queue name tickets are enqueued on
func (d *AsynqDispatcher) Queue() string {
	return d.queue
}

// Close releases the client and inspector connections
func (d *AsynqDispatcher) Close() error {
	return errors.Join(d.client.Close(), d.inspector.Close())
}

var _ appinventory.RepostDispatcher = (*AsynqDispatcher)(nil)

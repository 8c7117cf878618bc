package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	appinventory "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// RepostHandler executes repost tasks pulled from the queue
type RepostHandler struct {
	executor appinventory.RepostExecutor
	logger   *zap.Logger
}

// NewRepostHandler creates a handler around the ledger service
func NewRepostHandler(executor appinventory.RepostExecutor, log *zap.Logger) *RepostHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RepostHandler{executor: executor, logger: log}
}

// Handle runs one ticket. Malformed tickets and business rejections are not
// retried; conflicts and infrastructure failures are.
func (h *RepostHandler) Handle(ctx context.Context, t *asynq.Task) error {
	if h == nil || h.executor == nil {
		return errors.New("repost handler: not configured")
	}
	ticket, err := ParseRepostTask(t)
	if err != nil {
		h.logger.Error("Discarding malformed repost task", zap.Error(err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	ctx = logger.WithContext(ctx, h.logger)
	ctx = logger.WithTicketID(ctx, ticket.ID.String())
	retry, _ := asynq.GetRetryCount(ctx)
	start := time.Now()

	telemetry.WithProfilingLabels(ctx, map[string]string{
		telemetry.ProfilingLabelOperation:  "repost",
		telemetry.ProfilingLabelTicketKind: string(ticket.Kind),
	}, func(ctx context.Context) {
		err = h.executor.ExecuteRepost(ctx, ticket)
	})

	log := logger.L(ctx).With(
		zap.String("kind", string(ticket.Kind)),
		zap.Int("retry", retry),
		zap.Duration("duration", time.Since(start)),
	)
	if err == nil {
		log.Info("Repost ticket completed")
		return nil
	}
	if permanent(err) {
		log.Warn("Repost ticket rejected", zap.Error(err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	log.Warn("Repost ticket failed, will retry", zap.Error(err))
	return err
}

// permanent reports errors that another attempt cannot fix
func permanent(err error) bool {
	var de *shared.DomainError
	return errors.As(err, &de) && !de.Retryable
}

// Worker consumes the repost queue
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

// NewWorker builds an asynq server listening on the configured queue
func NewWorker(opt asynq.RedisConnOpt, cfg config.WorkerConfig, handler *RepostHandler, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("repost_worker")
	queue := cfg.Queue
	if queue == "" {
		queue = "repost"
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency:     concurrency,
		Queues:          map[string]int{queue: 1},
		Logger:          log.Sugar(),
		LogLevel:        asynq.WarnLevel,
		ShutdownTimeout: 30 * time.Second,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
			id, _ := asynq.GetTaskID(ctx)
			log.Debug("Repost task attempt failed",
				zap.String("task_id", id),
				zap.String("type", t.Type()),
				zap.Error(err))
		}),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskRepost, handler.Handle)

	return &Worker{server: srv, mux: mux, logger: log}
}

// Run processes tasks until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("repost worker: not configured")
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start repost worker: %w", err)
	}
	w.logger.Info("Repost worker started")

	<-ctx.Done()
	w.server.Shutdown()
	w.logger.Info("Repost worker stopped")
	return nil
}

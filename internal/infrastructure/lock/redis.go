package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLockOptions configures the lease taken per stock key
type RedisLockOptions struct {
	// TTL is how long a lease lives if its holder dies. Live holders extend it every TTL/3.
	TTL time.Duration
	// Wait bounds how long Lock keeps retrying a busy key
	Wait time.Duration
	// RetryDelay is the pause between attempts
	RetryDelay time.Duration
	// Prefix namespaces the redis keys
	Prefix string
}

// DefaultRedisLockOptions returns the default lease settings
func DefaultRedisLockOptions() RedisLockOptions {
	return RedisLockOptions{
		TTL:        30 * time.Second,
		Wait:       5 * time.Second,
		RetryDelay: 50 * time.Millisecond,
		Prefix:     "stockledger:lock:",
	}
}

// RedisKeyLocker serializes keys across processes with one redis lease per key
type RedisKeyLocker struct {
	rs     *redsync.Redsync
	opts   RedisLockOptions
	logger *zap.Logger
}

// NewRedisKeyLocker creates a locker on an existing redis client
func NewRedisKeyLocker(client redis.UniversalClient, opts RedisLockOptions, logger *zap.Logger) *RedisKeyLocker {
	defaults := DefaultRedisLockOptions()
	if opts.TTL <= 0 {
		opts.TTL = defaults.TTL
	}
	if opts.Wait <= 0 {
		opts.Wait = defaults.Wait
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaults.RetryDelay
	}
	if opts.Prefix == "" {
		opts.Prefix = defaults.Prefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisKeyLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		opts:   opts,
		logger: logger,
	}
}

// Lock takes the lease of every key in sorted order and keeps extending the leases until
// the returned func is called. A key still busy after the wait fails with
// ErrConcurrencyConflict and releases what was taken.
func (l *RedisKeyLocker) Lock(ctx context.Context, keys ...inventory.StockKey) (func(), error) {
	sorted := inventory.SortKeys(keys)
	tries := int(l.opts.Wait/l.opts.RetryDelay) + 1

	held := make([]*redsync.Mutex, 0, len(sorted))
	unlockAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			ok, err := held[i].UnlockContext(context.WithoutCancel(ctx))
			if err != nil || !ok {
				l.logger.Warn("Failed to release stock key lease",
					zap.String("lock_key", held[i].Name()),
					zap.Bool("unlock_ok", ok),
					zap.Error(err),
				)
			}
		}
	}

	for _, key := range sorted {
		mutex := l.rs.NewMutex(
			l.opts.Prefix+key.String(),
			redsync.WithExpiry(l.opts.TTL),
			redsync.WithTries(tries),
			redsync.WithRetryDelay(l.opts.RetryDelay),
		)
		if err := mutex.LockContext(ctx); err != nil {
			unlockAll()
			return nil, fmt.Errorf("%w: stock key %s is locked: %v", shared.ErrConcurrencyConflict, key, err)
		}
		held = append(held, mutex)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.keepAlive(context.WithoutCancel(ctx), held, stop)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			unlockAll()
		})
	}, nil
}

// keepAlive extends every held lease until stop is closed or a lease is lost
func (l *RedisKeyLocker) keepAlive(ctx context.Context, held []*redsync.Mutex, stop <-chan struct{}) {
	interval := l.opts.TTL / 3
	if interval <= 0 {
		interval = l.opts.TTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for _, m := range held {
				ok, err := m.ExtendContext(ctx)
				if err != nil || !ok {
					l.logger.Error("Stock key lease lost",
						zap.String("lock_key", m.Name()),
						zap.Bool("extend_ok", ok),
						zap.Error(err),
					)
					return
				}
			}
		}
	}
}

var _ inventory.KeyLocker = (*RedisKeyLocker)(nil)

package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"go.uber.org/zap"
)

const (
	defaultCostStateTTL    = time.Hour
	defaultCleanupInterval = 30 * time.Second
)

// cacheEntry wraps a cached value with expiration time
type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func (e *cacheEntry[T]) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// InMemoryCostStateCache keeps cost states of stock keys in process memory
type InMemoryCostStateCache struct {
	states  sync.Map // map[inventory.StockKey]*cacheEntry[inventory.CachedCostState]
	ttl     time.Duration
	logger  *zap.Logger
	stopCh  chan struct{}
	stopped int32

	hits   int64
	misses int64
}

// CostStateCacheOption configures a cost state cache
type CostStateCacheOption func(*costStateCacheSettings)

type costStateCacheSettings struct {
	ttl    time.Duration
	logger *zap.Logger
	prefix string
}

// WithCostStateTTL sets how long a state stays cached
func WithCostStateTTL(ttl time.Duration) CostStateCacheOption {
	return func(s *costStateCacheSettings) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithCostStateLogger sets the logger
func WithCostStateLogger(logger *zap.Logger) CostStateCacheOption {
	return func(s *costStateCacheSettings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCostStatePrefix sets the Redis key prefix
func WithCostStatePrefix(prefix string) CostStateCacheOption {
	return func(s *costStateCacheSettings) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func newCostStateSettings(opts []CostStateCacheOption) costStateCacheSettings {
	s := costStateCacheSettings{
		ttl:    defaultCostStateTTL,
		logger: zap.NewNop(),
		prefix: "stockledger:cost_state:",
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// NewInMemoryCostStateCache creates the cache and starts its expiry sweeper
func NewInMemoryCostStateCache(opts ...CostStateCacheOption) *InMemoryCostStateCache {
	settings := newCostStateSettings(opts)
	c := &InMemoryCostStateCache{
		ttl:    settings.ttl,
		logger: settings.logger,
		stopCh: make(chan struct{}),
	}
	go c.cleanupExpired()
	return c
}

// Get returns the cached state of key, or nil on a miss
func (c *InMemoryCostStateCache) Get(_ context.Context, key inventory.StockKey) (*inventory.CachedCostState, error) {
	raw, ok := c.states.Load(key)
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, nil
	}
	entry := raw.(*cacheEntry[inventory.CachedCostState])
	if entry.isExpired(time.Now()) {
		c.states.Delete(key)
		atomic.AddInt64(&c.misses, 1)
		return nil, nil
	}
	atomic.AddInt64(&c.hits, 1)
	state := entry.value
	state.State = state.State.Clone()
	return &state, nil
}

// Put stores the state of key
func (c *InMemoryCostStateCache) Put(_ context.Context, key inventory.StockKey, state inventory.CachedCostState) error {
	state.State = state.State.Clone()
	c.states.Store(key, &cacheEntry[inventory.CachedCostState]{
		value:     state,
		expiresAt: time.Now().Add(c.ttl),
	})
	return nil
}

// Invalidate drops the states of keys
func (c *InMemoryCostStateCache) Invalidate(_ context.Context, keys ...inventory.StockKey) error {
	for _, key := range keys {
		c.states.Delete(key)
	}
	return nil
}

// GetStats returns hit and miss counters
func (c *InMemoryCostStateCache) GetStats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Close stops the sweeper
func (c *InMemoryCostStateCache) Close() error {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
	return nil
}

func (c *InMemoryCostStateCache) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.doCleanup()
		}
	}
}

func (c *InMemoryCostStateCache) doCleanup() {
	now := time.Now()
	removed := 0
	c.states.Range(func(k, v any) bool {
		if v.(*cacheEntry[inventory.CachedCostState]).isExpired(now) {
			c.states.Delete(k)
			removed++
		}
		return true
	})
	if removed > 0 {
		c.logger.Debug("Removed expired cost states", zap.Int("count", removed))
	}
}

var _ inventory.CostStateCache = (*InMemoryCostStateCache)(nil)

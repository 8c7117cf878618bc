package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCostStateCache shares cost states of stock keys between instances
type RedisCostStateCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewRedisCostStateCache creates a cache on a shared client
func NewRedisCostStateCache(client *redis.Client, opts ...CostStateCacheOption) *RedisCostStateCache {
	settings := newCostStateSettings(opts)
	return &RedisCostStateCache{
		client: client,
		ttl:    settings.ttl,
		prefix: settings.prefix,
		logger: settings.logger,
	}
}

func (c *RedisCostStateCache) cacheKey(key inventory.StockKey) string {
	return c.prefix + key.String()
}

// Get returns the cached state of key, or nil on a miss
func (c *RedisCostStateCache) Get(ctx context.Context, key inventory.StockKey) (*inventory.CachedCostState, error) {
	cacheKey := c.cacheKey(key)

	data, err := c.client.Get(ctx, cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cost state from cache: %w", err)
	}

	var state inventory.CachedCostState
	if err := json.Unmarshal(data, &state); err != nil {
		c.logger.Warn("Dropping corrupted cost state",
			zap.String("key", key.String()),
			zap.Error(err))
		_ = c.client.Del(ctx, cacheKey)
		return nil, nil
	}
	return &state, nil
}

// Put stores the state of key
func (c *RedisCostStateCache) Put(ctx context.Context, key inventory.StockKey, state inventory.CachedCostState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal cost state: %w", err)
	}
	if err := c.client.Set(ctx, c.cacheKey(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cost state in cache: %w", err)
	}
	return nil
}

// Invalidate drops the states of keys
func (c *RedisCostStateCache) Invalidate(ctx context.Context, keys ...inventory.StockKey) error {
	if len(keys) == 0 {
		return nil
	}
	cacheKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		cacheKeys = append(cacheKeys, c.cacheKey(key))
	}
	if err := c.client.Del(ctx, cacheKeys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cost states: %w", err)
	}
	return nil
}

var _ inventory.CostStateCache = (*RedisCostStateCache)(nil)

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Factory builds the idempotency store and cost state cache from configuration
type Factory struct {
	redisConfig           config.RedisConfig
	costStateTTL          time.Duration
	logger                *zap.Logger
	allowInMemoryFallback bool

	client *redis.Client
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to in-memory stores
// Default is true
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// WithClient shares an existing Redis client instead of dialing one
func WithClient(client *redis.Client) FactoryOption {
	return func(f *Factory) {
		f.client = client
	}
}

// NewFactory creates a new factory
func NewFactory(redisCfg config.RedisConfig, costStateTTL time.Duration, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           redisCfg,
		costStateTTL:          costStateTTL,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// redisClient returns the shared client, dialing it on first use
func (f *Factory) redisClient(ctx context.Context) (*redis.Client, error) {
	if !f.redisConfig.Enabled && f.client == nil {
		return nil, fmt.Errorf("redis is disabled")
	}
	if f.client != nil {
		return f.client, nil
	}
	client, err := NewRedisClient(ctx, RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, err
	}
	f.client = client
	return client, nil
}

// CreateIdempotencyStore returns a Redis store when Redis is reachable, otherwise an in-memory one
// In-memory claims are not shared between instances, so duplicates can slip through in a cluster
func (f *Factory) CreateIdempotencyStore(ctx context.Context) (shared.IdempotencyStore, error) {
	client, err := f.redisClient(ctx)
	if err == nil {
		f.logger.Info("Using Redis idempotency store")
		return NewRedisIdempotencyStoreWithClient(client, ""), nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for idempotency but unavailable: %w", err)
	}
	f.logger.Warn("Falling back to in-memory idempotency store", zap.Error(err))
	return NewInMemoryIdempotencyStore(), nil
}

// CreateCostStateCache returns a Redis cache when Redis is reachable, otherwise an in-memory one
func (f *Factory) CreateCostStateCache(ctx context.Context) (inventory.CostStateCache, error) {
	opts := []CostStateCacheOption{
		WithCostStateTTL(f.costStateTTL),
		WithCostStateLogger(f.logger),
	}
	client, err := f.redisClient(ctx)
	if err == nil {
		f.logger.Info("Using Redis cost state cache")
		return NewRedisCostStateCache(client, opts...), nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for cost state cache but unavailable: %w", err)
	}
	f.logger.Info("Using in-memory cost state cache", zap.Error(err))
	return NewInMemoryCostStateCache(opts...), nil
}

// Client returns the Redis client once one was dialed
func (f *Factory) Client() *redis.Client {
	return f.client
}

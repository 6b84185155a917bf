package cache

import (
	"context"
	"fmt"

	"github.com/karte/backend/internal/domain/karte"
	"github.com/karte/backend/internal/domain/shared"
	"github.com/karte/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SerialSourceFactory picks the record serial source from configuration
type SerialSourceFactory struct {
	numbering     config.NumberingConfig
	redisConfig   config.RedisConfig
	logger        *zap.Logger
	allowFallback bool
	dial          func(context.Context, config.RedisConfig) (*redis.Client, error)
}

// SerialSourceFactoryOption is a functional option for configuring the factory
type SerialSourceFactoryOption func(*SerialSourceFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) SerialSourceFactoryOption {
	return func(f *SerialSourceFactory) {
		f.logger = logger
	}
}

// WithCountFallback controls whether to fall back to the store count when Redis is unavailable
// Default is true (allow fallback)
func WithCountFallback(allow bool) SerialSourceFactoryOption {
	return func(f *SerialSourceFactory) {
		f.allowFallback = allow
	}
}

// NewSerialSourceFactory creates a new factory
func NewSerialSourceFactory(numbering config.NumberingConfig, redisCfg config.RedisConfig, opts ...SerialSourceFactoryOption) *SerialSourceFactory {
	f := &SerialSourceFactory{
		numbering:     numbering,
		redisConfig:   redisCfg,
		logger:        zap.NewNop(),
		allowFallback: true,
		dial:          NewRedisClient,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns the configured serial source. countSource is the store
// count used directly under the count strategy and as the seed for Redis
// counters. The returned close function releases the Redis connection.
func (f *SerialSourceFactory) Create(ctx context.Context, countSource karte.SerialSource) (karte.SerialSource, func() error, error) {
	noop := func() error { return nil }

	if f.numbering.Strategy != config.NumberingStrategyRedis {
		f.logger.Info("Using store count for record serials")
		return countSource, noop, nil
	}

	client, err := f.dial(ctx, f.redisConfig)
	if err != nil {
		if !f.allowFallback {
			return nil, noop, fmt.Errorf("Redis required for record serials but unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to store count for record serials. "+
			"Concurrent creations may receive the same number.",
			zap.Error(err),
		)
		return countSource, noop, nil
	}

	f.logger.Info("Using Redis counter for record serials",
		zap.String("key_prefix", f.numbering.KeyPrefix),
		zap.Duration("ttl", f.numbering.RedisKeyTTL),
	)
	return NewRedisSerialSource(client, countSource, f.numbering.KeyPrefix, f.numbering.RedisKeyTTL), client.Close, nil
}

// NewIdempotencyStore returns a Redis-backed store when Redis is enabled and
// reachable, and an in-memory store otherwise
func NewIdempotencyStore(ctx context.Context, redisCfg config.RedisConfig, logger *zap.Logger) shared.IdempotencyStore {
	return newIdempotencyStore(ctx, redisCfg, logger, NewRedisClient)
}

func newIdempotencyStore(ctx context.Context, redisCfg config.RedisConfig, logger *zap.Logger,
	dial func(context.Context, config.RedisConfig) (*redis.Client, error)) shared.IdempotencyStore {
	if !redisCfg.Enabled {
		logger.Info("Using in-memory idempotency keys")
		return NewInMemoryIdempotencyStore(0)
	}
	client, err := dial(ctx, redisCfg)
	if err != nil {
		logger.Warn("Redis unavailable, idempotency keys are kept per instance", zap.Error(err))
		return NewInMemoryIdempotencyStore(0)
	}
	logger.Info("Using Redis for idempotency keys")
	return NewRedisIdempotencyStore(client, DefaultIdempotencyKeyPrefix)
}

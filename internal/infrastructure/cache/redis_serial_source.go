package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/karte/backend/internal/domain/karte"
	"github.com/redis/go-redis/v9"
)

// counterClient is the subset of redis.Cmdable used by RedisSerialSource
type counterClient interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// RedisSerialSource hands out record serials from an atomic Redis counter,
// one key per number prefix. A missing counter is seeded from the store
// count so serials continue after records created before the counter
// existed. Serials are never reused, even when the record is never saved.
type RedisSerialSource struct {
	client    counterClient
	seed      karte.SerialSource
	keyPrefix string
	ttl       time.Duration
}

// NewRedisSerialSource creates a counter-backed serial source. seed supplies
// the starting point for prefixes that have no counter yet.
func NewRedisSerialSource(client counterClient, seed karte.SerialSource, keyPrefix string, ttl time.Duration) *RedisSerialSource {
	if keyPrefix == "" {
		keyPrefix = "karte:serial:"
	}
	return &RedisSerialSource{
		client:    client,
		seed:      seed,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// NextSerial increments and returns the counter for prefix
func (s *RedisSerialSource) NextSerial(ctx context.Context, prefix string) (int, error) {
	key := s.keyPrefix + prefix

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to check serial counter: %w", err)
	}
	if exists == 0 {
		next, err := s.seed.NextSerial(ctx, prefix)
		if err != nil {
			return 0, fmt.Errorf("failed to seed serial counter: %w", err)
		}
		// Losing the SETNX race is fine: another instance seeded the same key.
		if _, err := s.client.SetNX(ctx, key, next-1, s.ttl).Result(); err != nil {
			return 0, fmt.Errorf("failed to seed serial counter: %w", err)
		}
	}

	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment serial counter: %w", err)
	}
	return int(n), nil
}

var _ karte.SerialSource = (*RedisSerialSource)(nil)

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/karte/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Close()
	store.now = func() time.Time { return now }

	t.Run("second claim is refused", func(t *testing.T) {
		ok, err := store.Claim(ctx, "k1", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Claim(ctx, "k1", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("released key can be claimed again", func(t *testing.T) {
		_, _ = store.Claim(ctx, "k2", time.Minute)
		require.NoError(t, store.Release(ctx, "k2"))

		ok, err := store.Claim(ctx, "k2", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("expired key can be claimed again", func(t *testing.T) {
		_, _ = store.Claim(ctx, "k3", time.Minute)
		now = now.Add(time.Minute)

		ok, err := store.Claim(ctx, "k3", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("sweep drops expired keys", func(t *testing.T) {
		now = now.Add(time.Hour)
		store.sweep()
		assert.Equal(t, 0, store.Size())
	})
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Millisecond)
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

type mockKeyClient struct {
	mock.Mock
}

func (m *mockKeyClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	args := m.Called(ctx, key, value, expiration)
	return redis.NewBoolResult(args.Bool(0), args.Error(1))
}

func (m *mockKeyClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return redis.NewIntResult(int64(args.Int(0)), args.Error(1))
}

func (m *mockKeyClient) Close() error {
	return m.Called().Error(0)
}

func TestRedisIdempotencyStore(t *testing.T) {
	ctx := context.Background()

	t.Run("claim uses SETNX with the ttl", func(t *testing.T) {
		client := new(mockKeyClient)
		client.On("SetNX", ctx, "karte:idempotency:abc", "1", time.Hour).Return(true, nil).Once()
		client.On("SetNX", ctx, "karte:idempotency:abc", "1", time.Hour).Return(false, nil).Once()
		store := NewRedisIdempotencyStore(client, "")

		ok, err := store.Claim(ctx, "abc", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Claim(ctx, "abc", time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)
		client.AssertExpectations(t)
	})

	t.Run("release deletes the key", func(t *testing.T) {
		client := new(mockKeyClient)
		client.On("Del", ctx, []string{"p:abc"}).Return(1, nil)
		store := NewRedisIdempotencyStore(client, "p:")

		require.NoError(t, store.Release(ctx, "abc"))
		client.AssertExpectations(t)
	})

	t.Run("redis errors are wrapped", func(t *testing.T) {
		client := new(mockKeyClient)
		boom := errors.New("connection reset")
		client.On("SetNX", ctx, mock.Anything, mock.Anything, mock.Anything).Return(false, boom)
		client.On("Del", ctx, mock.Anything).Return(0, boom)
		store := NewRedisIdempotencyStore(client, "")

		_, err := store.Claim(ctx, "abc", time.Hour)
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, store.Release(ctx, "abc"), boom)
	})
}

func TestNewIdempotencyStore(t *testing.T) {
	ctx := context.Background()

	t.Run("in memory when redis is disabled", func(t *testing.T) {
		store := NewIdempotencyStore(ctx, config.RedisConfig{}, zap.NewNop())
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("redis when reachable", func(t *testing.T) {
		store := newIdempotencyStore(ctx, config.RedisConfig{Enabled: true}, zap.NewNop(),
			func(context.Context, config.RedisConfig) (*redis.Client, error) {
				return redis.NewClient(&redis.Options{Addr: "localhost:0"}), nil
			})
		defer store.Close()
		assert.IsType(t, &RedisIdempotencyStore{}, store)
	})

	t.Run("falls back with a warning", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		store := newIdempotencyStore(ctx, config.RedisConfig{Enabled: true}, zap.New(core),
			func(context.Context, config.RedisConfig) (*redis.Client, error) {
				return nil, errors.New("dial tcp: refused")
			})
		defer store.Close()

		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
		require.Equal(t, 1, logs.Len())
		assert.Contains(t, logs.All()[0].Message, "kept per instance")
	})
}

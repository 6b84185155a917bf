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

type mockCounterClient struct {
	mock.Mock
}

func (m *mockCounterClient) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return redis.NewIntResult(int64(args.Int(0)), args.Error(1))
}

func (m *mockCounterClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	args := m.Called(ctx, key, value, expiration)
	return redis.NewBoolResult(args.Bool(0), args.Error(1))
}

func (m *mockCounterClient) Incr(ctx context.Context, key string) *redis.IntCmd {
	args := m.Called(ctx, key)
	return redis.NewIntResult(int64(args.Int(0)), args.Error(1))
}

type mockSerialSource struct {
	mock.Mock
}

func (m *mockSerialSource) NextSerial(ctx context.Context, prefix string) (int, error) {
	args := m.Called(ctx, prefix)
	return args.Int(0), args.Error(1)
}

func TestRedisSerialSource_SeedsMissingCounter(t *testing.T) {
	ctx := context.Background()
	client := new(mockCounterClient)
	seed := new(mockSerialSource)
	src := NewRedisSerialSource(client, seed, "test:", 48*time.Hour)

	client.On("Exists", ctx, []string{"test:D-250110"}).Return(0, nil).Once()
	seed.On("NextSerial", ctx, "D-250110").Return(3, nil).Once()
	client.On("SetNX", ctx, "test:D-250110", 2, 48*time.Hour).Return(true, nil).Once()
	client.On("Incr", ctx, "test:D-250110").Return(3, nil).Once()

	n, err := src.NextSerial(ctx, "D-250110")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	client.AssertExpectations(t)
	seed.AssertExpectations(t)
}

func TestRedisSerialSource_ExistingCounterSkipsSeed(t *testing.T) {
	ctx := context.Background()
	client := new(mockCounterClient)
	seed := new(mockSerialSource)
	src := NewRedisSerialSource(client, seed, "", time.Hour)

	client.On("Exists", ctx, []string{"karte:serial:I-250110"}).Return(1, nil)
	client.On("Incr", ctx, "karte:serial:I-250110").Return(8, nil)

	n, err := src.NextSerial(ctx, "I-250110")
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	seed.AssertNotCalled(t, "NextSerial", mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "SetNX", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRedisSerialSource_Errors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")

	tests := []struct {
		name  string
		setup func(c *mockCounterClient, s *mockSerialSource)
		want  string
	}{
		{
			name: "exists fails",
			setup: func(c *mockCounterClient, s *mockSerialSource) {
				c.On("Exists", ctx, mock.Anything).Return(0, boom)
			},
			want: "failed to check serial counter",
		},
		{
			name: "seed fails",
			setup: func(c *mockCounterClient, s *mockSerialSource) {
				c.On("Exists", ctx, mock.Anything).Return(0, nil)
				s.On("NextSerial", ctx, "D-250110").Return(0, boom)
			},
			want: "failed to seed serial counter",
		},
		{
			name: "incr fails",
			setup: func(c *mockCounterClient, s *mockSerialSource) {
				c.On("Exists", ctx, mock.Anything).Return(1, nil)
				c.On("Incr", ctx, mock.Anything).Return(0, boom)
			},
			want: "failed to increment serial counter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(mockCounterClient)
			seed := new(mockSerialSource)
			tt.setup(client, seed)

			_, err := NewRedisSerialSource(client, seed, "", time.Hour).NextSerial(ctx, "D-250110")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestSerialSourceFactory(t *testing.T) {
	ctx := context.Background()
	count := new(mockSerialSource)

	t.Run("count strategy uses the store count", func(t *testing.T) {
		f := NewSerialSourceFactory(config.NumberingConfig{Strategy: config.NumberingStrategyCount}, config.RedisConfig{})
		src, closeFn, err := f.Create(ctx, count)
		require.NoError(t, err)
		assert.Same(t, count, src)
		assert.NoError(t, closeFn())
	})

	t.Run("falls back with a warning when redis is unreachable", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		f := NewSerialSourceFactory(
			config.NumberingConfig{Strategy: config.NumberingStrategyRedis},
			config.RedisConfig{Enabled: true},
			WithLogger(zap.New(core)),
		)
		f.dial = func(context.Context, config.RedisConfig) (*redis.Client, error) {
			return nil, errors.New("dial tcp: refused")
		}

		src, _, err := f.Create(ctx, count)
		require.NoError(t, err)
		assert.Same(t, count, src)
		require.Equal(t, 1, logs.Len())
		assert.Contains(t, logs.All()[0].Message, "falling back to store count")
	})

	t.Run("fails without fallback", func(t *testing.T) {
		f := NewSerialSourceFactory(
			config.NumberingConfig{Strategy: config.NumberingStrategyRedis},
			config.RedisConfig{Enabled: true},
			WithCountFallback(false),
		)
		f.dial = func(context.Context, config.RedisConfig) (*redis.Client, error) {
			return nil, errors.New("dial tcp: refused")
		}

		_, _, err := f.Create(ctx, count)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Redis required")
	})
}

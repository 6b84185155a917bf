package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/karte/backend/internal/infrastructure/docstore"
	"github.com/karte/backend/internal/interfaces/http/dto"
	"github.com/karte/backend/internal/interfaces/http/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestSystemHandler_PingAndInfo(t *testing.T) {
	s := newTestStack(t, func(*testStack) router.RouteRegistrar {
		return NewSystemHandler("karte-backend", "1.2.3", nil)
	})

	w := s.do(t, http.MethodGet, "/system/ping", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ping PingResponse
	decodeData(t, w, &ping)
	assert.Equal(t, "pong", ping.Message)

	w = s.do(t, http.MethodGet, "/system/info", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info SystemInfoResponse
	decodeData(t, w, &info)
	assert.Equal(t, "karte-backend", info.Name)
	assert.Equal(t, "1.2.3", info.Version)
	assert.NotEmpty(t, info.GoVersion)

	w = s.do(t, http.MethodGet, "/system/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	decodeData(t, w, &health)
	assert.Equal(t, "unchecked", health.Store)
}

func TestSystemHandler_Health(t *testing.T) {
	t.Run("store reachable", func(t *testing.T) {
		s := newTestStack(t, func(s *testStack) router.RouteRegistrar {
			return NewSystemHandler("karte-backend", "dev", docstore.Prober{Store: s.store})
		})
		w := s.do(t, http.MethodGet, "/system/health", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var health HealthResponse
		decodeData(t, w, &health)
		assert.Equal(t, "ok", health.Status)
		assert.Equal(t, "ok", health.Store)
	})

	t.Run("store unreachable", func(t *testing.T) {
		s := newTestStack(t, func(*testStack) router.RouteRegistrar {
			return NewSystemHandler("karte-backend", "dev", pingFunc(func(context.Context) error {
				return errors.New("dial tcp: connection refused")
			}))
		})
		w := s.do(t, http.MethodGet, "/system/health", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, dto.ErrCodeStoreUnavailable, decodeError(t, w))
	})
}

package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/karte/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionHandler_Open(t *testing.T) {
	s := newTestStack(t, withSessionRoutes)

	t.Run("author from body", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/sessions", "", map[string]string{"author": "Sato"})
		require.Equal(t, http.StatusCreated, w.Code)

		var resp dto.SessionResponse
		decodeData(t, w, &resp)
		assert.NotEmpty(t, resp.SessionID)
		assert.Equal(t, resp.SessionID, w.Header().Get("X-Session-ID"))
		assert.Equal(t, "Sato", resp.Author)
		assert.Regexp(t, `^D-\d{6}-001$`, resp.Karte.RecordNumber)
		assert.Empty(t, resp.Karte.ID)
	})

	t.Run("author from header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
		req.Header.Set(AuthorHeader, "Suzuki")
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, req)
		require.Equal(t, http.StatusCreated, w.Code)

		var resp dto.SessionResponse
		decodeData(t, w, &resp)
		assert.Equal(t, "Suzuki", resp.Author)
	})

	t.Run("missing author", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/sessions", "", map[string]string{"author": "  "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, decodeError(t, w))
	})

	t.Run("author too long", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/sessions", "", map[string]string{"author": strings.Repeat("a", 101)})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSessionHandler_Close(t *testing.T) {
	s := newTestStack(t, withSessionRoutes, withKarteRoutes)
	id := s.openSession(t, "Sato")
	require.Equal(t, 1, s.sessions.Len())

	w := s.do(t, http.MethodDelete, "/sessions", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeSessionRequired, decodeError(t, w))

	w = s.do(t, http.MethodDelete, "/sessions", id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, s.sessions.Len())

	w = s.do(t, http.MethodGet, "/karte", id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

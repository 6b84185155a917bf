package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	appkarte "github.com/karte/backend/internal/application/karte"
	"github.com/karte/backend/internal/domain/karte"
	"github.com/karte/backend/internal/infrastructure/config"
	"github.com/karte/backend/internal/infrastructure/docstore"
	"github.com/karte/backend/internal/infrastructure/media"
	"github.com/karte/backend/internal/infrastructure/persistence"
	"github.com/karte/backend/internal/interfaces/http/dto"
	"github.com/karte/backend/internal/interfaces/http/router"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testStack wires the handlers to an in-memory document store
type testStack struct {
	engine   *gin.Engine
	store    *docstore.MemoryStore
	repo     *persistence.DocstoreKarteRepository
	sessions *appkarte.SessionManager
}

func newTestStack(t *testing.T, registrars ...func(*testStack) router.RouteRegistrar) *testStack {
	t.Helper()
	log := zap.NewNop()
	store := docstore.NewMemoryStore()
	repo := persistence.NewDocstoreKarteRepository(store, log)
	numbers := karte.NewNumberGenerator(repo, time.UTC)
	images := media.NewImageEncoder(config.MediaConfig{MaxImageWidth: 64, JPEGQuality: 80, MaxImageBytes: 1 << 20})

	sessions := appkarte.NewSessionManager(func(sctx appkarte.SessionContext) *appkarte.Session {
		return appkarte.NewSession(sctx, repo, numbers, images, log)
	}, time.Hour, log)

	s := &testStack{engine: gin.New(), store: store, repo: repo, sessions: sessions}
	r := router.NewRouter(s.engine)
	for _, build := range registrars {
		r.Register(build(s))
	}
	r.Setup()
	return s
}

func withSessionRoutes(s *testStack) router.RouteRegistrar {
	return NewSessionHandler(s.sessions)
}

func withKarteRoutes(s *testStack) router.RouteRegistrar {
	return NewKarteHandler(s.sessions, zap.NewNop(), WithHeartbeat(time.Hour))
}

func (s *testStack) do(t *testing.T, method, path, sessionID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

// openSession opens a session through the API and returns its id
func (s *testStack) openSession(t *testing.T, author string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/sessions", "", map[string]string{"author": author})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Data dto.SessionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data.SessionID
}

// decodeData unmarshals the data member of a success response into out
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	require.True(t, resp.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

// decodeError returns the error code of a failure response
func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

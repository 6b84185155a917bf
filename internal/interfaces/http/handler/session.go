package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	appkarte "github.com/karte/backend/internal/application/karte"
	"github.com/karte/backend/internal/infrastructure/logger"
	"github.com/karte/backend/internal/interfaces/http/dto"
	"github.com/karte/backend/internal/interfaces/http/middleware"
	"github.com/karte/backend/internal/interfaces/http/router"
)

// AuthorHeader may carry the session author instead of the request body
const AuthorHeader = "X-Author"

// SessionStore opens, resolves and closes editing sessions
type SessionStore interface {
	middleware.SessionResolver
	Open(ctx context.Context, author string) (*appkarte.Session, error)
	Close(id string)
}

// SessionHandler handles editing session endpoints
type SessionHandler struct {
	BaseHandler
	sessions SessionStore
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessions SessionStore) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := router.NewDomainGroup("sessions", "/sessions")
	g.POST("", h.Open)
	g.DELETE("", h.Close)
	g.RegisterRoutes(rg)
}

// Open starts a session holding a new record.
// POST /sessions
func (h *SessionHandler) Open(c *gin.Context) {
	var req dto.OpenSessionRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	author := strings.TrimSpace(req.Author)
	if author == "" {
		author = strings.TrimSpace(c.GetHeader(AuthorHeader))
	}
	if author == "" {
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
			"Request validation failed",
			getRequestID(c),
			[]dto.ValidationDetail{{Field: "author", Message: "This field is required"}},
		))
		return
	}

	session, err := h.sessions.Open(c.Request.Context(), author)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	sctx := session.Context()
	c.Header(logger.SessionHeader, sctx.SessionID)
	h.Created(c, dto.SessionResponse{
		SessionID: sctx.SessionID,
		Author:    sctx.Author,
		Karte:     dto.ToKarteResponse(session.Snapshot()),
	})
}

// Close ends the session named by the X-Session-ID header. Unsaved edits
// are discarded.
// DELETE /sessions
func (h *SessionHandler) Close(c *gin.Context) {
	id := c.GetHeader(logger.SessionHeader)
	if id == "" {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeSessionRequired, "The "+logger.SessionHeader+" header is required")
		return
	}
	h.sessions.Close(id)
	h.NoContent(c)
}

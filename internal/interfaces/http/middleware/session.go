package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	appkarte "github.com/karte/backend/internal/application/karte"
	"github.com/karte/backend/internal/infrastructure/logger"
	"github.com/karte/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// sessionKey holds the resolved *appkarte.Session in the gin context
const sessionKey = "karte_session"

// SessionResolver looks up an open editing session
type SessionResolver interface {
	Get(id string) (*appkarte.Session, error)
}

// RequireSession resolves the session named by the X-Session-ID header and
// tags the request logger with its author. Requests without a header get
// 400; unknown or expired sessions get 404.
func RequireSession(sessions SessionResolver, base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("request_id")

		id := c.GetHeader(logger.SessionHeader)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(
				dto.ErrCodeSessionRequired,
				"The "+logger.SessionHeader+" header is required",
				requestID,
			))
			return
		}

		session, err := sessions.Get(id)
		if err != nil {
			status, code, msg := dto.ErrorStatus(err)
			c.AbortWithStatusJSON(status, dto.NewErrorResponse(code, msg, requestID))
			return
		}

		ctx, l := logger.WithAuthor(c.Request.Context(), logger.GetGinLogger(c, base), session.Context().Author)
		c.Request = c.Request.WithContext(ctx)
		logger.SetGinLogger(c, l)
		c.Set(sessionKey, session)
		c.Next()
	}
}

// GetSession returns the session resolved by RequireSession, or nil
func GetSession(c *gin.Context) *appkarte.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(*appkarte.Session); ok {
			return s
		}
	}
	return nil
}

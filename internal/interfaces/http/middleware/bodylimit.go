package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/karte/backend/internal/interfaces/http/dto"
)

// BodyLimit returns a middleware that limits request body size. Comment
// images travel inline as base64, so the limit bounds upload size too.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponse(
				dto.ErrCodeRequestTooLarge,
				"Request body exceeds maximum allowed size",
				c.GetString("request_id"),
			))
			return
		}

		// Wrap the body with a limited reader for streaming requests
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

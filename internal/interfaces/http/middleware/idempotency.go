package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/karte/backend/internal/domain/shared"
	"github.com/karte/backend/internal/infrastructure/logger"
	"github.com/karte/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// IdempotencyHeader carries the client-chosen key of a mutating request
const IdempotencyHeader = "Idempotency-Key"

const maxIdempotencyKeyLen = 128

// Idempotency refuses a repeated POST, PUT, PATCH or DELETE carrying the same
// Idempotency-Key within ttl. Keys are scoped to the editing session and the
// route. A request that ends in an error status releases its key so the
// client can retry it. Requests without the header pass through, and so do
// all requests when the store fails.
func Idempotency(store shared.IdempotencyStore, ttl time.Duration, base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" || !isMutating(c.Request.Method) {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(
				dto.ErrCodeBadRequest,
				IdempotencyHeader+" must be at most 128 characters",
				c.GetString("request_id"),
			))
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		scoped := c.GetHeader(logger.SessionHeader) + "|" + c.Request.Method + " " + route + "|" + key
		log := logger.GetGinLogger(c, base)

		claimed, err := store.Claim(c.Request.Context(), scoped, ttl)
		if err != nil {
			log.Warn("Idempotency check skipped", zap.Error(err))
			c.Next()
			return
		}
		if !claimed {
			log.Info("Duplicate request refused", zap.String("idempotency_key", key))
			c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponse(
				dto.ErrCodeDuplicateRequest,
				"This request was already received",
				c.GetString("request_id"),
			))
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			if err := store.Release(context.WithoutCancel(c.Request.Context()), scoped); err != nil {
				log.Warn("Failed to release idempotency key", zap.Error(err))
			}
		}
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

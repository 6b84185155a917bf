package dto

import (
	"errors"
	"net/http"

	"github.com/karte/backend/internal/domain/shared"
)

// Error codes produced by the HTTP layer itself. Domain errors keep the
// code they were raised with.
const (
	ErrCodeInternal         = "ERR_INTERNAL"
	ErrCodeValidation       = "ERR_VALIDATION"
	ErrCodeBadRequest       = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON      = "ERR_INVALID_JSON"
	ErrCodeNotFound         = "ERR_NOT_FOUND"
	ErrCodeSessionRequired  = "ERR_SESSION_REQUIRED"
	ErrCodeStoreUnavailable = "ERR_STORE_UNAVAILABLE"
	ErrCodeRequestTooLarge  = "ERR_REQUEST_TOO_LARGE"
	ErrCodeRateLimited      = "ERR_RATE_LIMITED"
	ErrCodeDuplicateRequest = "ERR_DUPLICATE_REQUEST"
)

// kindHTTPStatus maps domain error kinds to HTTP status codes
var kindHTTPStatus = map[shared.ErrorKind]int{
	shared.KindValidation:        http.StatusBadRequest,
	shared.KindNotFound:          http.StatusNotFound,
	shared.KindSuperseded:        http.StatusConflict,
	shared.KindInvalidState:      http.StatusUnprocessableEntity,
	shared.KindPersistence:       http.StatusServiceUnavailable,
	shared.KindNumberingDegraded: http.StatusInternalServerError,
}

// ErrorStatus resolves the status code, error code and client-facing
// message for err. Persistence causes and unknown errors are not exposed.
func ErrorStatus(err error) (int, string, string) {
	var de *shared.DomainError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred"
	}

	status, ok := kindHTTPStatus[de.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	switch de.Kind {
	case shared.KindPersistence:
		return status, ErrCodeStoreUnavailable, de.Message
	case shared.KindNotFound:
		return status, ErrCodeNotFound, de.Message
	}
	return status, de.Code, de.Message
}

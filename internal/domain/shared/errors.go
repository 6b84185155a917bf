package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DomainError for callers that need to decide
// between surfacing, retrying or degrading.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindNotFound          ErrorKind = "not_found"
	KindPersistence       ErrorKind = "persistence"
	KindNumberingDegraded ErrorKind = "numbering_degraded"
	KindSuperseded        ErrorKind = "superseded"
	KindInvalidState      ErrorKind = "invalid_state"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code, so that
// errors.Is(err, ErrNotFound) holds for every not-found error.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Kind:    KindInvalidState,
	}
}

// NewValidationError reports locally detected bad input. It never reaches the store.
func NewValidationError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Kind:    KindValidation,
	}
}

// NewNotFoundError reports that the requested resource id does not exist.
func NewNotFoundError(resource, id string) *DomainError {
	return &DomainError{
		Code:    ErrNotFound.Code,
		Message: fmt.Sprintf("%s %q not found", resource, id),
		Kind:    KindNotFound,
	}
}

// NewPersistenceError wraps a store failure for the given operation.
func NewPersistenceError(op string, cause error) *DomainError {
	return &DomainError{
		Code:    ErrPersistence.Code,
		Message: op + " failed",
		Kind:    KindPersistence,
		Cause:   cause,
	}
}

// Common domain errors
var (
	ErrNotFound          = &DomainError{Code: "NOT_FOUND", Message: "Resource not found", Kind: KindNotFound}
	ErrInvalidInput      = &DomainError{Code: "INVALID_INPUT", Message: "Invalid input provided", Kind: KindValidation}
	ErrInvalidState      = &DomainError{Code: "INVALID_STATE", Message: "Operation not allowed in current state", Kind: KindInvalidState}
	ErrPersistence       = &DomainError{Code: "PERSISTENCE_ERROR", Message: "Document store operation failed", Kind: KindPersistence}
	ErrNumberingDegraded = &DomainError{Code: "NUMBERING_DEGRADED", Message: "Record number sequence unavailable, using fallback serial", Kind: KindNumberingDegraded}
	ErrSuperseded        = &DomainError{Code: "SUPERSEDED", Message: "Request was superseded by a newer request", Kind: KindSuperseded}
)

// IsKind reports whether err is, or wraps, a DomainError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

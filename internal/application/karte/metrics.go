package karte

import (
	"context"
	"time"
)

// Store operations reported to Metrics
const (
	OpLoad   = "load"
	OpSave   = "save"
	OpDelete = "delete"
	OpList   = "list"
)

// Metrics receives the outcome of the session's store round trips
type Metrics interface {
	RecordOperation(ctx context.Context, op string, elapsed time.Duration, err error)
	RecordNumberingFallback(ctx context.Context)
}

type nopMetrics struct{}

func (nopMetrics) RecordOperation(context.Context, string, time.Duration, error) {}
func (nopMetrics) RecordNumberingFallback(context.Context)                      {}

// WithMetrics reports store round trips and numbering fallbacks to m
func WithMetrics(m Metrics) SessionOption {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

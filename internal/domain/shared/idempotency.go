package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers request keys so a retried mutation is applied
// at most once while its key is live.
type IdempotencyStore interface {
	// Claim records key for ttl. It returns false when the key is already
	// held by an earlier request.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release forgets key so the request can be retried
	Release(ctx context.Context, key string) error

	Close() error
}

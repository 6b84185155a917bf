// Package storage provides object storage backends for archived report
// exports. S3-compatible services, Google Cloud Storage and an in-process
// store are supported.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/karte/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ErrKeyRequired is returned for an empty object key
var ErrKeyRequired = errors.New("storage key is required")

// ObjectStore writes objects and hands out time-limited download URLs
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	SignedURL(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error)
}

// Open builds the configured backend. It returns a nil store when object
// storage is disabled. The returned function releases the backend.
func Open(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (ObjectStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Driver {
	case config.StorageDriverNone:
		return nil, noop, nil
	case config.StorageDriverMemory:
		return NewMemoryObjectStorage(), noop, nil
	case config.StorageDriverS3:
		s, err := NewS3ObjectStorage(cfg, WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case config.StorageDriverGCS:
		s, err := NewGCSObjectStorage(ctx, cfg, WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/karte/backend/internal/infrastructure/config"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GCSObjectStorage stores objects in a Google Cloud Storage bucket.
// Signed URLs need credentials able to sign: a service account key file or
// an identity allowed to call signBlob.
type GCSObjectStorage struct {
	client *gcs.Client
	bucket string
	options
}

var _ ObjectStore = (*GCSObjectStorage)(nil)

// NewGCSObjectStorage creates a new GCSObjectStorage. Without a credentials
// file the client uses application default credentials.
func NewGCSObjectStorage(ctx context.Context, cfg *config.StorageConfig, opts ...Option) (*GCSObjectStorage, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := gcs.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return newGCSObjectStorage(client, cfg, opts...), nil
}

func newGCSObjectStorage(client *gcs.Client, cfg *config.StorageConfig, opts ...Option) *GCSObjectStorage {
	return &GCSObjectStorage{
		client:  client,
		bucket:  cfg.Bucket,
		options: buildOptions(cfg, opts),
	}
}

// Put uploads data under key
func (s *GCSObjectStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return ErrKeyRequired
	}
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to upload object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	s.logger.Debug("Object stored", zap.String("bucket", s.bucket), zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

// SignedURL signs a V4 GET URL for key. A non-positive expiresIn uses the
// configured default.
func (s *GCSObjectStorage) SignedURL(_ context.Context, key string, expiresIn time.Duration) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, ErrKeyRequired
	}
	if expiresIn <= 0 {
		expiresIn = s.presignExpiration
	}
	expiresAt := time.Now().Add(expiresIn)

	u, err := s.client.Bucket(s.bucket).SignedURL(key, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: expiresAt,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate download URL: %w", err)
	}
	return u, expiresAt, nil
}

// Bucket returns the bucket name
func (s *GCSObjectStorage) Bucket() string {
	return s.bucket
}

// Close releases the client
func (s *GCSObjectStorage) Close() error {
	return s.client.Close()
}

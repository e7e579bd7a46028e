// Package blob stores project image objects in an S3 compatible bucket (MinIO in practice).
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// PresignTTL is how long presigned upload URLs stay valid.
const PresignTTL = 900 * time.Second

var (
	// ErrNotFound is returned when the object does not exist.
	ErrNotFound = errors.New("blob: object not found")
	// ErrNotConfigured is returned when MINIO_BUCKET or the endpoint credentials are missing.
	ErrNotConfigured = errors.New("MINIO_BUCKET is not configured")
)

// Object is an open object body. The caller closes Body.
type Object struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	ETag          string
}

// Store is the opaque object store used by the project handlers and the seed command.
type Store interface {
	Get(ctx context.Context, key string) (*Object, error)
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
}

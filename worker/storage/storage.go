package storage

import (
	"context"
	"time"
)

// ObjectStore holds generated images and hands out time-limited download URLs.
type ObjectStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

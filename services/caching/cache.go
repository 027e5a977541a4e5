package caching

import (
	"context"
	"time"
)

// Cache is a string key/value cache. A miss returns "" and a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

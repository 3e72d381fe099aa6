package cache

import (
	"context"
	"time"
)

// Cache is a minimal TTL key-value store, used to remember recently
// processed provider message ids so redelivered webhooks are dropped.
type Cache interface {
	Set(ctx context.Context, key, val string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

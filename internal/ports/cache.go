package ports

import (
	"context"
	"time"
)

// Cache defines a byte-oriented key/value store with per-key expiry.
// Implementations return ErrCacheUnavailable (wrapped) when the backend cannot be reached.
type Cache interface {
	// Get returns the value stored under key. found is false on a miss.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// FlushPrefix removes every key starting with prefix.
	FlushPrefix(ctx context.Context, prefix string) error
}

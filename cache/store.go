package cache

import (
	"context"
	"time"
)

// Store is the shared TTL key-value state behind duplicate detection and
// device rate limiting. It is the only mutable state the engine touches,
// so all cross-request ordering guarantees reduce to the atomicity the
// store provides for single-key operations. No multi-key transactions are
// required and no implementation may hold a lock across requests.
type Store interface {
	// Get returns the live value for key. The second return is false when
	// the key is absent or its TTL has elapsed.
	Get(ctx context.Context, key string) (string, bool, error)

	// SetWithTTL writes value under key with a fresh TTL, unconditionally
	// overwriting any prior value.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// IncrementOrCreate atomically increments the counter at key, creating
	// it at 1 with the given TTL when absent or expired. The TTL window is
	// only (re)started on create, never on increment.
	IncrementOrCreate(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

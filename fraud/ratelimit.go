package fraud

import (
	"context"
	"time"

	"fraud-verify-service/cache"
	"fraud-verify-service/models"
)

const rateKeyPrefix = "device_rate:"

// RateLimiter counts submissions per device over a trailing window. It
// never rejects: callers above the threshold only gain a risk factor, so
// legitimate power users on shared devices keep working.
type RateLimiter struct {
	store  cache.Store
	window time.Duration
}

// NewRateLimiter creates a limiter over the shared TTL store.
func NewRateLimiter(store cache.Store, window time.Duration) *RateLimiter {
	return &RateLimiter{store: store, window: window}
}

// Hit atomically increments the device counter, creating it with a fresh
// window when absent, and returns the post-increment count.
func (r *RateLimiter) Hit(ctx context.Context, deviceID string) (int64, error) {
	count, err := r.store.IncrementOrCreate(ctx, rateKeyPrefix+deviceID, r.window)
	if err != nil {
		return 0, &models.UpstreamError{Service: "cache store", Err: err}
	}
	return count, nil
}

// Package ratelimit provides fixed-window request limiting keyed by
// caller identity. Counters live in Redis for multi-instance
// deployments or in process memory for single-instance and test use.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// DefaultWindow is the accounting window for request limits.
const DefaultWindow = time.Minute

// Decision is the outcome of a rate limit check, including the header
// values callers surface to clients.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// CounterStore counts hits per key within a fixed window.
// Incr increments the counter for key, setting its expiry to the
// window duration on first increment, and returns the new count.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	Close() error
}

// Limiter admits or rejects requests against a per-identity limit.
// Windows are aligned to wall-clock boundaries so every instance
// sharing a store agrees on the current window.
type Limiter struct {
	store  CounterStore
	window time.Duration
}

// NewLimiter creates a limiter over the given counter store.
func NewLimiter(store CounterStore) *Limiter {
	return NewLimiterWithWindow(store, DefaultWindow)
}

// NewLimiterWithWindow creates a limiter with a custom window size.
// Useful in tests that cannot wait a full minute.
func NewLimiterWithWindow(store CounterStore, window time.Duration) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{store: store, window: window}
}

// Allow records one hit for identity and reports whether the request
// fits within limit for the current window. The limit-th request in a
// window is admitted; the limit+1-th is rejected.
func (l *Limiter) Allow(ctx context.Context, identity string, limit int) (Decision, error) {
	windowID := time.Now().UnixNano() / int64(l.window)
	resetAt := time.Unix(0, (windowID+1)*int64(l.window))

	key := fmt.Sprintf("ratelimit:%s:%d", identity, windowID)

	count, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: int(remaining),
		ResetAt:   resetAt,
	}, nil
}

// Close releases the underlying counter store.
func (l *Limiter) Close() error {
	return l.store.Close()
}

package shared

import (
	"context"
	"time"
)

// IdempotencyStore records processed payment event IDs so that redelivered
// events apply at most once.
//
// MarkProcessed must be atomic: when two deliveries of the same event race,
// exactly one caller observes true. Unmark releases an event ID after a
// handler failure so a legitimate retry can reapply the effects.
type IdempotencyStore interface {
	// MarkProcessed marks an event as processed with a TTL.
	// Returns true if the event was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// Unmark removes the processed marker for an event, allowing reprocessing.
	Unmark(ctx context.Context, eventID string) error

	// IsProcessed checks if an event has already been processed
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is the retention window for processed event IDs.
	// After this duration, the same event ID can be processed again.
	// Default: 30 days
	TTL time.Duration

	// Enabled determines whether idempotency checking is enabled
	// Default: true
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     30 * 24 * time.Hour,
		Enabled: true,
	}
}

package gateway

import (
	"fmt"
	"time"

	"github.com/creditgw/backend/internal/infrastructure/ratelimit"
)

// RateLimitError carries the limiter decision so the transport layer can
// emit the retry metadata alongside the rejection
type RateLimitError struct {
	Decision ratelimit.Decision
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d requests per window, retry after %s",
		e.Decision.Limit, time.Until(e.Decision.ResetAt).Round(time.Second))
}

// DownstreamError wraps a provider transport failure. The request was
// admitted but never completed, so nothing was billed.
type DownstreamError struct {
	Err error
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("downstream provider request failed: %v", e.Err)
}

func (e *DownstreamError) Unwrap() error {
	return e.Err
}

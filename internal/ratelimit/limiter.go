// Package ratelimit meters how many IDs each client may mint.
package ratelimit

import (
	"context"
	"time"
)

// Result contains the outcome of a rate limit check.
type Result struct {
	Allowed    bool          // Whether the request is allowed
	Remaining  int           // Tokens left after this request
	RetryAfter time.Duration // Wait before the same cost would be allowed
	Limit      int           // Bucket capacity
}

// Limiter charges a cost against a per-key budget.
type Limiter interface {
	// AllowN reports whether key may spend n tokens now. A denied call
	// spends nothing.
	AllowN(ctx context.Context, key string, n int) (*Result, error)

	// Reset forgets the state for key.
	Reset(ctx context.Context, key string) error

	// Close releases any resources held by the limiter.
	Close() error
}

// Config holds rate limiter configuration.
type Config struct {
	Rate    float64       // Tokens refilled per second
	Burst   int           // Bucket capacity
	IdleTTL time.Duration // Keys unused for this long are dropped
}

// DefaultConfig allows one full batch per second per client.
func DefaultConfig() Config {
	return Config{
		Rate:    1000,
		Burst:   1000,
		IdleTTL: 10 * time.Minute,
	}
}

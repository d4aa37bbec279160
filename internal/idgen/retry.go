package idgen

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// DefaultMaxClockWait caps how long a single retry waits for the clock to catch up.
const DefaultMaxClockWait = 2 * time.Second

// RetryStats holds statistics about retried generation.
type RetryStats struct {
	TotalGenerations int64
	TotalRetries     int64
	TotalRegressions int64
}

// RetryingGenerator wraps a base generator and rides out local clock regressions.
type RetryingGenerator struct {
	base       Generator
	maxRetries int
	maxWait    time.Duration

	// OnClockRegression, if set, is called for every regression observed.
	OnClockRegression func(err *ClockMovedBackwardsError, attempt int)

	totalGenerations atomic.Int64
	totalRetries     atomic.Int64
	totalRegressions atomic.Int64
}

// NewRetryingGenerator creates a new retrying generator.
// base: The underlying generator
// maxRetries: Maximum number of retries after a clock regression (0 means no retries)
// maxWait: Upper bound for a single wait; 0 selects DefaultMaxClockWait
func NewRetryingGenerator(base Generator, maxRetries int, maxWait time.Duration) *RetryingGenerator {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxClockWait
	}
	return &RetryingGenerator{
		base:       base,
		maxRetries: maxRetries,
		maxWait:    maxWait,
	}
}

// NextID mints an ID using a background context.
func (g *RetryingGenerator) NextID() (ID, error) {
	return g.NextIDContext(context.Background())
}

// NextIDContext mints an ID, waiting out clock regressions.
// Respects context cancellation between attempts.
func (g *RetryingGenerator) NextIDContext(ctx context.Context) (ID, error) {
	g.totalGenerations.Add(1)

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		id, err := g.base.NextID()
		if err == nil {
			return id, nil
		}

		var regression *ClockMovedBackwardsError
		if !errors.As(err, &regression) {
			return 0, err
		}

		g.totalRegressions.Add(1)
		if g.OnClockRegression != nil {
			g.OnClockRegression(regression, attempt)
		}
		lastErr = err

		if attempt == g.maxRetries {
			break
		}
		g.totalRetries.Add(1)

		wait := regression.Drift() + time.Millisecond
		if wait > g.maxWait {
			wait = g.maxWait
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-timer.C:
		}
	}

	return 0, fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, lastErr)
}

// Stats returns the counters of the wrapped generator when it exposes them.
func (g *RetryingGenerator) Stats() Stats {
	if sp, ok := g.base.(StatsProvider); ok {
		return sp.Stats()
	}
	return Stats{}
}

// RetryStats returns the current retry statistics.
func (g *RetryingGenerator) RetryStats() RetryStats {
	return RetryStats{
		TotalGenerations: g.totalGenerations.Load(),
		TotalRetries:     g.totalRetries.Load(),
		TotalRegressions: g.totalRegressions.Load(),
	}
}

// ResetStats resets all retry statistics to zero.
func (g *RetryingGenerator) ResetStats() {
	g.totalGenerations.Store(0)
	g.totalRetries.Store(0)
	g.totalRegressions.Store(0)
}

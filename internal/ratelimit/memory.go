package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryLimiter keeps one token bucket per key in process memory.
type MemoryLimiter struct {
	config Config
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	done chan struct{}
	wg   sync.WaitGroup
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimiter creates a limiter and starts its idle-key sweeper.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultConfig().IdleTTL
	}
	m := &MemoryLimiter{
		config:  cfg,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}

	m.wg.Add(1)
	go m.sweepLoop()

	return m
}

// AllowN implements Limiter.
func (m *MemoryLimiter) AllowN(ctx context.Context, key string, n int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(m.config.Rate), m.config.Burst)}
		m.buckets[key] = b
	}
	b.lastSeen = now

	result := &Result{Limit: m.config.Burst}

	// A cost above the bucket size can never be satisfied.
	r := b.limiter.ReserveN(now, n)
	if !r.OK() {
		result.Remaining = remaining(b.limiter, now)
		return result, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		result.Remaining = remaining(b.limiter, now)
		result.RetryAfter = delay
		return result, nil
	}

	result.Allowed = true
	result.Remaining = remaining(b.limiter, now)
	return result, nil
}

func remaining(l *rate.Limiter, now time.Time) int {
	tokens := l.TokensAt(now)
	if tokens < 0 {
		return 0
	}
	return int(tokens)
}

// Reset implements Limiter.
func (m *MemoryLimiter) Reset(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.buckets, key)
	m.mu.Unlock()
	return nil
}

// Close stops the sweeper.
func (m *MemoryLimiter) Close() error {
	close(m.done)
	m.wg.Wait()
	return nil
}

func (m *MemoryLimiter) sweepLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.IdleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep drops buckets idle for longer than IdleTTL.
func (m *MemoryLimiter) sweep() {
	cutoff := m.now().Add(-m.config.IdleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, b := range m.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}

// size returns the number of tracked keys.
func (m *MemoryLimiter) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

package idgen

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Stats holds counters describing a generator's lifetime.
type Stats struct {
	Generated        int64 `json:"generated"`
	ClockRegressions int64 `json:"clock_regressions"`
	SequenceWaits    int64 `json:"sequence_waits"`
}

// SnowflakeGenerator generates unique, time-ordered IDs using the Snowflake algorithm.
type SnowflakeGenerator struct {
	mu            sync.Mutex
	clock         Clock
	nodeID        uint16
	sequence      uint16
	lastTimestamp int64

	generated        atomic.Int64
	clockRegressions atomic.Int64
	sequenceWaits    atomic.Int64
}

// Option configures a SnowflakeGenerator.
type Option func(*SnowflakeGenerator)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(g *SnowflakeGenerator) {
		if c != nil {
			g.clock = c
		}
	}
}

// NewSnowflakeGenerator creates a new SnowflakeGenerator with the given node ID.
// nodeID must be between 0 and 1023 (inclusive).
func NewSnowflakeGenerator(nodeID int64, opts ...Option) (*SnowflakeGenerator, error) {
	if nodeID < 0 || nodeID > MaxNodeID {
		return nil, ErrInvalidNodeID
	}
	g := &SnowflakeGenerator{
		clock:         SystemClock{},
		nodeID:        uint16(nodeID),
		lastTimestamp: -1,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// NextID mints a new ID.
// Thread-safe and strictly increasing for a single generator.
func (g *SnowflakeGenerator) NextID() (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.NowMillis()

	if now < g.lastTimestamp {
		g.clockRegressions.Add(1)
		return 0, &ClockMovedBackwardsError{Last: g.lastTimestamp, Now: now}
	}
	if now-Epoch < 0 || now-Epoch > MaxTimestamp {
		return 0, ErrTimestampOutOfRange
	}

	sequence := uint16(0)
	if now == g.lastTimestamp {
		sequence = (g.sequence + 1) & MaxSequence
		if sequence == 0 {
			// Sequence overflow, wait for next millisecond
			g.sequenceWaits.Add(1)
			now = g.waitNextMillis(g.lastTimestamp)
			if now-Epoch > MaxTimestamp {
				return 0, ErrTimestampOutOfRange
			}
		}
	}

	g.sequence = sequence
	g.lastTimestamp = now
	g.generated.Add(1)

	// #nosec G115 -- now >= Epoch was checked above
	return Compose(uint64(now-Epoch), g.nodeID, sequence), nil
}

// waitNextMillis polls the clock until it passes last.
func (g *SnowflakeGenerator) waitNextMillis(last int64) int64 {
	now := g.clock.NowMillis()
	for now <= last {
		runtime.Gosched()
		now = g.clock.NowMillis()
	}
	return now
}

// NodeID returns the configured node ID.
func (g *SnowflakeGenerator) NodeID() uint16 {
	return g.nodeID
}

// Stats returns the current generation counters.
func (g *SnowflakeGenerator) Stats() Stats {
	return Stats{
		Generated:        g.generated.Load(),
		ClockRegressions: g.clockRegressions.Load(),
		SequenceWaits:    g.sequenceWaits.Load(),
	}
}

// Package idgen generates and decodes 64-bit Snowflake identifiers.
//
// An ID packs a 41-bit millisecond offset from Epoch, a 10-bit node ID and a
// 12-bit per-millisecond sequence. IDs minted by one generator are strictly
// increasing; IDs from generators with distinct node IDs never collide.
package idgen

import "context"

// Generator defines the interface for minting IDs.
type Generator interface {
	// NextID mints a new ID.
	NextID() (ID, error)
}

// ContextGenerator is a Generator whose waits can be cancelled.
type ContextGenerator interface {
	Generator
	NextIDContext(ctx context.Context) (ID, error)
}

// StatsProvider exposes generator counters.
type StatsProvider interface {
	Stats() Stats
}

var (
	_ Generator        = (*SnowflakeGenerator)(nil)
	_ ContextGenerator = (*RetryingGenerator)(nil)
)

package idgen

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock returns whatever time it was last set to.
type manualClock struct {
	now atomic.Int64
}

func newManualClock(ms int64) *manualClock {
	c := &manualClock{}
	c.now.Store(ms)
	return c
}

func (c *manualClock) NowMillis() int64 { return c.now.Load() }
func (c *manualClock) Set(ms int64)     { c.now.Store(ms) }

// scriptedClock returns the given readings in order, then repeats the last one.
type scriptedClock struct {
	mu       sync.Mutex
	readings []int64
	reads    int
}

func newScriptedClock(readings ...int64) *scriptedClock {
	return &scriptedClock{readings: readings}
}

func (c *scriptedClock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.reads
	if i >= len(c.readings) {
		i = len(c.readings) - 1
	}
	c.reads++
	return c.readings[i]
}

const testNow = Epoch + 1_000_000

func TestNewSnowflakeGenerator(t *testing.T) {
	t.Run("valid node ID 0", func(t *testing.T) {
		gen, err := NewSnowflakeGenerator(0)
		require.NoError(t, err)
		assert.NotNil(t, gen)
		assert.Equal(t, uint16(0), gen.NodeID())
	})

	t.Run("valid node ID max (1023)", func(t *testing.T) {
		gen, err := NewSnowflakeGenerator(1023)
		require.NoError(t, err)
		assert.NotNil(t, gen)
		assert.Equal(t, uint16(1023), gen.NodeID())
	})

	t.Run("invalid node ID negative", func(t *testing.T) {
		gen, err := NewSnowflakeGenerator(-1)
		assert.ErrorIs(t, err, ErrInvalidNodeID)
		assert.Nil(t, gen)
	})

	t.Run("invalid node ID too large", func(t *testing.T) {
		gen, err := NewSnowflakeGenerator(1024)
		assert.ErrorIs(t, err, ErrInvalidNodeID)
		assert.Nil(t, gen)
	})

	t.Run("initial state", func(t *testing.T) {
		gen, err := NewSnowflakeGenerator(5)
		require.NoError(t, err)
		assert.Equal(t, int64(-1), gen.lastTimestamp)
		assert.Equal(t, uint16(0), gen.sequence)
		assert.IsType(t, SystemClock{}, gen.clock)
	})

	t.Run("nil clock option keeps system clock", func(t *testing.T) {
		gen, err := NewSnowflakeGenerator(5, WithClock(nil))
		require.NoError(t, err)
		assert.IsType(t, SystemClock{}, gen.clock)
	})
}

func TestSnowflakeGenerator_NextID(t *testing.T) {
	t.Run("generates unique IDs", func(t *testing.T) {
		gen, err := NewSnowflakeGenerator(1)
		require.NoError(t, err)

		numIDs := 10000
		seen := make(map[ID]bool, numIDs)
		for i := 0; i < numIDs; i++ {
			id, err := gen.NextID()
			require.NoError(t, err)
			assert.False(t, seen[id], "duplicate ID generated: %s", id)
			seen[id] = true
		}
		assert.Len(t, seen, numIDs)
	})

	t.Run("generates monotonically increasing IDs", func(t *testing.T) {
		gen, err := NewSnowflakeGenerator(1)
		require.NoError(t, err)

		var lastID ID
		for i := 0; i < 10000; i++ {
			id, err := gen.NextID()
			require.NoError(t, err)
			require.Greater(t, id, lastID, "IDs should be monotonically increasing")
			lastID = id
		}
	})

	t.Run("round trips node ID and sequence", func(t *testing.T) {
		gen, err := NewSnowflakeGenerator(42)
		require.NoError(t, err)

		for i := 0; i < 1000; i++ {
			id, err := gen.NextID()
			require.NoError(t, err)
			assert.Equal(t, uint16(42), id.NodeID())
			assert.LessOrEqual(t, id.Sequence(), uint16(MaxSequence))

			nodeID, err := ExtractNodeID(id.String())
			require.NoError(t, err)
			assert.Equal(t, uint16(42), nodeID)
		}
	})

	t.Run("timestamp lies between epoch and call time", func(t *testing.T) {
		gen, err := NewSnowflakeGenerator(3)
		require.NoError(t, err)

		id, err := gen.NextID()
		require.NoError(t, err)
		after := time.Now().UnixMilli()

		ts, err := ExtractTimestamp(id.String())
		require.NoError(t, err)
		assert.Greater(t, ts, Epoch)
		assert.LessOrEqual(t, ts, after)
		assert.Greater(t, ts, after-1000)
	})

	t.Run("first ID of a millisecond has sequence 0", func(t *testing.T) {
		clock := newManualClock(testNow)
		gen, err := NewSnowflakeGenerator(9, WithClock(clock))
		require.NoError(t, err)

		first, err := gen.NextID()
		require.NoError(t, err)
		second, err := gen.NextID()
		require.NoError(t, err)
		clock.Set(testNow + 1)
		third, err := gen.NextID()
		require.NoError(t, err)

		assert.Equal(t, Compose(1_000_000, 9, 0), first)
		assert.Equal(t, uint16(1), second.Sequence())
		assert.Equal(t, uint16(0), third.Sequence())
		assert.Equal(t, testNow+1, third.Timestamp())
	})
}

func TestSnowflakeGenerator_SequenceRollover(t *testing.T) {
	clock := newScriptedClock(testNow, testNow, testNow, testNow, testNow+1)
	gen, err := NewSnowflakeGenerator(7, WithClock(clock))
	require.NoError(t, err)

	gen.lastTimestamp = testNow
	gen.sequence = MaxSequence - 2

	first, err := gen.NextID()
	require.NoError(t, err)
	second, err := gen.NextID()
	require.NoError(t, err)
	third, err := gen.NextID()
	require.NoError(t, err)

	assert.Equal(t, uint16(4094), first.Sequence())
	assert.Equal(t, uint16(4095), second.Sequence())
	assert.Equal(t, testNow, second.Timestamp())

	assert.Equal(t, uint16(0), third.Sequence())
	assert.Equal(t, testNow+1, third.Timestamp())
	assert.Greater(t, third, second)

	assert.Equal(t, int64(1), gen.Stats().SequenceWaits)
}

func TestSnowflakeGenerator_SequenceRolloverWaitsForClock(t *testing.T) {
	clock := newManualClock(testNow)
	gen, err := NewSnowflakeGenerator(7, WithClock(clock))
	require.NoError(t, err)

	gen.lastTimestamp = testNow
	gen.sequence = MaxSequence

	done := make(chan ID, 1)
	go func() {
		id, err := gen.NextID()
		if err == nil {
			done <- id
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("NextID returned before the clock advanced")
	case <-time.After(20 * time.Millisecond):
	}

	clock.Set(testNow + 1)

	select {
	case id, ok := <-done:
		require.True(t, ok, "NextID failed after clock advanced")
		assert.Equal(t, testNow+1, id.Timestamp())
		assert.Equal(t, uint16(0), id.Sequence())
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for sequence rollover")
	}
}

func TestSnowflakeGenerator_ClockRegression(t *testing.T) {
	clock := newManualClock(testNow)
	gen, err := NewSnowflakeGenerator(11, WithClock(clock))
	require.NoError(t, err)

	gen.lastTimestamp = testNow + 5
	gen.sequence = 17

	id, err := gen.NextID()
	require.Error(t, err)
	assert.Equal(t, ID(0), id)
	assert.ErrorIs(t, err, ErrClockMovedBackwards)

	var regression *ClockMovedBackwardsError
	require.True(t, errors.As(err, &regression))
	assert.Equal(t, 5*time.Millisecond, regression.Drift())
	assert.Contains(t, err.Error(), "5 milliseconds")

	// State is untouched.
	assert.Equal(t, testNow+5, gen.lastTimestamp)
	assert.Equal(t, uint16(17), gen.sequence)
	assert.Equal(t, int64(1), gen.Stats().ClockRegressions)
	assert.Equal(t, int64(0), gen.Stats().Generated)

	// Retry once the clock catches up.
	clock.Set(testNow + 5)
	id, err = gen.NextID()
	require.NoError(t, err)
	assert.Equal(t, testNow+5, id.Timestamp())
	assert.Equal(t, uint16(18), id.Sequence())
}

func TestSnowflakeGenerator_TimestampOutOfRange(t *testing.T) {
	t.Run("clock before epoch", func(t *testing.T) {
		gen, err := NewSnowflakeGenerator(1, WithClock(ClockFunc(func() int64 { return Epoch - 1 })))
		require.NoError(t, err)

		_, err = gen.NextID()
		assert.ErrorIs(t, err, ErrTimestampOutOfRange)
		assert.Equal(t, int64(-1), gen.lastTimestamp)
	})

	t.Run("clock past the 41-bit horizon", func(t *testing.T) {
		gen, err := NewSnowflakeGenerator(1, WithClock(ClockFunc(func() int64 { return Epoch + MaxTimestamp + 1 })))
		require.NoError(t, err)

		_, err = gen.NextID()
		assert.ErrorIs(t, err, ErrTimestampOutOfRange)
	})

	t.Run("last representable millisecond", func(t *testing.T) {
		gen, err := NewSnowflakeGenerator(MaxNodeID, WithClock(ClockFunc(func() int64 { return Epoch + MaxTimestamp })))
		require.NoError(t, err)

		id, err := gen.NextID()
		require.NoError(t, err)
		assert.LessOrEqual(t, id.Uint64(), uint64(1<<63-1))
		assert.Equal(t, Epoch+MaxTimestamp, id.Timestamp())
		assert.Equal(t, uint16(MaxNodeID), id.NodeID())
	})
}

func TestSnowflakeGenerator_DifferentNodes(t *testing.T) {
	seen := make(map[ID]int64)

	for node := int64(0); node < 10; node++ {
		gen, err := NewSnowflakeGenerator(node)
		require.NoError(t, err)

		for i := 0; i < 100; i++ {
			id, err := gen.NextID()
			require.NoError(t, err)
			_, dup := seen[id]
			require.False(t, dup, "duplicate ID %s from node %d", id, node)
			seen[id] = node
		}
	}

	assert.Len(t, seen, 1000)
	for id, node := range seen {
		got, err := ExtractNodeID(id.String())
		require.NoError(t, err)
		assert.Equal(t, uint16(node), got)
	}
}

func TestSnowflakeGenerator_Concurrent(t *testing.T) {
	gen, err := NewSnowflakeGenerator(1)
	require.NoError(t, err)

	numGoroutines := 100
	idsPerGoroutine := 100

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[ID]bool)
	duplicates := 0
	failures := 0

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < idsPerGoroutine; j++ {
				id, err := gen.NextID()
				mu.Lock()
				if err != nil {
					failures++
				} else {
					if seen[id] {
						duplicates++
					}
					seen[id] = true
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, failures)
	assert.Equal(t, 0, duplicates, "snowflake should produce no duplicates")
	assert.Len(t, seen, numGoroutines*idsPerGoroutine)
	assert.Equal(t, int64(numGoroutines*idsPerGoroutine), gen.Stats().Generated)
}

func BenchmarkSnowflakeGenerator_NextID(b *testing.B) {
	gen, _ := NewSnowflakeGenerator(1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = gen.NextID()
	}
}

func BenchmarkSnowflakeGenerator_ConcurrentNextID(b *testing.B) {
	gen, _ := NewSnowflakeGenerator(1)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = gen.NextID()
		}
	})
}

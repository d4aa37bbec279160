package idgen

import "time"

// Clock is the time source used by the generator.
type Clock interface {
	// NowMillis returns the current time in milliseconds since the Unix epoch.
	NowMillis() int64
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

// NowMillis implements Clock.
func (SystemClock) NowMillis() int64 {
	return time.Now().UnixMilli()
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() int64

// NowMillis implements Clock.
func (f ClockFunc) NowMillis() int64 {
	return f()
}

package idgen

import (
	"errors"
	"fmt"
	"time"
)

// Common errors for ID generation.
var (
	// ErrInvalidNodeID is returned when the node ID is out of valid range (0-1023).
	ErrInvalidNodeID = errors.New("node ID must be between 0 and 1023")

	// ErrClockMovedBackwards is matched by every ClockMovedBackwardsError.
	ErrClockMovedBackwards = errors.New("clock moved backwards, refusing to generate ID")

	// ErrInvalidIdentifier is returned when an identifier is not a well-formed snowflake.
	ErrInvalidIdentifier = errors.New("invalid snowflake identifier")

	// ErrTimestampOutOfRange is returned when the clock is before Epoch or past the 41-bit horizon.
	ErrTimestampOutOfRange = errors.New("timestamp outside the representable snowflake range")

	// ErrMaxRetriesExceeded is returned when the retry limit is reached.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for ID generation")
)

// ClockMovedBackwardsError reports a local clock regression observed by NextID.
type ClockMovedBackwardsError struct {
	// Last is the timestamp of the last issued ID, in Unix milliseconds.
	Last int64
	// Now is the regressed clock reading, in Unix milliseconds.
	Now int64
}

// Drift returns how far the clock fell behind the last issued ID.
func (e *ClockMovedBackwardsError) Drift() time.Duration {
	return time.Duration(e.Last-e.Now) * time.Millisecond
}

func (e *ClockMovedBackwardsError) Error() string {
	return fmt.Sprintf("clock moved backwards, refusing to generate ID for %d milliseconds", e.Last-e.Now)
}

// Is lets errors.Is(err, ErrClockMovedBackwards) match.
func (e *ClockMovedBackwardsError) Is(target error) bool {
	return target == ErrClockMovedBackwards
}

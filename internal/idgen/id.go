package idgen

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ID is a 64-bit snowflake identifier. The zero value means "not assigned".
//
// IDs travel as decimal strings in JSON and text encodings so that clients
// limited to 53-bit integers do not lose precision, and as BIGINT in Postgres.
type ID uint64

// ParseID parses the decimal string form of an ID. Any unsigned 64-bit value
// is accepted, including ones with the reserved bit 63 set.
// Empty, non-numeric, signed, or overflowing input returns ErrInvalidIdentifier.
func ParseID(s string) (ID, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidIdentifier)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	return ID(n), nil
}

// ParseStoredID parses an ID that must fit a signed BIGINT column.
func ParseStoredID(s string) (ID, error) {
	id, err := ParseID(s)
	if err != nil {
		return 0, err
	}
	if !id.FitsInt64() {
		return 0, fmt.Errorf("%w: %q sets the reserved sign bit", ErrInvalidIdentifier, s)
	}
	return id, nil
}

// ExtractTimestamp returns the Unix millisecond timestamp encoded in id.
func ExtractTimestamp(id string) (int64, error) {
	parsed, err := ParseID(id)
	if err != nil {
		return 0, err
	}
	return parsed.Timestamp(), nil
}

// ExtractNodeID returns the node ID encoded in id.
func ExtractNodeID(id string) (uint16, error) {
	parsed, err := ParseID(id)
	if err != nil {
		return 0, err
	}
	return parsed.NodeID(), nil
}

// ExtractSequence returns the per-millisecond sequence encoded in id.
func ExtractSequence(id string) (uint16, error) {
	parsed, err := ParseID(id)
	if err != nil {
		return 0, err
	}
	return parsed.Sequence(), nil
}

// Timestamp returns the Unix millisecond timestamp the ID was minted at.
func (id ID) Timestamp() int64 {
	// #nosec G115 -- the shifted value has at most 42 significant bits
	return int64(uint64(id)>>timestampShift) + Epoch
}

// Time returns the mint time as a UTC time.Time.
func (id ID) Time() time.Time {
	return time.UnixMilli(id.Timestamp()).UTC()
}

// NodeID returns the node that minted the ID.
func (id ID) NodeID() uint16 {
	return uint16((uint64(id) >> nodeShift) & MaxNodeID)
}

// Sequence returns the per-millisecond counter.
func (id ID) Sequence() uint16 {
	return uint16(uint64(id) & MaxSequence)
}

// Uint64 returns the raw value.
func (id ID) Uint64() uint64 {
	return uint64(id)
}

// Int64 returns the value as int64. Generated IDs never set bit 63; parsed
// ones may, in which case the result is negative.
func (id ID) Int64() int64 {
	// #nosec G115 -- callers storing the value check FitsInt64 first
	return int64(id)
}

// FitsInt64 reports whether the reserved bit 63 is clear.
func (id ID) FitsInt64() bool {
	return uint64(id) <= math.MaxInt64
}

// IsZero reports whether the ID is unassigned.
func (id ID) IsZero() bool {
	return id == 0
}

// String returns the decimal representation.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MarshalJSON encodes the ID as a JSON string.
func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(id.String())), nil
}

// UnmarshalJSON accepts both "123" and 123.
func (id *ID) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return id.UnmarshalText([]byte(s))
}

// Value implements driver.Valuer so IDs are stored as BIGINT.
func (id ID) Value() (driver.Value, error) {
	if !id.FitsInt64() {
		return nil, fmt.Errorf("%w: %s does not fit in BIGINT", ErrInvalidIdentifier, id)
	}
	return id.Int64(), nil
}

// Scan implements sql.Scanner.
func (id *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*id = 0
		return nil
	case int64:
		if v < 0 {
			return fmt.Errorf("%w: negative value %d", ErrInvalidIdentifier, v)
		}
		*id = ID(v)
		return nil
	case []byte:
		return id.scanText(string(v))
	case string:
		return id.scanText(v)
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrInvalidIdentifier, src)
	}
}

func (id *ID) scanText(s string) error {
	parsed, err := ParseStoredID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

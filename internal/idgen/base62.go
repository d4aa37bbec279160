package idgen

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Base62 alphabet: 0-9, a-z, A-Z (62 characters)
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const base = 62

// charToValue maps each character to its numeric value for fast decoding.
var charToValue [256]int

func init() {
	for i := range charToValue {
		charToValue[i] = -1
	}
	for i, c := range alphabet {
		charToValue[c] = i
	}
}

// Base62 returns a compact, URL-safe form of the ID (at most 11 characters).
func (id ID) Base62() string {
	n := uint64(id)
	if n == 0 {
		return "0"
	}

	var buf [11]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = alphabet[n%base]
		n /= base
	}
	return string(buf[i:])
}

// ParseBase62 decodes the output of ID.Base62.
func ParseBase62(s string) (ID, error) {
	if s == "" || len(s) > 11 {
		return 0, fmt.Errorf("%w: bad base62 length %d", ErrInvalidIdentifier, len(s))
	}

	var result uint64
	for i := 0; i < len(s); i++ {
		val := charToValue[s[i]]
		if val == -1 {
			return 0, fmt.Errorf("%w: invalid base62 character %q", ErrInvalidIdentifier, s[i])
		}
		// #nosec G115 -- val is always in range [0, 61] from charToValue lookup
		digit := uint64(val)
		if result > (math.MaxUint64-digit)/base {
			return 0, fmt.Errorf("%w: base62 value overflows 64 bits", ErrInvalidIdentifier)
		}
		result = result*base + digit
	}
	return ID(result), nil
}

// Binary returns the 64-bit zero-padded binary representation.
func (id ID) Binary() string {
	b := strconv.FormatUint(uint64(id), 2)
	return strings.Repeat("0", 64-len(b)) + b
}

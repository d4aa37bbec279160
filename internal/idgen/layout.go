package idgen

// Epoch is the custom epoch: January 1, 2020 00:00:00 UTC, in Unix milliseconds.
// Changing it breaks ordering against every ID already issued; introduce a new
// layout version instead.
const Epoch int64 = 1577836800000

// Bit allocation for Snowflake IDs:
// - 1 bit unused (keeps IDs within int64)
// - 41 bits for timestamp (milliseconds since Epoch) - ~69 years
// - 10 bits for node ID (0-1023)
// - 12 bits for sequence number (0-4095 per millisecond)
const (
	TimestampBits = 41
	NodeBits      = 10
	SequenceBits  = 12

	MaxNodeID    = (1 << NodeBits) - 1      // 1023
	MaxSequence  = (1 << SequenceBits) - 1  // 4095
	MaxTimestamp = (1 << TimestampBits) - 1 // offset from Epoch

	nodeShift      = SequenceBits
	timestampShift = NodeBits + SequenceBits
)

// Compose packs a timestamp offset, node ID and sequence into an ID.
// Each field is masked to its width, so out-of-range inputs cannot bleed
// into a neighbouring field or the sign bit.
func Compose(offset uint64, nodeID, sequence uint16) ID {
	return ID((offset&MaxTimestamp)<<timestampShift |
		(uint64(nodeID)&MaxNodeID)<<nodeShift |
		uint64(sequence)&MaxSequence)
}

// Package bitfield decodes and encodes the collar's packed device-time word.
//
// The FPGA packs a {week, millisecond-of-week, nanosecond-of-millisecond}
// triple into the first 8 bytes of a 9-byte field, read as one little-endian
// 64-bit word: week in the top 14 bits, milliseconds in the next 30, and
// nanoseconds in the low 20. The 9th byte is a spare the producer never sets.
package bitfield

import "encoding/binary"

const (
	weekMask = 0xFFFC000000000000
	msMask   = 0x0003FFFFFFF00000
	nsMask   = 0x00000000000FFFFF

	weekShift = 50
	msShift   = 20
	nsShift   = 0
)

// DeviceTime is the decoded {week, ms, ns} triple carried by a 9-byte packed
// time word. Ns is nanoseconds modulo one millisecond, not a raw nanosecond
// count — see Decode.
type DeviceTime struct {
	Week uint32
	Ms   uint32
	Ns   uint32
}

// Decode extracts a DeviceTime from a raw 64-bit packed word. The decoder is
// total: every uint64 input produces a result, there is no error case.
func Decode(raw uint64) DeviceTime {
	return DeviceTime{
		Week: uint32((raw & weekMask) >> weekShift),
		Ms:   uint32((raw & msMask) >> msShift),
		Ns:   uint32((raw & nsMask) >> nsShift),
	}
}

// DecodeField reads the first 8 bytes of a 9-byte little-endian device-time
// field and decodes it. The 9th byte is ignored. Panics if field is shorter
// than 8 bytes — callers must slice a full field first.
func DecodeField(field []byte) DeviceTime {
	raw := binary.LittleEndian.Uint64(field[:8])
	return Decode(raw)
}

// Encode packs a DeviceTime back into the raw 64-bit word. Used by tests to
// exercise the round-trip invariant; the decoder's bit layout has no
// production encoder call site otherwise.
func Encode(t DeviceTime) uint64 {
	return (uint64(t.Week) << weekShift & weekMask) |
		(uint64(t.Ms) << msShift & msMask) |
		(uint64(t.Ns) << nsShift & nsMask)
}

// Package segment implements the reverse-scanning block classifier: given a
// 512-byte block it produces the ordered list of trailer-terminated segments
// packed into it.
package segment

import "encoding/binary"

// Type identifies a segment kind by its trailer type byte.
type Type byte

const (
	Unused       Type = 0x01
	Status       Type = 0x02
	GPSTimeMark  Type = 0x03 // TIM-TM2
	GPSPosition  Type = 0x04 // NAV-SOL
	IMUGyro      Type = 0x05
	IMUAccel     Type = 0x06
	IMUMag       Type = 0x07
	Audio        Type = 0x08
	IMUTemp      Type = 0x0A
	Event        Type = 0x0B
	GPSTimePulse Type = 0x0D
)

// BlockSize is the fixed size of every FPGA-written block.
const BlockSize = 512

// SeqNumSize is the width of the leading block sequence number.
const SeqNumSize = 4

// TrailerSize is the width of the {type, length} pair terminating every
// segment and every padding run.
const TrailerSize = 2

// Segment describes one decoded segment's location within a block buffer.
type Segment struct {
	Type   Type
	Start  int
	End    int // inclusive, last payload byte
	Length int
}

// SequenceNumber reads the 4-byte little-endian block sequence number from
// the head of a block. A value of 0 marks the block unused.
func SequenceNumber(block []byte) uint32 {
	return binary.LittleEndian.Uint32(block[:SeqNumSize])
}

// Malformed is returned by Classify when a segment's declared length would
// carry the cursor below the sequence-number prefix — a corrupted block.
type Malformed struct {
	Cursor int
	Length int
}

func (e *Malformed) Error() string {
	return "collar/segment: malformed block: trailer length would underflow sequence-number prefix"
}

// Classify reverse-scans a 512-byte block and returns its segments in file
// order (earliest-in-file first). A block whose sequence number is 0 yields
// no segments and no error — the caller should skip it entirely, including
// suppressing any sequence-number row in its own output.
//
// The scan walks backward from offset BlockSize-1 toward offset SeqNumSize,
// consuming trailers as it goes; UNUSED trailers are skipped as padding and
// never added to the result. The returned slice is reversed relative to the
// scan direction so that callers can decode and append samples in file
// order directly.
func Classify(block []byte) ([]Segment, error) {
	if len(block) != BlockSize {
		panic("collar/segment: block must be exactly 512 bytes")
	}
	if SequenceNumber(block) == 0 {
		return nil, nil
	}

	var reversed []Segment
	cursor := BlockSize - 1
	for cursor > SeqNumSize-1 {
		length := int(block[cursor])
		typ := Type(block[cursor-1])

		if typ == Unused {
			cursor = cursor - length - TrailerSize
			continue
		}

		start := cursor - 1 - length
		if start < SeqNumSize {
			return nil, &Malformed{Cursor: cursor, Length: length}
		}
		reversed = append(reversed, Segment{
			Type:   typ,
			Start:  start,
			End:    cursor - 2,
			Length: length,
		})
		cursor = start - 1
	}

	out := make([]Segment, len(reversed))
	for i, s := range reversed {
		out[len(reversed)-1-i] = s
	}
	return out, nil
}

// Package decode implements the per-segment-type decoders: each one takes a
// block buffer and a segment's (start, length) and appends the decoded
// sample or record into a Chunk's buffers.
package decode

import "github.com/banshee-data/collarparse/internal/collar/bitfield"

// GpsTime is a monotonic device-clock triple paired with its GPS-corrected
// counterpart. The GPS fields are zero until annotate.ApplyOffsets runs.
type GpsTime struct {
	WeekNum  uint32
	MilliNum uint32
	NanoNum  uint32

	GpsWeekNum  uint32
	GpsMilliNum uint32
	GpsNanoNum  uint32
}

// FromDeviceTime builds a GpsTime anchor from a decoded device-time triple,
// leaving the GPS-corrected fields zero.
func FromDeviceTime(t bitfield.DeviceTime) GpsTime {
	return GpsTime{WeekNum: t.Week, MilliNum: t.Ms, NanoNum: t.Ns}
}

// StatusPacket mirrors a decoded STATUS segment. The *_t fields are raw
// packed device-time words; decode into a DeviceTime is deferred to callers
// that need it (the chunk decoder decodes them immediately into the
// *_time_mark vectors, but keeps the raw words here for the binary output
// contract, which records them widened to 64 bits).
type StatusPacket struct {
	Commit     uint32
	Compile    uint32
	StatusT    uint64
	AccelT     uint64
	GyroT      uint64
	MagT       uint64
	TempT      uint64
	AudioT     uint64
	RtcT       uint32
	MicsActive uint8
	StatusType uint8
}

// NavSolPacket mirrors a decoded GPS_POSITION (NAV-SOL subset) segment.
type NavSolPacket struct {
	ITOW      uint32
	FTOW      int32
	WeekEpoch int16
	FixType   uint8
	EcefX     int32
	EcefY     int32
	EcefZ     int32
	PAcc      uint32
	PosDOP    uint16
	NumSV     uint8

	ResetTimeWeek uint32
	ResetTimeMs   uint32
	ResetTimeNs   uint32
}

// TmPacket mirrors a decoded GPS_TIME_MARK (TIM-TM2 subset) segment.
type TmPacket struct {
	Flags     uint8
	WnF       uint16
	TowMsF    uint32
	TowSubMsF uint32
	AccEstNs  uint32

	ResetTimeWeek uint32
	ResetTimeMs   uint32
	ResetTimeNs   uint32
}

// TimTpPacket mirrors a decoded GPS_TIME_PULSE segment: the FPGA-local time
// paired with the absolute GPS time it corresponds to. This is the lookup
// table annotate.ApplyOffsets walks to correct device time into GPS time.
type TimTpPacket struct {
	ResetTimeWeek uint32
	ResetTimeMs   uint32
	ResetTimeNs   uint32

	GpsWeek uint32
	GpsMs   uint32
	GpsNs   uint32
}

// Chunk holds every per-chunk buffer populated by segment decoding and
// consumed by back-annotation and the output writer. Buffers are cleared at
// the end of every chunk; the counters and running anchors that persist
// across chunks live in State, not here.
type Chunk struct {
	AudioL []int32
	AudioR []int32

	GyroStream  []int32 // Z,Y,X interleaved
	AccelStream []int32
	MagStream   []int32

	SequenceNumbers []uint32

	GyroTime  []GpsTime // one per IMU segment, or per audio sample
	AccelTime []GpsTime
	MagTime   []GpsTime
	AudioTime []GpsTime

	StatusPTimeMark []GpsTime
	GyroTimeMark    []GpsTime
	AccelTimeMark   []GpsTime
	MagTimeMark     []GpsTime
	AudioTimeMark   []GpsTime

	XLPacketsNum  []int32
	MagPacketsNum []int32
	GPacketsNum   []int32
	AudPacketsNum []int32

	StatusPackets []StatusPacket
	NavSolPackets []NavSolPacket
	TmPackets     []TmPacket
	TimTpPackets  []TimTpPacket
}

// NewChunk returns a Chunk with all buffers empty, ready to be populated by a
// single chunk's worth of block decoding.
func NewChunk() *Chunk {
	return &Chunk{}
}

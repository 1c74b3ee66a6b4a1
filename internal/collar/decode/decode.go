package decode

import (
	"encoding/binary"

	"github.com/banshee-data/collarparse/internal/collar/bitfield"
	"github.com/banshee-data/collarparse/internal/collar/segment"
)

// State is the running, cross-chunk decode state: the most recent sample
// anchor per stream and the per-stream segment counters that STATUS segments
// snapshot into the *_packets_num partition-boundary vectors. It is owned by
// the caller (the chunk loop in package runner) and threaded through every
// chunk's decoding by pointer — never shared across goroutines.
type State struct {
	RecentGyroTime  bitfield.DeviceTime
	RecentAccelTime bitfield.DeviceTime
	RecentMagTime   bitfield.DeviceTime
	RecentAudioTime bitfield.DeviceTime

	XLPackets  int32
	GPackets   int32
	MagPackets int32
	AudPackets int32
}

// NewState returns a State with the segment counters at their run-start
// value of −1, matching the producer's pre-loop init (see SPEC_FULL.md §9).
// ResetForChunk restores this same −1 convention between chunks.
func NewState() *State {
	s := &State{}
	s.ResetForChunk()
	return s
}

// ResetForChunk reinitializes the per-stream segment counters to −1, the
// convention the producer uses at the end of every chunk (see SPEC_FULL.md
// §9). Running time anchors are left untouched — they persist across chunk
// boundaries.
func (s *State) ResetForChunk() {
	s.XLPackets = -1
	s.GPackets = -1
	s.MagPackets = -1
	s.AudPackets = -1
}

// Decode dispatches a single classified segment to its type-specific
// decoder, appending results into chunk and updating state. Audio channel
// count is supplied by the caller (package runner), since AUDIO segments
// alone need it.
func Decode(block []byte, seg segment.Segment, chunk *Chunk, state *State, audioChannels int) {
	payload := block[seg.Start : seg.End+1]
	switch seg.Type {
	case segment.Status:
		decodeStatus(payload, chunk, state)
	case segment.GPSPosition:
		decodeNavSol(payload, chunk)
	case segment.GPSTimeMark:
		decodeTm(payload, chunk)
	case segment.GPSTimePulse:
		decodeTimTp(payload, chunk)
	case segment.IMUGyro:
		decodeIMU(payload, &chunk.GyroStream, &chunk.GyroTime, &state.RecentGyroTime, &state.GPackets)
	case segment.IMUAccel:
		decodeIMU(payload, &chunk.AccelStream, &chunk.AccelTime, &state.RecentAccelTime, &state.XLPackets)
	case segment.IMUMag:
		decodeIMU(payload, &chunk.MagStream, &chunk.MagTime, &state.RecentMagTime, &state.MagPackets)
	case segment.Audio:
		decodeAudio(payload, chunk, state, audioChannels)
	case segment.IMUTemp:
		// parsed-but-skipped per SPEC_FULL.md §3: no buffer captures it.
	case segment.Event:
		// not decoded.
	}
}

const (
	statusOffCompile    = 0
	statusOffCommit     = 4
	statusOffStatusT    = 8
	statusOffAccelT     = 17
	statusOffMagT       = 26
	statusOffGyroT      = 35
	statusOffTempT      = 44
	statusOffAudioT     = 53
	statusOffRtcT       = 62
	statusOffMicsActive = 66
	statusOffStatusType = 67
	statusPayloadLen    = 68
)

func readTimeWord(payload []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(payload[off : off+8])
}

func decodeStatus(payload []byte, chunk *Chunk, state *State) {
	p := StatusPacket{
		Compile:    binary.LittleEndian.Uint32(payload[statusOffCompile:]),
		Commit:     binary.LittleEndian.Uint32(payload[statusOffCommit:]),
		StatusT:    readTimeWord(payload, statusOffStatusT),
		AccelT:     readTimeWord(payload, statusOffAccelT),
		MagT:       readTimeWord(payload, statusOffMagT),
		GyroT:      readTimeWord(payload, statusOffGyroT),
		TempT:      readTimeWord(payload, statusOffTempT),
		AudioT:     readTimeWord(payload, statusOffAudioT),
		RtcT:       binary.LittleEndian.Uint32(payload[statusOffRtcT:]),
		MicsActive: payload[statusOffMicsActive],
		StatusType: payload[statusOffStatusType],
	}
	chunk.StatusPackets = append(chunk.StatusPackets, p)

	state.RecentGyroTime = bitfield.Decode(p.GyroT)
	state.RecentAccelTime = bitfield.Decode(p.AccelT)
	state.RecentMagTime = bitfield.Decode(p.MagT)
	state.RecentAudioTime = bitfield.Decode(p.AudioT)

	chunk.StatusPTimeMark = append(chunk.StatusPTimeMark, FromDeviceTime(bitfield.Decode(p.StatusT)))
	chunk.GyroTimeMark = append(chunk.GyroTimeMark, FromDeviceTime(state.RecentGyroTime))
	chunk.AccelTimeMark = append(chunk.AccelTimeMark, FromDeviceTime(state.RecentAccelTime))
	chunk.MagTimeMark = append(chunk.MagTimeMark, FromDeviceTime(state.RecentMagTime))
	chunk.AudioTimeMark = append(chunk.AudioTimeMark, FromDeviceTime(state.RecentAudioTime))

	chunk.XLPacketsNum = append(chunk.XLPacketsNum, state.XLPackets)
	chunk.MagPacketsNum = append(chunk.MagPacketsNum, state.MagPackets)
	chunk.GPacketsNum = append(chunk.GPacketsNum, state.GPackets)
	chunk.AudPacketsNum = append(chunk.AudPacketsNum, state.AudPackets)
}

const (
	navSolOffITOW      = 0
	navSolOffFTOW      = 4
	navSolOffWeekEpoch = 8
	navSolOffFixType   = 10
	navSolOffEcefX     = 11
	navSolOffEcefY     = 15
	navSolOffEcefZ     = 19
	navSolOffPAcc      = 23
	navSolOffPosDOP    = 27
	navSolOffNumSV     = 29
	navSolOffResetTime = 30
)

func decodeNavSol(payload []byte, chunk *Chunk) {
	rt := bitfield.DecodeField(payload[navSolOffResetTime:])
	p := NavSolPacket{
		ITOW:      binary.LittleEndian.Uint32(payload[navSolOffITOW:]),
		FTOW:      int32(binary.LittleEndian.Uint32(payload[navSolOffFTOW:])),
		WeekEpoch: int16(binary.LittleEndian.Uint16(payload[navSolOffWeekEpoch:])),
		FixType:   payload[navSolOffFixType],
		EcefX:     int32(binary.LittleEndian.Uint32(payload[navSolOffEcefX:])),
		EcefY:     int32(binary.LittleEndian.Uint32(payload[navSolOffEcefY:])),
		EcefZ:     int32(binary.LittleEndian.Uint32(payload[navSolOffEcefZ:])),
		PAcc:      binary.LittleEndian.Uint32(payload[navSolOffPAcc:]),
		PosDOP:    binary.LittleEndian.Uint16(payload[navSolOffPosDOP:]),
		NumSV:     payload[navSolOffNumSV],

		ResetTimeWeek: rt.Week,
		ResetTimeMs:   rt.Ms,
		ResetTimeNs:   rt.Ns,
	}
	chunk.NavSolPackets = append(chunk.NavSolPackets, p)
}

const (
	tmOffFlags     = 0
	tmOffWnF       = 1
	tmOffTowMsF    = 3
	tmOffTowSubMsF = 7
	tmOffAccEstNs  = 11
	tmOffResetTime = 15
)

func decodeTm(payload []byte, chunk *Chunk) {
	rt := bitfield.DecodeField(payload[tmOffResetTime:])
	p := TmPacket{
		Flags:     payload[tmOffFlags],
		WnF:       binary.LittleEndian.Uint16(payload[tmOffWnF:]),
		TowMsF:    binary.LittleEndian.Uint32(payload[tmOffTowMsF:]),
		TowSubMsF: binary.LittleEndian.Uint32(payload[tmOffTowSubMsF:]),
		AccEstNs:  binary.LittleEndian.Uint32(payload[tmOffAccEstNs:]),

		ResetTimeWeek: rt.Week,
		ResetTimeMs:   rt.Ms,
		ResetTimeNs:   rt.Ns,
	}
	chunk.TmPackets = append(chunk.TmPackets, p)
}

func decodeTimTp(payload []byte, chunk *Chunk) {
	local := bitfield.DecodeField(payload[0:])
	gps := bitfield.DecodeField(payload[9:])
	chunk.TimTpPackets = append(chunk.TimTpPackets, TimTpPacket{
		ResetTimeWeek: local.Week,
		ResetTimeMs:   local.Ms,
		ResetTimeNs:   local.Ns,
		GpsWeek:       gps.Week,
		GpsMs:         gps.Ms,
		GpsNs:         gps.Ns,
	})
}

// decodeIMU handles IMU_GYRO, IMU_ACCEL, IMU_MAG: N samples of 3 int16 axes
// (Z,Y,X), one anchor timestamp per segment, not per sample.
func decodeIMU(payload []byte, stream *[]int32, times *[]GpsTime, recent *bitfield.DeviceTime, counter *int32) {
	const sampleBytes = 6
	for off := 0; off+sampleBytes <= len(payload); off += sampleBytes {
		z := int16(binary.LittleEndian.Uint16(payload[off:]))
		y := int16(binary.LittleEndian.Uint16(payload[off+2:]))
		x := int16(binary.LittleEndian.Uint16(payload[off+4:]))
		*stream = append(*stream, int32(z), int32(y), int32(x))
	}
	*times = append(*times, FromDeviceTime(*recent))
	*counter++
}

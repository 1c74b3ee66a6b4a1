// Package annotate implements the back-annotator: it fills per-sample
// monotonic timestamps from sparse STATUS anchors and a nominal sample
// interval, then applies a GPS offset derived from TIM-TP packets.
package annotate

import "github.com/banshee-data/collarparse/internal/collar/decode"

// Interval is a stream's nominal sample period expressed as
// (milliseconds, nanoseconds-of-millisecond), matching the packed device
// time's own units.
type Interval struct {
	Ms int64
	Ns int64
}

// NewInterval computes the nominal sample interval for a sample rate in Hz,
// per SPEC_FULL.md §4.5: total_ns = floor(1e9/rate), then split into whole
// milliseconds and the remainder.
func NewInterval(rateHz int64) Interval {
	totalNs := int64(1_000_000_000) / rateHz
	return Interval{Ms: totalNs / 1_000_000, Ns: totalNs % 1_000_000}
}

// Sample rates fixed by the device (spec.md §4.5).
var (
	AccelInterval = NewInterval(952)
	GyroInterval  = NewInterval(952)
	MagInterval   = NewInterval(80)
	AudioInterval = NewInterval(56250)
)

// FillDeviceClock implements back-annotation Step 1. resetTime is a stream's
// per-segment (or per-sample, for audio) anchor vector; updateMarks is the
// partition-boundary snapshot vector (e.g. chunk.GPacketsNum) recorded once
// per STATUS segment. Each partition [begin, end] is seeded from
// resetTime[end+1] (the next partition's own seed, already anchored by its
// STATUS) and walked backward subtracting interval, borrowing a millisecond
// whenever the nanosecond remainder goes negative.
//
// If the last update mark does not already reach the final sample — i.e. a
// chunk's trailing run of segments was never closed by another STATUS
// before the chunk ended — an implicit final partition is added, seeded
// from the last sample's own (still-raw) anchor rather than a following
// entry that doesn't exist. Without this, every sample decoded after a
// chunk's last STATUS would be left unannotated; see DESIGN.md.
//
// resetTime is modified in place.
func FillDeviceClock(resetTime []decode.GpsTime, updateMarks []int32, interval Interval) {
	n := len(resetTime)
	if n == 0 {
		return
	}

	lastIdx := n - 1
	marks := updateMarks
	if len(marks) == 0 || int(marks[len(marks)-1]) < lastIdx {
		extended := make([]int32, len(marks), len(marks)+1)
		copy(extended, marks)
		marks = append(extended, int32(lastIdx))
	}

	for i := 0; i+1 < len(marks); i++ {
		begin := int(marks[i])
		end := int(marks[i+1])
		if end < 0 || end >= n {
			continue
		}

		var ms, ns int64
		if end+1 < n {
			ms = int64(resetTime[end+1].MilliNum)
			ns = int64(resetTime[end+1].NanoNum)
		} else {
			ms = int64(resetTime[end].MilliNum)
			ns = int64(resetTime[end].NanoNum)
		}

		for j := end; j > begin; j-- {
			resetTime[j].MilliNum = uint32(ms)
			resetTime[j].NanoNum = uint32(ns)

			ms -= interval.Ms
			ns -= interval.Ns
			if ns < 0 {
				ms--
				ns = 1_000_000 - (-ns)
			}
		}
	}
}

// ApplyOffsets implements back-annotation Step 2: it writes GPS-corrected
// fields onto every entry of resetTime using a sparse offset table derived
// from timTp. It is a no-op when timTp is empty.
//
// The lookahead into timTp[k+1] is guarded before dereferencing — unlike the
// original device-firmware decoder this is modeled on, which read
// timTp[k+1] unconditionally and relied on k never reaching the last index
// in practice. See DESIGN.md for this resolved discrepancy.
func ApplyOffsets(resetTime []decode.GpsTime, timTp []decode.TimTpPacket) {
	if len(timTp) == 0 {
		return
	}

	k := 0
	offsetMs := int64(timTp[k].GpsMs) - int64(timTp[k].ResetTimeMs)
	offsetWeek := int64(timTp[k].GpsWeek) - int64(timTp[k].ResetTimeWeek)
	var offsetNs int64

	for j := range resetTime {
		if k+1 < len(timTp) && int64(timTp[k+1].ResetTimeMs) < int64(resetTime[j].MilliNum) {
			k++
			offsetMs = int64(timTp[k].GpsMs) - int64(timTp[k].ResetTimeMs)
			offsetWeek = int64(timTp[k].GpsWeek) - int64(timTp[k].ResetTimeWeek)
		}

		resetTime[j].GpsWeekNum = uint32(int64(resetTime[j].WeekNum) + offsetWeek)
		resetTime[j].GpsMilliNum = uint32(int64(resetTime[j].MilliNum) + offsetMs)
		resetTime[j].GpsNanoNum = uint32(int64(resetTime[j].NanoNum) + offsetNs)
	}
}

// Stream runs both back-annotation steps for a single stream's buffers in
// one call, as the chunk runner does once per stream per chunk.
func Stream(resetTime []decode.GpsTime, updateMarks []int32, interval Interval, timTp []decode.TimTpPacket) {
	FillDeviceClock(resetTime, updateMarks, interval)
	ApplyOffsets(resetTime, timTp)
}

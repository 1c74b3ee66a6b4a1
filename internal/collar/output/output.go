// Package output implements the append-only binary and CSV flat-file writer.
// Every write opens its target file, appends (or truncates, on the run's
// first chunk), and closes before returning — mirroring the producer's own
// open-write-close discipline rather than holding file handles open across
// chunks.
package output

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/banshee-data/collarparse/internal/collar/decode"
)

func openFile(path string, firstChunk bool) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if firstChunk {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	return os.OpenFile(path, flags, 0o644)
}

// WriteInt32Binary appends a stream of 4-byte little-endian signed integers.
func WriteInt32Binary(path string, values []int32, firstChunk bool) error {
	f, err := openFile(path, firstChunk)
	if err != nil {
		return fmt.Errorf("collar/output: open %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	buf := make([]byte, 4)
	for _, v := range values {
		binary.LittleEndian.PutUint32(buf, uint32(v))
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("collar/output: write %s: %w", path, err)
		}
	}
	return w.Flush()
}

// WriteUint32Binary appends a stream of 4-byte little-endian unsigned
// integers (used for segment_number.bin).
func WriteUint32Binary(path string, values []uint32, firstChunk bool) error {
	f, err := openFile(path, firstChunk)
	if err != nil {
		return fmt.Errorf("collar/output: open %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	buf := make([]byte, 4)
	for _, v := range values {
		binary.LittleEndian.PutUint32(buf, v)
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("collar/output: write %s: %w", path, err)
		}
	}
	return w.Flush()
}

// WriteInt32CSV appends one decimal value per line, with no header — scalar
// vectors never carry a header per SPEC_FULL.md §4.6.
func WriteInt32CSV(path string, values []int32, firstChunk bool) error {
	f, err := openFile(path, firstChunk)
	if err != nil {
		return fmt.Errorf("collar/output: open %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, v := range values {
		if _, err := w.WriteString(strconv.FormatInt(int64(v), 10) + "\n"); err != nil {
			return fmt.Errorf("collar/output: write %s: %w", path, err)
		}
	}
	return w.Flush()
}

// WriteUint32CSV is the unsigned counterpart of WriteInt32CSV.
func WriteUint32CSV(path string, values []uint32, firstChunk bool) error {
	f, err := openFile(path, firstChunk)
	if err != nil {
		return fmt.Errorf("collar/output: open %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, v := range values {
		if _, err := w.WriteString(strconv.FormatUint(uint64(v), 10) + "\n"); err != nil {
			return fmt.Errorf("collar/output: write %s: %w", path, err)
		}
	}
	return w.Flush()
}

func writeU32LE(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeU64LE(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeI32LE(w io.Writer, v int32) error {
	return writeU32LE(w, uint32(v))
}

// gpsTimeFields returns a GpsTime's 6 fields in declaration order, the shape
// every gps-time flat file (gyro_times.bin, xl_times.bin, ...) records.
func gpsTimeFields(t decode.GpsTime) [6]uint32 {
	return [6]uint32{t.WeekNum, t.MilliNum, t.NanoNum, t.GpsWeekNum, t.GpsMilliNum, t.GpsNanoNum}
}

// WriteGpsTimeBinary appends a repeated GpsTime record (6 x u32 each).
func WriteGpsTimeBinary(path string, records []decode.GpsTime, firstChunk bool) error {
	f, err := openFile(path, firstChunk)
	if err != nil {
		return fmt.Errorf("collar/output: open %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range records {
		for _, field := range gpsTimeFields(r) {
			if err := writeU32LE(w, field); err != nil {
				return fmt.Errorf("collar/output: write %s: %w", path, err)
			}
		}
	}
	return w.Flush()
}

var gpsTimeCSVHeader = []string{"week_num", "milli_num", "nano_num", "gps_week_num", "gps_milli_num", "gps_nano_num"}

// WriteGpsTimeCSV appends a repeated GpsTime record as CSV, with a header on
// the first chunk.
func WriteGpsTimeCSV(path string, records []decode.GpsTime, firstChunk bool) error {
	f, err := openFile(path, firstChunk)
	if err != nil {
		return fmt.Errorf("collar/output: open %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if firstChunk {
		if err := writeCSVHeader(w, gpsTimeCSVHeader); err != nil {
			return err
		}
	}
	for _, r := range records {
		for _, field := range gpsTimeFields(r) {
			if _, err := w.WriteString(strconv.FormatUint(uint64(field), 10) + ","); err != nil {
				return fmt.Errorf("collar/output: write %s: %w", path, err)
			}
		}
		if _, err := w.WriteString("\n"); err != nil {
			return fmt.Errorf("collar/output: write %s: %w", path, err)
		}
	}
	return w.Flush()
}

func writeCSVHeader(w *bufio.Writer, fields []string) error {
	for _, f := range fields {
		if _, err := w.WriteString(f + ","); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\n")
	return err
}

// WriteStatusBinary appends a repeated StatusPacket record, every field
// widened to 8 bytes (11 x u64) per SPEC_FULL.md §6.
func WriteStatusBinary(path string, records []decode.StatusPacket, firstChunk bool) error {
	f, err := openFile(path, firstChunk)
	if err != nil {
		return fmt.Errorf("collar/output: open %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range records {
		fields := [11]uint64{
			uint64(r.Commit), uint64(r.Compile), r.StatusT, r.AccelT, r.GyroT, r.MagT,
			r.TempT, r.AudioT, uint64(r.RtcT), uint64(r.MicsActive), uint64(r.StatusType),
		}
		for _, field := range fields {
			if err := writeU64LE(w, field); err != nil {
				return fmt.Errorf("collar/output: write %s: %w", path, err)
			}
		}
	}
	return w.Flush()
}

var statusCSVHeader = []string{
	"commit", "compile", "status_t", "accel_t", "gyro_t", "mag_t",
	"temp_t", "audio_t", "rtc_t", "mics_active", "status_type",
}

// WriteStatusCSV appends a repeated StatusPacket record as CSV.
func WriteStatusCSV(path string, records []decode.StatusPacket, firstChunk bool) error {
	f, err := openFile(path, firstChunk)
	if err != nil {
		return fmt.Errorf("collar/output: open %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if firstChunk {
		if err := writeCSVHeader(w, statusCSVHeader); err != nil {
			return err
		}
	}
	for _, r := range records {
		fields := [11]uint64{
			uint64(r.Commit), uint64(r.Compile), r.StatusT, r.AccelT, r.GyroT, r.MagT,
			r.TempT, r.AudioT, uint64(r.RtcT), uint64(r.MicsActive), uint64(r.StatusType),
		}
		for _, field := range fields {
			if _, err := w.WriteString(strconv.FormatUint(field, 10) + ","); err != nil {
				return fmt.Errorf("collar/output: write %s: %w", path, err)
			}
		}
		if _, err := w.WriteString("\n"); err != nil {
			return fmt.Errorf("collar/output: write %s: %w", path, err)
		}
	}
	return w.Flush()
}

// WriteNavSolBinary appends a repeated NavSolPacket record, widened to
// signed 4-byte words (13 x i32).
func WriteNavSolBinary(path string, records []decode.NavSolPacket, firstChunk bool) error {
	f, err := openFile(path, firstChunk)
	if err != nil {
		return fmt.Errorf("collar/output: open %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range records {
		fields := navSolFields(r)
		for _, field := range fields {
			if err := writeI32LE(w, field); err != nil {
				return fmt.Errorf("collar/output: write %s: %w", path, err)
			}
		}
	}
	return w.Flush()
}

func navSolFields(r decode.NavSolPacket) [13]int32 {
	return [13]int32{
		int32(r.ITOW), r.FTOW, int32(r.WeekEpoch), int32(r.FixType),
		r.EcefX, r.EcefY, r.EcefZ, int32(r.PAcc), int32(r.PosDOP), int32(r.NumSV),
		int32(r.ResetTimeWeek), int32(r.ResetTimeMs), int32(r.ResetTimeNs),
	}
}

var navSolCSVHeader = []string{
	"itow", "ftow", "weekepoch", "fixtype", "ecefx", "ecefy", "ecefz",
	"pacc", "posdop", "numsv", "reset_time_week", "reset_time_ms", "reset_time_ns",
}

// WriteNavSolCSV appends a repeated NavSolPacket record as CSV.
func WriteNavSolCSV(path string, records []decode.NavSolPacket, firstChunk bool) error {
	f, err := openFile(path, firstChunk)
	if err != nil {
		return fmt.Errorf("collar/output: open %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if firstChunk {
		if err := writeCSVHeader(w, navSolCSVHeader); err != nil {
			return err
		}
	}
	for _, r := range records {
		for _, field := range navSolFields(r) {
			if _, err := w.WriteString(strconv.FormatInt(int64(field), 10) + ","); err != nil {
				return fmt.Errorf("collar/output: write %s: %w", path, err)
			}
		}
		if _, err := w.WriteString("\n"); err != nil {
			return fmt.Errorf("collar/output: write %s: %w", path, err)
		}
	}
	return w.Flush()
}

func tmFields(r decode.TmPacket) [8]int32 {
	return [8]int32{
		int32(r.Flags), int32(r.WnF), int32(r.TowMsF), int32(r.TowSubMsF), int32(r.AccEstNs),
		int32(r.ResetTimeWeek), int32(r.ResetTimeMs), int32(r.ResetTimeNs),
	}
}

var tmCSVHeader = []string{
	"flags", "wnF", "towmsF", "towsubmsF", "accestns",
	"reset_time_week", "reset_time_ms", "reset_time_ns",
}

// WriteTmBinary appends a repeated TmPacket record (8 x i32).
func WriteTmBinary(path string, records []decode.TmPacket, firstChunk bool) error {
	f, err := openFile(path, firstChunk)
	if err != nil {
		return fmt.Errorf("collar/output: open %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range records {
		for _, field := range tmFields(r) {
			if err := writeI32LE(w, field); err != nil {
				return fmt.Errorf("collar/output: write %s: %w", path, err)
			}
		}
	}
	return w.Flush()
}

// WriteTmCSV appends a repeated TmPacket record as CSV.
func WriteTmCSV(path string, records []decode.TmPacket, firstChunk bool) error {
	f, err := openFile(path, firstChunk)
	if err != nil {
		return fmt.Errorf("collar/output: open %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if firstChunk {
		if err := writeCSVHeader(w, tmCSVHeader); err != nil {
			return err
		}
	}
	for _, r := range records {
		for _, field := range tmFields(r) {
			if _, err := w.WriteString(strconv.FormatInt(int64(field), 10) + ","); err != nil {
				return fmt.Errorf("collar/output: write %s: %w", path, err)
			}
		}
		if _, err := w.WriteString("\n"); err != nil {
			return fmt.Errorf("collar/output: write %s: %w", path, err)
		}
	}
	return w.Flush()
}

func timTpFields(r decode.TimTpPacket) [6]uint32 {
	return [6]uint32{r.ResetTimeWeek, r.ResetTimeMs, r.ResetTimeNs, r.GpsWeek, r.GpsMs, r.GpsNs}
}

var timTpCSVHeader = []string{
	"reset_time_week", "reset_time_ms", "reset_time_ns", "gps_week", "gps_ms", "gps_ns",
}

// WriteTimTpBinary appends a repeated TimTpPacket record (6 x u32).
func WriteTimTpBinary(path string, records []decode.TimTpPacket, firstChunk bool) error {
	f, err := openFile(path, firstChunk)
	if err != nil {
		return fmt.Errorf("collar/output: open %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range records {
		for _, field := range timTpFields(r) {
			if err := writeU32LE(w, field); err != nil {
				return fmt.Errorf("collar/output: write %s: %w", path, err)
			}
		}
	}
	return w.Flush()
}

// WriteTimTpCSV appends a repeated TimTpPacket record as CSV.
func WriteTimTpCSV(path string, records []decode.TimTpPacket, firstChunk bool) error {
	f, err := openFile(path, firstChunk)
	if err != nil {
		return fmt.Errorf("collar/output: open %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if firstChunk {
		if err := writeCSVHeader(w, timTpCSVHeader); err != nil {
			return err
		}
	}
	for _, r := range records {
		for _, field := range timTpFields(r) {
			if _, err := w.WriteString(strconv.FormatUint(uint64(field), 10) + ","); err != nil {
				return fmt.Errorf("collar/output: write %s: %w", path, err)
			}
		}
		if _, err := w.WriteString("\n"); err != nil {
			return fmt.Errorf("collar/output: write %s: %w", path, err)
		}
	}
	return w.Flush()
}

package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/collarparse/internal/collar/decode"
)

func TestWriteInt32BinaryTruncatesOnFirstChunk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audio_r.bin")

	if err := os.WriteFile(path, []byte{0xFF, 0xFF, 0xFF, 0xFF}, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := WriteInt32Binary(path, []int32{1, 2}, true); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 8 {
		t.Fatalf("expected 8 bytes after truncating first-chunk write, got %d", len(data))
	}
}

func TestWriteInt32BinaryAppendsAcrossChunks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audio_r.bin")

	if err := WriteInt32Binary(path, []int32{1, 2}, true); err != nil {
		t.Fatal(err)
	}
	if err := WriteInt32Binary(path, []int32{3, 4}, false); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 16 {
		t.Fatalf("expected 16 bytes across two chunks, got %d", len(data))
	}
}

func TestWriteInt32BinaryChunkedMatchesSingleChunk(t *testing.T) {
	dir := t.TempDir()
	chunkedPath := filepath.Join(dir, "chunked.bin")
	singlePath := filepath.Join(dir, "single.bin")

	values := []int32{10, -20, 30, -40, 50, -60}
	mid := len(values) / 2

	if err := WriteInt32Binary(chunkedPath, values[:mid], true); err != nil {
		t.Fatal(err)
	}
	if err := WriteInt32Binary(chunkedPath, values[mid:], false); err != nil {
		t.Fatal(err)
	}
	if err := WriteInt32Binary(singlePath, values, true); err != nil {
		t.Fatal(err)
	}

	chunked, err := os.ReadFile(chunkedPath)
	if err != nil {
		t.Fatal(err)
	}
	single, err := os.ReadFile(singlePath)
	if err != nil {
		t.Fatal(err)
	}
	if string(chunked) != string(single) {
		t.Errorf("chunked output != single-chunk output")
	}
}

func TestWriteGpsTimeCSVHeaderOnlyOnFirstChunk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gyro_times.csv")

	rec := []decode.GpsTime{{WeekNum: 2000, MilliNum: 123456789, NanoNum: 500000}}
	if err := WriteGpsTimeCSV(path, rec, true); err != nil {
		t.Fatal(err)
	}
	if err := WriteGpsTimeCSV(path, rec, false); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	headerCount := 0
	for _, line := range splitLines(content) {
		if line == "week_num,milli_num,nano_num,gps_week_num,gps_milli_num,gps_nano_num," {
			headerCount++
		}
	}
	if headerCount != 1 {
		t.Errorf("expected exactly 1 header line across two chunks, got %d", headerCount)
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, c := range s {
		if c == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return lines
}

func TestWriteStatusBinaryFieldWidth(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "status_packets.bin")

	rec := []decode.StatusPacket{{Compile: 1, Commit: 2, StatusT: 3, AccelT: 4, MagT: 5, GyroT: 6, TempT: 7, AudioT: 8, RtcT: 9, MicsActive: 2, StatusType: 1}}
	if err := WriteStatusBinary(path, rec, true); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 11*8 {
		t.Errorf("expected 88 bytes (11 x u64), got %d", len(data))
	}
}

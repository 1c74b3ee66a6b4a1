// Package runner drives the chunked file decode: sequential 128 MiB reads,
// per-block classification and decode, end-of-chunk back-annotation, and
// output flushing. It is the only outer iteration in the pipeline — strictly
// single-threaded per SPEC_FULL.md §5.
package runner

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/collarparse/internal/collar/annotate"
	"github.com/banshee-data/collarparse/internal/collar/decode"
	"github.com/banshee-data/collarparse/internal/collar/logx"
	"github.com/banshee-data/collarparse/internal/collar/output"
	"github.com/banshee-data/collarparse/internal/collar/segment"
)

// MaxRead is the chunk size driving the streaming decode: 128 MiB.
const MaxRead = 128 * 1 << 20

// Config configures one decode run.
type Config struct {
	Filename      string
	NumBlocks     int64 // 0 means decode the whole file
	CSV           bool
	AudioChannels int // defaults to 2 when 0
	OutDir        string
	Logs          *logx.Streams
}

// Result summarizes a completed run, used both for the diag log line and
// (when enabled) the run-summary database.
type Result struct {
	BlocksProcessed int64
	MalformedBlocks int64
	SegmentCounts   map[segment.Type]int64
	Elapsed         time.Duration
}

// Run decodes Filename per Config and writes the flat output files into
// OutDir. It never returns a partial Result on success; on a malformed-block
// condition it still completes the run and reports the count via Result
// rather than failing outright, per SPEC_FULL.md §7.
func Run(cfg Config) (Result, error) {
	return run(cfg, MaxRead)
}

// run is Run's implementation, parameterized on chunk size so tests can
// exercise the chunk-boundary logic without a 128 MiB fixture.
func run(cfg Config, chunkSize int64) (Result, error) {
	audioChannels := cfg.AudioChannels
	if audioChannels == 0 {
		audioChannels = 2
	}

	f, err := os.Open(cfg.Filename)
	if err != nil {
		return Result{}, fmt.Errorf("collar/runner: open input: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Result{}, fmt.Errorf("collar/runner: stat input: %w", err)
	}

	fileLength := info.Size()
	if cfg.NumBlocks > 0 {
		requested := cfg.NumBlocks * segment.BlockSize
		if requested < fileLength {
			fileLength = requested
		} else if requested > info.Size() {
			cfg.Logs.Opsf("requested %d blocks exceeds file size, clamping to %d bytes", cfg.NumBlocks, info.Size())
		}
	}

	start := time.Now()
	result := Result{SegmentCounts: map[segment.Type]int64{}}
	state := decode.NewState()
	firstChunk := true

	for fileLoc := int64(0); fileLoc < fileLength; fileLoc += chunkSize {
		readLen := fileLength - fileLoc
		if readLen > chunkSize {
			readLen = chunkSize
		}

		buf := make([]byte, readLen)
		if _, err := io.ReadFull(io.NewSectionReader(f, fileLoc, readLen), buf); err != nil {
			return result, fmt.Errorf("collar/runner: read chunk at %d: %w", fileLoc, err)
		}

		chunk := decode.NewChunk()
		processChunk(buf, chunk, state, audioChannels, cfg.Logs, &result)
		annotateChunk(chunk)

		if err := flushChunk(cfg.OutDir, chunk, firstChunk, cfg.CSV); err != nil {
			return result, fmt.Errorf("collar/runner: flush chunk: %w", err)
		}

		cfg.Logs.Diagf("chunk at %d: %d bytes, %d blocks so far, %d malformed", fileLoc, len(buf), result.BlocksProcessed, result.MalformedBlocks)

		state.ResetForChunk()
		firstChunk = false
	}

	result.Elapsed = time.Since(start)
	cfg.Logs.Diagf("decode complete: %d blocks, %d malformed, elapsed %s", result.BlocksProcessed, result.MalformedBlocks, result.Elapsed)
	return result, nil
}

func processChunk(buf []byte, chunk *decode.Chunk, state *decode.State, audioChannels int, logs *logx.Streams, result *Result) {
	for k := 0; k+segment.BlockSize <= len(buf); k += segment.BlockSize {
		block := buf[k : k+segment.BlockSize]
		result.BlocksProcessed++

		seq := segment.SequenceNumber(block)
		if seq != 0 {
			chunk.SequenceNumbers = append(chunk.SequenceNumbers, seq)
		}

		segs, err := segment.Classify(block)
		if err != nil {
			result.MalformedBlocks++
			logs.Opsf("malformed block at sequence %d (file offset within chunk %d): %v", seq, k, err)
			continue
		}
		if seq == 0 {
			continue
		}

		logs.Tracef("block at sequence %d: %d segments", seq, len(segs))
		for _, s := range segs {
			decode.Decode(block, s, chunk, state, audioChannels)
			result.SegmentCounts[s.Type]++
			logs.Tracef("  segment type=%d start=%d end=%d", s.Type, s.Start, s.End)
		}
	}
}

func annotateChunk(chunk *decode.Chunk) {
	annotate.Stream(chunk.GyroTime, chunk.GPacketsNum, annotate.GyroInterval, chunk.TimTpPackets)
	annotate.Stream(chunk.AccelTime, chunk.XLPacketsNum, annotate.AccelInterval, chunk.TimTpPackets)
	annotate.Stream(chunk.MagTime, chunk.MagPacketsNum, annotate.MagInterval, chunk.TimTpPackets)
	annotate.Stream(chunk.AudioTime, chunk.AudPacketsNum, annotate.AudioInterval, chunk.TimTpPackets)
}

func flushChunk(outDir string, chunk *decode.Chunk, firstChunk, csv bool) error {
	path := func(name string) string { return filepath.Join(outDir, name) }

	writers := []func() error{
		func() error { return output.WriteInt32Binary(path("audio_l.bin"), chunk.AudioL, firstChunk) },
		func() error { return output.WriteInt32Binary(path("audio_r.bin"), chunk.AudioR, firstChunk) },
		func() error { return output.WriteUint32Binary(path("segment_number.bin"), chunk.SequenceNumbers, firstChunk) },
		func() error { return output.WriteInt32Binary(path("gyro_stream.bin"), chunk.GyroStream, firstChunk) },
		func() error { return output.WriteInt32Binary(path("accel_stream.bin"), chunk.AccelStream, firstChunk) },
		func() error { return output.WriteInt32Binary(path("mag_stream.bin"), chunk.MagStream, firstChunk) },
		func() error { return output.WriteStatusBinary(path("status_packets.bin"), chunk.StatusPackets, firstChunk) },
		func() error { return output.WriteNavSolBinary(path("navsol_packets.bin"), chunk.NavSolPackets, firstChunk) },
		func() error { return output.WriteTmBinary(path("tm_packets.bin"), chunk.TmPackets, firstChunk) },
		func() error { return output.WriteTimTpBinary(path("tim_tp_packets.bin"), chunk.TimTpPackets, firstChunk) },
		func() error { return output.WriteGpsTimeBinary(path("gyro_times.bin"), chunk.GyroTime, firstChunk) },
		func() error { return output.WriteGpsTimeBinary(path("xl_times.bin"), chunk.AccelTime, firstChunk) },
		func() error { return output.WriteGpsTimeBinary(path("mag_times.bin"), chunk.MagTime, firstChunk) },
		func() error { return output.WriteGpsTimeBinary(path("audio_times.bin"), chunk.AudioTime, firstChunk) },
		func() error { return output.WriteGpsTimeBinary(path("status_p_time_mark.bin"), chunk.StatusPTimeMark, firstChunk) },
	}
	if csv {
		writers = append(writers,
			func() error { return output.WriteInt32CSV(path("audio_l.csv"), chunk.AudioL, firstChunk) },
			func() error { return output.WriteInt32CSV(path("audio_r.csv"), chunk.AudioR, firstChunk) },
			func() error { return output.WriteUint32CSV(path("segment_number.csv"), chunk.SequenceNumbers, firstChunk) },
			func() error { return output.WriteInt32CSV(path("gyro_stream.csv"), chunk.GyroStream, firstChunk) },
			func() error { return output.WriteInt32CSV(path("accel_stream.csv"), chunk.AccelStream, firstChunk) },
			func() error { return output.WriteInt32CSV(path("mag_stream.csv"), chunk.MagStream, firstChunk) },
			func() error { return output.WriteStatusCSV(path("status_packets.csv"), chunk.StatusPackets, firstChunk) },
			func() error { return output.WriteNavSolCSV(path("navsol_packets.csv"), chunk.NavSolPackets, firstChunk) },
			func() error { return output.WriteTmCSV(path("tm_packets.csv"), chunk.TmPackets, firstChunk) },
			func() error { return output.WriteTimTpCSV(path("tim_tp_packets.csv"), chunk.TimTpPackets, firstChunk) },
			func() error { return output.WriteGpsTimeCSV(path("gyro_times.csv"), chunk.GyroTime, firstChunk) },
			func() error { return output.WriteGpsTimeCSV(path("xl_times.csv"), chunk.AccelTime, firstChunk) },
			func() error { return output.WriteGpsTimeCSV(path("mag_times.csv"), chunk.MagTime, firstChunk) },
			func() error { return output.WriteGpsTimeCSV(path("audio_times.csv"), chunk.AudioTime, firstChunk) },
			func() error { return output.WriteGpsTimeCSV(path("status_p_time_mark.csv"), chunk.StatusPTimeMark, firstChunk) },
		)
	}

	for _, w := range writers {
		if err := w(); err != nil {
			return err
		}
	}
	return nil
}

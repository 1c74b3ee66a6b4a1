// Command collarparse decodes a wearable-collar SD-card binary capture into
// per-stream flat files (binary, optionally CSV).
package main

import (
	"io"
	"os"
	"time"

	"github.com/banshee-data/collarparse/internal/collar/config"
	"github.com/banshee-data/collarparse/internal/collar/logx"
	"github.com/banshee-data/collarparse/internal/collar/runner"
	"github.com/banshee-data/collarparse/internal/collar/segment"
	"github.com/banshee-data/collarparse/internal/collar/storage/sqlite"
)

const (
	exitOK              = 0
	exitArgError        = 1
	exitFatalIO         = 2
	exitMalformedBlocks = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var trace io.Writer
	if config.TraceEnabled() {
		trace = os.Stdout
	}
	logs := logx.New(os.Stderr, os.Stderr, trace)

	parsed, err := config.Parse(args)
	if err != nil {
		logs.Opsf("%v", err)
		logs.Opsf("%s", config.Usage)
		return exitArgError
	}

	var store *sqlite.Store
	if dbPath := config.SummaryDBPath(); dbPath != "" {
		store, err = sqlite.Open(dbPath)
		if err != nil {
			logs.Opsf("failed to open summary database %s: %v", dbPath, err)
			return exitFatalIO
		}
		defer store.Close()
	}

	outDir := outputDir(parsed.Filename)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		logs.Opsf("failed to create output directory %s: %v", outDir, err)
		return exitFatalIO
	}

	startedAt := time.Now()
	result, err := runner.Run(runner.Config{
		Filename:  parsed.Filename,
		NumBlocks: parsed.NumBlocks,
		CSV:       parsed.CSV,
		OutDir:    outDir,
		Logs:      logs,
	})
	if err != nil {
		logs.Opsf("decode failed: %v", err)
		return exitFatalIO
	}

	if store != nil {
		if _, err := store.RecordRun(sqlite.RunSummary{
			Filename:        parsed.Filename,
			StartedAt:       startedAt,
			Elapsed:         result.Elapsed,
			BlocksProcessed: result.BlocksProcessed,
			MalformedBlocks: result.MalformedBlocks,
			SegmentCounts:   segmentCountsForStorage(result.SegmentCounts),
		}); err != nil {
			logs.Opsf("failed to record run summary: %v", err)
		}
	}

	logs.Diagf("decoded %s: %d blocks, %d malformed, elapsed %s", parsed.Filename, result.BlocksProcessed, result.MalformedBlocks, result.Elapsed)

	if result.MalformedBlocks > 0 {
		return exitMalformedBlocks
	}
	return exitOK
}

// outputDir places output files in the current working directory, per
// spec.md's flat-file contract — no separate output-directory flag exists
// in the positional CLI.
func outputDir(filename string) string {
	return "."
}

func segmentCountsForStorage(counts map[segment.Type]int64) map[uint8]int64 {
	out := make(map[uint8]int64, len(counts))
	for k, v := range counts {
		out[uint8(k)] = v
	}
	return out
}

// Package sqlite persists an optional per-run summary: one row per decode
// run, its per-segment-type counts, and any malformed-block warnings. It is
// entirely optional — the decode pipeline itself never reads from it — and
// is only opened when COLLARPARSE_SUMMARY_DB names a database path.
package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a *sql.DB opened against the run-summary schema.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the summary database at path and
// migrates it to the latest schema version.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("collar/storage/sqlite: open %s: %w", path, err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("collar/storage/sqlite: %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) migrate() error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("collar/storage/sqlite: migrations sub-fs: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("collar/storage/sqlite: iofs source: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("collar/storage/sqlite: driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("collar/storage/sqlite: migrate instance: %w", err)
	}
	m.Log = migrateLogger{}

	if err := m.Up(); err != nil {
		switch err {
		case migrate.ErrNoChange:
		default:
			return fmt.Errorf("collar/storage/sqlite: migrate up: %w", err)
		}
	}
	return nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) { log.Printf("[migrate] "+format, v...) }
func (migrateLogger) Verbose() bool                          { return false }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunSummary is one completed run's aggregate result, ready to persist.
type RunSummary struct {
	Filename        string
	StartedAt       time.Time
	Elapsed         time.Duration
	BlocksProcessed int64
	MalformedBlocks int64
	SegmentCounts   map[uint8]int64
	Warnings        []string
}

// RecordRun inserts a run row, its segment-count rows, and any warning rows
// in a single transaction. It returns the generated run ID.
func (s *Store) RecordRun(summary RunSummary) (string, error) {
	runID := uuid.New().String()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("collar/storage/sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, filename, started_at, elapsed_ms, blocks_processed, malformed_blocks) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, summary.Filename, summary.StartedAt.UTC().Format(time.RFC3339Nano),
		summary.Elapsed.Milliseconds(), summary.BlocksProcessed, summary.MalformedBlocks,
	)
	if err != nil {
		return "", fmt.Errorf("collar/storage/sqlite: insert run: %w", err)
	}

	for segType, count := range summary.SegmentCounts {
		if _, err := tx.Exec(
			`INSERT INTO run_segment_counts (run_id, segment_type, count) VALUES (?, ?, ?)`,
			runID, segType, count,
		); err != nil {
			return "", fmt.Errorf("collar/storage/sqlite: insert segment count: %w", err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, msg := range summary.Warnings {
		if _, err := tx.Exec(
			`INSERT INTO run_warnings (run_id, message, created_at) VALUES (?, ?, ?)`,
			runID, msg, now,
		); err != nil {
			return "", fmt.Errorf("collar/storage/sqlite: insert warning: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("collar/storage/sqlite: commit: %w", err)
	}
	return runID, nil
}

// Package logx provides the three-tier logging convention shared by the
// decode pipeline: ops (actionable warnings, data loss), diag (per-chunk
// progress and timing), trace (per-block/per-segment detail).
package logx

import (
	"io"
	"log"
)

// Streams bundles the three loggers a pipeline stage writes through.
// A nil logger is a valid, silent stream.
type Streams struct {
	ops   *log.Logger
	diag  *log.Logger
	trace *log.Logger
}

// New builds a Streams from three writers. Pass nil for any writer to
// disable that stream.
func New(ops, diag, trace io.Writer) *Streams {
	return &Streams{
		ops:   newLogger("[collar] ", ops),
		diag:  newLogger("[collar] ", diag),
		trace: newLogger("[collar] ", trace),
	}
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs an actionable warning or error: malformed blocks, I/O failures.
func (s *Streams) Opsf(format string, args ...interface{}) {
	if s != nil && s.ops != nil {
		s.ops.Printf(format, args...)
	}
}

// Diagf logs day-to-day diagnostics: chunk boundaries, elapsed time.
func (s *Streams) Diagf(format string, args ...interface{}) {
	if s != nil && s.diag != nil {
		s.diag.Printf(format, args...)
	}
}

// Tracef logs high-frequency per-block/per-segment detail.
func (s *Streams) Tracef(format string, args ...interface{}) {
	if s != nil && s.trace != nil {
		s.trace.Printf(format, args...)
	}
}

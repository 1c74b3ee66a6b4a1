// Package config materializes the CLI's positional argument contract and
// its environment-variable extensions into an Args value and accessors.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Usage is the message printed to the ops stream on a bad invocation.
const Usage = `usage:
  collarparse <filename>
  collarparse <filename> <num_blocks> <csv_flag>`

// ArgError reports a malformed CLI invocation. Callers should print Usage
// and exit 1 without opening the input file.
type ArgError struct {
	msg string
}

func (e *ArgError) Error() string { return e.msg }

// Args is the materialized result of parsing os.Args[1:].
type Args struct {
	Filename  string
	NumBlocks int64 // 0 means decode the whole file
	CSV       bool
}

// Parse accepts exactly the two positional forms spec.md defines: a single
// filename, or a filename plus num_blocks and csv_flag. Any other arity is
// an ArgError.
func Parse(args []string) (Args, error) {
	switch len(args) {
	case 1:
		return Args{Filename: args[0]}, nil
	case 3:
		numBlocks, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return Args{}, &ArgError{msg: fmt.Sprintf("invalid num_blocks %q: %v", args[1], err)}
		}
		if numBlocks < 0 {
			return Args{}, &ArgError{msg: fmt.Sprintf("num_blocks must be non-negative, got %d", numBlocks)}
		}
		csvFlag, err := strconv.Atoi(args[2])
		if err != nil {
			return Args{}, &ArgError{msg: fmt.Sprintf("invalid csv_flag %q: %v", args[2], err)}
		}
		return Args{Filename: args[0], NumBlocks: numBlocks, CSV: csvFlag != 0}, nil
	default:
		return Args{}, &ArgError{msg: fmt.Sprintf("expected 1 or 3 positional arguments, got %d", len(args))}
	}
}

// SummaryDBPath returns the path named by COLLARPARSE_SUMMARY_DB, or "" if
// unset — the run-summary database is entirely optional.
func SummaryDBPath() string {
	return os.Getenv("COLLARPARSE_SUMMARY_DB")
}

// TraceEnabled reports whether COLLARPARSE_TRACE=1 is set.
func TraceEnabled() bool {
	return os.Getenv("COLLARPARSE_TRACE") == "1"
}

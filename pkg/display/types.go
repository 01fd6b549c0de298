// Package display renders change events, watcher outcomes and run history
// for the command line.
//
// It supports a table format for terminals, JSON lines for pipes and a
// simple one-line text format.
package display

import (
	"fmt"
	"io"
	"time"

	"github.com/0xmhha/browsersync/pkg/runlog"
	"github.com/0xmhha/browsersync/pkg/watcher"
)

// Format represents an output format.
type Format string

const (
	// FormatTable displays aligned columns.
	FormatTable Format = "table"

	// FormatJSON displays one JSON document per event or list.
	FormatJSON Format = "json"

	// FormatSimple displays plain text lines.
	FormatSimple Format = "simple"

	// FormatAuto picks table on a terminal and JSON otherwise.
	FormatAuto Format = "auto"
)

// Formatter formats watcher output.
type Formatter interface {
	// FormatEvent writes a single change event observed at at.
	FormatEvent(w io.Writer, ev watcher.ChangeEvent, at time.Time) error

	// FormatOutcome writes the summary of a finished run.
	FormatOutcome(w io.Writer, out watcher.Outcome) error

	// FormatRuns writes stored run records, newest first.
	FormatRuns(w io.Writer, runs []runlog.Record) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format

	// ShowTimestamps prefixes events with the time they were seen.
	ShowTimestamps bool

	// Compact drops headers and extra whitespace.
	Compact bool
}

// ParseFormat converts a flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTable, FormatJSON, FormatSimple, FormatAuto:
		return f, nil
	case "":
		return FormatAuto, nil
	default:
		return "", &FormatError{Value: s}
	}
}

// FormatError reports an unknown format name.
type FormatError struct {
	Value string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unknown output format %q (want table, json, simple or auto)", e.Value)
}

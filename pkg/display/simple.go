package display

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/0xmhha/browsersync/pkg/runlog"
	"github.com/0xmhha/browsersync/pkg/watcher"
)

// simpleFormatter formats output as simple text.
type simpleFormatter struct {
	config Config
}

// FormatEvent implements Formatter.FormatEvent.
func (f *simpleFormatter) FormatEvent(w io.Writer, ev watcher.ChangeEvent, at time.Time) error {
	if f.config.ShowTimestamps {
		_, err := fmt.Fprintf(w, "%s %s %s\n", at.Format(timeLayout), ev.Event, ev.Filename)
		return err
	}
	_, err := fmt.Fprintf(w, "%s %s\n", ev.Event, ev.Filename)
	return err
}

// FormatOutcome implements Formatter.FormatOutcome.
func (f *simpleFormatter) FormatOutcome(w io.Writer, out watcher.Outcome) error {
	line := fmt.Sprintf("stopped: %s | registered: %d | forwarded: %d | dropped: %d | errors: %d | skipped: %d",
		out.Reason,
		out.Registered,
		out.Forwarded,
		out.Dropped,
		out.Errors,
		len(out.Skipped))
	if out.Invalidated != "" {
		line += " | invalidated: " + out.Invalidated
	}
	if out.Err != nil {
		line += " | error: " + out.Err.Error()
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

// FormatRuns implements Formatter.FormatRuns.
func (f *simpleFormatter) FormatRuns(w io.Writer, runs []runlog.Record) error {
	for _, run := range runs {
		if _, err := fmt.Fprintf(w, "#%d %s %s (%s) %s - %d forwarded\n",
			run.ID,
			run.StartedAt.Format(timeLayout),
			run.Reason,
			formatDuration(run.Duration()),
			strings.Join(run.Roots, ","),
			run.Forwarded); err != nil {
			return err
		}
	}

	return nil
}

package display

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/0xmhha/browsersync/pkg/runlog"
	"github.com/0xmhha/browsersync/pkg/watcher"
)

// eventWidth fits the longest public event name, ENTRY_MODIFY.
const eventWidth = len("ENTRY_MODIFY")

// tableFormatter formats output as tables.
type tableFormatter struct {
	config Config
}

// FormatEvent implements Formatter.FormatEvent.
//
// Events stream one row at a time, so widths are fixed rather than measured.
func (f *tableFormatter) FormatEvent(w io.Writer, ev watcher.ChangeEvent, at time.Time) error {
	cells := []string{ev.Event, ev.Filename}
	widths := []int{eventWidth, 0}
	if f.config.ShowTimestamps {
		cells = append([]string{at.Format("15:04:05.000")}, cells...)
		widths = append([]int{len("15:04:05.000")}, widths...)
	}
	return f.writeRow(w, cells, widths)
}

// FormatOutcome implements Formatter.FormatOutcome.
func (f *tableFormatter) FormatOutcome(w io.Writer, out watcher.Outcome) error {
	if err := writeHeader(w, "Watcher Stopped", f.config.Compact); err != nil {
		return err
	}

	rows := [][]string{
		{"Reason", out.Reason.String()},
		{"Registered", strconv.Itoa(out.Registered)},
		{"Forwarded", strconv.Itoa(out.Forwarded)},
		{"Dropped", strconv.Itoa(out.Dropped)},
		{"Errors", strconv.Itoa(out.Errors)},
	}
	if out.Invalidated != "" {
		rows = append(rows, []string{"Invalidated", out.Invalidated})
	}
	if out.Err != nil {
		rows = append(rows, []string{"Error", out.Err.Error()})
	}
	for _, s := range out.Skipped {
		rows = append(rows, []string{"Skipped", s.Error()})
	}
	for _, p := range out.Partial {
		rows = append(rows, []string{"Partial", p.Error()})
	}

	return f.writeTable(w, []string{"Field", "Value"}, rows)
}

// FormatRuns implements Formatter.FormatRuns.
func (f *tableFormatter) FormatRuns(w io.Writer, runs []runlog.Record) error {
	if err := writeHeader(w, "Watcher Runs", f.config.Compact); err != nil {
		return err
	}

	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			strconv.FormatUint(run.ID, 10),
			run.StartedAt.Format(timeLayout),
			formatDuration(run.Duration()),
			run.Reason,
			strconv.Itoa(run.Registered),
			strconv.Itoa(run.Forwarded),
			strconv.Itoa(run.Dropped),
			strings.Join(run.Roots, ", "),
		})
	}

	return f.writeTable(w,
		[]string{"ID", "Started", "Duration", "Reason", "Watches", "Forwarded", "Dropped", "Roots"},
		rows)
}

// writeTable writes a formatted table.
func (f *tableFormatter) writeTable(w io.Writer, header []string, rows [][]string) error {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	if err := f.writeRow(w, header, widths); err != nil {
		return err
	}

	if !f.config.Compact {
		separator := make([]string, len(header))
		for i, width := range widths {
			separator[i] = strings.Repeat("-", width)
		}
		if err := f.writeRow(w, separator, widths); err != nil {
			return err
		}
	}

	for _, row := range rows {
		if err := f.writeRow(w, row, widths); err != nil {
			return err
		}
	}

	if !f.config.Compact {
		_, err := fmt.Fprintln(w)
		return err
	}

	return nil
}

// writeRow writes a single table row. The last cell is not padded.
func (f *tableFormatter) writeRow(w io.Writer, cells []string, widths []int) error {
	gap := "  "
	if f.config.Compact {
		gap = " "
	}

	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString(gap)
		}
		if i == len(cells)-1 {
			b.WriteString(cell)
			break
		}
		fmt.Fprintf(&b, "%-*s", widths[i], cell)
	}
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}

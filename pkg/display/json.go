package display

import (
	"encoding/json"
	"io"
	"time"

	"github.com/0xmhha/browsersync/pkg/runlog"
	"github.com/0xmhha/browsersync/pkg/watcher"
)

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

type jsonEvent struct {
	Time *time.Time `json:"time,omitempty"`
	watcher.ChangeEvent
}

type jsonOutcome struct {
	Reason      string   `json:"reason"`
	Error       string   `json:"error,omitempty"`
	Skipped     []string `json:"skipped,omitempty"`
	Partial     []string `json:"partial,omitempty"`
	Registered  int      `json:"registered"`
	Forwarded   int      `json:"forwarded"`
	Dropped     int      `json:"dropped"`
	Errors      int      `json:"errors"`
	Invalidated string   `json:"invalidated,omitempty"`
}

// FormatEvent implements Formatter.FormatEvent.
//
// Events are always written one per line so the stream stays parseable.
func (f *jsonFormatter) FormatEvent(w io.Writer, ev watcher.ChangeEvent, at time.Time) error {
	out := jsonEvent{ChangeEvent: ev}
	if f.config.ShowTimestamps {
		out.Time = &at
	}
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	return encoder.Encode(out)
}

// FormatOutcome implements Formatter.FormatOutcome.
func (f *jsonFormatter) FormatOutcome(w io.Writer, out watcher.Outcome) error {
	doc := jsonOutcome{
		Reason:      out.Reason.String(),
		Registered:  out.Registered,
		Forwarded:   out.Forwarded,
		Dropped:     out.Dropped,
		Errors:      out.Errors,
		Invalidated: out.Invalidated,
	}
	if out.Err != nil {
		doc.Error = out.Err.Error()
	}
	for _, s := range out.Skipped {
		doc.Skipped = append(doc.Skipped, s.Error())
	}
	for _, p := range out.Partial {
		doc.Partial = append(doc.Partial, p.Error())
	}

	return f.encoder(w).Encode(doc)
}

// FormatRuns implements Formatter.FormatRuns.
func (f *jsonFormatter) FormatRuns(w io.Writer, runs []runlog.Record) error {
	if runs == nil {
		runs = []runlog.Record{}
	}
	return f.encoder(w).Encode(runs)
}

func (f *jsonFormatter) encoder(w io.Writer) *json.Encoder {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder
}

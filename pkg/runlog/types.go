// Package runlog keeps a history of watcher runs in a local BoltDB file.
//
// One record is written per run when the watcher stops. Change events are
// never stored; the history answers "what was watched and why did it stop".
//
// Example usage:
//
//	store, err := runlog.Open(runlog.Config{
//	    DBPath: "~/.config/browsersync/runs.db",
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	rec := runlog.FromOutcome(roots, started, time.Now(), outcome)
//	if err := store.Append(&rec); err != nil {
//	    log.Fatal(err)
//	}
package runlog

import (
	"time"

	"github.com/0xmhha/browsersync/pkg/watcher"
)

// Record describes one finished watcher run.
type Record struct {
	// ID is assigned by the store on Append and increases monotonically.
	ID uint64 `json:"id"`

	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at"`

	// Roots are the resolved watch roots.
	Roots []string `json:"roots"`

	// Reason is the watcher.StopReason string.
	Reason string `json:"reason"`

	// Error is the initialization error, if any.
	Error string `json:"error,omitempty"`

	// Skipped lists paths that could not be registered, as "path: error".
	Skipped []string `json:"skipped,omitempty"`

	// Partial lists registered directories that could not be listed.
	Partial []string `json:"partial,omitempty"`

	Registered  int    `json:"registered"`
	Forwarded   int    `json:"forwarded"`
	Dropped     int    `json:"dropped"`
	Errors      int    `json:"errors"`
	Invalidated string `json:"invalidated,omitempty"`
}

// Duration returns how long the run lasted.
func (r Record) Duration() time.Duration {
	if r.StoppedAt.Before(r.StartedAt) {
		return 0
	}
	return r.StoppedAt.Sub(r.StartedAt)
}

// FromOutcome builds a record for a run over roots.
func FromOutcome(roots []string, started, stopped time.Time, out watcher.Outcome) Record {
	rec := Record{
		StartedAt:   started,
		StoppedAt:   stopped,
		Roots:       append([]string(nil), roots...),
		Reason:      out.Reason.String(),
		Registered:  out.Registered,
		Forwarded:   out.Forwarded,
		Dropped:     out.Dropped,
		Errors:      out.Errors,
		Invalidated: out.Invalidated,
	}
	if out.Err != nil {
		rec.Error = out.Err.Error()
	}
	for _, s := range out.Skipped {
		rec.Skipped = append(rec.Skipped, s.Error())
	}
	for _, p := range out.Partial {
		rec.Partial = append(rec.Partial, p.Error())
	}
	return rec
}

// Store persists run records.
type Store interface {
	// Append stores rec and sets rec.ID.
	Append(rec *Record) error

	// Get returns the record with id, or ErrRecordNotFound.
	Get(id uint64) (*Record, error)

	// List returns up to limit records, newest first. A limit of zero or
	// less returns every record.
	List(limit int) ([]Record, error)

	// Prune keeps the newest keep records and deletes the rest. It returns
	// the number deleted.
	Prune(keep int) (int, error)

	// Close releases the store.
	Close() error
}

// Config contains store configuration.
type Config struct {
	// DBPath is the database file. A leading ~ expands to the home directory.
	DBPath string

	// Timeout bounds waiting for the file lock. Default: 1s.
	Timeout time.Duration
}

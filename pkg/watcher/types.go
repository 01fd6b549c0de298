// Package watcher watches directory trees and forwards every file change
// to a Sink as a ChangeEvent.
//
// Each configured root is resolved to an absolute, symlink-free path and
// every directory beneath it is registered with the native watch service
// (fsnotify). A single goroutine then drains raw notifications, maps them
// onto the three public kinds and publishes them synchronously.
//
// Example usage:
//
//	w := watcher.New(watcher.Config{
//	    Roots:   watcher.ParseRoots("./static, ./templates"),
//	    Enabled: true,
//	}, hub, logger.Default())
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	outcome := w.Wait()
//	fmt.Println("watcher stopped:", outcome.Reason)
package watcher

import (
	"fmt"
	"strings"
)

// DefaultTopic is the channel change events are published on.
const DefaultTopic = "/wsdevtools/filesync"

// Kind is the kind of a filesystem change.
type Kind uint8

// Change kinds. Only KindCreate, KindModify and KindDelete are ever emitted.
const (
	KindUnknown Kind = iota
	KindCreate
	KindModify
	KindDelete
	KindOverflow
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "ENTRY_CREATE"
	case KindModify:
		return "ENTRY_MODIFY"
	case KindDelete:
		return "ENTRY_DELETE"
	case KindOverflow:
		return "OVERFLOW"
	default:
		return "UNKNOWN"
	}
}

// Emittable reports whether events of this kind reach the sink.
func (k Kind) Emittable() bool {
	return k == KindCreate || k == KindModify || k == KindDelete
}

// ChangeEvent is the payload delivered to subscribers. The JSON shape is
// consumed by browser clients and must not change.
type ChangeEvent struct {
	// Filename is the absolute path of the changed entry.
	Filename string `json:"filename"`

	// Event is one of ENTRY_CREATE, ENTRY_MODIFY, ENTRY_DELETE.
	Event string `json:"event"`
}

// Sink receives change events. Publish is synchronous and fire-and-forget:
// the watcher never waits for acknowledgment and never retries.
type Sink interface {
	Publish(topic string, event ChangeEvent)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(topic string, event ChangeEvent)

// Publish implements Sink.Publish.
func (f SinkFunc) Publish(topic string, event ChangeEvent) {
	f(topic, event)
}

type discardSink struct{}

func (discardSink) Publish(string, ChangeEvent) {}

// State is the lifecycle state of a Watcher.
type State int32

// Lifecycle states. StateStopped is terminal.
const (
	StateUninitialized State = iota
	StateInitializing
	StateRunning
	StateStopped
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StopReason explains why a watcher stopped.
type StopReason int

// Stop reasons.
const (
	ReasonNone StopReason = iota
	ReasonInitFailure
	ReasonDisabled
	ReasonInterrupted
	ReasonInvalidated
)

// String returns the reason name used in logs and run records.
func (r StopReason) String() string {
	switch r {
	case ReasonInitFailure:
		return "init-failure"
	case ReasonDisabled:
		return "disabled"
	case ReasonInterrupted:
		return "interrupted"
	case ReasonInvalidated:
		return "invalidated"
	default:
		return "none"
	}
}

// PathError records a path that could not be registered.
type PathError struct {
	Path string
	Err  error
}

func (e PathError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e PathError) Unwrap() error {
	return e.Err
}

// Outcome is the result of one watcher run.
//
// Err is set only for fatal init failures. Skipped and Dropped describe
// best-effort losses that did not stop the watcher.
type Outcome struct {
	Reason StopReason

	// Err is the cause of an init failure.
	Err error

	// Skipped lists roots and subdirectories that could not be registered.
	Skipped []PathError

	// Partial lists registered directories whose contents could not be
	// listed. They are watched, but their subdirectories are not.
	Partial []PathError

	// Registered is the number of live registrations when the loop started.
	Registered int

	// Forwarded counts events published to the sink.
	Forwarded int

	// Dropped counts overflow signals and raw events of no public kind.
	Dropped int

	// Errors counts non-overflow errors reported by the native watch service.
	Errors int

	// Invalidated is the first registration found invalid, if any.
	Invalidated string
}

// Config contains watcher configuration.
type Config struct {
	// Roots are the path tokens to watch. Each is trimmed and resolved once.
	Roots []string

	// Enabled gates the dispatch loop. A disabled watcher forwards nothing.
	Enabled bool

	// Topic is the sink topic. Default: DefaultTopic.
	Topic string

	// FollowNewDirs registers directories created after startup.
	FollowNewDirs bool

	// DetachInvalidated drops only the invalidated subtree instead of
	// stopping the whole watcher. The watcher still stops once nothing
	// is left registered.
	DetachInvalidated bool
}

// ParseRoots splits a comma-separated root list, trimming each token and
// skipping empty ones.
func ParseRoots(list string) []string {
	parts := strings.Split(list, ",")
	roots := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			roots = append(roots, p)
		}
	}
	return roots
}

package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/0xmhha/browsersync/pkg/logger"
)

// Watcher watches directory trees and publishes their changes.
//
// A Watcher runs once: registration and the dispatch loop execute on one
// goroutine, and once stopped it cannot be restarted.
type Watcher struct {
	config Config
	sink   Sink
	logger logger.Logger

	openNative func() (native, error)
	native     native

	state   atomic.Int32
	enabled atomic.Bool

	// registered maps each watched path to whether it is a directory.
	mu         sync.RWMutex
	registered map[string]bool

	// detached holds invalidated directories whose late delete events
	// must not be forwarded again. Owned by the dispatch goroutine.
	detached map[string]struct{}

	outcome Outcome
	done    chan struct{}
}

// New creates a watcher. Nothing is registered until Start or Run.
func New(cfg Config, sink Sink, log logger.Logger) *Watcher {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if sink == nil {
		sink = discardSink{}
	}
	if log == nil {
		log = logger.Noop()
	}

	w := &Watcher{
		config:     cfg,
		sink:       sink,
		logger:     log.With("component", "watcher"),
		openNative: openFSNotify,
		registered: make(map[string]bool),
		detached:   make(map[string]struct{}),
		done:       make(chan struct{}),
	}
	w.enabled.Store(cfg.Enabled)

	return w
}

// Start runs the watcher on its own goroutine and returns immediately.
// Failures during startup are reported through Wait, not here.
func (w *Watcher) Start(ctx context.Context) error {
	if !w.state.CompareAndSwap(int32(StateUninitialized), int32(StateInitializing)) {
		return ErrAlreadyStarted
	}

	go w.run(ctx)
	return nil
}

// Run executes the watcher on the calling goroutine until it stops.
func (w *Watcher) Run(ctx context.Context) (Outcome, error) {
	if !w.state.CompareAndSwap(int32(StateUninitialized), int32(StateInitializing)) {
		return Outcome{}, ErrAlreadyStarted
	}

	w.run(ctx)
	return w.outcome, nil
}

// Disable clears the enabled flag. The loop exits at its next check; a
// wait already in progress is not interrupted.
func (w *Watcher) Disable() {
	w.enabled.Store(false)
}

// Done is closed once the watcher has stopped.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until the watcher stops and returns its outcome.
func (w *Watcher) Wait() Outcome {
	<-w.done
	return w.outcome
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

func (w *Watcher) run(ctx context.Context) {
	n, err := w.openNative()
	if err != nil {
		w.outcome.Err = err
		w.stop(ReasonInitFailure)
		return
	}
	w.native = n

	w.registerRoots()

	w.outcome.Registered = w.registeredCount()
	w.state.Store(int32(StateRunning))
	w.logger.Info("watcher running",
		"registrations", w.outcome.Registered,
		"skipped", len(w.outcome.Skipped),
		"topic", w.config.Topic)

	w.stop(w.loop(ctx))
}

// loop drains native events batch by batch until a stop condition.
func (w *Watcher) loop(ctx context.Context) StopReason {
	for {
		if !w.enabled.Load() {
			return ReasonDisabled
		}

		batch, ok := w.take(ctx)
		if !ok {
			return ReasonInterrupted
		}

		invalid := w.dispatch(batch)
		if len(invalid) == 0 {
			continue
		}

		if w.outcome.Invalidated == "" {
			w.outcome.Invalidated = invalid[0]
		}
		if !w.config.DetachInvalidated {
			return ReasonInvalidated
		}
		for _, path := range invalid {
			w.detach(path)
		}
		if w.registeredCount() == 0 {
			return ReasonInvalidated
		}
	}
}

// rawEvent is either a native event or a native error.
type rawEvent struct {
	event fsnotify.Event
	err   error
}

// take blocks for the next raw event, then drains whatever else is already
// queued without blocking. It returns false when ctx is cancelled or the
// native channels are closed.
func (w *Watcher) take(ctx context.Context) ([]rawEvent, bool) {
	events, errs := w.native.Events(), w.native.Errors()

	var first rawEvent
	select {
	case <-ctx.Done():
		return nil, false
	case ev, ok := <-events:
		if !ok {
			return nil, false
		}
		first.event = ev
	case err, ok := <-errs:
		if !ok {
			return nil, false
		}
		first.err = err
	}

	batch := []rawEvent{first}
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return batch, true
			}
			batch = append(batch, rawEvent{event: ev})
		case err, ok := <-errs:
			if !ok {
				return batch, true
			}
			batch = append(batch, rawEvent{err: err})
		default:
			return batch, true
		}
	}
}

// dispatch forwards a batch in order and returns the registrations it
// invalidated.
func (w *Watcher) dispatch(batch []rawEvent) []string {
	var invalid []string
	seen := make(map[string]struct{})

	for _, raw := range batch {
		if raw.err != nil {
			if errors.Is(raw.err, fsnotify.ErrEventOverflow) {
				w.outcome.Dropped++
				w.logger.Debug("overflow dropped")
				continue
			}
			w.outcome.Errors++
			w.logger.Warn("native watch error", "error", raw.err)
			continue
		}

		kind := kindOf(raw.event.Op)
		if !kind.Emittable() {
			w.outcome.Dropped++
			continue
		}

		path, err := filepath.Abs(raw.event.Name)
		if err != nil {
			w.outcome.Dropped++
			continue
		}

		if kind == KindDelete && w.isDuplicateDelete(path, seen) {
			w.logger.Debug("duplicate delete skipped", "path", path)
			continue
		}
		if kind == KindCreate {
			delete(w.detached, path)
		}

		if kind == KindDelete && w.isRegistered(path) {
			seen[path] = struct{}{}
			invalid = append(invalid, path)
			w.logger.Warn("watch registration invalidated", "path", path)
			// Only a watched parent reports a directory's own removal.
			if !w.isRegistered(filepath.Dir(path)) {
				continue
			}
		}

		if kind == KindCreate && w.config.FollowNewDirs {
			if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
				w.registerTree(path)
			}
		}

		w.sink.Publish(w.config.Topic, ChangeEvent{
			Filename: path,
			Event:    kind.String(),
		})
		w.outcome.Forwarded++
	}

	return invalid
}

// isDuplicateDelete reports whether a directory's removal was already
// handled. The kernel reports it twice: once to the parent's watch and once
// to the directory's own.
func (w *Watcher) isDuplicateDelete(path string, seen map[string]struct{}) bool {
	if _, ok := seen[path]; ok {
		return true
	}
	_, ok := w.detached[path]
	return ok
}

// stop releases the native watcher and moves to the terminal state.
func (w *Watcher) stop(reason StopReason) {
	w.outcome.Reason = reason

	if w.native != nil {
		if err := w.native.Close(); err != nil {
			w.logger.Debug("failed to close native watcher", "error", err)
		}
	}

	w.mu.Lock()
	w.registered = make(map[string]bool)
	w.mu.Unlock()

	switch reason {
	case ReasonInitFailure:
		w.logger.Error("watcher failed to start", "error", w.outcome.Err)
	case ReasonInvalidated:
		w.logger.Warn("watcher stopped",
			"reason", reason.String(),
			"path", w.outcome.Invalidated,
			"forwarded", w.outcome.Forwarded)
	default:
		w.logger.Info("watcher stopped",
			"reason", reason.String(),
			"forwarded", w.outcome.Forwarded,
			"dropped", w.outcome.Dropped)
	}

	w.state.Store(int32(StateStopped))
	close(w.done)
}

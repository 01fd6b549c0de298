// Package reload wires a directory watcher to its sinks and records every
// run in the run log.
package reload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/0xmhha/browsersync/pkg/config"
	"github.com/0xmhha/browsersync/pkg/logger"
	"github.com/0xmhha/browsersync/pkg/runlog"
	"github.com/0xmhha/browsersync/pkg/watcher"
)

// Service runs one watcher per Run call.
type Service struct {
	config *config.Config
	sink   watcher.Sink
	store  runlog.Store
	logger logger.Logger
	base   logger.Logger
	now    func() time.Time

	mu      sync.Mutex
	current *watcher.Watcher
}

// New creates a service. A nil store keeps history in memory only.
func New(cfg *config.Config, sink watcher.Sink, store runlog.Store, log logger.Logger) *Service {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.Noop()
	}
	if store == nil {
		store = runlog.NewMemoryStore()
	}

	return &Service{
		config: cfg,
		sink:   sink,
		store:  store,
		logger: log.With("component", "reload"),
		base:   log,
		now:    time.Now,
	}
}

// Run watches the configured directories until the watcher stops, records
// the run and returns its outcome. The returned error covers configuration
// problems only; watcher failures are reported in the outcome.
func (s *Service) Run(ctx context.Context) (watcher.Outcome, error) {
	wcfg := s.config.WatcherConfig()
	if len(wcfg.Roots) == 0 {
		return watcher.Outcome{}, watcher.ErrNoRoots
	}

	w := watcher.New(wcfg, s.sink, s.base)

	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		return watcher.Outcome{}, ErrAlreadyRunning
	}
	s.current = w
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
	}()

	started := s.now()
	out, err := w.Run(ctx)
	if err != nil {
		return out, fmt.Errorf("failed to run watcher: %w", err)
	}

	s.record(resolveAll(wcfg.Roots), started, out)
	return out, nil
}

// Disable asks the running watcher to stop at its next loop check.
func (s *Service) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.Disable()
	}
}

// Registrations returns the paths watched by the running watcher.
func (s *Service) Registrations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}
	return s.current.Registrations()
}

// History returns up to limit recorded runs, newest first.
func (s *Service) History(limit int) ([]runlog.Record, error) {
	return s.store.List(limit)
}

// record stores the run. Failures are logged; losing history never fails a run.
func (s *Service) record(roots []string, started time.Time, out watcher.Outcome) {
	rec := runlog.FromOutcome(roots, started, s.now(), out)
	if err := s.store.Append(&rec); err != nil {
		s.logger.Warn("failed to record run", "error", err)
		return
	}

	if keep := s.config.Storage.KeepRuns; keep > 0 {
		if _, err := s.store.Prune(keep); err != nil {
			s.logger.Warn("failed to prune run log", "error", err)
		}
	}

	s.logger.Debug("run recorded", "id", rec.ID, "reason", rec.Reason)
}

// resolveAll resolves roots for display. Unresolvable tokens are kept as given.
func resolveAll(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if resolved, err := watcher.ResolveRoot(r); err == nil {
			r = resolved
		}
		out = append(out, r)
	}
	return out
}

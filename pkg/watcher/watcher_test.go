package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/0xmhha/browsersync/pkg/logger"
)

// recordingSink collects published events.
type recordingSink struct {
	mu     sync.Mutex
	events []ChangeEvent
	topics []string
	ch     chan ChangeEvent
}

func newRecordingSink() *recordingSink {
	return &recordingSink{ch: make(chan ChangeEvent, 256)}
}

func (s *recordingSink) Publish(topic string, event ChangeEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.topics = append(s.topics, topic)
	s.mu.Unlock()

	select {
	case s.ch <- event:
	default:
	}
}

func (s *recordingSink) Events() []ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChangeEvent{}, s.events...)
}

// next waits for the next event matching fn.
func (s *recordingSink) next(t *testing.T, fn func(ChangeEvent) bool) ChangeEvent {
	t.Helper()

	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-s.ch:
			if fn(ev) {
				return ev
			}
		case <-timeout:
			t.Fatalf("timeout waiting for event, got %v", s.Events())
			return ChangeEvent{}
		}
	}
}

// resolvedTempDir returns a temp dir with symlinks evaluated, matching the
// paths the watcher reports.
func resolvedTempDir(t *testing.T) string {
	t.Helper()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks() error = %v", err)
	}
	return dir
}

func waitForState(t *testing.T, w *Watcher, want State) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if w.State() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("State() = %s, want %s", w.State(), want)
}

func waitForStop(t *testing.T, w *Watcher) Outcome {
	t.Helper()

	select {
	case <-w.Done():
		return w.Wait()
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for watcher to stop")
		return Outcome{}
	}
}

// startWatcher starts a watcher on roots and waits until it is running.
func startWatcher(t *testing.T, cfg Config) (*Watcher, *recordingSink, context.CancelFunc) {
	t.Helper()

	sink := newRecordingSink()
	w := New(cfg, sink, logger.Noop())

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start() error = %v", err)
	}

	waitForState(t, w, StateRunning)
	t.Cleanup(func() {
		cancel()
		<-w.Done()
	})

	return w, sink, cancel
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestNestedDirectoryCreateIsReported(t *testing.T) {
	root := resolvedTempDir(t)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0700); err != nil {
		t.Fatalf("failed to create nested dir: %v", err)
	}

	w, sink, _ := startWatcher(t, Config{Roots: []string{root}, Enabled: true})

	want := []string{root, filepath.Join(root, "a"), nested}
	got := w.Registrations()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Registrations() = %v, want %v", got, want)
	}

	target := filepath.Join(nested, "app.js")
	writeFile(t, target, "console.log(1)")

	ev := sink.next(t, func(ev ChangeEvent) bool { return ev.Filename == target })
	if ev.Event != "ENTRY_CREATE" {
		t.Errorf("Event = %s, want ENTRY_CREATE", ev.Event)
	}
}

func TestCreateModifyDeleteSequence(t *testing.T) {
	root := resolvedTempDir(t)
	w, sink, _ := startWatcher(t, Config{Roots: []string{root}, Enabled: true})

	target := filepath.Join(root, "style.css")

	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	if closeErr := f.Close(); closeErr != nil {
		t.Fatalf("failed to close file: %v", closeErr)
	}
	sink.next(t, func(ev ChangeEvent) bool { return ev.Filename == target })

	f, err = os.OpenFile(target, os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		t.Fatalf("failed to open file: %v", err)
	}
	if _, writeErr := f.WriteString("body{}"); writeErr != nil {
		t.Fatalf("failed to write file: %v", writeErr)
	}
	if closeErr := f.Close(); closeErr != nil {
		t.Fatalf("failed to close file: %v", closeErr)
	}
	sink.next(t, func(ev ChangeEvent) bool { return ev.Filename == target })

	if removeErr := os.Remove(target); removeErr != nil {
		t.Fatalf("failed to remove file: %v", removeErr)
	}
	sink.next(t, func(ev ChangeEvent) bool { return ev.Filename == target })

	// Give stray notifications a chance to show up.
	time.Sleep(200 * time.Millisecond)

	var kinds []string
	for _, ev := range sink.Events() {
		if ev.Filename == target {
			kinds = append(kinds, ev.Event)
		}
	}

	want := []string{"ENTRY_CREATE", "ENTRY_MODIFY", "ENTRY_DELETE"}
	if strings.Join(kinds, ",") != strings.Join(want, ",") {
		t.Errorf("event kinds = %v, want %v", kinds, want)
	}

	if w.State() != StateRunning {
		t.Errorf("State() = %s, want running", w.State())
	}
}

func TestOnlyPublicKindsAreEmitted(t *testing.T) {
	root := resolvedTempDir(t)
	_, sink, _ := startWatcher(t, Config{Roots: []string{root}, Enabled: true})

	target := filepath.Join(root, "index.html")
	writeFile(t, target, "<html>")
	if err := os.Chmod(target, 0400); err != nil {
		t.Fatalf("failed to chmod: %v", err)
	}
	if err := os.Rename(target, target+".bak"); err != nil {
		t.Fatalf("failed to rename: %v", err)
	}
	if err := os.Remove(target + ".bak"); err != nil {
		t.Fatalf("failed to remove: %v", err)
	}

	sink.next(t, func(ev ChangeEvent) bool {
		return ev.Filename == target+".bak" && ev.Event == "ENTRY_DELETE"
	})

	allowed := map[string]bool{"ENTRY_CREATE": true, "ENTRY_MODIFY": true, "ENTRY_DELETE": true}
	for _, ev := range sink.Events() {
		if !allowed[ev.Event] {
			t.Errorf("unexpected event kind %q for %s", ev.Event, ev.Filename)
		}
	}
}

func TestRootsAreIndependent(t *testing.T) {
	base := resolvedTempDir(t)
	rootA := filepath.Join(base, "a")
	rootB := filepath.Join(base, "b")
	for _, dir := range []string{rootA, rootB} {
		if err := os.Mkdir(dir, 0700); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}

	_, sink, _ := startWatcher(t, Config{
		Roots:   ParseRoots(rootA + " , " + rootB),
		Enabled: true,
	})

	fileA := filepath.Join(rootA, "one.txt")
	writeFile(t, fileA, "a")
	sink.next(t, func(ev ChangeEvent) bool { return ev.Filename == fileA })
	time.Sleep(100 * time.Millisecond)

	for _, ev := range sink.Events() {
		if strings.HasPrefix(ev.Filename, rootB+string(filepath.Separator)) {
			t.Errorf("change under A produced event under B: %v", ev)
		}
	}

	before := len(sink.Events())
	fileB := filepath.Join(rootB, "two.txt")
	writeFile(t, fileB, "b")
	sink.next(t, func(ev ChangeEvent) bool { return ev.Filename == fileB })
	time.Sleep(100 * time.Millisecond)

	for _, ev := range sink.Events()[before:] {
		if strings.HasPrefix(ev.Filename, rootA+string(filepath.Separator)) {
			t.Errorf("change under B produced event under A: %v", ev)
		}
	}
}

func TestRootDeletionStopsWatcher(t *testing.T) {
	base := resolvedTempDir(t)
	root := filepath.Join(base, "site")
	sibling := filepath.Join(base, "other")
	for _, dir := range []string{filepath.Join(root, "css"), sibling} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}

	w, _, _ := startWatcher(t, Config{Roots: []string{root, sibling}, Enabled: true})

	if err := os.RemoveAll(root); err != nil {
		t.Fatalf("failed to remove root: %v", err)
	}

	outcome := waitForStop(t, w)
	if outcome.Reason != ReasonInvalidated {
		t.Errorf("Reason = %s, want invalidated", outcome.Reason)
	}
	if !strings.HasPrefix(outcome.Invalidated, root) {
		t.Errorf("Invalidated = %q, want path under %s", outcome.Invalidated, root)
	}
	if w.State() != StateStopped {
		t.Errorf("State() = %s, want stopped", w.State())
	}
}

func TestSubdirectoryDeletionIsForwardedOnce(t *testing.T) {
	root := resolvedTempDir(t)
	sub := filepath.Join(root, "js")
	if err := os.Mkdir(sub, 0700); err != nil {
		t.Fatalf("failed to create %s: %v", sub, err)
	}

	w, sink, _ := startWatcher(t, Config{Roots: []string{root}, Enabled: true})

	if err := os.Remove(sub); err != nil {
		t.Fatalf("failed to remove %s: %v", sub, err)
	}

	outcome := waitForStop(t, w)
	if outcome.Reason != ReasonInvalidated {
		t.Errorf("Reason = %s, want invalidated", outcome.Reason)
	}
	if outcome.Invalidated != sub {
		t.Errorf("Invalidated = %q, want %q", outcome.Invalidated, sub)
	}

	deletes := 0
	for _, ev := range sink.Events() {
		if ev.Filename == sub && ev.Event == "ENTRY_DELETE" {
			deletes++
		}
	}
	if deletes != 1 {
		t.Errorf("got %d ENTRY_DELETE for %s, want 1 (events %v)", deletes, sub, sink.Events())
	}
}

func TestDisabledWatcherForwardsNothing(t *testing.T) {
	root := resolvedTempDir(t)
	sink := newRecordingSink()
	w := New(Config{Roots: []string{root}, Enabled: false}, sink, logger.Noop())

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	outcome := waitForStop(t, w)
	if outcome.Reason != ReasonDisabled {
		t.Errorf("Reason = %s, want disabled", outcome.Reason)
	}

	writeFile(t, filepath.Join(root, "late.txt"), "x")
	time.Sleep(200 * time.Millisecond)

	if n := len(sink.Events()); n != 0 {
		t.Errorf("got %d events from disabled watcher, want 0", n)
	}
}

func TestDisableStopsAfterNextBatch(t *testing.T) {
	root := resolvedTempDir(t)
	w, _, _ := startWatcher(t, Config{Roots: []string{root}, Enabled: true})

	w.Disable()
	writeFile(t, filepath.Join(root, "wake.txt"), "x")

	outcome := waitForStop(t, w)
	if outcome.Reason != ReasonDisabled {
		t.Errorf("Reason = %s, want disabled", outcome.Reason)
	}
}

func TestEquivalentRootsRegisterOnce(t *testing.T) {
	base := resolvedTempDir(t)
	target := filepath.Join(base, "a", "b")
	if err := os.MkdirAll(target, 0700); err != nil {
		t.Fatalf("failed to create dirs: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() error = %v", err)
	}
	if chErr := os.Chdir(base); chErr != nil {
		t.Fatalf("Chdir() error = %v", chErr)
	}
	defer func() {
		if chErr := os.Chdir(wd); chErr != nil {
			t.Errorf("failed to restore working directory: %v", chErr)
		}
	}()

	first, err := ResolveRoot("./a/../a/b")
	if err != nil {
		t.Fatalf("ResolveRoot() error = %v", err)
	}
	second, err := ResolveRoot("a/b")
	if err != nil {
		t.Fatalf("ResolveRoot() error = %v", err)
	}
	if first != second || first != target {
		t.Errorf("ResolveRoot() = %q and %q, want %q", first, second, target)
	}

	w, _, _ := startWatcher(t, Config{
		Roots:   ParseRoots("./a/../a/b,a/b"),
		Enabled: true,
	})

	got := w.Registrations()
	if len(got) != 1 || got[0] != target {
		t.Errorf("Registrations() = %v, want [%s]", got, target)
	}
}

func TestMissingRootIsSkipped(t *testing.T) {
	root := resolvedTempDir(t)
	missing := filepath.Join(root, "does-not-exist")

	w, sink, cancel := startWatcher(t, Config{Roots: []string{missing, root}, Enabled: true})

	got := w.Registrations()
	if len(got) != 1 || got[0] != root {
		t.Errorf("Registrations() = %v, want [%s]", got, root)
	}

	target := filepath.Join(root, "ok.txt")
	writeFile(t, target, "x")
	sink.next(t, func(ev ChangeEvent) bool { return ev.Filename == target })

	cancel()
	outcome := waitForStop(t, w)
	if outcome.Reason != ReasonInterrupted {
		t.Errorf("Reason = %s, want interrupted", outcome.Reason)
	}
	if len(outcome.Skipped) != 1 || outcome.Skipped[0].Path != missing {
		t.Errorf("Skipped = %v, want [%s]", outcome.Skipped, missing)
	}
	if outcome.Err != nil {
		t.Errorf("Err = %v, want nil for best-effort skip", outcome.Err)
	}
}

func TestFollowNewDirs(t *testing.T) {
	root := resolvedTempDir(t)
	_, sink, _ := startWatcher(t, Config{Roots: []string{root}, Enabled: true, FollowNewDirs: true})

	dir := filepath.Join(root, "assets")
	if err := os.Mkdir(dir, 0700); err != nil {
		t.Fatalf("failed to mkdir: %v", err)
	}
	sink.next(t, func(ev ChangeEvent) bool { return ev.Filename == dir })

	target := filepath.Join(dir, "logo.svg")
	writeFile(t, target, "<svg/>")

	ev := sink.next(t, func(ev ChangeEvent) bool { return ev.Filename == target })
	if ev.Event != "ENTRY_CREATE" {
		t.Errorf("Event = %s, want ENTRY_CREATE", ev.Event)
	}
}

func TestInterruptStopsWatcher(t *testing.T) {
	root := resolvedTempDir(t)
	w, _, cancel := startWatcher(t, Config{Roots: []string{root}, Enabled: true})

	cancel()

	outcome := waitForStop(t, w)
	if outcome.Reason != ReasonInterrupted {
		t.Errorf("Reason = %s, want interrupted", outcome.Reason)
	}
	if got := w.Registrations(); len(got) != 0 {
		t.Errorf("Registrations() after stop = %v, want none", got)
	}
}

func TestStartTwice(t *testing.T) {
	root := resolvedTempDir(t)
	w, _, _ := startWatcher(t, Config{Roots: []string{root}, Enabled: true})

	if err := w.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Start() error = %v, want ErrAlreadyStarted", err)
	}
	if _, err := w.Run(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Run() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestResolveRoot(t *testing.T) {
	base := resolvedTempDir(t)
	real := filepath.Join(base, "real")
	if err := os.Mkdir(real, 0700); err != nil {
		t.Fatalf("failed to mkdir: %v", err)
	}
	link := filepath.Join(base, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr error
	}{
		{"plain", real, real, nil},
		{"surrounding spaces", "  " + real + "  ", real, nil},
		{"dot segments", filepath.Join(real, "..", "real", "."), real, nil},
		{"symlink", link, real, nil},
		{"missing keeps absolute form", filepath.Join(base, "nope", "..", "gone"), filepath.Join(base, "gone"), nil},
		{"empty", "   ", "", ErrNoRoots},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveRoot(tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ResolveRoot(%q) error = %v, want %v", tt.token, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveRoot(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestParseRoots(t *testing.T) {
	tests := []struct {
		list string
		want []string
	}{
		{"a", []string{"a"}},
		{"a,b", []string{"a", "b"}},
		{" a , b ,c ", []string{"a", "b", "c"}},
		{"a,,b", []string{"a", "b"}},
		{"", []string{}},
		{" , ", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.list, func(t *testing.T) {
			got := ParseRoots(tt.list)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("ParseRoots(%q) = %q, want %q", tt.list, got, tt.want)
			}
		})
	}
}

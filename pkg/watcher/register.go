package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ResolveRoot turns a root token into an absolute, cleaned path with
// symlinks evaluated. Paths that do not exist keep their cleaned absolute
// form so registration can still be attempted.
func ResolveRoot(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrNoRoots
	}

	abs, err := filepath.Abs(token)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", token, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return abs, nil
		}
		return "", fmt.Errorf("failed to evaluate symlinks for %s: %w", abs, err)
	}

	return filepath.Clean(resolved), nil
}

// registerRoots resolves and registers every configured root.
func (w *Watcher) registerRoots() {
	for _, token := range w.config.Roots {
		root, err := ResolveRoot(token)
		if err != nil {
			w.skip(token, err)
			continue
		}

		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			// Best effort: a file or missing root is registered directly.
			w.addWatch(root, false)
			continue
		}

		w.registerTree(root)
	}
}

// registerTree registers root and every directory below it, pre-order.
// Unreadable subtrees are skipped and the walk continues.
func (w *Watcher) registerTree(root string) {
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && w.isRegistered(path) {
				// WalkDir calls back a second time when ReadDir fails.
				w.partial(path, err)
				return nil
			}
			w.skip(path, err)
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		w.addWatch(path, true)
		return nil
	})
	if walkErr != nil {
		w.skip(root, walkErr)
	}
}

// addWatch registers one path. A path is never registered twice.
func (w *Watcher) addWatch(path string, isDir bool) {
	w.mu.RLock()
	_, exists := w.registered[path]
	w.mu.RUnlock()
	if exists {
		return
	}

	if err := w.native.Add(path); err != nil {
		w.skip(path, err)
		return
	}

	w.mu.Lock()
	w.registered[path] = isDir
	w.mu.Unlock()
	delete(w.detached, path)

	w.logger.Debug("watch registered", "path", path, "dir", isDir)
}

// detach removes path and every registration below it.
func (w *Watcher) detach(path string) {
	prefix := path + string(filepath.Separator)

	w.mu.Lock()
	var removed []string
	for p := range w.registered {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(w.registered, p)
			removed = append(removed, p)
		}
	}
	w.mu.Unlock()

	for _, p := range removed {
		w.detached[p] = struct{}{}
		// The kernel drops watches on deleted directories itself.
		_ = w.native.Remove(p) // nolint:errcheck
		w.logger.Debug("watch detached", "path", p)
	}
}

func (w *Watcher) isRegistered(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.registered[path]
	return ok
}

func (w *Watcher) registeredCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.registered)
}

func (w *Watcher) skip(path string, err error) {
	w.outcome.Skipped = append(w.outcome.Skipped, PathError{Path: path, Err: err})
	w.logger.Warn("watch registration skipped", "path", path, "error", err)
}

func (w *Watcher) partial(path string, err error) {
	w.outcome.Partial = append(w.outcome.Partial, PathError{Path: path, Err: err})
	w.logger.Warn("watch registered without subdirectories", "path", path, "error", err)
}

// Registrations returns the currently registered paths, sorted.
func (w *Watcher) Registrations() []string {
	w.mu.RLock()
	paths := make([]string, 0, len(w.registered))
	for p := range w.registered {
		paths = append(paths, p)
	}
	w.mu.RUnlock()

	sort.Strings(paths)
	return paths
}

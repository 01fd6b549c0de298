package watcher

import "errors"

// Common errors returned by the watcher.
var (
	// ErrAlreadyStarted is returned when Start or Run is called on a
	// watcher that has already run.
	ErrAlreadyStarted = errors.New("watcher already started")

	// ErrNoRoots is returned when a root token is empty.
	ErrNoRoots = errors.New("no watch root given")
)

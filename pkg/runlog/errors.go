package runlog

import "errors"

var (
	// ErrRecordNotFound is returned when no record has the requested ID.
	ErrRecordNotFound = errors.New("run record not found")

	// ErrNilRecord is returned when Append is given nil.
	ErrNilRecord = errors.New("run record is nil")

	// ErrEmptyPath is returned when Open is given no database path.
	ErrEmptyPath = errors.New("database path is empty")
)

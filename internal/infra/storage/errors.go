package storage

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict: the row exists but is no longer in the state the write expected.
	ErrConflict = errors.New("conflict")
)

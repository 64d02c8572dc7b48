package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned when a metrics write does not follow the
	// stored version. With per-pool writer serialization in place this only
	// fires when two engine instances share a store without sharing locks.
	ErrVersionConflict = errors.New("version conflict: record was written concurrently")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

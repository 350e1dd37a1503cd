package store

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("already exists")
	// ErrStaleState is returned when a versioned row changed between read and write.
	ErrStaleState = errors.New("stale state: entity was modified concurrently")
)

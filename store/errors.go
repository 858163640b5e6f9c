package store

import "errors"

var (
	// ErrNotFound is returned when a record doesn't exist or has passed its
	// retention window.
	ErrNotFound = errors.New("corkboard: record not found")

	// ErrAlreadyExists is returned when Create races an existing live record.
	ErrAlreadyExists = errors.New("corkboard: record already exists")

	// ErrConcurrentModification is returned when a conditional write loses a
	// version race.
	ErrConcurrentModification = errors.New("corkboard: record was modified concurrently")
)

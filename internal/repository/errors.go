package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a conditional write lost a race: the row
	// no longer matched the expected prior state. Recoverable by reloading
	// and re-evaluating, not by retrying the same write.
	ErrConflict = errors.New("conditional write conflict")
)

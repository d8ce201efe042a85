package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no record exists for the requested key or ID.
	ErrNotFound = errors.New("engine: record not found")

	// ErrClosed is returned by operations on a closed coordinator.
	ErrClosed = errors.New("engine: closed")
)

// PersistenceError wraps a failure of the durable layer (WAL append, snapshot
// write, recovery) with the operation that triggered it.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("engine: %s: %v", e.Op, e.Err)
}

// Unwrap implements the errors.Unwrap interface.
func (e *PersistenceError) Unwrap() error { return e.Err }

func persistErr(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

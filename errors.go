package engramgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/engramgo/engine"
	"github.com/hupe1980/engramgo/model"
)

var (
	// ErrNotFound is returned when no record exists for the requested
	// coordinates, key, or ID.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")

	// ErrNoArchive is returned by archive operations when no archive
	// backend was configured.
	ErrNoArchive = errors.New("no archive configured")
)

// VectorizationError indicates the configured Vectorizer failed on an input.
// The store state is unchanged when this error is returned.
//
// The original underlying error can be accessed via errors.Unwrap.
type VectorizationError struct {
	Text  string
	cause error
}

func (e *VectorizationError) Error() string {
	return fmt.Sprintf("vectorization failed for %q: %v", model.Snippet(e.Text), e.cause)
}

func (e *VectorizationError) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, engine.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, engine.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}

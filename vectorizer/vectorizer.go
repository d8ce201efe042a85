// Package vectorizer defines the external collaborator that turns input text
// into a 9-dimensional coordinate vector and a short summary.
//
// The store core treats vectorization as an external concern: any
// implementation may be plugged in, but it must be deterministic for
// identical input, because the coordinate key derived from the vector is the
// store's primary key and collision behavior must be stable across runs.
package vectorizer

import (
	"context"

	"github.com/hupe1980/engramgo/coordinate"
)

// Result is the output of a vectorization call.
type Result struct {
	// Vector is the 9-dimensional coordinate representation of the text.
	Vector coordinate.Vector

	// Summary is a short human-readable summary of the text.
	Summary string

	// Confidence is the vectorizer's self-reported confidence in [0, 1].
	Confidence float64
}

// Vectorizer converts input text into a coordinate vector and summary.
// Implementations must be deterministic: identical text yields an identical
// Result across calls and across process restarts.
type Vectorizer interface {
	Vectorize(ctx context.Context, text string) (Result, error)
}

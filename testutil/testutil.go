// Package testutil provides deterministic helpers for exercising the store
// in tests: a table-driven vectorizer and coordinate constructors.
package testutil

import (
	"context"
	"fmt"

	"github.com/hupe1980/engramgo/coordinate"
	"github.com/hupe1980/engramgo/vectorizer"
)

// Vec builds a coordinate vector from up to nine axis values; missing axes
// are zero.
func Vec(vals ...float64) coordinate.Vector {
	var v coordinate.Vector
	copy(v[:], vals)
	return v
}

// StaticVectorizer maps exact input texts to fixed results. Unknown text is
// an error, so tests fail loudly on unplanned inputs.
type StaticVectorizer struct {
	Results map[string]vectorizer.Result
}

// NewStaticVectorizer creates a StaticVectorizer from a text-to-vector table.
// Summaries default to the text itself.
func NewStaticVectorizer(table map[string]coordinate.Vector) *StaticVectorizer {
	results := make(map[string]vectorizer.Result, len(table))
	for text, vec := range table {
		results[text] = vectorizer.Result{
			Vector:     vec,
			Summary:    text,
			Confidence: 1,
		}
	}
	return &StaticVectorizer{Results: results}
}

// Vectorize implements vectorizer.Vectorizer.
func (v *StaticVectorizer) Vectorize(_ context.Context, text string) (vectorizer.Result, error) {
	res, ok := v.Results[text]
	if !ok {
		return vectorizer.Result{}, fmt.Errorf("testutil: no vector registered for %q", text)
	}
	return res, nil
}

// FailingVectorizer always returns the configured error.
type FailingVectorizer struct {
	Err error
}

// Vectorize implements vectorizer.Vectorizer.
func (v FailingVectorizer) Vectorize(context.Context, string) (vectorizer.Result, error) {
	return vectorizer.Result{}, v.Err
}

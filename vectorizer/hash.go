package vectorizer

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"

	"github.com/hupe1980/engramgo/coordinate"
)

// ErrEmptyText is returned when the input contains no content to vectorize.
var ErrEmptyText = errors.New("vectorizer: empty text")

// summaryWords is the maximum number of words kept in the generated summary.
const summaryWords = 12

// Hash is a pure-algorithmic reference Vectorizer. Each axis is derived from
// an FNV-1a hash of the normalized text salted with the axis index, mapped
// into [-1, 1]. It is deterministic, dependency-free, and fast; it makes no
// claim to semantic quality and exists so the store can be exercised without
// an external embedding model.
type Hash struct{}

// Vectorize implements Vectorizer.
func (Hash) Vectorize(_ context.Context, text string) (Result, error) {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if normalized == "" {
		return Result{}, ErrEmptyText
	}

	var vec coordinate.Vector
	for i := range vec {
		h := fnv.New64a()
		h.Write([]byte{byte(i)}) //nolint:errcheck // hash.Hash never errors
		h.Write([]byte(normalized))
		vec[i] = axisValue(h.Sum64())
	}

	words := strings.Fields(text)
	summary := text
	if len(words) > summaryWords {
		summary = strings.Join(words[:summaryWords], " ") + "..."
	}

	// Longer inputs give the hash more signal to spread records apart.
	confidence := math.Min(1, 0.5+float64(len(words))/40)

	return Result{
		Vector:     vec,
		Summary:    summary,
		Confidence: confidence,
	}, nil
}

// axisValue maps a 64-bit hash onto [-1, 1].
func axisValue(h uint64) float64 {
	return float64(int64(h)) / math.MaxInt64
}

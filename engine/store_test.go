package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/engramgo/coordinate"
	"github.com/hupe1980/engramgo/model"
)

func TestMemoryStoreByteAccounting(t *testing.T) {
	s := NewMemoryStore()

	s.Put("a", &model.MemoryRecord{ID: 1}, 100)
	s.Put("b", &model.MemoryRecord{ID: 2}, 50)
	assert.Equal(t, int64(150), s.SizeBytes())
	assert.Equal(t, 2, s.Len())

	// Replacing a record adjusts by the size delta.
	s.Put("a", &model.MemoryRecord{ID: 3}, 70)
	assert.Equal(t, int64(120), s.SizeBytes())
	assert.Equal(t, 2, s.Len())

	_, ok := s.Delete("a")
	require.True(t, ok)
	assert.Equal(t, int64(50), s.SizeBytes())

	_, ok = s.Delete("a")
	assert.False(t, ok)
}

func TestMemoryStoreRange(t *testing.T) {
	s := NewMemoryStore()
	s.Put("a", &model.MemoryRecord{ID: 1}, 1)
	s.Put("b", &model.MemoryRecord{ID: 2}, 1)
	s.Put("c", &model.MemoryRecord{ID: 3}, 1)

	seen := map[coordinate.Key]uint64{}
	s.Range(func(key coordinate.Key, rec *model.MemoryRecord) bool {
		seen[key] = rec.ID
		return true
	})
	assert.Len(t, seen, 3)

	// Early exit.
	count := 0
	s.Range(func(coordinate.Key, *model.MemoryRecord) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}

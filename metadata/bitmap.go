package metadata

import (
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Filter is a set of equality conditions that must all match (AND logic).
type Filter map[string]any

// BitmapIndex is an inverted index from metadata term (key=value) to the set
// of record IDs carrying that term, backed by 64-bit Roaring Bitmaps.
//
// Only scalar top-level values (strings, bools, numbers) are indexed; nested
// maps and slices are stored on the record but not filterable.
type BitmapIndex struct {
	mu    sync.RWMutex
	terms map[string]*roaring64.Bitmap
}

// NewBitmapIndex creates an empty BitmapIndex.
func NewBitmapIndex() *BitmapIndex {
	return &BitmapIndex{
		terms: make(map[string]*roaring64.Bitmap),
	}
}

func term(key string, value any) (string, bool) {
	switch value.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return fmt.Sprintf("%s=%v", key, value), true
	default:
		return "", false
	}
}

// Add indexes all scalar terms of meta under the given record ID.
func (bi *BitmapIndex) Add(id uint64, meta Metadata) {
	if len(meta) == 0 {
		return
	}
	bi.mu.Lock()
	defer bi.mu.Unlock()

	for k, v := range meta {
		t, ok := term(k, v)
		if !ok {
			continue
		}
		bm, ok := bi.terms[t]
		if !ok {
			bm = roaring64.New()
			bi.terms[t] = bm
		}
		bm.Add(id)
	}
}

// Remove drops the record ID from all terms of meta.
func (bi *BitmapIndex) Remove(id uint64, meta Metadata) {
	if len(meta) == 0 {
		return
	}
	bi.mu.Lock()
	defer bi.mu.Unlock()

	for k, v := range meta {
		t, ok := term(k, v)
		if !ok {
			continue
		}
		if bm, ok := bi.terms[t]; ok {
			bm.Remove(id)
			if bm.IsEmpty() {
				delete(bi.terms, t)
			}
		}
	}
}

// Query returns the intersection of all filter terms as a bitmap of record
// IDs. An unknown term yields an empty bitmap. A nil or empty filter returns
// nil, meaning "no restriction".
func (bi *BitmapIndex) Query(f Filter) *roaring64.Bitmap {
	if len(f) == 0 {
		return nil
	}
	bi.mu.RLock()
	defer bi.mu.RUnlock()

	var result *roaring64.Bitmap
	for k, v := range f {
		t, ok := term(k, v)
		if !ok {
			return roaring64.New()
		}
		bm, ok := bi.terms[t]
		if !ok {
			return roaring64.New()
		}
		if result == nil {
			result = bm.Clone()
		} else {
			result.And(bm)
		}
	}
	return result
}

// Cardinality returns the number of distinct indexed terms.
func (bi *BitmapIndex) Cardinality() int {
	bi.mu.RLock()
	defer bi.mu.RUnlock()
	return len(bi.terms)
}

// Clear removes all terms from the index.
func (bi *BitmapIndex) Clear() {
	bi.mu.Lock()
	defer bi.mu.Unlock()
	bi.terms = make(map[string]*roaring64.Bitmap)
}

package engine

import (
	"sync"

	"github.com/hupe1980/engramgo/coordinate"
	"github.com/hupe1980/engramgo/model"
)

// Store is the in-memory record table keyed by coordinate key. The
// coordinator serializes writes; implementations only need to protect
// against concurrent readers.
type Store interface {
	// Put stores rec under key, replacing any existing record. payloadLen is
	// the encoded size of the record, used for byte accounting.
	Put(key coordinate.Key, rec *model.MemoryRecord, payloadLen int)

	// Get returns the record stored under key.
	Get(key coordinate.Key) (*model.MemoryRecord, bool)

	// Exists reports whether a record is stored under key.
	Exists(key coordinate.Key) bool

	// Delete removes the record under key and returns it.
	Delete(key coordinate.Key) (*model.MemoryRecord, bool)

	// Keys returns all stored coordinate keys in unspecified order.
	Keys() []coordinate.Key

	// Range calls fn for every stored record until fn returns false.
	Range(fn func(key coordinate.Key, rec *model.MemoryRecord) bool)

	// Len returns the number of stored records.
	Len() int

	// SizeBytes returns the sum of encoded record sizes.
	SizeBytes() int64
}

// MemoryStore is the map-backed Store. Records handed out by Get are shared;
// the coordinator's clone-and-swap merge discipline keeps them immutable from
// a reader's point of view.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[coordinate.Key]*model.MemoryRecord
	sizes   map[coordinate.Key]int
	bytes   int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[coordinate.Key]*model.MemoryRecord),
		sizes:   make(map[coordinate.Key]int),
	}
}

// Put implements Store.
func (s *MemoryStore) Put(key coordinate.Key, rec *model.MemoryRecord, payloadLen int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bytes += int64(payloadLen - s.sizes[key])
	s.sizes[key] = payloadLen
	s.records[key] = rec
}

// Get implements Store.
func (s *MemoryStore) Get(key coordinate.Key) (*model.MemoryRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	return rec, ok
}

// Exists implements Store.
func (s *MemoryStore) Exists(key coordinate.Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.records[key]
	return ok
}

// Keys implements Store.
func (s *MemoryStore) Keys() []coordinate.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]coordinate.Key, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	return keys
}

// Delete implements Store.
func (s *MemoryStore) Delete(key coordinate.Key) (*model.MemoryRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, false
	}
	s.bytes -= int64(s.sizes[key])
	delete(s.sizes, key)
	delete(s.records, key)
	return rec, true
}

// Range implements Store.
func (s *MemoryStore) Range(fn func(key coordinate.Key, rec *model.MemoryRecord) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for k, rec := range s.records {
		if !fn(k, rec) {
			return
		}
	}
}

// Len implements Store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// SizeBytes implements Store.
func (s *MemoryStore) SizeBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bytes
}

// Package model defines the shared data types of the memory store: records,
// links, link sets, and the lightweight cache and search result shapes.
package model

import (
	"time"

	"github.com/hupe1980/engramgo/coordinate"
	"github.com/hupe1980/engramgo/metadata"
)

// LinkKind distinguishes the two relationship types between records.
type LinkKind string

const (
	// LinkSuccession is a link to the immediately preceding inserted record.
	LinkSuccession LinkKind = "succession"

	// LinkRadial is a link to a recently cached record within the spatial
	// distance threshold.
	LinkRadial LinkKind = "radial"
)

// SnippetLen is the maximum length of the denormalized summary snippet
// carried on a link.
const SnippetLen = 100

// Snippet truncates s to SnippetLen characters, appending "..." when cut.
func Snippet(s string) string {
	if len(s) <= SnippetLen {
		return s
	}
	return s[:SnippetLen] + "..."
}

// Link is a directed relationship entry embedded in a record's LinkSet.
// The target's key and summary snippet are denormalized so a linked record
// can be presented without a second lookup.
type Link struct {
	TargetID  uint64         `json:"target_id"`
	TargetKey coordinate.Key `json:"target_key"`
	Snippet   string         `json:"snippet,omitempty"`
	Kind      LinkKind       `json:"kind"`
	Strength  float64        `json:"strength"`
	Distance  float64        `json:"distance"`
}

// LinkSet holds a record's outgoing and mirrored incoming links, split by
// kind. Total is derived and kept consistent by Add and Merge.
type LinkSet struct {
	Succession []Link `json:"succession,omitempty"`
	Radial     []Link `json:"radial,omitempty"`
	Total      int    `json:"total"`
}

// Add appends a single link into the sequence matching its kind.
func (ls *LinkSet) Add(l Link) {
	switch l.Kind {
	case LinkRadial:
		ls.Radial = append(ls.Radial, l)
	default:
		ls.Succession = append(ls.Succession, l)
	}
	ls.Total = len(ls.Succession) + len(ls.Radial)
}

// Merge appends incoming links into the appropriate sequences and recomputes
// the total. It is the single mutation path for deferred backward-link
// propagation and is independent of any storage layer.
func (ls *LinkSet) Merge(incoming []Link) {
	for _, l := range incoming {
		switch l.Kind {
		case LinkRadial:
			ls.Radial = append(ls.Radial, l)
		default:
			ls.Succession = append(ls.Succession, l)
		}
	}
	ls.Total = len(ls.Succession) + len(ls.Radial)
}

// All returns succession links followed by radial links.
func (ls LinkSet) All() []Link {
	out := make([]Link, 0, len(ls.Succession)+len(ls.Radial))
	out = append(out, ls.Succession...)
	out = append(out, ls.Radial...)
	return out
}

// Clone returns a deep copy of the link set.
func (ls LinkSet) Clone() LinkSet {
	cp := LinkSet{Total: ls.Total}
	if len(ls.Succession) > 0 {
		cp.Succession = make([]Link, len(ls.Succession))
		copy(cp.Succession, ls.Succession)
	}
	if len(ls.Radial) > 0 {
		cp.Radial = make([]Link, len(ls.Radial))
		copy(cp.Radial, ls.Radial)
	}
	return cp
}

// MemoryRecord is the unit of storage. ID, Text, Summary, and Vector are
// immutable once written; Links grows over time as backward links are merged.
type MemoryRecord struct {
	ID        uint64            `json:"id"`
	Text      string            `json:"text"`
	Summary   string            `json:"summary"`
	Vector    coordinate.Vector `json:"vector"`
	Key       coordinate.Key    `json:"key"`
	Metadata  metadata.Metadata `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Links     LinkSet           `json:"links"`
}

// Clone returns a deep copy of the record. Readers holding a record returned
// by the store never observe later link merges because merges operate on a
// clone and swap it in whole.
func (r *MemoryRecord) Clone() *MemoryRecord {
	cp := *r
	cp.Links = r.Links.Clone()
	cp.Metadata = r.Metadata.Clone()
	return &cp
}

// CacheEntry is the lightweight duplicate of a recently written record held
// by the recency cache. It is never the system of record.
type CacheEntry struct {
	ID      uint64
	Vector  coordinate.Vector
	Content string
	Key     coordinate.Key
}

// SearchResult pairs a record with its distance to the query vector.
type SearchResult struct {
	Record   *MemoryRecord
	Distance float64
}

// LinkedMemory pairs a link with its resolved target record.
type LinkedMemory struct {
	Link   Link
	Record *MemoryRecord
}

// Package link implements forward-link discovery over the recency window and
// the inversion of forward links into pending backward links.
//
// Discovery is a deliberate approximation: only the fixed-size recency window
// is searched, never the full store, bounding the cost of every insert to
// O(window) regardless of store size. Records that are close in space but
// distant in time are not linked.
package link

import (
	"sort"

	"github.com/hupe1980/engramgo/coordinate"
	"github.com/hupe1980/engramgo/model"
)

// Defaults for discovery configuration.
const (
	DefaultSuccessionStrength = 0.9
	DefaultRadialThreshold    = 0.6
	DefaultMaxRadialLinks     = 3
)

// Config holds the discovery parameters.
type Config struct {
	// SuccessionStrength is the fixed strength assigned to every succession
	// link, regardless of distance.
	SuccessionStrength float64

	// RadialThreshold is the maximum Euclidean distance for a cached entry to
	// qualify as a radial candidate.
	RadialThreshold float64

	// MaxRadialLinks caps the number of radial links kept per record.
	MaxRadialLinks int
}

func (c *Config) setDefaults() {
	if c.SuccessionStrength <= 0 {
		c.SuccessionStrength = DefaultSuccessionStrength
	}
	if c.RadialThreshold <= 0 {
		c.RadialThreshold = DefaultRadialThreshold
	}
	if c.MaxRadialLinks <= 0 {
		c.MaxRadialLinks = DefaultMaxRadialLinks
	}
}

// Discoverer produces forward link sets for new records.
type Discoverer struct {
	cfg Config
}

// NewDiscoverer creates a Discoverer, filling zero config fields with defaults.
func NewDiscoverer(cfg Config) *Discoverer {
	cfg.setDefaults()
	return &Discoverer{cfg: cfg}
}

// Config returns the effective configuration.
func (d *Discoverer) Config() Config { return d.cfg }

type radialCandidate struct {
	entry    model.CacheEntry
	pos      int // position in the window; higher = more recent
	distance float64
	strength float64
}

// Discover builds the forward LinkSet for a record at vec, given the recency
// window as it stood before the record's own cache push (oldest first).
//
// The most recent window entry becomes the single succession link at the
// fixed strength. Every other entry within RadialThreshold becomes a radial
// candidate with strength 1 - distance/threshold; candidates are ranked by
// strength descending with ties broken toward the more recently cached entry,
// and the top MaxRadialLinks survive.
func (d *Discoverer) Discover(vec coordinate.Vector, window []model.CacheEntry) model.LinkSet {
	var links model.LinkSet
	if len(window) == 0 {
		return links
	}

	prev := window[len(window)-1]
	links.Add(model.Link{
		TargetID:  prev.ID,
		TargetKey: prev.Key,
		Snippet:   model.Snippet(prev.Content),
		Kind:      model.LinkSuccession,
		Strength:  d.cfg.SuccessionStrength,
		Distance:  coordinate.Distance(vec, prev.Vector),
	})

	var candidates []radialCandidate
	for i, entry := range window[:len(window)-1] {
		dist := coordinate.Distance(vec, entry.Vector)
		if dist > d.cfg.RadialThreshold {
			continue
		}
		candidates = append(candidates, radialCandidate{
			entry:    entry,
			pos:      i,
			distance: dist,
			strength: 1 - dist/d.cfg.RadialThreshold,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].strength != candidates[j].strength {
			return candidates[i].strength > candidates[j].strength
		}
		return candidates[i].pos > candidates[j].pos // recency wins ties
	})

	if len(candidates) > d.cfg.MaxRadialLinks {
		candidates = candidates[:d.cfg.MaxRadialLinks]
	}

	for _, c := range candidates {
		links.Add(model.Link{
			TargetID:  c.entry.ID,
			TargetKey: c.entry.Key,
			Snippet:   model.Snippet(c.entry.Content),
			Kind:      model.LinkRadial,
			Strength:  c.strength,
			Distance:  c.distance,
		})
	}

	return links
}

// Invert turns a forward link from rec into the mirrored backward link that
// its target should carry. Kind, strength, and distance are preserved; the
// target fields point back at rec.
func Invert(l model.Link, rec *model.MemoryRecord) model.Link {
	snippet := rec.Summary
	if snippet == "" {
		snippet = rec.Text
	}
	return model.Link{
		TargetID:  rec.ID,
		TargetKey: rec.Key,
		Snippet:   model.Snippet(snippet),
		Kind:      l.Kind,
		Strength:  l.Strength,
		Distance:  l.Distance,
	}
}

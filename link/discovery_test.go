package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/engramgo/coordinate"
	"github.com/hupe1980/engramgo/model"
)

func vec(x float64) coordinate.Vector {
	return coordinate.Vector{x}
}

func windowEntry(id uint64, x float64) model.CacheEntry {
	v := vec(x)
	return model.CacheEntry{
		ID:      id,
		Vector:  v,
		Content: "content",
		Key:     coordinate.Encode(v),
	}
}

func TestDiscoverEmptyWindow(t *testing.T) {
	d := NewDiscoverer(Config{})

	links := d.Discover(vec(0), nil)
	assert.Equal(t, 0, links.Total)
}

func TestDiscoverSuccessionOnly(t *testing.T) {
	d := NewDiscoverer(Config{RadialThreshold: 0.3})

	// Single-entry window: the entry is the succession target, never radial.
	links := d.Discover(vec(0.1), []model.CacheEntry{windowEntry(1, 0)})

	require.Len(t, links.Succession, 1)
	assert.Empty(t, links.Radial)
	assert.Equal(t, uint64(1), links.Succession[0].TargetID)
	assert.Equal(t, DefaultSuccessionStrength, links.Succession[0].Strength)
	assert.InDelta(t, 0.1, links.Succession[0].Distance, 1e-9)
}

func TestDiscoverSuccessionIgnoresDistance(t *testing.T) {
	d := NewDiscoverer(Config{RadialThreshold: 0.3})

	// The most recent entry gets a succession link even when far outside the
	// radial threshold.
	links := d.Discover(vec(5), []model.CacheEntry{windowEntry(1, 0)})

	require.Len(t, links.Succession, 1)
	assert.Equal(t, DefaultSuccessionStrength, links.Succession[0].Strength)
}

func TestDiscoverRadialThreshold(t *testing.T) {
	d := NewDiscoverer(Config{RadialThreshold: 0.3})

	window := []model.CacheEntry{
		windowEntry(1, 0.2),  // dist 0.2, within threshold
		windowEntry(2, 0.9),  // dist 0.9, outside
		windowEntry(3, 0.45), // dist 0.45, outside
		windowEntry(4, 0.1),  // succession target
	}
	links := d.Discover(vec(0), window)

	require.Len(t, links.Radial, 1)
	assert.Equal(t, uint64(1), links.Radial[0].TargetID)
	assert.InDelta(t, 1-0.2/0.3, links.Radial[0].Strength, 1e-9)
}

func TestDiscoverRadialBound(t *testing.T) {
	d := NewDiscoverer(Config{RadialThreshold: 1.0, MaxRadialLinks: 2})

	window := []model.CacheEntry{
		windowEntry(1, 0.5),
		windowEntry(2, 0.1),
		windowEntry(3, 0.3),
		windowEntry(4, 0.0), // succession target
	}
	links := d.Discover(vec(0), window)

	require.Len(t, links.Radial, 2)
	// Strongest (closest) candidates win.
	assert.Equal(t, uint64(2), links.Radial[0].TargetID)
	assert.Equal(t, uint64(3), links.Radial[1].TargetID)
	assert.Equal(t, 3, links.Total)
}

func TestDiscoverRecencyTieBreak(t *testing.T) {
	d := NewDiscoverer(Config{RadialThreshold: 1.0, MaxRadialLinks: 1})

	// Two candidates at identical distance; the more recently cached wins.
	window := []model.CacheEntry{
		windowEntry(1, 0.5),
		windowEntry(2, 0.5),
		windowEntry(3, 0.0), // succession target
	}
	links := d.Discover(vec(0), window)

	require.Len(t, links.Radial, 1)
	assert.Equal(t, uint64(2), links.Radial[0].TargetID)
}

func TestDiscoverDefaults(t *testing.T) {
	d := NewDiscoverer(Config{})
	cfg := d.Config()

	assert.Equal(t, DefaultSuccessionStrength, cfg.SuccessionStrength)
	assert.Equal(t, DefaultRadialThreshold, cfg.RadialThreshold)
	assert.Equal(t, DefaultMaxRadialLinks, cfg.MaxRadialLinks)
}

func TestInvert(t *testing.T) {
	rec := &model.MemoryRecord{
		ID:      7,
		Text:    "full text",
		Summary: "summary",
		Key:     coordinate.Encode(vec(0.1)),
	}
	forward := model.Link{
		TargetID: 3,
		Kind:     model.LinkRadial,
		Strength: 0.5,
		Distance: 0.2,
	}

	back := Invert(forward, rec)

	assert.Equal(t, uint64(7), back.TargetID)
	assert.Equal(t, rec.Key, back.TargetKey)
	assert.Equal(t, "summary", back.Snippet)
	assert.Equal(t, model.LinkRadial, back.Kind)
	assert.Equal(t, 0.5, back.Strength)
	assert.Equal(t, 0.2, back.Distance)
}

func TestInvertFallsBackToText(t *testing.T) {
	rec := &model.MemoryRecord{ID: 7, Text: "only text"}
	back := Invert(model.Link{Kind: model.LinkSuccession}, rec)
	assert.Equal(t, "only text", back.Snippet)
}

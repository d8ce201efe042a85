package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/engramgo/cache"
	"github.com/hupe1980/engramgo/codec"
	"github.com/hupe1980/engramgo/coordinate"
	"github.com/hupe1980/engramgo/link"
	"github.com/hupe1980/engramgo/metadata"
	"github.com/hupe1980/engramgo/model"
	"github.com/hupe1980/engramgo/wal"
)

// DefaultBatchSize is the number of distinct contributing inserts that
// triggers an automatic flush of the pending backward-link queue.
const DefaultBatchSize = 100

const (
	walFileName      = "records.wal"
	snapshotFileName = "records.snapshot"
)

// Options configures a Coordinator.
type Options struct {
	// Dir is the directory holding the WAL and snapshot files.
	Dir string

	// Codec encodes persisted records. Nil means codec.Default.
	Codec codec.Codec

	// Link holds the link discovery parameters.
	Link link.Config

	// CacheCapacity is the recency window size. Zero means cache.DefaultCapacity.
	CacheCapacity int

	// BatchSize is the pending-queue flush trigger. Zero means DefaultBatchSize.
	BatchSize int

	// Mode is the initial durability posture.
	Mode Mode

	// WALCompress enables zstd compression of WAL payloads.
	WALCompress bool

	// SnapshotCompression selects the snapshot payload compression.
	SnapshotCompression Compression

	// Logger receives operational events. Nil means slog.Default.
	Logger *slog.Logger
}

// Stats is a point-in-time view of the coordinator's state.
type Stats struct {
	Records        int    `json:"records"`
	SizeBytes      int64  `json:"size_bytes"`
	NextID         uint64 `json:"next_id"`
	Mode           Mode   `json:"mode"`
	CacheLen       int    `json:"cache_len"`
	CacheCapacity  int    `json:"cache_capacity"`
	PendingTargets int    `json:"pending_targets"`
	PendingSources int    `json:"pending_sources"`
	Collisions     uint64 `json:"collisions"`
	Flushes        uint64 `json:"flushes"`
	FlushedTargets uint64 `json:"flushed_targets"`
	SkippedTargets uint64 `json:"skipped_targets"`
	IndexTerms     int    `json:"index_terms"`
	WALSize        int64  `json:"wal_size"`
}

// Coordinator owns the store's write path: it serializes mutations, maintains
// the recency window, the pending backward-link queue, the metadata index,
// and the WAL, and recovers all of them on open.
//
// Concurrency model: one writer at a time, any number of readers. Readers
// never see a half-applied mutation because link merges clone the target
// record and swap it in whole.
type Coordinator struct {
	mu sync.RWMutex

	opts    Options
	codec   codec.Codec
	logger  *slog.Logger
	store   *MemoryStore
	cache   *cache.RecencyCache
	pending *PendingQueue
	disc    *link.Discoverer
	index   *metadata.BitmapIndex
	log     *wal.WAL

	keyByID map[uint64]coordinate.Key
	nextID  uint64
	mode    Mode
	closed  bool

	collisions     uint64
	flushes        uint64
	flushedTargets uint64
	skippedTargets uint64
}

// Open loads the snapshot (if any), replays the WAL on top of it, rebuilds
// the in-memory indexes, and returns a ready Coordinator.
func Open(opts Options) (*Coordinator, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("engine: dir is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o700); err != nil {
		return nil, persistErr("create dir", err)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Coordinator{
		opts:    opts,
		codec:   opts.Codec,
		logger:  opts.Logger,
		store:   NewMemoryStore(),
		cache:   cache.New(opts.CacheCapacity),
		pending: NewPendingQueue(),
		disc:    link.NewDiscoverer(opts.Link),
		index:   metadata.NewBitmapIndex(),
		keyByID: make(map[uint64]coordinate.Key),
		nextID:  1,
		mode:    opts.Mode,
	}

	if err := c.recover(); err != nil {
		return nil, err
	}

	log, err := wal.Open(filepath.Join(opts.Dir, walFileName), wal.Options{
		Compress: opts.WALCompress,
		Mode:     opts.Mode.walMode(),
	})
	if err != nil {
		return nil, persistErr("open wal", err)
	}
	c.log = log

	if err := c.replayWAL(); err != nil {
		log.Close()
		return nil, err
	}

	c.rebuildIndexes()

	c.logger.Info("store opened",
		slog.String("dir", opts.Dir),
		slog.Int("records", c.store.Len()),
		slog.String("mode", c.mode.String()),
		slog.String("codec", c.codec.Name()),
	)
	return c, nil
}

func (c *Coordinator) recover() error {
	state, err := readSnapshot(filepath.Join(c.opts.Dir, snapshotFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return persistErr("read snapshot", err)
	}

	for _, rec := range state.Records {
		payload, err := c.codec.Marshal(rec)
		if err != nil {
			return persistErr("recover record", err)
		}
		c.store.Put(rec.Key, rec, len(payload))
	}
	if state.NextID > c.nextID {
		c.nextID = state.NextID
	}
	return nil
}

func (c *Coordinator) replayWAL() error {
	// A WAL file open happens after recover, so frames layer over the snapshot.
	err := c.log.Replay(func(e wal.Entry) error {
		key := coordinate.Key(e.Key)
		switch e.Op {
		case wal.OpPut:
			var rec model.MemoryRecord
			if err := c.codec.Unmarshal(e.Payload, &rec); err != nil {
				return fmt.Errorf("decode record %s: %w", key, err)
			}
			c.store.Put(key, &rec, len(e.Payload))
			if rec.ID >= c.nextID {
				c.nextID = rec.ID + 1
			}
		case wal.OpDelete:
			c.store.Delete(key)
		}
		return nil
	})
	if err != nil {
		return persistErr("replay wal", err)
	}
	return nil
}

func (c *Coordinator) rebuildIndexes() {
	c.store.Range(func(key coordinate.Key, rec *model.MemoryRecord) bool {
		c.keyByID[rec.ID] = key
		c.index.Add(rec.ID, rec.Metadata)
		if rec.ID >= c.nextID {
			c.nextID = rec.ID + 1
		}
		return true
	})
}

// Insert stores a new record at the rounded coordinate of vec, discovers its
// forward links against the recency window, and queues the mirrored backward
// links for the next batch flush.
//
// When a record already exists at the coordinate, the new record replaces it
// (last write wins); the event is logged and counted but is not an error.
func (c *Coordinator) Insert(text, summary string, vec coordinate.Vector, meta metadata.Metadata) (*model.MemoryRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	rounded := vec.Round()
	key := coordinate.Encode(rounded)

	if prev, ok := c.store.Get(key); ok {
		c.collisions++
		c.index.Remove(prev.ID, prev.Metadata)
		delete(c.keyByID, prev.ID)
		c.pending.Drop(key)
		c.logger.Warn("coordinate collision, replacing record",
			slog.String("key", key.String()),
			slog.Uint64("previous_id", prev.ID),
		)
	}

	rec := &model.MemoryRecord{
		ID:        c.nextID,
		Text:      text,
		Summary:   summary,
		Vector:    rounded,
		Key:       key,
		Metadata:  meta.Sanitize(),
		CreatedAt: time.Now().UTC(),
	}

	window := c.cache.Entries()
	rec.Links = c.disc.Discover(rounded, window)

	payload, err := c.codec.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("engine: encode record: %w", err)
	}
	if _, err := c.log.Append(wal.OpPut, string(key), payload); err != nil {
		return nil, persistErr("wal append", err)
	}

	c.store.Put(key, rec, len(payload))
	c.keyByID[rec.ID] = key
	c.index.Add(rec.ID, rec.Metadata)
	c.nextID++

	c.cache.Push(model.CacheEntry{
		ID:      rec.ID,
		Vector:  rounded,
		Content: rec.Text,
		Key:     key,
	})

	if links := rec.Links.All(); len(links) > 0 {
		for _, l := range links {
			c.pending.Enqueue(l.TargetID, l.TargetKey, link.Invert(l, rec))
		}
		c.pending.MarkSource()

		if c.pending.Sources() >= c.opts.BatchSize {
			// An auto-flush failure must not fail the insert that tripped it;
			// the queue is kept for retry at the next trigger or mode switch.
			if err := c.flushPendingLocked(); err != nil {
				c.logger.Error("automatic backward-link flush failed",
					slog.Any("error", err),
					slog.Int("pending_targets", c.pending.Len()),
				)
			}
		}
	}

	return rec.Clone(), nil
}

// flushPendingLocked applies all queued backward-link updates as one batch:
// clone each target, merge its links, log the merged records with a single
// WAL sync boundary, then swap the clones in. A target that disappeared or
// fails to encode is skipped; the batch carries on.
func (c *Coordinator) flushPendingLocked() error {
	updates := c.pending.Updates()
	if len(updates) == 0 {
		c.pending.Clear()
		return nil
	}

	type applied struct {
		key     coordinate.Key
		rec     *model.MemoryRecord
		payload int
	}

	var (
		frames []wal.Entry
		ready  []applied
	)
	for _, u := range updates {
		rec, ok := c.store.Get(u.TargetKey)
		if !ok || rec.ID != u.TargetID {
			// Deleted or replaced since the links were queued.
			c.skippedTargets++
			continue
		}

		merged := rec.Clone()
		merged.Links.Merge(u.Links)

		payload, err := c.codec.Marshal(merged)
		if err != nil {
			c.skippedTargets++
			c.logger.Warn("skipping backward-link target",
				slog.String("key", u.TargetKey.String()),
				slog.Any("error", err),
			)
			continue
		}

		frames = append(frames, wal.Entry{
			Op:      wal.OpPut,
			Key:     string(u.TargetKey),
			Payload: payload,
		})
		ready = append(ready, applied{key: u.TargetKey, rec: merged, payload: len(payload)})
	}

	if err := c.log.AppendBatch(frames); err != nil {
		return persistErr("wal batch append", err)
	}

	for _, a := range ready {
		c.store.Put(a.key, a.rec, a.payload)
	}

	c.flushes++
	c.flushedTargets += uint64(len(ready))
	c.pending.Clear()

	c.logger.Debug("flushed backward links",
		slog.Int("targets", len(ready)),
	)
	return nil
}

// FlushPending applies all queued backward-link updates immediately.
func (c *Coordinator) FlushPending() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	return c.flushPendingLocked()
}

// Retrieve returns the record stored at the rounded coordinate of vec.
func (c *Coordinator) Retrieve(vec coordinate.Vector) (*model.MemoryRecord, error) {
	return c.RetrieveKey(coordinate.Encode(vec.Round()))
}

// RetrieveKey returns the record stored under key.
func (c *Coordinator) RetrieveKey(key coordinate.Key) (*model.MemoryRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrClosed
	}
	rec, ok := c.store.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// GetByID returns the record with the given ID.
func (c *Coordinator) GetByID(id uint64) (*model.MemoryRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrClosed
	}
	key, ok := c.keyByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	rec, ok := c.store.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// SearchSimilar returns up to k records within maxDistance of vec, closest
// first. A non-empty filter restricts candidates to records whose metadata
// matches every filter term. maxDistance <= 0 means unbounded.
func (c *Coordinator) SearchSimilar(vec coordinate.Vector, k int, maxDistance float64, filter metadata.Filter) ([]model.SearchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrClosed
	}
	if k <= 0 {
		return nil, nil
	}

	allowed := c.index.Query(filter)

	var results []model.SearchResult
	c.store.Range(func(_ coordinate.Key, rec *model.MemoryRecord) bool {
		if allowed != nil && !allowed.Contains(rec.ID) {
			return true
		}
		dist := coordinate.Distance(vec, rec.Vector)
		if maxDistance > 0 && dist > maxDistance {
			return true
		}
		results = append(results, model.SearchResult{Record: rec, Distance: dist})
		return true
	})

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Record.ID < results[j].Record.ID
	})
	if len(results) > k {
		results = results[:k]
	}
	for i := range results {
		results[i].Record = results[i].Record.Clone()
	}
	return results, nil
}

// SearchNearest returns the k closest records to vec regardless of distance.
// An empty store yields ErrNotFound.
func (c *Coordinator) SearchNearest(vec coordinate.Vector, k int) ([]model.SearchResult, error) {
	results, err := c.SearchSimilar(vec, k, 0, nil)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}
	return results, nil
}

// SearchContent returns up to limit records whose text or summary contains
// query, case-insensitively, most recent first. limit <= 0 means no limit.
func (c *Coordinator) SearchContent(query string, limit int) ([]*model.MemoryRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrClosed
	}
	needle := strings.ToLower(query)

	var matches []*model.MemoryRecord
	c.store.Range(func(_ coordinate.Key, rec *model.MemoryRecord) bool {
		if strings.Contains(strings.ToLower(rec.Text), needle) ||
			strings.Contains(strings.ToLower(rec.Summary), needle) {
			matches = append(matches, rec)
		}
		return true
	})

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].ID > matches[j].ID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	for i := range matches {
		matches[i] = matches[i].Clone()
	}
	return matches, nil
}

// FindByMetadata returns the records whose metadata matches every filter
// term, newest first.
func (c *Coordinator) FindByMetadata(filter metadata.Filter) ([]*model.MemoryRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrClosed
	}
	allowed := c.index.Query(filter)
	if allowed == nil {
		return nil, nil
	}

	var matches []*model.MemoryRecord
	it := allowed.Iterator()
	for it.HasNext() {
		key, ok := c.keyByID[it.Next()]
		if !ok {
			continue
		}
		if rec, ok := c.store.Get(key); ok {
			matches = append(matches, rec.Clone())
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].ID > matches[j].ID
	})
	return matches, nil
}

// LinkedMemories resolves the links of the record under key into their target
// records. kind restricts the result to one link kind (empty means both);
// minStrength drops weaker links. Links whose target no longer exists are
// omitted.
func (c *Coordinator) LinkedMemories(key coordinate.Key, kind model.LinkKind, minStrength float64) ([]model.LinkedMemory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrClosed
	}
	rec, ok := c.store.Get(key)
	if !ok {
		return nil, ErrNotFound
	}

	var out []model.LinkedMemory
	for _, l := range rec.Links.All() {
		if kind != "" && l.Kind != kind {
			continue
		}
		if l.Strength < minStrength {
			continue
		}
		target, ok := c.store.Get(l.TargetKey)
		if !ok || target.ID != l.TargetID {
			continue
		}
		out = append(out, model.LinkedMemory{Link: l, Record: target.Clone()})
	}
	return out, nil
}

// Delete removes the record under key, its index entries, and any backward
// links still queued for it.
func (c *Coordinator) Delete(key coordinate.Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	rec, ok := c.store.Get(key)
	if !ok {
		return ErrNotFound
	}

	if _, err := c.log.Append(wal.OpDelete, string(key), nil); err != nil {
		return persistErr("wal append", err)
	}

	c.store.Delete(key)
	c.index.Remove(rec.ID, rec.Metadata)
	delete(c.keyByID, rec.ID)
	c.pending.Drop(key)
	return nil
}

// Mode returns the current durability posture.
func (c *Coordinator) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// SwitchToDurable drains the pending backward-link queue, then switches the
// WAL to per-write fsync. When it returns, every prior mutation is durable
// and every queued link is visible.
func (c *Coordinator) SwitchToDurable() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if err := c.flushPendingLocked(); err != nil {
		return err
	}
	if err := c.log.SetMode(wal.ModeSync); err != nil {
		return persistErr("set wal mode", err)
	}
	c.mode = ModeDurable
	c.logger.Info("switched durability mode", slog.String("mode", c.mode.String()))
	return nil
}

// SwitchToBulk switches the WAL back to buffered appends.
func (c *Coordinator) SwitchToBulk() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if err := c.log.SetMode(wal.ModeBuffered); err != nil {
		return persistErr("set wal mode", err)
	}
	c.mode = ModeBulk
	c.logger.Info("switched durability mode", slog.String("mode", c.mode.String()))
	return nil
}

// Checkpoint drains the pending queue, writes an atomic snapshot of the full
// store, and truncates the WAL. After a checkpoint, recovery starts from the
// snapshot alone.
func (c *Coordinator) Checkpoint() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	return c.checkpointLocked()
}

func (c *Coordinator) checkpointLocked() error {
	if err := c.flushPendingLocked(); err != nil {
		return err
	}

	state := &snapshotState{NextID: c.nextID}
	c.store.Range(func(_ coordinate.Key, rec *model.MemoryRecord) bool {
		state.Records = append(state.Records, rec)
		return true
	})

	path := filepath.Join(c.opts.Dir, snapshotFileName)
	if err := writeSnapshot(path, c.codec, c.opts.SnapshotCompression, state); err != nil {
		return persistErr("write snapshot", err)
	}
	if err := c.log.Truncate(); err != nil {
		return persistErr("truncate wal", err)
	}

	c.logger.Info("checkpoint complete",
		slog.Int("records", len(state.Records)),
		slog.String("compression", c.opts.SnapshotCompression.String()),
	)
	return nil
}

// SnapshotTo writes a snapshot of the current state to path without touching
// the WAL. Used for archival exports.
func (c *Coordinator) SnapshotTo(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if err := c.flushPendingLocked(); err != nil {
		return err
	}

	state := &snapshotState{NextID: c.nextID}
	c.store.Range(func(_ coordinate.Key, rec *model.MemoryRecord) bool {
		state.Records = append(state.Records, rec)
		return true
	})
	if err := writeSnapshot(path, c.codec, c.opts.SnapshotCompression, state); err != nil {
		return persistErr("write snapshot", err)
	}
	return nil
}

// Stats returns a point-in-time view of the coordinator.
func (c *Coordinator) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		Records:        c.store.Len(),
		SizeBytes:      c.store.SizeBytes(),
		NextID:         c.nextID,
		Mode:           c.mode,
		CacheLen:       c.cache.Len(),
		CacheCapacity:  c.cache.Capacity(),
		PendingTargets: c.pending.Len(),
		PendingSources: c.pending.Sources(),
		Collisions:     c.collisions,
		Flushes:        c.flushes,
		FlushedTargets: c.flushedTargets,
		SkippedTargets: c.skippedTargets,
		IndexTerms:     c.index.Cardinality(),
		WALSize:        c.log.Size(),
	}
}

// Close checkpoints the store and closes the WAL. The coordinator is
// unusable afterwards.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	err := c.checkpointLocked()
	if cerr := c.log.Close(); err == nil {
		err = cerr
	}
	c.cache.Clear()
	return err
}

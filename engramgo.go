// Package engramgo provides an embedded, coordinate-indexed memory store
// with durable persistence and automatic relationship discovery.
//
// Every stored text is vectorized into a 9-dimensional coordinate; the
// coordinate, rounded to three decimals, is the record's primary key. New
// records are linked to recent ones in two ways:
//
//   - a succession link to the immediately preceding record, and
//   - up to a handful of radial links to recent records within a spatial
//     distance threshold.
//
// Forward links are written with the record; the mirrored backward links are
// queued and applied in batches, so a store never pays a read-modify-write
// on its link targets.
//
// Durability comes from a write-ahead log plus snapshots, with two postures
// switchable at runtime:
//
//   - Bulk (default): buffered WAL appends, maximum ingestion throughput.
//   - Durable: every mutation fsynced before the write returns.
//
// # Quick Start
//
//	ctx := context.Background()
//	es, err := engramgo.Open("./data",
//	    engramgo.WithLogLevel(slog.LevelInfo),
//	)
//	if err != nil {
//	    panic(err)
//	}
//	defer es.Close()
//
//	rec, err := es.Store(ctx, "the first memory", metadata.Metadata{"topic": "intro"})
//
//	results, err := es.SearchSimilar(ctx, rec.Vector, 5, 0, nil)
//
// Switch postures around a bulk load:
//
//	es.SwitchToBulk(ctx)
//	// ... high-volume ingestion ...
//	es.SwitchToDurable(ctx) // drains queued links, fsyncs from here on
package engramgo

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/engramgo/blobstore"
	"github.com/hupe1980/engramgo/coordinate"
	"github.com/hupe1980/engramgo/engine"
	"github.com/hupe1980/engramgo/metadata"
	"github.com/hupe1980/engramgo/model"
	"github.com/hupe1980/engramgo/resource"
	"github.com/hupe1980/engramgo/vectorizer"
)

// Mode is the store's durability posture.
type Mode = engine.Mode

// Durability postures. See the package documentation.
const (
	Bulk    = engine.ModeBulk
	Durable = engine.ModeDurable
)

// ModeInfo describes the current durability posture.
type ModeInfo = engine.ModeInfo

// Stats is a point-in-time view of the store's state.
type Stats = engine.Stats

// EngramStore is a persistent memory store indexed by semantic coordinates.
// Safe for concurrent use: one writer at a time, any number of readers.
type EngramStore struct {
	coordinator   *engine.Coordinator
	vectorizer    vectorizer.Vectorizer
	metrics       MetricsCollector
	logger        *Logger
	archive       blobstore.BlobStore
	archivePrefix string
	resources     *resource.Controller
}

// Open opens or creates a store in dir.
func Open(dir string, optFns ...Option) (*EngramStore, error) {
	o := applyOptions(optFns)

	coordinator, err := engine.Open(engine.Options{
		Dir:                 dir,
		Codec:               o.codec,
		Link:                o.linkConfig,
		CacheCapacity:       o.cacheCapacity,
		BatchSize:           o.batchSize,
		Mode:                o.mode,
		WALCompress:         o.walCompress,
		SnapshotCompression: o.snapshotCompression,
		Logger:              o.logger.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &EngramStore{
		coordinator:   coordinator,
		vectorizer:    o.vectorizer,
		metrics:       o.metricsCollector,
		logger:        o.logger,
		archive:       o.archive,
		archivePrefix: o.archivePrefix,
		resources:     o.resources,
	}, nil
}

// Store vectorizes text and persists it as a new record, discovering links
// against the recency window. The returned record carries its assigned ID,
// coordinate key, and forward links.
//
// If a record already exists at the derived coordinate, it is replaced.
func (es *EngramStore) Store(ctx context.Context, text string, meta metadata.Metadata) (*model.MemoryRecord, error) {
	start := time.Now()

	rec, err := es.store(ctx, text, meta)
	es.metrics.RecordStore(time.Since(start), err)
	if rec != nil {
		es.logger.LogStore(ctx, rec.ID, rec.Key.String(), rec.Links.Total, err)
	} else {
		es.logger.LogStore(ctx, 0, "", 0, err)
	}
	return rec, err
}

func (es *EngramStore) store(ctx context.Context, text string, meta metadata.Metadata) (*model.MemoryRecord, error) {
	res, err := es.vectorizer.Vectorize(ctx, text)
	if err != nil {
		return nil, &VectorizationError{Text: text, cause: err}
	}

	rec, err := es.coordinator.Insert(text, res.Summary, res.Vector, meta)
	if err != nil {
		return nil, translateError(err)
	}
	return rec, nil
}

// BulkItem is one input of a BulkStore call.
type BulkItem struct {
	Text     string
	Metadata metadata.Metadata
}

// BulkResult pairs a BulkStore input with its outcome.
type BulkResult struct {
	Record *model.MemoryRecord
	Err    error
}

// BulkStore stores many texts. Vectorization runs in parallel, bounded by
// the resource controller; records are then written in input order, so
// succession links follow the order of items.
//
// A failed item does not abort the batch; inspect each BulkResult.
func (es *EngramStore) BulkStore(ctx context.Context, items []BulkItem) ([]BulkResult, error) {
	start := time.Now()

	results := make([]BulkResult, len(items))
	vectorized := make([]vectorizer.Result, len(items))

	g, gctx := errgroup.WithContext(ctx)
	for i := range items {
		if err := es.resources.Acquire(gctx); err != nil {
			return nil, err
		}
		g.Go(func() error {
			defer es.resources.Release()
			res, err := es.vectorizer.Vectorize(gctx, items[i].Text)
			if err != nil {
				results[i].Err = &VectorizationError{Text: items[i].Text, cause: err}
				return nil
			}
			vectorized[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for i := range items {
		if results[i].Err != nil {
			failed++
			continue
		}
		rec, err := es.coordinator.Insert(items[i].Text, vectorized[i].Summary, vectorized[i].Vector, items[i].Metadata)
		if err != nil {
			results[i].Err = translateError(err)
			failed++
			continue
		}
		results[i].Record = rec
	}

	es.metrics.RecordBulkStore(len(items), failed, time.Since(start))
	es.logger.LogBulkStore(ctx, len(items), failed)
	return results, nil
}

// RetrieveByCoordinates returns the record stored at the rounded coordinate
// of vec.
func (es *EngramStore) RetrieveByCoordinates(vec coordinate.Vector) (*model.MemoryRecord, error) {
	rec, err := es.coordinator.Retrieve(vec)
	return rec, translateError(err)
}

// RetrieveByKey returns the record stored under the given coordinate key.
func (es *EngramStore) RetrieveByKey(key coordinate.Key) (*model.MemoryRecord, error) {
	rec, err := es.coordinator.RetrieveKey(key)
	return rec, translateError(err)
}

// GetByID returns the record with the given ID.
func (es *EngramStore) GetByID(id uint64) (*model.MemoryRecord, error) {
	rec, err := es.coordinator.GetByID(id)
	return rec, translateError(err)
}

// SearchSimilar returns up to k records within maxDistance of vec, closest
// first. maxDistance <= 0 means unbounded. A non-empty filter restricts
// results to records whose metadata matches every term.
func (es *EngramStore) SearchSimilar(ctx context.Context, vec coordinate.Vector, k int, maxDistance float64, filter metadata.Filter) ([]model.SearchResult, error) {
	start := time.Now()

	results, err := es.coordinator.SearchSimilar(vec, k, maxDistance, filter)
	err = translateError(err)

	es.metrics.RecordSearch(k, time.Since(start), err)
	es.logger.LogSearch(ctx, k, len(results), err)
	return results, err
}

// SearchText vectorizes query and searches for similar records.
func (es *EngramStore) SearchText(ctx context.Context, query string, k int, maxDistance float64, filter metadata.Filter) ([]model.SearchResult, error) {
	res, err := es.vectorizer.Vectorize(ctx, query)
	if err != nil {
		return nil, &VectorizationError{Text: query, cause: err}
	}
	return es.SearchSimilar(ctx, res.Vector, k, maxDistance, filter)
}

// SearchNearest returns the k closest records to vec regardless of distance.
// An empty store yields ErrNotFound.
func (es *EngramStore) SearchNearest(ctx context.Context, vec coordinate.Vector, k int) ([]model.SearchResult, error) {
	start := time.Now()

	results, err := es.coordinator.SearchNearest(vec, k)
	err = translateError(err)

	es.metrics.RecordSearch(k, time.Since(start), err)
	es.logger.LogSearch(ctx, k, len(results), err)
	return results, err
}

// SearchContent returns up to limit records whose text or summary contains
// query, case-insensitively, most recent first. limit <= 0 means no limit.
func (es *EngramStore) SearchContent(ctx context.Context, query string, limit int) ([]*model.MemoryRecord, error) {
	start := time.Now()

	matches, err := es.coordinator.SearchContent(query, limit)
	err = translateError(err)

	es.metrics.RecordSearch(limit, time.Since(start), err)
	es.logger.LogSearch(ctx, limit, len(matches), err)
	return matches, err
}

// FindByMetadata returns the records whose metadata matches every filter
// term, newest first. An empty filter matches nothing.
func (es *EngramStore) FindByMetadata(filter metadata.Filter) ([]*model.MemoryRecord, error) {
	matches, err := es.coordinator.FindByMetadata(filter)
	return matches, translateError(err)
}

// LinkedMemories resolves the links of the record under key into their
// target records. kind restricts the result to one link kind (empty means
// both); minStrength drops weaker links. Links whose target no longer exists
// are omitted.
func (es *EngramStore) LinkedMemories(key coordinate.Key, kind model.LinkKind, minStrength float64) ([]model.LinkedMemory, error) {
	linked, err := es.coordinator.LinkedMemories(key, kind, minStrength)
	return linked, translateError(err)
}

// Delete removes the record at the rounded coordinate of vec.
func (es *EngramStore) Delete(ctx context.Context, vec coordinate.Vector) error {
	return es.DeleteKey(ctx, coordinate.Encode(vec.Round()))
}

// DeleteKey removes the record stored under key.
func (es *EngramStore) DeleteKey(ctx context.Context, key coordinate.Key) error {
	start := time.Now()

	err := translateError(es.coordinator.Delete(key))

	es.metrics.RecordDelete(time.Since(start), err)
	es.logger.LogDelete(ctx, key.String(), err)
	return err
}

// FlushPending applies all queued backward-link updates immediately, without
// waiting for the batch trigger.
func (es *EngramStore) FlushPending() error {
	start := time.Now()
	before := es.coordinator.Stats().PendingTargets

	err := translateError(es.coordinator.FlushPending())

	es.metrics.RecordFlush(before, time.Since(start), err)
	return err
}

// SwitchToDurable drains the pending backward-link queue and switches to
// per-write fsync. When it returns, every prior mutation is durable.
func (es *EngramStore) SwitchToDurable(ctx context.Context) error {
	err := translateError(es.coordinator.SwitchToDurable())
	es.metrics.RecordModeSwitch(Durable.String(), err)
	es.logger.LogModeSwitch(ctx, Durable.String(), err)
	return err
}

// SwitchToBulk switches back to buffered, high-throughput writes.
func (es *EngramStore) SwitchToBulk(ctx context.Context) error {
	err := translateError(es.coordinator.SwitchToBulk())
	es.metrics.RecordModeSwitch(Bulk.String(), err)
	es.logger.LogModeSwitch(ctx, Bulk.String(), err)
	return err
}

// Mode returns the current durability posture.
func (es *EngramStore) Mode() ModeInfo {
	return es.coordinator.Mode().Info()
}

// Checkpoint drains the pending queue, snapshots the full store, and
// truncates the WAL.
func (es *EngramStore) Checkpoint() error {
	start := time.Now()

	err := translateError(es.coordinator.Checkpoint())

	es.metrics.RecordCheckpoint(time.Since(start), err)
	return err
}

// ArchiveSnapshot writes a snapshot of the current state and uploads it to
// the configured archive under name. The upload is bounded by the resource
// controller's background-task and I/O limits.
func (es *EngramStore) ArchiveSnapshot(ctx context.Context, name string) error {
	if es.archive == nil {
		return ErrNoArchive
	}

	if err := es.resources.Acquire(ctx); err != nil {
		return err
	}
	defer es.resources.Release()

	tmp, err := os.CreateTemp("", "engramgo-archive-*")
	if err != nil {
		return fmt.Errorf("archive temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := es.coordinator.SnapshotTo(tmp.Name()); err != nil {
		es.logger.LogArchive(ctx, name, 0, err)
		return translateError(err)
	}

	info, err := os.Stat(tmp.Name())
	if err != nil {
		return fmt.Errorf("archive stat: %w", err)
	}

	f, err := os.Open(tmp.Name())
	if err != nil {
		return fmt.Errorf("archive open: %w", err)
	}
	defer f.Close()

	key := path.Join(es.archivePrefix, name)
	err = es.archive.Put(ctx, key, es.resources.ThrottledReader(ctx, f), info.Size())
	es.logger.LogArchive(ctx, name, info.Size(), err)
	return err
}

// ListArchives returns the names of archived snapshots, sorted.
func (es *EngramStore) ListArchives(ctx context.Context) ([]string, error) {
	if es.archive == nil {
		return nil, ErrNoArchive
	}
	return es.archive.List(ctx, es.archivePrefix)
}

// Stats returns a point-in-time view of the store.
func (es *EngramStore) Stats() Stats {
	return es.coordinator.Stats()
}

// Close checkpoints the store and releases its files. The store is unusable
// afterwards.
func (es *EngramStore) Close() error {
	return translateError(es.coordinator.Close())
}

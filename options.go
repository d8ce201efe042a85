package engramgo

import (
	"log/slog"

	"github.com/hupe1980/engramgo/blobstore"
	"github.com/hupe1980/engramgo/codec"
	"github.com/hupe1980/engramgo/engine"
	"github.com/hupe1980/engramgo/link"
	"github.com/hupe1980/engramgo/resource"
	"github.com/hupe1980/engramgo/vectorizer"
)

type options struct {
	codec               codec.Codec
	vectorizer          vectorizer.Vectorizer
	metricsCollector    MetricsCollector
	logger              *Logger
	cacheCapacity       int
	linkConfig          link.Config
	batchSize           int
	mode                Mode
	walCompress         bool
	snapshotCompression engine.Compression
	archive             blobstore.BlobStore
	archivePrefix       string
	resources           *resource.Controller
}

// Option configures Open behavior.
type Option func(*options)

// WithCodec configures the codec used for persisted records.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithVectorizer configures the vectorizer used to turn text into
// coordinates. Defaults to the built-in hash vectorizer.
//
// The vectorizer must be deterministic: the coordinate derived from the
// vector is the record's primary key.
func WithVectorizer(v vectorizer.Vectorizer) Option {
	return func(o *options) {
		if v != nil {
			o.vectorizer = v
		}
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &engramgo.BasicMetricsCollector{}
//	es, _ := engramgo.Open(dir, engramgo.WithMetricsCollector(metrics))
//	// ... use es ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := engramgo.NewJSONLogger(slog.LevelInfo)
//	es, _ := engramgo.Open(dir, engramgo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithCacheCapacity configures the recency window size. Larger windows give
// link discovery more radial candidates at the cost of a longer scan per
// store. Defaults to 10.
func WithCacheCapacity(capacity int) Option {
	return func(o *options) {
		o.cacheCapacity = capacity
	}
}

// WithSuccessionStrength configures the fixed strength of succession links.
// Defaults to 0.9.
func WithSuccessionStrength(strength float64) Option {
	return func(o *options) {
		o.linkConfig.SuccessionStrength = strength
	}
}

// WithRadialThreshold configures the maximum distance for radial link
// candidates. Defaults to 0.6.
func WithRadialThreshold(threshold float64) Option {
	return func(o *options) {
		o.linkConfig.RadialThreshold = threshold
	}
}

// WithMaxRadialLinks caps the radial links kept per record. Defaults to 3.
func WithMaxRadialLinks(max int) Option {
	return func(o *options) {
		o.linkConfig.MaxRadialLinks = max
	}
}

// WithBatchSize configures the pending-queue flush trigger: a flush runs
// after this many stores have queued backward links. Defaults to 100.
func WithBatchSize(size int) Option {
	return func(o *options) {
		o.batchSize = size
	}
}

// WithInitialMode configures the durability posture the store opens in.
// Defaults to Bulk.
func WithInitialMode(mode Mode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

// WithWALCompression enables zstd compression of WAL record payloads.
func WithWALCompression() Option {
	return func(o *options) {
		o.walCompress = true
	}
}

// WithSnapshotCompression selects the snapshot payload compression.
// Defaults to none.
func WithSnapshotCompression(c engine.Compression) Option {
	return func(o *options) {
		o.snapshotCompression = c
	}
}

// WithArchive configures an object store for snapshot archives. prefix is
// prepended to archive names.
func WithArchive(store blobstore.BlobStore, prefix string) Option {
	return func(o *options) {
		o.archive = store
		o.archivePrefix = prefix
	}
}

// WithResourceController bounds background work (bulk vectorization
// parallelism, archive I/O bandwidth).
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		vectorizer:       vectorizer.Hash{},
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.resources == nil {
		o.resources = resource.NewController(resource.Options{})
	}
	return o
}

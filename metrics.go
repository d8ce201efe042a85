package engramgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordStore is called after each store operation.
	// duration is the total time taken, err is nil if successful.
	RecordStore(duration time.Duration, err error)

	// RecordBulkStore is called after each bulk store operation.
	// count is the number of items attempted, failed is the number that failed.
	RecordBulkStore(count, failed int, duration time.Duration)

	// RecordSearch is called after each search operation.
	RecordSearch(k int, duration time.Duration, err error)

	// RecordDelete is called after each delete operation.
	RecordDelete(duration time.Duration, err error)

	// RecordFlush is called after each backward-link batch flush.
	// targets is the number of records updated.
	RecordFlush(targets int, duration time.Duration, err error)

	// RecordModeSwitch is called after each durability mode transition.
	RecordModeSwitch(mode string, err error)

	// RecordCheckpoint is called after each checkpoint.
	RecordCheckpoint(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordStore(time.Duration, error)        {}
func (NoopMetricsCollector) RecordBulkStore(int, int, time.Duration) {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)       {}
func (NoopMetricsCollector) RecordFlush(int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordModeSwitch(string, error)          {}
func (NoopMetricsCollector) RecordCheckpoint(time.Duration, error)   {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	StoreCount       atomic.Int64
	StoreErrors      atomic.Int64
	StoreTotalNanos  atomic.Int64
	BulkStoreCount   atomic.Int64
	BulkStoreItems   atomic.Int64
	BulkStoreFailed  atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	DeleteCount      atomic.Int64
	DeleteErrors     atomic.Int64
	FlushCount       atomic.Int64
	FlushTargets     atomic.Int64
	FlushErrors      atomic.Int64
	ModeSwitchCount  atomic.Int64
	ModeSwitchErrors atomic.Int64
	CheckpointCount  atomic.Int64
	CheckpointErrors atomic.Int64
}

// RecordStore implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStore(duration time.Duration, err error) {
	b.StoreCount.Add(1)
	b.StoreTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.StoreErrors.Add(1)
	}
}

// RecordBulkStore implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBulkStore(count, failed int, duration time.Duration) {
	b.BulkStoreCount.Add(1)
	b.BulkStoreItems.Add(int64(count))
	b.BulkStoreFailed.Add(int64(failed))
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(k int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(targets int, duration time.Duration, err error) {
	b.FlushCount.Add(1)
	b.FlushTargets.Add(int64(targets))
	if err != nil {
		b.FlushErrors.Add(1)
	}
}

// RecordModeSwitch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordModeSwitch(_ string, err error) {
	b.ModeSwitchCount.Add(1)
	if err != nil {
		b.ModeSwitchErrors.Add(1)
	}
}

// RecordCheckpoint implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCheckpoint(duration time.Duration, err error) {
	b.CheckpointCount.Add(1)
	if err != nil {
		b.CheckpointErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		StoreCount:      b.StoreCount.Load(),
		StoreErrors:     b.StoreErrors.Load(),
		StoreAvgNanos:   b.avgStoreNanos(),
		BulkStoreCount:  b.BulkStoreCount.Load(),
		BulkStoreItems:  b.BulkStoreItems.Load(),
		BulkStoreFailed: b.BulkStoreFailed.Load(),
		SearchCount:     b.SearchCount.Load(),
		SearchErrors:    b.SearchErrors.Load(),
		SearchAvgNanos:  b.avgSearchNanos(),
		DeleteCount:     b.DeleteCount.Load(),
		DeleteErrors:    b.DeleteErrors.Load(),
		FlushCount:      b.FlushCount.Load(),
		FlushTargets:    b.FlushTargets.Load(),
		FlushErrors:     b.FlushErrors.Load(),
		ModeSwitchCount: b.ModeSwitchCount.Load(),
		CheckpointCount: b.CheckpointCount.Load(),
	}
}

func (b *BasicMetricsCollector) avgStoreNanos() int64 {
	count := b.StoreCount.Load()
	if count == 0 {
		return 0
	}
	return b.StoreTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) avgSearchNanos() int64 {
	count := b.SearchCount.Load()
	if count == 0 {
		return 0
	}
	return b.SearchTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	StoreCount      int64
	StoreErrors     int64
	StoreAvgNanos   int64
	BulkStoreCount  int64
	BulkStoreItems  int64
	BulkStoreFailed int64
	SearchCount     int64
	SearchErrors    int64
	SearchAvgNanos  int64
	DeleteCount     int64
	DeleteErrors    int64
	FlushCount      int64
	FlushTargets    int64
	FlushErrors     int64
	ModeSwitchCount int64
	CheckpointCount int64
}

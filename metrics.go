package main

import "sync/atomic"

// Dispatch metrics
var (
	actionsDispatchedTotal atomic.Int64
	actionsAbortedTotal    atomic.Int64
)

// Zap metrics
var (
	zapsSentTotal    atomic.Int64
	zapFailuresTotal atomic.Int64
)

// Relay/ingest metrics
var (
	notesIngestedTotal atomic.Int64
	droppedEventCount  atomic.Int64
)

// Cache metrics
var (
	cacheHitsTotal   atomic.Int64
	cacheMissesTotal atomic.Int64
)

// IncrementCacheHit increments the cache hit counter
func IncrementCacheHit() {
	cacheHitsTotal.Add(1)
}

// IncrementCacheMiss increments the cache miss counter
func IncrementCacheMiss() {
	cacheMissesTotal.Add(1)
}

// DispatchStats is a point-in-time snapshot of the core's counters,
// exposed for the `stats` command and for tests.
type DispatchStats struct {
	ActionsDispatched int64
	ActionsAborted    int64
	ZapsSent          int64
	ZapFailures       int64
	NotesIngested     int64
	DroppedEvents     int64
	CacheHits         int64
	CacheMisses       int64
}

// SnapshotStats reads all counters.
func SnapshotStats() DispatchStats {
	return DispatchStats{
		ActionsDispatched: actionsDispatchedTotal.Load(),
		ActionsAborted:    actionsAbortedTotal.Load(),
		ZapsSent:          zapsSentTotal.Load(),
		ZapFailures:       zapFailuresTotal.Load(),
		NotesIngested:     notesIngestedTotal.Load(),
		DroppedEvents:     droppedEventCount.Load(),
		CacheHits:         cacheHitsTotal.Load(),
		CacheMisses:       cacheMissesTotal.Load(),
	}
}

package main

import (
	"fmt"
	"log/slog"
	"sort"

	"nostr-columns/internal/types"
)

// TimelineCache owns every currently-open timeline, keyed by identity.
// The dispatcher never constructs timelines itself; it asks the cache
// to open-or-refresh a kind and routes the result to the merge path.
type TimelineCache struct {
	timelines map[TimelineKind]*Timeline
	subSerial int
}

// NewTimelineCache creates an empty cache.
func NewTimelineCache() *TimelineCache {
	return &TimelineCache{timelines: make(map[TimelineKind]*Timeline)}
}

// Open opens or refreshes the timeline for a kind. On first open it
// creates the timeline and subscribes the relay pool to the kind's
// filters; on re-open it only diffs. Either way it returns the locally
// known notes that the timeline hasn't merged yet, or nil when there
// is nothing new. The caller feeds the result through
// TimelineOpenResult.process; Open itself never merges.
func (tc *TimelineCache) Open(txn *Txn, pool *RelayPool, kind TimelineKind) *TimelineOpenResult {
	timeline, exists := tc.timelines[kind]
	if !exists {
		timeline = NewTimeline(kind)
		tc.timelines[kind] = timeline

		tc.subSerial++
		timeline.subID = fmt.Sprintf("tl-%d", tc.subSerial)
		for i, filter := range kind.Filters() {
			pool.SubscribeAll(fmt.Sprintf("%s-%d", timeline.subID, i), filter)
		}
		slog.Debug("timeline opened", "kind", kind.String())
	}

	newKeys := tc.unmergedKeys(txn, timeline, kind)
	if len(newKeys) == 0 {
		return nil
	}
	return NewTimelineOpenResult(newKeys, kind)
}

// unmergedKeys queries the note database for the kind's notes and
// drops everything the timeline has already merged. Kinds with several
// filters produce one combined batch, sorted newest-first.
func (tc *TimelineCache) unmergedKeys(txn *Txn, timeline *Timeline, kind TimelineKind) []types.NoteKey {
	var keys []types.NoteKey
	picked := make(map[types.NoteKey]struct{})
	for _, filter := range kind.Filters() {
		for _, key := range txn.Query(filter) {
			if _, dup := picked[key]; dup {
				continue
			}
			note, err := txn.GetNoteByKey(key)
			if err != nil {
				continue
			}
			if !timeline.Contains(note.ID) {
				picked[key] = struct{}{}
				keys = append(keys, key)
			}
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		a, _ := txn.GetNoteByKey(keys[i])
		b, _ := txn.GetNoteByKey(keys[j])
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt > b.CreatedAt
		}
		return keys[i] > keys[j]
	})
	return keys
}

// Get returns the live timeline for a kind, if open.
func (tc *TimelineCache) Get(kind TimelineKind) (*Timeline, bool) {
	timeline, ok := tc.timelines[kind]
	return timeline, ok
}

// Pop evicts a timeline, closing its relay subscriptions. Eviction
// policy lives with the surrounding application, not this cache.
func (tc *TimelineCache) Pop(pool *RelayPool, kind TimelineKind) {
	timeline, ok := tc.timelines[kind]
	if !ok {
		return
	}
	if timeline.subID != "" {
		for i := range kind.Filters() {
			pool.UnsubscribeAll(fmt.Sprintf("%s-%d", timeline.subID, i))
		}
	}
	delete(tc.timelines, kind)
}

// Kinds returns the identity keys of every open timeline.
func (tc *TimelineCache) Kinds() []TimelineKind {
	kinds := make([]TimelineKind, 0, len(tc.timelines))
	for kind := range tc.timelines {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Len returns the number of open timelines.
func (tc *TimelineCache) Len() int {
	return len(tc.timelines)
}

// ResolveThreadRoot resolves a note ID to the selection of the thread
// it belongs to, walking the cached NIP-10 reply structure. Fails when
// the note isn't known locally.
func ResolveThreadRoot(txn *Txn, noteCache *NoteCache, noteID string) (ThreadSelection, error) {
	key, ok := txn.LookupID(noteID)
	if !ok {
		return ThreadSelection{}, fmt.Errorf("note %s not in local database", noteID)
	}

	cached, err := noteCache.CachedNote(txn, key)
	if err != nil {
		return ThreadSelection{}, err
	}

	root := cached.RootID()
	if root == "" {
		// The note is itself a root
		root = noteID
	}
	return ThreadSelection{Root: root}, nil
}

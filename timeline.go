package main

import (
	"fmt"

	"nostr-columns/internal/types"
)

// TimelineKindType discriminates timeline identities.
type TimelineKindType int

const (
	TimelineProfile TimelineKindType = iota
	TimelineThread
	TimelineHashtag
)

// ThreadSelection names the root of a thread timeline.
type ThreadSelection struct {
	Root string // root event ID hex
}

// TimelineKind is the identity key of a timeline: the discriminator
// plus its variant payload. Equal kinds denote the same logical feed,
// so the cache holds at most one timeline per kind.
type TimelineKind struct {
	Type    TimelineKindType
	Pubkey  string // profile timelines
	Hashtag string // hashtag timelines
	Thread  ThreadSelection
}

// ProfileTimeline is the timeline of one author's notes.
func ProfileTimeline(pubkey string) TimelineKind {
	return TimelineKind{Type: TimelineProfile, Pubkey: pubkey}
}

// ThreadTimeline is the timeline of one thread, keyed by its root.
func ThreadTimeline(sel ThreadSelection) TimelineKind {
	return TimelineKind{Type: TimelineThread, Thread: sel}
}

// HashtagTimeline is the timeline of one hashtag.
func HashtagTimeline(tag string) TimelineKind {
	return TimelineKind{Type: TimelineHashtag, Hashtag: tag}
}

func (k TimelineKind) String() string {
	switch k.Type {
	case TimelineProfile:
		return fmt.Sprintf("profile:%s", shortHex(k.Pubkey))
	case TimelineThread:
		return fmt.Sprintf("thread:%s", shortHex(k.Thread.Root))
	case TimelineHashtag:
		return fmt.Sprintf("hashtag:%s", k.Hashtag)
	default:
		return "unknown"
	}
}

// Filters returns the relay/database filters that select this
// timeline's notes. Threads need two: the root itself and its replies.
func (k TimelineKind) Filters() []*types.Filter {
	switch k.Type {
	case TimelineProfile:
		return []*types.Filter{{
			Authors: []string{k.Pubkey},
			Kinds:   []int{types.KindTextNote, types.KindLongForm},
			Limit:   100,
		}}
	case TimelineThread:
		return []*types.Filter{
			{IDs: []string{k.Thread.Root}},
			{
				ETags: []string{k.Thread.Root},
				Kinds: []int{types.KindTextNote},
				Limit: 500,
			},
		}
	case TimelineHashtag:
		return []*types.Filter{{
			TTags: []string{k.Hashtag},
			Kinds: []int{types.KindTextNote},
			Limit: 100,
		}}
	default:
		return nil
	}
}

// Timeline is one live feed: an ordered sequence of note keys plus the
// seen-set used to de-duplicate merges. Display order is the merge
// order: newest-first for profile/hashtag feeds, root-first for
// threads (which merge their newest-first source reversed).
type Timeline struct {
	Kind  TimelineKind
	notes []types.NoteKey
	seen  map[string]struct{} // note IDs already merged
	subID string              // relay subscription, "" when not subscribed
}

// NewTimeline creates an empty timeline for a kind.
func NewTimeline(kind TimelineKind) *Timeline {
	return &Timeline{
		Kind: kind,
		seen: make(map[string]struct{}),
	}
}

// Insert merges new note keys into the timeline in the given order,
// reversed when the caller asks for it. Duplicates are skipped, and
// every merged note's unresolved references are registered with the
// unknown-ID tracker.
func (t *Timeline) Insert(keys []types.NoteKey, txn *Txn, unknownIDs *UnknownIDs, noteCache *NoteCache, reversed bool) error {
	ordered := keys
	if reversed {
		ordered = make([]types.NoteKey, len(keys))
		for i, key := range keys {
			ordered[len(keys)-1-i] = key
		}
	}

	var firstErr error
	for _, key := range ordered {
		note, err := txn.GetNoteByKey(key)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("note key %d: %w", key, err)
			}
			continue
		}
		if _, dup := t.seen[note.ID]; dup {
			continue
		}

		t.notes = append(t.notes, key)
		t.seen[note.ID] = struct{}{}

		// Parse reply structure once so later thread opens are cheap
		if _, err := noteCache.CachedNote(txn, key); err != nil && firstErr == nil {
			firstErr = err
		}
		unknownIDs.RegisterNoteRefs(txn, note)
	}
	return firstErr
}

// Notes returns the timeline's note keys in display order.
func (t *Timeline) Notes() []types.NoteKey {
	return t.notes
}

// Contains reports whether a note ID has been merged.
func (t *Timeline) Contains(id string) bool {
	_, ok := t.seen[id]
	return ok
}

// Len returns the number of merged notes.
func (t *Timeline) Len() int {
	return len(t.notes)
}

func shortHex(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

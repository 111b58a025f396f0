package main

import (
	"encoding/json"
	"errors"
	"sync"

	"nostr-columns/internal/types"
)

// NoteDB is the local store of ingested events. Notes are addressed by
// a NoteKey assigned at ingest time; an ID index maps wire identifiers
// back to keys. Reads go through a Txn so one dispatch sees a stable
// view even while relay goroutines hand new events to the ingest path.
type NoteDB struct {
	mu    sync.RWMutex
	notes []*types.Event // NoteKey n lives at notes[n-1]
	byID  map[string]types.NoteKey
}

// ErrNoteNotFound is returned when a key or ID has no local note.
var ErrNoteNotFound = errors.New("note not found")

// NewNoteDB creates an empty note database.
func NewNoteDB() *NoteDB {
	return &NoteDB{byID: make(map[string]types.NoteKey)}
}

// Ingest stores an event and returns its key. Duplicate IDs return the
// existing key with inserted=false.
func (db *NoteDB) Ingest(evt *types.Event) (types.NoteKey, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if key, ok := db.byID[evt.ID]; ok {
		return key, false
	}

	db.notes = append(db.notes, evt)
	key := types.NoteKey(len(db.notes))
	db.byID[evt.ID] = key
	notesIngestedTotal.Add(1)
	return key, true
}

// Txn is a read transaction scoped to a single dispatch call. It holds
// the database read lock; callers must End it before the next ingest.
type Txn struct {
	db *NoteDB
}

// NewTxn opens a read transaction.
func (db *NoteDB) NewTxn() *Txn {
	db.mu.RLock()
	return &Txn{db: db}
}

// End releases the transaction.
func (t *Txn) End() {
	t.db.mu.RUnlock()
}

// GetNoteByKey returns the note stored under the given key.
func (t *Txn) GetNoteByKey(key types.NoteKey) (*types.Event, error) {
	if key == 0 || int(key) > len(t.db.notes) {
		return nil, ErrNoteNotFound
	}
	return t.db.notes[key-1], nil
}

// LookupID resolves a wire event ID to a local key.
func (t *Txn) LookupID(id string) (types.NoteKey, bool) {
	key, ok := t.db.byID[id]
	return key, ok
}

// HasNote reports whether the event ID is known locally.
func (t *Txn) HasNote(id string) bool {
	_, ok := t.db.byID[id]
	return ok
}

// Query returns keys of notes matching the filter, newest first.
func (t *Txn) Query(filter *types.Filter) []types.NoteKey {
	var keys []types.NoteKey
	// Iterate newest-first; keys are assigned in arrival order.
	for i := len(t.db.notes) - 1; i >= 0; i-- {
		if filter.Matches(t.db.notes[i]) {
			keys = append(keys, types.NoteKey(i+1))
			if filter.Limit > 0 && len(keys) >= filter.Limit {
				break
			}
		}
	}
	return keys
}

// ProfileFor returns the parsed kind-0 profile for a pubkey, preferring
// the newest metadata event.
func (t *Txn) ProfileFor(pubkey string) (*types.ProfileInfo, bool) {
	var newest *types.Event
	for _, evt := range t.db.notes {
		if evt.Kind != types.KindProfileMetadata || evt.PubKey != pubkey {
			continue
		}
		if newest == nil || evt.CreatedAt > newest.CreatedAt {
			newest = evt
		}
	}
	if newest == nil {
		return nil, false
	}

	var profile types.ProfileInfo
	if err := json.Unmarshal([]byte(newest.Content), &profile); err != nil {
		return nil, false
	}
	return &profile, true
}

// Len returns the number of stored notes.
func (db *NoteDB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.notes)
}

package main

import (
	"nostr-columns/internal/types"
)

// UnknownIDs tracks identifiers referenced by local content that have
// no local resolution yet: pubkeys with no profile metadata and event
// IDs with no stored note. The surrounding application drains it into
// relay filters between frames.
type UnknownIDs struct {
	pubkeys map[string]struct{}
	noteIDs map[string]struct{}
}

// NewUnknownIDs creates an empty tracker.
func NewUnknownIDs() *UnknownIDs {
	return &UnknownIDs{
		pubkeys: make(map[string]struct{}),
		noteIDs: make(map[string]struct{}),
	}
}

// AddPubkey records an unresolved pubkey.
func (u *UnknownIDs) AddPubkey(pubkey string) {
	if len(pubkey) == 64 {
		u.pubkeys[pubkey] = struct{}{}
	}
}

// AddNoteID records an unresolved event ID.
func (u *UnknownIDs) AddNoteID(id string) {
	if len(id) == 64 {
		u.noteIDs[id] = struct{}{}
	}
}

// RegisterNoteRefs walks a note's references and records every one the
// transaction can't resolve locally.
func (u *UnknownIDs) RegisterNoteRefs(txn *Txn, note *types.Event) {
	if _, ok := txn.ProfileFor(note.PubKey); !ok {
		u.AddPubkey(note.PubKey)
	}
	for _, pk := range note.TagValues("p") {
		if _, ok := txn.ProfileFor(pk); !ok {
			u.AddPubkey(pk)
		}
	}
	for _, id := range note.TagValues("e") {
		if !txn.HasNote(id) {
			u.AddNoteID(id)
		}
	}
}

// Resolve drops identifiers that have since been resolved.
func (u *UnknownIDs) Resolve(txn *Txn) {
	for pk := range u.pubkeys {
		if _, ok := txn.ProfileFor(pk); ok {
			delete(u.pubkeys, pk)
		}
	}
	for id := range u.noteIDs {
		if txn.HasNote(id) {
			delete(u.noteIDs, id)
		}
	}
}

// Filters builds the relay filters that would resolve everything
// currently tracked. Returns nil when nothing is pending.
func (u *UnknownIDs) Filters() []*types.Filter {
	var filters []*types.Filter
	if len(u.pubkeys) > 0 {
		f := &types.Filter{Kinds: []int{types.KindProfileMetadata}}
		for pk := range u.pubkeys {
			f.Authors = append(f.Authors, pk)
		}
		filters = append(filters, f)
	}
	if len(u.noteIDs) > 0 {
		f := &types.Filter{}
		for id := range u.noteIDs {
			f.IDs = append(f.IDs, id)
		}
		filters = append(filters, f)
	}
	return filters
}

// Len returns how many identifiers are pending resolution.
func (u *UnknownIDs) Len() int {
	return len(u.pubkeys) + len(u.noteIDs)
}

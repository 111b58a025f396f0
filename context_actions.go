package main

import (
	"log/slog"

	"nostr-columns/internal/nostr"
	"nostr-columns/internal/types"
)

// Context actions are the per-note "…" menu operations. The dispatcher
// resolves the note and hands it to the action's own processing routine
// together with the relay pool; what the action does with them is its
// own contract.

// ContextAction is a capability passed in with the intent. Process may
// publish through the pool but must only enqueue work.
type ContextAction interface {
	Process(note *types.Event, pool *RelayPool)
}

// ContextSelection pairs a locally-keyed note with the action to run on it.
type ContextSelection struct {
	NoteKey types.NoteKey
	Action  ContextAction
}

// BroadcastAction republishes the note to every connected relay.
type BroadcastAction struct{}

func (BroadcastAction) Process(note *types.Event, pool *RelayPool) {
	slog.Info("broadcasting note", "event_id", nostr.ShortID(note.ID))
	pool.Publish(note)
}

// CopyNoteIDAction encodes the note's nevent pointer and hands it to a
// sink (the clipboard in a real UI).
type CopyNoteIDAction struct {
	Sink func(string)
}

func (a CopyNoteIDAction) Process(note *types.Event, pool *RelayPool) {
	nevent, err := EncodeNEvent(NEvent{
		EventID:    note.ID,
		Author:     note.PubKey,
		RelayHints: pool.ConnectedURLs(),
	})
	if err != nil {
		slog.Error("nevent encoding failed", "event_id", nostr.ShortID(note.ID), "error", err)
		return
	}
	if a.Sink != nil {
		a.Sink(nevent)
	}
}

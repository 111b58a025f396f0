package main

import (
	"nostr-columns/internal/types"
)

// CachedNote memoizes the NIP-10 reply structure parsed from a note's
// tags, so thread resolution and timeline inserts don't re-walk tags.
type CachedNote struct {
	Key       types.NoteKey
	ReplyRoot string // event ID of the thread root, "" when not a reply
	ReplyTo   string // event ID of the direct parent, "" when not a reply
}

// IsReply reports whether the note replies to anything.
func (c *CachedNote) IsReply() bool {
	return c.ReplyRoot != "" || c.ReplyTo != ""
}

// RootID returns the thread root this note belongs to, falling back to
// the direct parent when no root marker was present.
func (c *CachedNote) RootID() string {
	if c.ReplyRoot != "" {
		return c.ReplyRoot
	}
	return c.ReplyTo
}

// NoteCache holds per-key parsed note metadata.
type NoteCache struct {
	cached map[types.NoteKey]*CachedNote
}

// NewNoteCache creates an empty note cache.
func NewNoteCache() *NoteCache {
	return &NoteCache{cached: make(map[types.NoteKey]*CachedNote)}
}

// CachedNote returns the parsed metadata for a note, computing and
// caching it on first access.
func (nc *NoteCache) CachedNote(txn *Txn, key types.NoteKey) (*CachedNote, error) {
	if cached, ok := nc.cached[key]; ok {
		IncrementCacheHit()
		return cached, nil
	}
	IncrementCacheMiss()

	note, err := txn.GetNoteByKey(key)
	if err != nil {
		return nil, err
	}

	cached := parseReplyTags(note)
	cached.Key = key
	nc.cached[key] = cached
	return cached, nil
}

// parseReplyTags extracts NIP-10 root/reply markers. Marked e-tags win;
// unmarked tags fall back to positional interpretation (first = root,
// last = reply).
func parseReplyTags(note *types.Event) *CachedNote {
	cached := &CachedNote{}

	var unmarked []string
	for _, tag := range note.Tags {
		if len(tag) < 2 || tag[0] != "e" {
			continue
		}
		marker := ""
		if len(tag) >= 4 {
			marker = tag[3]
		}
		switch marker {
		case "root":
			cached.ReplyRoot = tag[1]
		case "reply":
			cached.ReplyTo = tag[1]
		case "mention":
			// mentions are not reply structure
		default:
			unmarked = append(unmarked, tag[1])
		}
	}

	if cached.ReplyRoot == "" && cached.ReplyTo == "" && len(unmarked) > 0 {
		cached.ReplyRoot = unmarked[0]
		cached.ReplyTo = unmarked[len(unmarked)-1]
	}
	if cached.ReplyTo == "" {
		cached.ReplyTo = cached.ReplyRoot
	}
	return cached
}

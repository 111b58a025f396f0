// Package types provides shared type definitions used across internal packages.
package types

// Event kinds used by the client core (NIP-01 and friends)
const (
	KindProfileMetadata = 0
	KindTextNote        = 1
	KindDeletion        = 5
	KindZapRequest      = 9734  // NIP-57
	KindZapReceipt      = 9735  // NIP-57
	KindNWCRequest      = 23194 // NIP-47 client request to wallet
	KindNWCResponse     = 23195 // NIP-47 wallet response to client
	KindLongForm        = 30023 // NIP-23
)

// NoteKey is the local database key of an ingested note. Keys are
// assigned sequentially on ingest and are only meaningful within one
// NoteDB instance.
type NoteKey uint64

// Event represents a Nostr event (NIP-01)
type Event struct {
	ID         string     `json:"id"`
	PubKey     string     `json:"pubkey"`
	CreatedAt  int64      `json:"created_at"`
	Kind       int        `json:"kind"`
	Tags       [][]string `json:"tags"`
	Content    string     `json:"content"`
	Sig        string     `json:"sig"`
	RelaysSeen []string   `json:"-"`
}

// TagValues returns the first value of every tag with the given name.
func (e *Event) TagValues(name string) []string {
	var vals []string
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name {
			vals = append(vals, tag[1])
		}
	}
	return vals
}

// FirstTagValue returns the first value of the first tag with the given name.
func (e *Event) FirstTagValue(name string) (string, bool) {
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1], true
		}
	}
	return "", false
}

// Filter represents a Nostr subscription filter (NIP-01)
type Filter struct {
	IDs     []string
	Authors []string
	Kinds   []int
	Limit   int
	Since   *int64
	Until   *int64
	ETags   []string // #e tag filter (note references)
	PTags   []string // #p tag filter (mentions)
	TTags   []string // #t tag filter (hashtags)
}

// Matches reports whether the event satisfies every set constraint of
// the filter. Limit is ignored; it only bounds query results.
func (f *Filter) Matches(evt *Event) bool {
	if len(f.IDs) > 0 && !containsString(f.IDs, evt.ID) {
		return false
	}
	if len(f.Authors) > 0 && !containsString(f.Authors, evt.PubKey) {
		return false
	}
	if len(f.Kinds) > 0 && !containsInt(f.Kinds, evt.Kind) {
		return false
	}
	if f.Since != nil && evt.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && evt.CreatedAt > *f.Until {
		return false
	}
	if len(f.ETags) > 0 && !intersects(f.ETags, evt.TagValues("e")) {
		return false
	}
	if len(f.PTags) > 0 && !intersects(f.PTags, evt.TagValues("p")) {
		return false
	}
	if len(f.TTags) > 0 && !intersects(f.TTags, evt.TagValues("t")) {
		return false
	}
	return true
}

// ToWire converts the filter to the JSON shape relays expect in REQ messages.
func (f *Filter) ToWire() map[string]interface{} {
	wire := make(map[string]interface{})
	if len(f.IDs) > 0 {
		wire["ids"] = f.IDs
	}
	if len(f.Authors) > 0 {
		wire["authors"] = f.Authors
	}
	if len(f.Kinds) > 0 {
		wire["kinds"] = f.Kinds
	}
	if f.Limit > 0 {
		wire["limit"] = f.Limit
	}
	if f.Since != nil {
		wire["since"] = *f.Since
	}
	if f.Until != nil {
		wire["until"] = *f.Until
	}
	if len(f.ETags) > 0 {
		wire["#e"] = f.ETags
	}
	if len(f.PTags) > 0 {
		wire["#p"] = f.PTags
	}
	if len(f.TTags) > 0 {
		wire["#t"] = f.TTags
	}
	return wire
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsInt(haystack []int, needle int) bool {
	for _, n := range haystack {
		if n == needle {
			return true
		}
	}
	return false
}

func intersects(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}

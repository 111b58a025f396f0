package main

import (
	"encoding/hex"
	"errors"
	"strings"

	"nostr-columns/internal/nips"
)

// NIP-19 bech32 identifiers: npub (pubkeys), note (event IDs) and
// nevent (event pointers with relay hints).

// NEvent represents a decoded nevent1... identifier
type NEvent struct {
	EventID    string   // 32-byte event ID as hex
	Author     string   // optional 32-byte author pubkey as hex
	RelayHints []string // optional relay URLs
}

// TLV type constants for NIP-19
const (
	tlvTypeSpecial = 0 // event_id for nevent, pubkey for nprofile
	tlvTypeRelay   = 1 // relay URL
	tlvTypeAuthor  = 2 // author pubkey
)

// DecodeNpub decodes an npub1... string to a hex pubkey
func DecodeNpub(npub string) (string, error) {
	hrp, payload, err := nips.DecodeBytes(npub)
	if err != nil {
		return "", err
	}
	if hrp != "npub" || len(payload) != 32 {
		return "", errors.New("not a valid npub")
	}
	return hex.EncodeToString(payload), nil
}

// EncodeNpub encodes a hex pubkey as npub1...
func EncodeNpub(pubkeyHex string) (string, error) {
	raw, err := hex.DecodeString(pubkeyHex)
	if err != nil || len(raw) != 32 {
		return "", errors.New("pubkey must be 32 bytes of hex")
	}
	return nips.EncodeBytes("npub", raw)
}

// DecodeNoteID decodes a note1... string to a hex event ID
func DecodeNoteID(note string) (string, error) {
	hrp, payload, err := nips.DecodeBytes(note)
	if err != nil {
		return "", err
	}
	if hrp != "note" || len(payload) != 32 {
		return "", errors.New("not a valid note id")
	}
	return hex.EncodeToString(payload), nil
}

// EncodeNoteID encodes a hex event ID as note1...
func EncodeNoteID(idHex string) (string, error) {
	raw, err := hex.DecodeString(idHex)
	if err != nil || len(raw) != 32 {
		return "", errors.New("event id must be 32 bytes of hex")
	}
	return nips.EncodeBytes("note", raw)
}

// EncodeNEvent encodes an event pointer as nevent1...
func EncodeNEvent(ev NEvent) (string, error) {
	idRaw, err := hex.DecodeString(ev.EventID)
	if err != nil || len(idRaw) != 32 {
		return "", errors.New("event id must be 32 bytes of hex")
	}

	var tlv []byte
	tlv = appendTLV(tlv, tlvTypeSpecial, idRaw)
	for _, relay := range ev.RelayHints {
		tlv = appendTLV(tlv, tlvTypeRelay, []byte(relay))
	}
	if ev.Author != "" {
		authorRaw, err := hex.DecodeString(ev.Author)
		if err != nil || len(authorRaw) != 32 {
			return "", errors.New("author must be 32 bytes of hex")
		}
		tlv = appendTLV(tlv, tlvTypeAuthor, authorRaw)
	}

	return nips.EncodeBytes("nevent", tlv)
}

// DecodeNEvent decodes a nevent1... bech32 string
func DecodeNEvent(nevent string) (*NEvent, error) {
	hrp, tlv, err := nips.DecodeBytes(nevent)
	if err != nil {
		return nil, err
	}
	if hrp != "nevent" {
		return nil, errors.New("not a nevent")
	}

	out := &NEvent{}
	for len(tlv) >= 2 {
		typ, length := tlv[0], int(tlv[1])
		if len(tlv) < 2+length {
			return nil, errors.New("truncated nevent TLV")
		}
		value := tlv[2 : 2+length]
		switch typ {
		case tlvTypeSpecial:
			if length != 32 {
				return nil, errors.New("nevent event id must be 32 bytes")
			}
			out.EventID = hex.EncodeToString(value)
		case tlvTypeRelay:
			out.RelayHints = append(out.RelayHints, string(value))
		case tlvTypeAuthor:
			if length == 32 {
				out.Author = hex.EncodeToString(value)
			}
		}
		tlv = tlv[2+length:]
	}

	if out.EventID == "" {
		return nil, errors.New("nevent missing event id")
	}
	return out, nil
}

func appendTLV(buf []byte, typ byte, value []byte) []byte {
	buf = append(buf, typ, byte(len(value)))
	return append(buf, value...)
}

// ParseNoteRef accepts a note id in any accepted form (hex, note1,
// nevent1) and returns the hex event ID.
func ParseNoteRef(ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "note1"):
		return DecodeNoteID(ref)
	case strings.HasPrefix(ref, "nevent1"):
		ev, err := DecodeNEvent(ref)
		if err != nil {
			return "", err
		}
		return ev.EventID, nil
	case len(ref) == 64:
		if _, err := hex.DecodeString(ref); err != nil {
			return "", errors.New("invalid hex note id")
		}
		return strings.ToLower(ref), nil
	default:
		return "", errors.New("unrecognized note reference")
	}
}

// ParsePubkeyRef accepts a pubkey in hex or npub form and returns hex.
func ParsePubkeyRef(ref string) (string, error) {
	if strings.HasPrefix(ref, "npub1") {
		return DecodeNpub(ref)
	}
	if len(ref) == 64 {
		if _, err := hex.DecodeString(ref); err != nil {
			return "", errors.New("invalid hex pubkey")
		}
		return strings.ToLower(ref), nil
	}
	return "", errors.New("unrecognized pubkey reference")
}

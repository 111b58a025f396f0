// Package nostr implements NIP-01 event identity, signing and parsing.
package nostr

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"nostr-columns/internal/types"
)

// CalculateEventID computes the NIP-01 event ID: the sha256 of the
// canonical serialization [0, pubkey, created_at, kind, tags, content].
func CalculateEventID(evt *types.Event) string {
	tags := evt.Tags
	if tags == nil {
		tags = [][]string{}
	}
	serialized, err := json.Marshal([]interface{}{
		0, evt.PubKey, evt.CreatedAt, evt.Kind, tags, evt.Content,
	})
	if err != nil {
		// Marshal of plain strings/ints cannot fail; guard anyway
		return ""
	}
	hash := sha256.Sum256(serialized)
	return hex.EncodeToString(hash[:])
}

// SignEvent fills in the event's ID and Schnorr signature using the
// given 32-byte secret key.
func SignEvent(evt *types.Event, secretKey []byte) error {
	if len(secretKey) != 32 {
		return errors.New("secret key must be 32 bytes")
	}
	privKey, _ := btcec.PrivKeyFromBytes(secretKey)
	if privKey == nil {
		return errors.New("invalid secret key")
	}

	evt.PubKey = hex.EncodeToString(schnorr.SerializePubKey(privKey.PubKey()))
	evt.ID = CalculateEventID(evt)

	idBytes, err := hex.DecodeString(evt.ID)
	if err != nil {
		return err
	}
	sig, err := schnorr.Sign(privKey, idBytes)
	if err != nil {
		return err
	}
	evt.Sig = hex.EncodeToString(sig.Serialize())
	return nil
}

// DerivePubKey returns the x-only public key (hex) for a 32-byte secret key.
func DerivePubKey(secretKey []byte) (string, error) {
	if len(secretKey) != 32 {
		return "", errors.New("secret key must be 32 bytes")
	}
	privKey, _ := btcec.PrivKeyFromBytes(secretKey)
	if privKey == nil {
		return "", errors.New("invalid secret key")
	}
	return hex.EncodeToString(schnorr.SerializePubKey(privKey.PubKey())), nil
}

// ValidateEventSignature verifies the event's ID and Schnorr signature.
func ValidateEventSignature(evt *types.Event) bool {
	if len(evt.Sig) != 128 || len(evt.PubKey) != 64 {
		return false
	}
	if CalculateEventID(evt) != evt.ID {
		return false
	}

	sigBytes, err := hex.DecodeString(evt.Sig)
	if err != nil {
		return false
	}
	pubKeyBytes, err := hex.DecodeString(evt.PubKey)
	if err != nil {
		return false
	}
	idBytes, err := hex.DecodeString(evt.ID)
	if err != nil {
		return false
	}

	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false
	}
	pubKey, err := schnorr.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false
	}
	return sig.Verify(idBytes, pubKey)
}

// ParseEventFromInterface converts raw websocket data to an Event
// (avoids a JSON re-encoding round trip). Events with an invalid
// signature are rejected.
func ParseEventFromInterface(data interface{}) (types.Event, bool) {
	m, ok := data.(map[string]interface{})
	if !ok {
		return types.Event{}, false
	}

	evt := types.Event{}
	if id, ok := m["id"].(string); ok {
		evt.ID = id
	}
	if pk, ok := m["pubkey"].(string); ok {
		evt.PubKey = pk
	}
	if createdAt, ok := m["created_at"].(float64); ok {
		evt.CreatedAt = int64(createdAt)
	}
	if kind, ok := m["kind"].(float64); ok {
		evt.Kind = int(kind)
	}
	if content, ok := m["content"].(string); ok {
		evt.Content = content
	}
	if sig, ok := m["sig"].(string); ok {
		evt.Sig = sig
	}
	if tags, ok := m["tags"].([]interface{}); ok {
		evt.Tags = make([][]string, 0, len(tags))
		for _, tag := range tags {
			tagArr, ok := tag.([]interface{})
			if !ok {
				continue
			}
			strTag := make([]string, 0, len(tagArr))
			for _, elem := range tagArr {
				if s, ok := elem.(string); ok {
					strTag = append(strTag, s)
				}
			}
			evt.Tags = append(evt.Tags, strTag)
		}
	}

	if evt.Sig != "" && !ValidateEventSignature(&evt) {
		slog.Warn("event signature validation failed", "event_id", ShortID(evt.ID))
		return types.Event{}, false
	}
	return evt, true
}

// ShortID returns a truncated event ID suitable for log output.
func ShortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

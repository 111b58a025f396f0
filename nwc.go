package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"nostr-columns/internal/nostr"
	"nostr-columns/internal/types"
)

// NWC (Nostr Wallet Connect) client, NIP-47. The core only enqueues
// pay_invoice requests over the wallet relay; settlement happens on the
// wallet's side and is observed via kind 23195 responses.

// NWCConfig holds wallet connection parameters extracted from the URI
type NWCConfig struct {
	WalletPubKey    []byte `json:"wallet_pubkey"`    // wallet's public key (32 bytes)
	Relay           string `json:"relay"`            // relay URL for communication
	Secret          []byte `json:"secret"`           // secret key for signing requests (32 bytes)
	ClientPubKey    []byte `json:"client_pubkey"`    // derived from Secret
	ConversationKey []byte `json:"conversation_key"` // pre-computed NIP-44 key
}

// NWCRequest is a JSON-RPC request to the wallet
type NWCRequest struct {
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

// NWCPayInvoiceParams are the parameters for the pay_invoice method
type NWCPayInvoiceParams struct {
	Invoice string `json:"invoice"`
}

// NWCResponse is a JSON-RPC response from the wallet
type NWCResponse struct {
	ResultType string          `json:"result_type"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      *NWCError       `json:"error,omitempty"`
}

// NWCError represents an error from the wallet
type NWCError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NWCPayInvoiceResult is the result of a successful payment
type NWCPayInvoiceResult struct {
	Preimage string `json:"preimage"`
}

// ParseNWCURI parses a nostr+walletconnect:// URI into NWCConfig.
// Format: nostr+walletconnect://<wallet-pubkey>?relay=<wss://...>&secret=<hex>
func ParseNWCURI(nwcURI string) (*NWCConfig, error) {
	if !strings.HasPrefix(nwcURI, "nostr+walletconnect://") {
		return nil, errors.New("invalid NWC URI: must start with nostr+walletconnect://")
	}

	// Go's url.Parse doesn't like the nostr+walletconnect scheme
	parseable := strings.Replace(nwcURI, "nostr+walletconnect://", "https://", 1)
	u, err := url.Parse(parseable)
	if err != nil {
		return nil, fmt.Errorf("invalid NWC URI: %w", err)
	}

	walletPubKeyHex := u.Host
	if len(walletPubKeyHex) != 64 {
		return nil, errors.New("invalid wallet pubkey: must be 64 hex characters")
	}
	walletPubKey, err := hex.DecodeString(walletPubKeyHex)
	if err != nil {
		return nil, errors.New("invalid wallet pubkey: not valid hex")
	}

	relay := u.Query().Get("relay")
	if relay == "" {
		return nil, errors.New("NWC URI must include relay parameter")
	}
	if !strings.HasPrefix(relay, "wss://") && !strings.HasPrefix(relay, "ws://") {
		return nil, errors.New("invalid relay URL: must start with wss:// or ws://")
	}

	secretHex := u.Query().Get("secret")
	if len(secretHex) != 64 {
		return nil, errors.New("NWC URI must include a 64-char hex secret")
	}
	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, errors.New("invalid secret: not valid hex")
	}

	clientPubKey, err := GetPublicKey(secret)
	if err != nil {
		return nil, fmt.Errorf("derive client pubkey: %w", err)
	}
	conversationKey, err := GetConversationKey(secret, walletPubKey)
	if err != nil {
		return nil, fmt.Errorf("derive conversation key: %w", err)
	}

	return &NWCConfig{
		WalletPubKey:    walletPubKey,
		Relay:           relay,
		Secret:          secret,
		ClientPubKey:    clientPubKey,
		ConversationKey: conversationKey,
	}, nil
}

// BuildPayInvoiceEvent builds and signs the kind 23194 request event
// carrying an encrypted pay_invoice call.
func (c *NWCConfig) BuildPayInvoiceEvent(invoice string) (*types.Event, error) {
	reqJSON, err := json.Marshal(NWCRequest{
		Method: "pay_invoice",
		Params: NWCPayInvoiceParams{Invoice: invoice},
	})
	if err != nil {
		return nil, err
	}

	encrypted, err := Nip44Encrypt(string(reqJSON), c.ConversationKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt NWC request: %w", err)
	}

	evt := &types.Event{
		CreatedAt: time.Now().Unix(),
		Kind:      types.KindNWCRequest,
		Tags: [][]string{
			{"p", hex.EncodeToString(c.WalletPubKey)},
			{"encryption", "nip44_v2"},
		},
		Content: encrypted,
	}
	if err := nostr.SignEvent(evt, c.Secret); err != nil {
		return nil, fmt.Errorf("sign NWC request: %w", err)
	}
	return evt, nil
}

// PayInvoice enqueues a pay_invoice request on the wallet relay. It
// does not wait for the wallet's response.
func (c *NWCConfig) PayInvoice(ctx context.Context, pool *RelayPool, invoice string) error {
	evt, err := c.BuildPayInvoiceEvent(invoice)
	if err != nil {
		return err
	}
	return pool.PublishTo(ctx, c.Relay, evt)
}

// DecryptResponse decrypts a kind 23195 wallet response.
func (c *NWCConfig) DecryptResponse(evt *types.Event) (*NWCResponse, error) {
	if evt.Kind != types.KindNWCResponse {
		return nil, errors.New("not an NWC response event")
	}
	plaintext, err := Nip44Decrypt(evt.Content, c.ConversationKey)
	if err != nil {
		return nil, err
	}
	var resp NWCResponse
	if err := json.Unmarshal([]byte(plaintext), &resp); err != nil {
		return nil, fmt.Errorf("parse NWC response: %w", err)
	}
	return &resp, nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nostr-columns/internal/nips"
	"nostr-columns/internal/types"
)

// LNURL-pay handling for Lightning zap payments (LUD-06/LUD-16, NIP-57)

const lnurlHTTPTimeout = 10 * time.Second

// validateExternalURL validates that a URL is safe to fetch (SSRF prevention)
func validateExternalURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return fmt.Errorf("invalid scheme: %s (expected https)", parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "::1" ||
		host == "0.0.0.0" || strings.HasSuffix(host, ".local") ||
		strings.HasSuffix(host, ".internal") {
		return errors.New("internal hosts not allowed")
	}

	// Basic private-range rejection
	for _, prefix := range []string{"10.", "192.168.", "169.254.", "172.16.", "172.17.",
		"172.18.", "172.19.", "172.2", "172.30.", "172.31."} {
		if strings.HasPrefix(host, prefix) {
			return errors.New("private IP ranges not allowed")
		}
	}
	return nil
}

// LNURLPayInfo contains the payment endpoint info from the initial LNURL fetch
type LNURLPayInfo struct {
	Callback       string `json:"callback"`
	MinSendable    int64  `json:"minSendable"` // millisats
	MaxSendable    int64  `json:"maxSendable"` // millisats
	Metadata       string `json:"metadata"`
	Tag            string `json:"tag"`         // should be "payRequest"
	AllowsNostr    bool   `json:"allowsNostr"` // supports NIP-57 zaps
	NostrPubkey    string `json:"nostrPubkey"` // pubkey for zap receipts
	CommentAllowed int    `json:"commentAllowed"`

	// LNURL carries the bech32 endpoint when resolved from lud06, for
	// the lnurl= callback parameter zap receipts verify against.
	LNURL string `json:"-"`
}

// LNURLPayResponse contains the invoice from the callback
type LNURLPayResponse struct {
	PR string `json:"pr"` // BOLT11 invoice
}

// LNURLError is returned on LNURL errors
type LNURLError struct {
	Status string `json:"status"` // "ERROR"
	Reason string `json:"reason"`
}

// ResolveLNURLFromProfile extracts and resolves LNURL pay info from a
// profile's lud16/lud06. Returns an error if no Lightning address is
// configured.
func ResolveLNURLFromProfile(profile *types.ProfileInfo) (*LNURLPayInfo, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}
	if profile.Lud16 != "" {
		return ResolveLud16(profile.Lud16)
	}
	if profile.Lud06 != "" {
		return ResolveLud06(profile.Lud06)
	}
	return nil, errors.New("no Lightning address configured")
}

// ResolveLud16 resolves a Lightning address (user@domain.com) to LNURL pay info
func ResolveLud16(lud16 string) (*LNURLPayInfo, error) {
	parts := strings.SplitN(lud16, "@", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, errors.New("invalid lud16 format: expected user@domain")
	}

	lnurlURL := fmt.Sprintf("https://%s/.well-known/lnurlp/%s", parts[1], strings.ToLower(parts[0]))
	return fetchLNURLPayInfo(lnurlURL, "")
}

// ResolveLud06 decodes a bech32 LNURL and fetches the pay info
func ResolveLud06(lud06 string) (*LNURLPayInfo, error) {
	lud06 = strings.ToLower(lud06)
	if !strings.HasPrefix(lud06, "lnurl1") {
		return nil, errors.New("invalid lud06: must start with lnurl1")
	}

	hrp, urlBytes, err := nips.DecodeBytes(lud06)
	if err != nil {
		return nil, fmt.Errorf("failed to decode lnurl: %w", err)
	}
	if hrp != "lnurl" {
		return nil, errors.New("invalid lnurl hrp")
	}

	return fetchLNURLPayInfo(string(urlBytes), lud06)
}

func fetchLNURLPayInfo(lnurlURL, bech32LNURL string) (*LNURLPayInfo, error) {
	if err := validateExternalURL(lnurlURL); err != nil {
		return nil, fmt.Errorf("invalid lnurl: %w", err)
	}

	body, err := fetchJSON(lnurlURL)
	if err != nil {
		return nil, err
	}

	var lnurlErr LNURLError
	if err := json.Unmarshal(body, &lnurlErr); err == nil && lnurlErr.Status == "ERROR" {
		return nil, fmt.Errorf("lnurl error: %s", lnurlErr.Reason)
	}

	var info LNURLPayInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse lnurl response: %w", err)
	}

	if info.Tag != "payRequest" {
		return nil, fmt.Errorf("unexpected lnurl tag: %s (expected payRequest)", info.Tag)
	}
	if info.Callback == "" {
		return nil, errors.New("lnurl missing callback")
	}
	if info.MinSendable <= 0 || info.MaxSendable <= 0 {
		return nil, errors.New("lnurl missing amount limits")
	}

	info.LNURL = bech32LNURL
	return &info, nil
}

// RequestInvoice requests a BOLT11 invoice from the LNURL callback.
// zapRequestJSON is a signed kind 9734 event for NIP-57 zaps; pass ""
// for a plain (non-zap) payment.
func RequestInvoice(info *LNURLPayInfo, amountMsats int64, zapRequestJSON string) (string, error) {
	if err := validateExternalURL(info.Callback); err != nil {
		return "", fmt.Errorf("invalid callback URL: %w", err)
	}
	if amountMsats < info.MinSendable {
		return "", fmt.Errorf("amount %d msats below minimum %d", amountMsats, info.MinSendable)
	}
	if amountMsats > info.MaxSendable {
		return "", fmt.Errorf("amount %d msats above maximum %d", amountMsats, info.MaxSendable)
	}

	callbackURL, err := url.Parse(info.Callback)
	if err != nil {
		return "", fmt.Errorf("invalid callback URL: %w", err)
	}

	query := callbackURL.Query()
	query.Set("amount", fmt.Sprintf("%d", amountMsats))
	if zapRequestJSON != "" {
		// Caller verifies AllowsNostr before attaching the zap request
		query.Set("nostr", zapRequestJSON)
		if info.LNURL != "" {
			query.Set("lnurl", info.LNURL)
		}
	}
	callbackURL.RawQuery = query.Encode()

	body, err := fetchJSON(callbackURL.String())
	if err != nil {
		return "", err
	}

	var lnurlErr LNURLError
	if err := json.Unmarshal(body, &lnurlErr); err == nil && lnurlErr.Status == "ERROR" {
		return "", fmt.Errorf("callback error: %s", lnurlErr.Reason)
	}

	var payResp LNURLPayResponse
	if err := json.Unmarshal(body, &payResp); err != nil {
		return "", fmt.Errorf("failed to parse callback response: %w", err)
	}
	if payResp.PR == "" {
		return "", errors.New("callback returned empty invoice")
	}
	return payResp.PR, nil
}

func fetchJSON(rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), lnurlHTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lnurl fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lnurl endpoint returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// SatsToMsats converts satoshis to millisatoshis
func SatsToMsats(sats int64) int64 {
	return sats * 1000
}

// MsatsToSats converts millisatoshis to satoshis (rounds down)
func MsatsToSats(msats int64) int64 {
	return msats / 1000
}

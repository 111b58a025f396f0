package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skip2/go-qrcode"

	"nostr-columns/internal/nostr"
	"nostr-columns/internal/types"
)

// The zap subsystem owns the per-(sender,target) payment ledger and the
// asynchronous send pipeline: LNURL resolution, NIP-57 zap request,
// invoice fetch, and NIP-47 wallet payment. The dispatcher only
// enqueues sends; it never waits on network results.

// NoteZapTarget identifies the note being zapped.
type NoteZapTarget struct {
	NoteID string // event ID hex
	Author string // author pubkey hex
}

// ZapTargetAmount pairs a target with an optional caller-chosen amount.
// A nil SpecifiedMsats means "use the wallet's default".
type ZapTargetAmount struct {
	Target         NoteZapTarget
	SpecifiedMsats *uint64
}

// ZapErrorKind classifies zap failures for inline UI rendering.
type ZapErrorKind string

const (
	ZapErrSenderNoWallet   ZapErrorKind = "sender_no_wallet"
	ZapErrResolveRecipient ZapErrorKind = "resolve_recipient"
	ZapErrFetchInvoice     ZapErrorKind = "fetch_invoice"
	ZapErrPay              ZapErrorKind = "pay"
)

// ZapError is a structured, user-visible zap failure.
type ZapError struct {
	Kind    ZapErrorKind
	Message string
}

func (e *ZapError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ZapStatus is the lifecycle state of one zap attempt.
type ZapStatus int

const (
	ZapStatePending ZapStatus = iota
	ZapStateSent
	ZapStateError
)

// ZapState is the ledger entry for one (sender, target) pair.
type ZapState struct {
	Status    ZapStatus
	Msats     uint64
	Invoice   string // BOLT11, once fetched
	InvoiceQR []byte // PNG for manual payment display
	Err       *ZapError
}

type zapKey struct {
	sender string
	target NoteZapTarget
}

// Zaps is the payment subsystem.
type Zaps struct {
	mu     sync.Mutex
	states map[zapKey]*ZapState

	db   *NoteDB
	pool *RelayPool

	// Collaborators, injectable for tests
	resolveRecipient func(profile *types.ProfileInfo) (*LNURLPayInfo, error)
	fetchInvoice     func(info *LNURLPayInfo, msats int64, zapRequestJSON string) (string, error)
	payInvoice       func(ctx context.Context, nwc *NWCConfig, invoice string) error
}

// NewZaps creates the zap subsystem with real network collaborators.
func NewZaps(db *NoteDB, pool *RelayPool) *Zaps {
	return &Zaps{
		states:           make(map[zapKey]*ZapState),
		db:               db,
		pool:             pool,
		resolveRecipient: ResolveLNURLFromProfile,
		fetchInvoice:     RequestInvoice,
		payInvoice: func(ctx context.Context, nwc *NWCConfig, invoice string) error {
			return nwc.PayInvoice(ctx, pool, invoice)
		},
	}
}

// SendZap records a pending zap and enqueues the asynchronous send.
// The amount is fixed here so the ledger reflects what was requested
// even before the invoice exists.
func (z *Zaps) SendZap(sender *Account, wallet *Wallet, relays []string, target NoteZapTarget, msats uint64) {
	key := zapKey{sender: sender.PubKey, target: target}

	z.mu.Lock()
	z.states[key] = &ZapState{Status: ZapStatePending, Msats: msats}
	z.mu.Unlock()

	zapsSentTotal.Add(1)
	go func() {
		if err := z.send(sender, wallet, relays, target, msats); err != nil {
			slog.Error("zap send failed", "target", nostr.ShortID(target.NoteID), "error", err)
		}
	}()
}

// send runs the full zap pipeline. Errors land in the ledger as
// structured failures; the return value is for logging only.
func (z *Zaps) send(sender *Account, wallet *Wallet, relays []string, target NoteZapTarget, msats uint64) error {
	key := zapKey{sender: sender.PubKey, target: target}

	profile := z.recipientProfile(target.Author)
	info, err := z.resolveRecipient(profile)
	if err != nil {
		z.setError(key, ZapErrResolveRecipient, err)
		return err
	}

	zapRequestJSON := ""
	if info.AllowsNostr {
		zapRequestJSON, err = buildZapRequest(sender, relays, target, msats)
		if err != nil {
			z.setError(key, ZapErrFetchInvoice, err)
			return err
		}
	}

	invoice, err := z.fetchInvoice(info, int64(msats), zapRequestJSON)
	if err != nil {
		z.setError(key, ZapErrFetchInvoice, err)
		return err
	}

	// QR is kept alongside so the UI can offer manual payment
	qr, qrErr := qrcode.Encode("lightning:"+invoice, qrcode.Medium, 256)
	if qrErr != nil {
		slog.Warn("invoice QR encoding failed", "error", qrErr)
	}

	z.mu.Lock()
	if state, ok := z.states[key]; ok {
		state.Invoice = invoice
		state.InvoiceQR = qr
	}
	z.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := z.payInvoice(ctx, wallet.NWC, invoice); err != nil {
		z.setError(key, ZapErrPay, err)
		return err
	}

	z.mu.Lock()
	if state, ok := z.states[key]; ok {
		state.Status = ZapStateSent
	}
	z.mu.Unlock()
	return nil
}

// recipientProfile reads the target author's profile in a short read txn.
func (z *Zaps) recipientProfile(author string) *types.ProfileInfo {
	txn := z.db.NewTxn()
	defer txn.End()
	profile, ok := txn.ProfileFor(author)
	if !ok {
		return nil
	}
	return profile
}

// SendError records a structured failure without attempting a send.
func (z *Zaps) SendError(sender string, target NoteZapTarget, kind ZapErrorKind) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.states[zapKey{sender: sender, target: target}] = &ZapState{
		Status: ZapStateError,
		Err:    &ZapError{Kind: kind},
	}
	zapFailuresTotal.Add(1)
}

// ClearError removes a recorded failure for (sender, target). No-op if
// none exists or the entry isn't a failure.
func (z *Zaps) ClearError(sender string, target NoteZapTarget) {
	z.mu.Lock()
	defer z.mu.Unlock()
	key := zapKey{sender: sender, target: target}
	if state, ok := z.states[key]; ok && state.Status == ZapStateError {
		delete(z.states, key)
	}
}

// ErrorFor returns the recorded failure for (sender, target), if any.
func (z *Zaps) ErrorFor(sender string, target NoteZapTarget) *ZapError {
	z.mu.Lock()
	defer z.mu.Unlock()
	if state, ok := z.states[zapKey{sender: sender, target: target}]; ok && state.Status == ZapStateError {
		return state.Err
	}
	return nil
}

// StateFor returns the ledger entry for (sender, target).
func (z *Zaps) StateFor(sender string, target NoteZapTarget) (*ZapState, bool) {
	z.mu.Lock()
	defer z.mu.Unlock()
	state, ok := z.states[zapKey{sender: sender, target: target}]
	return state, ok
}

// Len returns the number of ledger entries.
func (z *Zaps) Len() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return len(z.states)
}

func (z *Zaps) setError(key zapKey, kind ZapErrorKind, err error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.states[key] = &ZapState{
		Status: ZapStateError,
		Err:    &ZapError{Kind: kind, Message: err.Error()},
	}
	zapFailuresTotal.Add(1)
}

// buildZapRequest builds and signs the NIP-57 kind 9734 zap request.
func buildZapRequest(sender *Account, relays []string, target NoteZapTarget, msats uint64) (string, error) {
	if !sender.CanSign() {
		return "", errors.New("sender account cannot sign")
	}

	relayTag := append([]string{"relays"}, relays...)
	evt := &types.Event{
		CreatedAt: time.Now().Unix(),
		Kind:      types.KindZapRequest,
		Tags: [][]string{
			relayTag,
			{"amount", fmt.Sprintf("%d", msats)},
			{"p", target.Author},
			{"e", target.NoteID},
		},
		Content: "",
	}
	if err := nostr.SignEvent(evt, sender.SecretKey()); err != nil {
		return "", fmt.Errorf("sign zap request: %w", err)
	}

	raw, err := json.Marshal(evt)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

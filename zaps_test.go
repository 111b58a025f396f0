package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nostr-columns/internal/types"
)

func TestSendZapRecordsPendingAmountImmediately(t *testing.T) {
	h := newHarness(t)
	acc := h.login(t)
	h.attachWallet(5000)
	// Hold the pipeline so the pending state stays observable
	release := make(chan struct{})
	h.zaps.resolveRecipient = func(profile *types.ProfileInfo) (*LNURLPayInfo, error) {
		<-release
		return nil, errors.New("held")
	}
	defer close(release)

	target := NoteZapTarget{NoteID: hexID(1), Author: hexID(0xaa)}
	h.zaps.SendZap(acc, h.global.Wallet, nil, target, 777)

	state, ok := h.zaps.StateFor(acc.PubKey, target)
	require.True(t, ok)
	assert.Equal(t, ZapStatePending, state.Status)
	assert.Equal(t, uint64(777), state.Msats)
}

func TestSendZapPipelineReachesSent(t *testing.T) {
	h := newHarness(t)
	acc := h.login(t)
	h.attachWallet(5000)

	target := NoteZapTarget{NoteID: hexID(1), Author: hexID(0xaa)}
	h.zaps.SendZap(acc, h.global.Wallet, []string{"wss://relay.example"}, target, 5000)

	require.Eventually(t, func() bool {
		state, ok := h.zaps.StateFor(acc.PubKey, target)
		return ok && state.Status == ZapStateSent
	}, 2*time.Second, 10*time.Millisecond)

	state, _ := h.zaps.StateFor(acc.PubKey, target)
	assert.Equal(t, "lnbc1testinvoice", state.Invoice)
	assert.NotEmpty(t, state.InvoiceQR, "a QR image accompanies the invoice")
}

func TestSendZapResolveFailureLandsInLedger(t *testing.T) {
	h := newHarness(t)
	acc := h.login(t)
	h.attachWallet(5000)
	h.zaps.resolveRecipient = func(profile *types.ProfileInfo) (*LNURLPayInfo, error) {
		return nil, errors.New("no lightning address")
	}

	target := NoteZapTarget{NoteID: hexID(1), Author: hexID(0xaa)}
	h.zaps.SendZap(acc, h.global.Wallet, nil, target, 5000)

	require.Eventually(t, func() bool {
		return h.zaps.ErrorFor(acc.PubKey, target) != nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, ZapErrResolveRecipient, h.zaps.ErrorFor(acc.PubKey, target).Kind)
}

func TestSendZapPayFailureLandsInLedger(t *testing.T) {
	h := newHarness(t)
	acc := h.login(t)
	h.attachWallet(5000)
	h.zaps.payInvoice = func(ctx context.Context, nwc *NWCConfig, invoice string) error {
		return errors.New("wallet offline")
	}

	target := NoteZapTarget{NoteID: hexID(1), Author: hexID(0xaa)}
	h.zaps.SendZap(acc, h.global.Wallet, nil, target, 5000)

	require.Eventually(t, func() bool {
		return h.zaps.ErrorFor(acc.PubKey, target) != nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, ZapErrPay, h.zaps.ErrorFor(acc.PubKey, target).Kind)
}

func TestZapLedgerIsPerSenderAndTarget(t *testing.T) {
	h := newHarness(t)
	target1 := NoteZapTarget{NoteID: hexID(1), Author: hexID(0xaa)}
	target2 := NoteZapTarget{NoteID: hexID(2), Author: hexID(0xaa)}

	h.zaps.SendError("sender-a", target1, ZapErrPay)
	h.zaps.SendError("sender-b", target1, ZapErrPay)
	h.zaps.SendError("sender-a", target2, ZapErrPay)

	assert.Equal(t, 3, h.zaps.Len())

	h.zaps.ClearError("sender-a", target1)
	assert.Nil(t, h.zaps.ErrorFor("sender-a", target1))
	assert.NotNil(t, h.zaps.ErrorFor("sender-b", target1))
	assert.NotNil(t, h.zaps.ErrorFor("sender-a", target2))
}

func TestBuildZapRequestShape(t *testing.T) {
	accounts := NewAccounts()
	acc, err := accounts.AddFromSecretHex(testSecretHex)
	require.NoError(t, err)

	target := NoteZapTarget{NoteID: hexID(1), Author: hexID(0xaa)}
	raw, err := buildZapRequest(acc, []string{"wss://relay.example"}, target, 21000)
	require.NoError(t, err)

	var evt types.Event
	require.NoError(t, json.Unmarshal([]byte(raw), &evt))
	assert.Equal(t, types.KindZapRequest, evt.Kind)
	assert.Equal(t, acc.PubKey, evt.PubKey)
	assert.NotEmpty(t, evt.Sig)
	assert.Equal(t, []string{target.Author}, evt.TagValues("p"))
	assert.Equal(t, []string{target.NoteID}, evt.TagValues("e"))
	amount, ok := evt.FirstTagValue("amount")
	require.True(t, ok)
	assert.Equal(t, "21000", amount)
}

func TestBuildZapRequestWatchOnlyFails(t *testing.T) {
	accounts := NewAccounts()
	acc := accounts.AddWatchOnly(hexID(0xbb))

	_, err := buildZapRequest(acc, nil, NoteZapTarget{NoteID: hexID(1), Author: hexID(0xaa)}, 1000)
	assert.Error(t, err)
}

func TestGetWalletForPrefersAccountWallet(t *testing.T) {
	accounts := NewAccounts()
	acc, err := accounts.AddFromSecretHex(testSecretHex)
	require.NoError(t, err)

	globalWallet := &Wallet{NWC: &NWCConfig{}, DefaultZapMsats: 100}
	accountWallet := &Wallet{NWC: &NWCConfig{}, DefaultZapMsats: 200}
	global := &GlobalWallet{Wallet: globalWallet}

	assert.Same(t, globalWallet, getWalletFor(accounts, global, acc.PubKey))

	acc.Wallet = accountWallet
	assert.Same(t, accountWallet, getWalletFor(accounts, global, acc.PubKey))

	acc.Wallet = nil
	global.Wallet = nil
	assert.Nil(t, getWalletFor(accounts, global, acc.PubKey))
}

func TestWalletDefaultZapFallback(t *testing.T) {
	w := &Wallet{NWC: &NWCConfig{}}
	assert.Equal(t, uint64(defaultZapMsats), w.DefaultZap())

	w.DefaultZapMsats = 42
	assert.Equal(t, uint64(42), w.DefaultZap())
}

package main

import (
	"encoding/hex"
	"errors"

	"nostr-columns/internal/nostr"
)

// Account is a keypair identity the client can act as. Watch-only
// accounts carry no secret and cannot sign.
type Account struct {
	PubKey string
	secret []byte
	Wallet *Wallet // per-account wallet override, may be nil
}

// CanSign reports whether the account holds its secret key.
func (a *Account) CanSign() bool {
	return len(a.secret) == 32
}

// SecretKey returns the account's 32-byte secret, or nil for watch-only.
func (a *Account) SecretKey() []byte {
	return a.secret
}

// Accounts owns the set of known accounts and the active selection.
// Zap actions are gated on a selected account.
type Accounts struct {
	accounts []*Account
	selected int // index into accounts, -1 when none selected
}

// NewAccounts creates an empty account set with no selection.
func NewAccounts() *Accounts {
	return &Accounts{selected: -1}
}

// AddFromSecretHex adds a signing account from a 64-char hex secret key
// and selects it if nothing is selected yet.
func (a *Accounts) AddFromSecretHex(secretHex string) (*Account, error) {
	secret, err := hex.DecodeString(secretHex)
	if err != nil || len(secret) != 32 {
		return nil, errors.New("secret key must be 32 bytes of hex")
	}

	pubkey, err := nostr.DerivePubKey(secret)
	if err != nil {
		return nil, err
	}

	acc := &Account{PubKey: pubkey, secret: secret}
	a.accounts = append(a.accounts, acc)
	if a.selected < 0 {
		a.selected = len(a.accounts) - 1
	}
	return acc, nil
}

// AddWatchOnly adds an account by pubkey without signing ability.
func (a *Accounts) AddWatchOnly(pubkey string) *Account {
	acc := &Account{PubKey: pubkey}
	a.accounts = append(a.accounts, acc)
	return acc
}

// Select makes the account with the given pubkey the active one.
func (a *Accounts) Select(pubkey string) bool {
	for i, acc := range a.accounts {
		if acc.PubKey == pubkey {
			a.selected = i
			return true
		}
	}
	return false
}

// Deselect clears the active account.
func (a *Accounts) Deselect() {
	a.selected = -1
}

// GetSelectedAccount returns the active account, or nil when none is
// selected.
func (a *Accounts) GetSelectedAccount() *Account {
	if a.selected < 0 || a.selected >= len(a.accounts) {
		return nil
	}
	return a.accounts[a.selected]
}

// Len returns the number of known accounts.
func (a *Accounts) Len() int {
	return len(a.accounts)
}

package main

import (
	"fmt"
)

// Wallet pairs an NWC connection with zap preferences.
type Wallet struct {
	NWC *NWCConfig

	// DefaultZapMsats is the amount used when a zap doesn't specify one.
	DefaultZapMsats uint64
}

// NewWalletFromURI builds a wallet from a nostr+walletconnect:// URI.
func NewWalletFromURI(nwcURI string, defaultMsats uint64) (*Wallet, error) {
	nwc, err := ParseNWCURI(nwcURI)
	if err != nil {
		return nil, fmt.Errorf("parse wallet URI: %w", err)
	}
	if defaultMsats == 0 {
		defaultMsats = defaultZapMsats
	}
	return &Wallet{NWC: nwc, DefaultZapMsats: defaultMsats}, nil
}

// DefaultZap returns the wallet's configured default zap amount.
func (w *Wallet) DefaultZap() uint64 {
	if w.DefaultZapMsats == 0 {
		return defaultZapMsats
	}
	return w.DefaultZapMsats
}

// GlobalWallet is the app-level wallet used by accounts that don't
// carry their own.
type GlobalWallet struct {
	Wallet *Wallet
}

// getWalletFor resolves the wallet a sender should pay with: the
// sender's per-account wallet when configured, otherwise the global
// one. Returns nil when neither exists.
func getWalletFor(accounts *Accounts, global *GlobalWallet, senderPubkey string) *Wallet {
	for _, acc := range accounts.accounts {
		if acc.PubKey == senderPubkey && acc.Wallet != nil {
			return acc.Wallet
		}
	}
	if global != nil {
		return global.Wallet
	}
	return nil
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nostr-columns/internal/nips"
	"nostr-columns/internal/types"
)

func TestValidateExternalURL(t *testing.T) {
	ok := []string{
		"https://pay.example/.well-known/lnurlp/alice",
		"https://getalby.com/lnurlp/bob",
	}
	for _, u := range ok {
		assert.NoError(t, validateExternalURL(u), u)
	}

	bad := []string{
		"ftp://pay.example/x",
		"https://localhost/x",
		"https://127.0.0.1/x",
		"https://10.0.0.5/x",
		"https://192.168.1.1/x",
		"https://169.254.1.1/x",
		"https://service.internal/x",
		"https://printer.local/x",
	}
	for _, u := range bad {
		assert.Error(t, validateExternalURL(u), u)
	}
}

func TestResolveLNURLFromProfile(t *testing.T) {
	_, err := ResolveLNURLFromProfile(nil)
	assert.Error(t, err)

	_, err = ResolveLNURLFromProfile(&types.ProfileInfo{Name: "no-lightning"})
	assert.Error(t, err)
}

func TestResolveLud16RejectsMalformedAddress(t *testing.T) {
	for _, addr := range []string{"nodomain", "@domain.com", "user@", ""} {
		_, err := ResolveLud16(addr)
		assert.Error(t, err, addr)
	}
}

func TestResolveLud06RejectsMalformedLNURL(t *testing.T) {
	_, err := ResolveLud06("nprofile1qqs...")
	assert.Error(t, err)

	// Valid bech32 but wrong hrp
	wrongHRP, err := nips.EncodeBytes("note", []byte("https://x.example"))
	require.NoError(t, err)
	_, err = ResolveLud06(wrongHRP)
	assert.Error(t, err)
}

func TestRequestInvoiceEnforcesAmountBounds(t *testing.T) {
	info := &LNURLPayInfo{
		Callback:    "https://pay.example/cb",
		MinSendable: 1000,
		MaxSendable: 100000,
		Tag:         "payRequest",
	}

	_, err := RequestInvoice(info, 500, "")
	assert.ErrorContains(t, err, "below minimum")

	_, err = RequestInvoice(info, 200000, "")
	assert.ErrorContains(t, err, "above maximum")
}

func TestRequestInvoiceRejectsUnsafeCallback(t *testing.T) {
	info := &LNURLPayInfo{
		Callback:    "https://127.0.0.1/cb",
		MinSendable: 1,
		MaxSendable: 100000,
	}
	_, err := RequestInvoice(info, 1000, "")
	assert.Error(t, err)
}

func TestSatsMsatsConversion(t *testing.T) {
	assert.Equal(t, int64(21000), SatsToMsats(21))
	assert.Equal(t, int64(21), MsatsToSats(21000))
	assert.Equal(t, int64(0), MsatsToSats(999))
}

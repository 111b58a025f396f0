package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFromSecretHexSelectsFirstAccount(t *testing.T) {
	accounts := NewAccounts()
	assert.Nil(t, accounts.GetSelectedAccount())

	acc, err := accounts.AddFromSecretHex(testSecretHex)
	require.NoError(t, err)
	assert.True(t, acc.CanSign())
	assert.Len(t, acc.PubKey, 64)

	selected := accounts.GetSelectedAccount()
	require.NotNil(t, selected)
	assert.Equal(t, acc.PubKey, selected.PubKey)
}

func TestAddFromSecretHexRejectsBadKeys(t *testing.T) {
	accounts := NewAccounts()

	_, err := accounts.AddFromSecretHex("nothex")
	assert.Error(t, err)

	_, err = accounts.AddFromSecretHex("abcd")
	assert.Error(t, err)
	assert.Equal(t, 0, accounts.Len())
}

func TestWatchOnlyCannotSign(t *testing.T) {
	accounts := NewAccounts()
	acc := accounts.AddWatchOnly(hexID(0xaa))

	assert.False(t, acc.CanSign())
	assert.Nil(t, acc.SecretKey())
	assert.Nil(t, accounts.GetSelectedAccount(), "watch-only accounts are not auto-selected")
}

func TestSelectAndDeselect(t *testing.T) {
	accounts := NewAccounts()
	signer, err := accounts.AddFromSecretHex(testSecretHex)
	require.NoError(t, err)
	watcher := accounts.AddWatchOnly(hexID(0xbb))

	assert.True(t, accounts.Select(watcher.PubKey))
	assert.Equal(t, watcher.PubKey, accounts.GetSelectedAccount().PubKey)

	assert.True(t, accounts.Select(signer.PubKey))
	assert.Equal(t, signer.PubKey, accounts.GetSelectedAccount().PubKey)

	assert.False(t, accounts.Select(hexID(0xcc)))

	accounts.Deselect()
	assert.Nil(t, accounts.GetSelectedAccount())
	assert.Equal(t, 2, accounts.Len())
}

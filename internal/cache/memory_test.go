package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheSetGetDelete(t *testing.T) {
	mc := NewMemoryCache(16, time.Minute)
	defer mc.Close()
	ctx := context.Background()

	_, found, err := mc.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, mc.Set(ctx, "k", []byte("v"), time.Minute))
	val, found, err := mc.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, mc.Delete(ctx, "k"))
	_, found, _ = mc.Get(ctx, "k")
	assert.False(t, found)
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache(16, time.Minute)
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, found, err := mc.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found, "expired entries are invisible even before cleanup runs")
}

func TestMemoryCacheCleanupEnforcesCap(t *testing.T) {
	mc := NewMemoryCache(2, time.Minute)
	defer mc.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, mc.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Duration(i+1)*time.Hour))
	}
	mc.cleanup()

	var live int
	for i := 0; i < 5; i++ {
		if _, found, _ := mc.Get(ctx, fmt.Sprintf("k%d", i)); found {
			live++
		}
	}
	assert.Equal(t, 2, live)

	// Entries closest to expiry go first
	_, found, _ := mc.Get(ctx, "k4")
	assert.True(t, found)
}

func TestMemoryCacheCloseIdempotent(t *testing.T) {
	mc := NewMemoryCache(16, time.Minute)
	require.NoError(t, mc.Close())
	require.NoError(t, mc.Close())
}

func TestNewSelectsBackend(t *testing.T) {
	backend, err := New(DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, backend)
	backend.Close()

	backend, err = New(Config{Backend: "memory", MaxEntries: 8, CleanupInterval: time.Minute})
	require.NoError(t, err)
	backend.Close()

	_, err = New(Config{Backend: "bogus"})
	assert.Error(t, err)
}

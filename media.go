package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"nostr-columns/internal/cache"
)

// Images is the media subsystem: it prefetches note media into the
// configured cache backend so the UI layer can render without waiting.
type Images struct {
	backend cache.Backend
	ttl     time.Duration

	// fetch is injectable for tests
	fetch func(url string) ([]byte, error)
}

const (
	mediaHTTPTimeout = 15 * time.Second
	maxMediaBytes    = 8 << 20 // 8 MiB per item
	mediaCacheTTL    = time.Hour
)

// NewImages creates the media subsystem on a cache backend.
func NewImages(backend cache.Backend) *Images {
	return &Images{
		backend: backend,
		ttl:     mediaCacheTTL,
		fetch:   fetchMedia,
	}
}

// Enqueue starts a background fetch of the URL into the cache. Already
// cached URLs are left alone.
func (im *Images) Enqueue(url string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mediaHTTPTimeout)
		defer cancel()

		if _, found, _ := im.backend.Get(ctx, mediaCacheKey(url)); found {
			IncrementCacheHit()
			return
		}
		IncrementCacheMiss()

		data, err := im.fetch(url)
		if err != nil {
			slog.Debug("media fetch failed", "url", url, "error", err)
			return
		}
		if err := im.backend.Set(ctx, mediaCacheKey(url), data, im.ttl); err != nil {
			slog.Warn("media cache write failed", "url", url, "error", err)
		}
	}()
}

// Get returns cached media bytes, if present.
func (im *Images) Get(ctx context.Context, url string) ([]byte, bool) {
	data, found, err := im.backend.Get(ctx, mediaCacheKey(url))
	if err != nil {
		slog.Warn("media cache read failed", "url", url, "error", err)
		return nil, false
	}
	return data, found
}

func mediaCacheKey(url string) string {
	return "media:" + url
}

func fetchMedia(url string) ([]byte, error) {
	if err := validateExternalURL(url); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), mediaHTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media endpoint returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
}

// MediaAction is a media intent delegated straight to the Images
// subsystem; it has no navigation or feed effect.
type MediaAction interface {
	Process(images *Images)
}

// FetchMediaAction prefetches one media URL.
type FetchMediaAction struct {
	URL string
}

func (a FetchMediaAction) Process(images *Images) {
	images.Enqueue(a.URL)
}

// ViewMediasAction prefetches every URL attached to a note's media view.
type ViewMediasAction struct {
	URLs []string
}

func (a ViewMediasAction) Process(images *Images) {
	for _, url := range a.URLs {
		images.Enqueue(url)
	}
}

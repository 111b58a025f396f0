package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
)

// DeckConfig represents the JSON configuration for the client core
type DeckConfig struct {
	Relays          []string `json:"relays"`
	DefaultZapMsats uint64   `json:"defaultZapMsats"`
	CacheBackend    string   `json:"cacheBackend"` // "memory" or "redis"
	RedisURL        string   `json:"redisURL"`
}

var (
	deckConfig     *DeckConfig
	deckConfigMu   sync.RWMutex
	deckConfigOnce sync.Once
)

// GetDeckConfig returns the current deck configuration (thread-safe)
func GetDeckConfig() *DeckConfig {
	deckConfigOnce.Do(func() {
		deckConfigMu.Lock()
		defer deckConfigMu.Unlock()
		if deckConfig == nil {
			deckConfig = loadDeckConfigFromFile()
		}
	})

	deckConfigMu.RLock()
	defer deckConfigMu.RUnlock()
	return deckConfig
}

// ReloadDeckConfig reloads the configuration from file
func ReloadDeckConfig() {
	newConfig := loadDeckConfigFromFile()
	deckConfigMu.Lock()
	defer deckConfigMu.Unlock()
	deckConfig = newConfig
	slog.Info("deck configuration reloaded")
}

func loadDeckConfigFromFile() *DeckConfig {
	configPath := os.Getenv("DECK_CONFIG")
	if configPath == "" {
		configPath = "config/deck.json"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("config file not found, using defaults", "path", configPath)
		} else {
			slog.Warn("could not read config, using defaults", "path", configPath, "error", err)
		}
		return getDefaultDeckConfig()
	}

	var config DeckConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Error("invalid JSON in config, using defaults", "path", configPath, "error", err)
		return getDefaultDeckConfig()
	}

	if len(config.Relays) == 0 {
		config.Relays = getDefaultDeckConfig().Relays
	}
	if config.DefaultZapMsats == 0 {
		config.DefaultZapMsats = defaultZapMsats
	}

	slog.Info("loaded deck configuration",
		"path", configPath,
		"relays", len(config.Relays),
		"default_zap_msats", config.DefaultZapMsats,
		"cache_backend", config.CacheBackend)
	return &config
}

// defaultZapMsats is the fallback zap amount (21 sats) when neither the
// config file nor the wallet specifies one.
const defaultZapMsats = 21_000

func getDefaultDeckConfig() *DeckConfig {
	return &DeckConfig{
		Relays: []string{
			"wss://relay.damus.io",
			"wss://nos.lol",
			"wss://relay.nostr.band",
		},
		DefaultZapMsats: defaultZapMsats,
		CacheBackend:    "memory",
	}
}

package cache

import (
	"fmt"
	"time"
)

// Config selects and sizes a cache backend.
type Config struct {
	Backend         string        // "memory" or "redis"
	RedisURL        string        // required when Backend is "redis"
	RedisPrefix     string        // key namespace for redis
	MaxEntries      int           // soft cap for the memory backend
	CleanupInterval time.Duration // expiry sweep cadence for the memory backend
}

// DefaultConfig returns the in-memory defaults.
func DefaultConfig() Config {
	return Config{
		Backend:         "memory",
		RedisPrefix:     "columns:",
		MaxEntries:      4096,
		CleanupInterval: time.Minute,
	}
}

// New constructs the backend described by the config.
func New(cfg Config) (Backend, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryCache(cfg.MaxEntries, cfg.CleanupInterval), nil
	case "redis":
		return NewRedisCache(cfg.RedisURL, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

package cache

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// CacheConfig holds configuration for the caching layer.
type CacheConfig struct {
	// Enabled controls whether caching is active. When false, no middleware
	// is applied and all requests pass through uncached.
	Enabled bool

	// SchemaTTL is the TTL for form schema endpoint caches. Schemas change
	// rarely, so this can be generous.
	SchemaTTL time.Duration

	// SubmissionTTL is the TTL for submission read endpoint caches.
	SubmissionTTL time.Duration

	// MaxSize is the maximum number of entries per cache instance.
	MaxSize int

	// RedisAddr, when non-empty, enables cross-instance invalidation over a
	// redis pub/sub channel.
	RedisAddr string

	// Channel is the redis channel carrying invalidation messages.
	Channel string
}

// DefaultCacheConfig returns a CacheConfig with sensible defaults.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Enabled:       true,
		SchemaTTL:     300 * time.Second,
		SubmissionTTL: 30 * time.Second,
		MaxSize:       1000,
		Channel:       "registry:invalidate",
	}
}

// CacheConfigFromEnv reads cache configuration from environment variables,
// falling back to defaults for any unset variable.
//
// Environment variables:
//   - REGISTRY_CACHE_ENABLED: "true" or "false" (default: "true")
//   - REGISTRY_CACHE_SCHEMA_TTL: duration in seconds (default: 300)
//   - REGISTRY_CACHE_SUBMISSION_TTL: duration in seconds (default: 30)
//   - REGISTRY_CACHE_MAX_SIZE: max entries per cache (default: 1000)
//   - REGISTRY_CACHE_REDIS_ADDR: redis host:port (default: unset, local only)
//   - REGISTRY_CACHE_CHANNEL: pub/sub channel (default: "registry:invalidate")
func CacheConfigFromEnv() *CacheConfig {
	cfg := DefaultCacheConfig()

	if v := os.Getenv("REGISTRY_CACHE_ENABLED"); v != "" {
		cfg.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("REGISTRY_CACHE_SCHEMA_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.SchemaTTL = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("REGISTRY_CACHE_SUBMISSION_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.SubmissionTTL = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("REGISTRY_CACHE_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSize = n
		}
	}
	if v := os.Getenv("REGISTRY_CACHE_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REGISTRY_CACHE_CHANNEL"); v != "" {
		cfg.Channel = v
	}
	return cfg
}

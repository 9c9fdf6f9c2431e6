package config

import "time"

// CacheConfig defines settings for the journey availability cache.  When
// Enabled is false or no Redis client is configured, availability is
// always read from MySQL.  TTL bounds how long a projection may be served
// after a write that failed to invalidate it.  Prefix namespaces the keys.
type CacheConfig struct {
    Enabled bool
    TTL     time.Duration
    Prefix  string
}

// LoadCacheConfig reads environment variables to build a CacheConfig.
// Defaults are used when variables are not set.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled: envBool("CACHE_ENABLED", true),
        TTL:     parseDur(getenv("CACHE_TTL", "30s")),
        Prefix:  getenv("CACHE_PREFIX", "cache"),
    }
}

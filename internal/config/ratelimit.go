package config

import "time"

// RateLimitConfig bounds how many seats an owner can book in a burst.
// Every ticket in a placed order spends one token; one token returns
// every RefillEvery until the bucket holds SeatBudget again.  With
// PerJourney set each (owner, journey) pair has its own bucket, so a
// single customer cannot sweep one train while still booking others.
type RateLimitConfig struct {
    Enabled     bool
    SeatBudget  int
    RefillEvery time.Duration
    PerJourney  bool
    Prefix      string
    Debug       bool
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.  Budgets below one
// seat and non-positive refill intervals are raised to the minimum.
func LoadRateLimitConfig() RateLimitConfig {
    cfg := RateLimitConfig{
        Enabled:     envBool("RATE_LIMIT_ENABLED", true),
        SeatBudget:  envInt("RATE_LIMIT_SEATS", 20),
        RefillEvery: envDur("RATE_LIMIT_REFILL", 3*time.Second),
        PerJourney:  envBool("RATE_LIMIT_PER_JOURNEY", true),
        Prefix:      getenv("RATE_LIMIT_PREFIX", "rl"),
        Debug:       envBool("RATE_LIMIT_DEBUG", false),
    }
    if cfg.SeatBudget < 1 {
        cfg.SeatBudget = 1
    }
    if cfg.RefillEvery <= 0 {
        cfg.RefillEvery = time.Second
    }
    return cfg
}

// IdleTTL is how long an untouched bucket takes to refill completely.
// After that its state equals a fresh bucket and may be dropped.
func (c RateLimitConfig) IdleTTL() time.Duration {
    return time.Duration(c.SeatBudget) * c.RefillEvery
}

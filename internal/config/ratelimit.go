package config

import (
    "os"
    "strconv"
    "time"
)

// RateLimitConfig configures one Redis token bucket limiter.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string
    Prefix         string
    Debug          bool
}

// LoadRateLimitConfig reads the global limiter applied to every route.
func LoadRateLimitConfig() RateLimitConfig {
    return loadRateLimit("RATE_LIMIT", RateLimitConfig{
        Enabled:        true,
        Capacity:       60,
        RefillTokens:   1,
        RefillInterval: time.Second,
        TTL:            10 * time.Minute,
        KeyStrategy:    "ip_user_route",
        Prefix:         "rl",
    })
}

// LoadMembershipRateLimitConfig reads the tighter per-client limiter in front
// of party create/join/leave.  Variables use the MEMBERSHIP_RATE_LIMIT_ prefix.
func LoadMembershipRateLimitConfig() RateLimitConfig {
    return loadRateLimit("MEMBERSHIP_RATE_LIMIT", RateLimitConfig{
        Enabled:        true,
        Capacity:       10,
        RefillTokens:   1,
        RefillInterval: 3 * time.Second,
        TTL:            10 * time.Minute,
        KeyStrategy:    "user_route",
        Prefix:         "rl:membership",
    })
}

func loadRateLimit(p string, d RateLimitConfig) RateLimitConfig {
    def := RateLimitConfig{
        Enabled:        envBool(p+"_ENABLED", d.Enabled),
        Capacity:       envInt(p+"_CAPACITY", d.Capacity),
        RefillTokens:   envInt(p+"_REFILL_TOKENS", d.RefillTokens),
        RefillInterval: envDur(p+"_REFILL_INTERVAL", d.RefillInterval),
        TTL:            envDur(p+"_TTL", d.TTL),
        KeyStrategy:    envStr(p+"_KEY_STRATEGY", d.KeyStrategy),
        Prefix:         envStr(p+"_PREFIX", d.Prefix),
        Debug:          envBool(p+"_DEBUG", d.Debug),
    }
    if b := envInt(p+"_BURST", -1); b > 0 { def.Capacity = b }
    if every := envDur(p+"_REFILL_EVERY", 0); every > 0 {
        def.RefillTokens = 1
        def.RefillInterval = every
    }
    if def.Capacity < 1 { def.Capacity = 1 }
    if def.RefillTokens < 1 { def.RefillTokens = 1 }
    if def.RefillInterval <= 0 { def.RefillInterval = time.Second }
    minTTL := 5 * def.RefillInterval
    if def.TTL < minTTL { def.TTL = minTTL }
    return def
}

func envStr(k, d string) string { if v := os.Getenv(k); v != "" { return v }; return d }
func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" { return d }
    switch v {
    case "1","true","TRUE","True","yes","YES","on","ON": return true
    case "0","false","FALSE","False","no","NO","off","OFF": return false
    }
    return d
}
func envInt(k string, d int) int {
    v := os.Getenv(k); if v == "" { return d }
    if n, err := strconv.Atoi(v); err == nil { return n }
    return d
}
func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k); if v == "" { return d }
    if dur, err := time.ParseDuration(v); err == nil { return dur }
    return d
}

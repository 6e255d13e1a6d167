package config

import (
    "strings"
    "time"
)

// CacheConfig drives the Redis response cache.  Keys look like
// "<Prefix>:<group>:<hash>"; a write drops every key of its group.
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool
    TTL          time.Duration
    GroupTTL     map[string]time.Duration // overrides TTL per cache group
    KeyStrategy  string
    Prefix       string
    MaxBodyBytes int
}

// TTLFor returns the lifetime of entries in group.
func (c CacheConfig) TTLFor(group string) time.Duration {
    if d, ok := c.GroupTTL[group]; ok && d > 0 {
        return d
    }
    return c.TTL
}

// LoadCacheConfig reads CACHE_*.  CACHE_TTL_MOVIES and CACHE_TTL_PARTIES
// override CACHE_TTL for their group.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled: envBool("CACHE_ENABLED", true),
        Methods: parseMethods(envStr("CACHE_METHODS", "GET")),
        TTL:     envDur("CACHE_TTL", 30*time.Second),
        GroupTTL: map[string]time.Duration{
            "movies":  envDur("CACHE_TTL_MOVIES", 5*time.Minute),
            "parties": envDur("CACHE_TTL_PARTIES", 10*time.Second),
        },
        KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
        Prefix:       envStr("CACHE_PREFIX", "cache"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
    }
}

func parseMethods(s string) map[string]bool {
    out := make(map[string]bool)
    for _, m := range strings.Split(s, ",") {
        if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
            out[m] = true
        }
    }
    return out
}

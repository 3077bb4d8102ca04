package config

import (
    "strings"
    "time"
)

// CacheConfig controls both Redis caches: the availability cache in front
// of the booking API and the response cache on the public preview route.
// Nothing is cached when Enabled is false or no Redis client is configured.
// Methods lists the HTTP methods the response cache serves; KeyStrategy
// decides which parts of the request make up its key.
type CacheConfig struct {
    Enabled         bool
    AvailabilityTTL time.Duration
    Methods         map[string]bool
    TTL             time.Duration
    KeyStrategy     string
    Prefix          string
    MaxBodyBytes    int
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:         envBool("CACHE_ENABLED", true),
        AvailabilityTTL: envDur("CACHE_AVAILABILITY_TTL", 10*time.Second),
        Methods:         parseMethods(getenv("CACHE_METHODS", "GET")),
        TTL:             envDur("CACHE_TTL", 30*time.Second),
        KeyStrategy:     getenv("CACHE_KEY_STRATEGY", "route_query"),
        Prefix:          getenv("CACHE_PREFIX", "cache"),
        MaxBodyBytes:    envInt("CACHE_MAX_BODY_BYTES", 1<<20),
    }
}

func parseMethods(s string) map[string]bool {
    m := map[string]bool{}
    for _, p := range strings.Split(s, ",") {
        p = strings.TrimSpace(strings.ToUpper(p))
        if p != "" {
            m[p] = true
        }
    }
    return m
}

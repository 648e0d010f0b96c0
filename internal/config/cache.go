package config

import (
	"strings"
	"time"
)

// CacheConfig defines the response cache for read endpoints.  Caching is
// disabled when Enabled is false or Redis is unavailable.
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
	// Paths lists route templates that may be cached, e.g. /v1/clients.
	Paths map[string]bool
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", false),
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		Prefix:       envStr("CACHE_PREFIX", "cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
		Paths:        parseList(envStr("CACHE_PATHS", "/v1/clients,/v1/resources/trucks,/v1/resources/drivers")),
	}
}

func parseList(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			m[p] = true
		}
	}
	return m
}

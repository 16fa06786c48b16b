package config

import (
	"strings"
	"time"
)

// CacheConfig tunes the redis response cache in front of the public
// unavailability reads.  Methods lists the HTTP methods that are cached;
// writes never are.  GenerationKey is bumped after every successful write
// so cached pages from before the write are never served again.
type CacheConfig struct {
	Enabled       bool
	Methods       map[string]bool
	TTL           time.Duration
	KeyStrategy   string
	Prefix        string
	GenerationKey string
	MaxBodyBytes  int
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	prefix := envStr("CACHE_PREFIX", "cache:unavailability")
	c := CacheConfig{
		Enabled:       envBool("CACHE_ENABLED", true),
		Methods:       parseMethods(envStr("CACHE_METHODS", "GET")),
		TTL:           envDur("CACHE_TTL", 30*time.Second),
		KeyStrategy:   envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:        prefix,
		GenerationKey: prefix + ":gen",
		MaxBodyBytes:  envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
	if c.TTL <= 0 {
		c.TTL = 30 * time.Second
	}
	return c
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

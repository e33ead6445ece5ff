// Package cache holds the time-boxed result cache that sits in front of the
// remote query.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// DefaultTTL is how long a fetched result is served before it is fetched again.
const DefaultTTL = 10 * time.Minute

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Cache stores opaque values until their TTL runs out.
type Cache interface {
	// Get returns the value and true on a hit. An expired entry is a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Purge drops every entry and reports how many were removed.
	Purge(ctx context.Context) (int64, error)
	Health(ctx context.Context) error
	Name() string
}

// Key derives the cache key for a query. The credential only enters through
// the digest, so keys can be logged.
func Key(sql, credential, endpoint string) string {
	h := sha256.New()
	for _, part := range []string{sql, credential, endpoint} {
		_, _ = fmt.Fprintf(h, "%d:%s|", len(part), part)
	}
	return "hourly:" + hex.EncodeToString(h.Sum(nil))
}

// ParseBackend validates a backend name; empty means memory.
func ParseBackend(s string) (string, error) {
	switch b := strings.ToLower(strings.TrimSpace(s)); b {
	case "", BackendMemory:
		return BackendMemory, nil
	case BackendRedis:
		return BackendRedis, nil
	default:
		return "", fmt.Errorf("unknown cache backend %q (want memory or redis)", s)
	}
}

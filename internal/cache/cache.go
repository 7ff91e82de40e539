// Package cache is the optional key/value and bounded-list layer behind the
// forum counters and the courtesy flood guard.
//
// Two backends satisfy Cache: Redis (shared between processes) and an
// in-process LRU with TTL (single node, tests).  Every caller treats the
// cache as best effort, so a nil Cache or a failing call must never change
// the result of a forum operation, only its cost.
package cache

import (
	"context"
	"time"
)

// Backend is the key/value half of the cache.
type Backend interface {
	// Get returns the stored value and true, or nil and false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores val under key.  ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// Delete removes keys; missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// Lists is the bounded most-recent-first list half of the cache.
type Lists interface {
	// Push moves member to the head of key, dropping older duplicates, and
	// trims the list to trim entries.
	Push(ctx context.Context, key, member string, trim int) error
	// Range returns up to limit members from the head.
	Range(ctx context.Context, key string, limit int) ([]string, error)
	// Remove drops every occurrence of member.
	Remove(ctx context.Context, key, member string) error
}

// Cache is what the forum wires in: both halves from one backend.
type Cache interface {
	Backend
	Lists
	Ping(ctx context.Context) error
	Close() error
}

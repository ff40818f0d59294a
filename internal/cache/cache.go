// Package cache implements a TTL result cache keyed by request fingerprint,
// with a stale-read fallback for failed upstream fetches.
package cache

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"sync"
	"time"
)

type entry struct {
	payload  []byte
	storedAt time.Time
	ttl      time.Duration
}

// Cache is a thread-safe map of fingerprinted response payloads.
// Reads never delete; expired entries are removed only by Sweep.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Fingerprint derives a deterministic cache key from an endpoint and its
// query parameters. url.Values.Encode sorts keys, so parameter order does
// not change the fingerprint.
func Fingerprint(endpoint string, params url.Values) string {
	h := sha256.Sum256([]byte(endpoint + "?" + params.Encode()))
	return fmt.Sprintf("%x", h[:16])
}

// Get returns the payload for fingerprint if it is still within its TTL.
// An expired entry is treated as absent but left in place for GetStale.
func (c *Cache) Get(fingerprint string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[fingerprint]
	if !ok || c.now().Sub(e.storedAt) > e.ttl {
		return nil, false
	}
	return e.payload, true
}

// GetStale returns the payload for fingerprint if it was stored within
// maxAge, ignoring the entry's own TTL. It exists only as a fallback
// after an upstream failure.
func (c *Cache) GetStale(fingerprint string, maxAge time.Duration) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[fingerprint]
	if !ok || c.now().Sub(e.storedAt) > maxAge {
		return nil, false
	}
	return e.payload, true
}

// Put stores payload under fingerprint with the given TTL, replacing any
// previous entry.
func (c *Cache) Put(fingerprint string, payload []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[fingerprint] = entry{payload: payload, storedAt: c.now(), ttl: ttl}
}

// Sweep removes every entry older than maxAge and returns how many were
// removed. This is the only path that physically deletes entries.
func (c *Cache) Sweep(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for fp, e := range c.entries {
		if c.now().Sub(e.storedAt) > maxAge {
			delete(c.entries, fp)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

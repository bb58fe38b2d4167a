// Package cache implements the query cache of §4.8: an LRU keyed by
// (query shape, graph epoch, memory epoch), invalidated whenever either
// epoch advances past what a cached entry was computed against.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// entry pairs a cached response with the epochs it was computed against.
type entry struct {
	graphEpoch  uint64
	memoryEpoch uint64
	value       any
}

// Cache is a capacity-bounded, epoch-aware response cache. It is an
// optimisation only — a miss always falls through to live computation, so
// correctness never depends on what's resident (§4.8).
type Cache struct {
	lru *lru.Cache[string, entry]
}

// New constructs a Cache holding at most capacity entries.
func New(capacity int) (*Cache, error) {
	l, err := lru.New[string, entry](capacity)
	if err != nil {
		return nil, fmt.Errorf("cache: new lru: %w", err)
	}
	return &Cache{lru: l}, nil
}

// Key hashes a request kind plus its parameters into the query-shape-hash
// half of the cache key; graph/memory epochs are supplied separately by
// the caller at Get/Put time since they change independently of the
// request shape.
func Key(kind string, req any) (string, error) {
	buf, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("cache: marshal request: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(buf)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns the cached value for shapeKey if present and not stale
// relative to graphEpoch/memoryEpoch — a cached entry computed against an
// older epoch on either axis is treated as a miss and evicted.
func (c *Cache) Get(shapeKey string, graphEpoch, memoryEpoch uint64) (any, bool) {
	e, ok := c.lru.Get(shapeKey)
	if !ok {
		return nil, false
	}
	if e.graphEpoch != graphEpoch || e.memoryEpoch != memoryEpoch {
		c.lru.Remove(shapeKey)
		return nil, false
	}
	return e.value, true
}

// Put stores value under shapeKey, stamped with the epochs it was
// computed against.
func (c *Cache) Put(shapeKey string, graphEpoch, memoryEpoch uint64, value any) {
	c.lru.Add(shapeKey, entry{graphEpoch: graphEpoch, memoryEpoch: memoryEpoch, value: value})
}

// InvalidateAll drops every cached entry — used when a schema mismatch
// forces a full rebuild and stale epochs could otherwise collide with
// fresh ones after a counter reset.
func (c *Cache) InvalidateAll() {
	c.lru.Purge()
}

// Len reports the number of entries currently cached (tests and metrics).
func (c *Cache) Len() int {
	return c.lru.Len()
}

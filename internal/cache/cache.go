// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

// Package cache provides the thread-safe query result cache.
//
// Results are keyed by a hash of the normalized SQL text plus its bound
// parameters, expire after a per-entry TTL, and are evicted in insertion
// order (FIFO) once the configured capacity is reached. Each entry retains
// its SQL text so targeted invalidation by substring match is possible
// without re-deriving keys.
package cache

import (
	"container/list"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/gambit-analytics/gambit/internal/metrics"
)

// entry is a cached query result. elem points at this entry's node in the
// insertion-order queue.
type entry struct {
	key       string
	sql       string
	data      interface{}
	expiresAt time.Time
	elem      *list.Element
}

// QueryCache is a bounded TTL cache for query results.
//
// Eviction is FIFO on insertion order: re-setting an existing key refreshes
// its value and deadline but does not move it in the queue, so a hot entry
// that keeps being rewritten still ages out at its original position.
type QueryCache struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	queue    *list.List // of string keys, oldest at front
	capacity int

	// now is swappable so expiry behavior is testable without sleeping.
	now func() time.Time

	stats statsCounters
}

type statsCounters struct {
	hits        int64
	misses      int64
	evictions   int64
	expirations int64
}

// Stats is a point-in-time snapshot of cache performance counters.
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
	Entries     int     `json:"entries"`
	Capacity    int     `json:"capacity"`
	HitRate     float64 `json:"hit_rate"`
}

// New creates a query cache bounded to capacity entries.
func New(capacity int) *QueryCache {
	if capacity < 1 {
		capacity = 1
	}
	return &QueryCache{
		entries:  make(map[string]*entry, capacity),
		queue:    list.New(),
		capacity: capacity,
		now:      time.Now,
	}
}

// Key derives the cache key for a query and its bound parameters. The key is
// sensitive to parameter order: the same SQL with reordered args is a
// different key.
func Key(sql string, args []interface{}) string {
	payload, err := json.Marshal([]interface{}{sql, args})
	if err != nil {
		// Unserializable args (channels, funcs) should never reach the
		// cache, but a readable fallback key beats a panic.
		payload = []byte(fmt.Sprintf("%s:%v", sql, args))
	}
	hash := sha256.Sum256(payload)
	return fmt.Sprintf("%x", hash[:16])
}

// Get returns the cached value for key, or (nil, false) on a miss. An entry
// past its deadline is removed and counted as both a miss and an expiration.
func (c *QueryCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.entries[key]
	if !exists {
		c.stats.misses++
		metrics.RecordCacheLookup(false)
		return nil, false
	}

	if c.now().After(e.expiresAt) {
		c.removeLocked(e)
		c.stats.misses++
		c.stats.expirations++
		metrics.RecordCacheLookup(false)
		metrics.RecordEviction("expired", 1)
		return nil, false
	}

	c.stats.hits++
	metrics.RecordCacheLookup(true)
	return e.data, true
}

// Set stores a query result under key with its own TTL. The SQL text is
// retained for Invalidate. When the cache is full the oldest entry is
// evicted first.
func (c *QueryCache) Set(key, sql string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, exists := c.entries[key]; exists {
		// Refresh in place; queue position is unchanged.
		e.sql = sql
		e.data = value
		e.expiresAt = c.now().Add(ttl)
		return
	}

	if len(c.entries) >= c.capacity {
		if front := c.queue.Front(); front != nil {
			oldest := c.entries[front.Value.(string)]
			c.removeLocked(oldest)
			c.stats.evictions++
			metrics.RecordEviction("capacity", 1)
		}
	}

	e := &entry{
		key:       key,
		sql:       sql,
		data:      value,
		expiresAt: c.now().Add(ttl),
	}
	e.elem = c.queue.PushBack(key)
	c.entries[key] = e
	metrics.CacheEntries.Set(float64(len(c.entries)))
}

// Invalidate removes every entry whose SQL text contains match and returns
// the number removed. An empty match removes nothing; use Clear for that.
func (c *QueryCache) Invalidate(match string) int {
	if match == "" {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.queue.Front(); elem != nil; {
		next := elem.Next()
		e := c.entries[elem.Value.(string)]
		if strings.Contains(e.sql, match) {
			c.removeLocked(e)
			removed++
		}
		elem = next
	}

	if removed > 0 {
		c.stats.evictions += int64(removed)
		metrics.RecordEviction("invalidated", removed)
	}
	return removed
}

// Clear removes all entries and returns how many were dropped.
func (c *QueryCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := len(c.entries)
	c.entries = make(map[string]*entry, c.capacity)
	c.queue.Init()
	c.stats.evictions += int64(dropped)

	metrics.CacheEntries.Set(0)
	if dropped > 0 {
		metrics.RecordEviction("cleared", dropped)
	}
	return dropped
}

// Sweep removes every expired entry and returns the count. Expired entries
// are also dropped lazily on Get; Sweep exists so a mostly-idle cache does
// not pin dead results in memory.
func (c *QueryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	swept := 0
	for elem := c.queue.Front(); elem != nil; {
		next := elem.Next()
		e := c.entries[elem.Value.(string)]
		if now.After(e.expiresAt) {
			c.removeLocked(e)
			swept++
		}
		elem = next
	}

	if swept > 0 {
		c.stats.expirations += int64(swept)
		metrics.RecordEviction("expired", swept)
	}
	return swept
}

// Len returns the current number of entries.
func (c *QueryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetStats returns a snapshot of the cache counters.
func (c *QueryCache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Hits:        c.stats.hits,
		Misses:      c.stats.misses,
		Evictions:   c.stats.evictions,
		Expirations: c.stats.expirations,
		Entries:     len(c.entries),
		Capacity:    c.capacity,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total) * 100.0
	}
	return s
}

// removeLocked drops an entry from both the map and the queue. Caller holds
// the write lock.
func (c *QueryCache) removeLocked(e *entry) {
	delete(c.entries, e.key)
	c.queue.Remove(e.elem)
	metrics.CacheEntries.Set(float64(len(c.entries)))
}

// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

// Package cache provides the bounded in-memory stores used by the
// notification manager: a TTL'd LRU cache for platform message-ID
// deduplication and a sliding-window store for per-user suppression.
package cache

import (
	"sync"
	"time"
)

// dedupeEntry is a node in the dedupe cache's doubly-linked list.
type dedupeEntry struct {
	key       string
	seenAt    time.Time
	prev      *dedupeEntry
	next      *dedupeEntry
	expiresAt time.Time
}

// DedupeCache is a thread-safe LRU cache with TTL used to discard duplicate
// platform event emissions. Platforms occasionally deliver the same message
// ID twice (reconnects, at-least-once webhooks); entries are retained for a
// short TTL and evicted in LRU order when capacity is reached.
//
// All operations are O(1): a doubly-linked list maintains recency order and
// a map provides key lookup.
type DedupeCache struct {
	mu sync.RWMutex

	capacity int
	ttl      time.Duration

	items map[string]*dedupeEntry

	// head.next is most recently seen, tail.prev is least recently seen.
	head *dedupeEntry
	tail *dedupeEntry

	hits   int64
	misses int64
}

// NewDedupeCache creates a dedupe cache with the given capacity and TTL.
// Non-positive values fall back to 10000 entries and 5 minutes.
func NewDedupeCache(capacity int, ttl time.Duration) *DedupeCache {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	c := &DedupeCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*dedupeEntry, capacity),
		head:     &dedupeEntry{},
		tail:     &dedupeEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Seen reports whether the key was recorded within the TTL, and records it
// if it was not. This is the single call sites use: the first emission of a
// message ID returns false, any repeat within the TTL returns true.
func (c *DedupeCache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if entry, exists := c.items[key]; exists {
		if !now.After(entry.expiresAt) {
			c.moveToFront(entry)
			c.hits++
			return true
		}
		// Expired, remove and treat as new.
		c.removeEntry(entry)
	}

	entry := &dedupeEntry{
		key:       key,
		seenAt:    now,
		expiresAt: now.Add(c.ttl),
	}
	c.addToFront(entry)
	c.items[key] = entry

	for len(c.items) > c.capacity {
		c.evictOldest()
	}

	c.misses++
	return false
}

// Contains reports whether a key exists and is unexpired, without recording
// it or updating recency order.
func (c *DedupeCache) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if entry, exists := c.items[key]; exists {
		return !time.Now().After(entry.expiresAt)
	}
	return false
}

// Remove removes a key from the cache.
// Returns true if the key was present.
func (c *DedupeCache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.items[key]; exists {
		c.removeEntry(entry)
		return true
	}
	return false
}

// Len returns the current number of entries.
func (c *DedupeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear removes all entries.
func (c *DedupeCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*dedupeEntry, c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// CleanupExpired removes all expired entries and returns the count removed.
// The manager's periodic sweep calls this; lazy expiration in Seen covers
// the rest.
func (c *DedupeCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0

	for entry := c.tail.prev; entry != c.head; {
		prev := entry.prev
		if now.After(entry.expiresAt) {
			c.removeEntry(entry)
			removed++
		}
		entry = prev
	}
	return removed
}

// Stats returns hit/miss counters and the current size.
func (c *DedupeCache) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, len(c.items)
}

// Internal methods (must be called with lock held)

func (c *DedupeCache) addToFront(entry *dedupeEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *DedupeCache) moveToFront(entry *dedupeEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.addToFront(entry)
}

func (c *DedupeCache) removeEntry(entry *dedupeEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
}

func (c *DedupeCache) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
}

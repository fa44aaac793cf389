// ABOUTME: TTL cache of recently handled stream entry IDs
// ABOUTME: Flags at-least-once redeliveries in logs; never suppresses processing

package consumer

import (
	"container/list"
	"sync"
	"time"
)

// seenCache tracks recently handled entry IDs so redeliveries can be spotted
// in logs. The bus is at-least-once, so duplicates are legal; this cache is
// diagnostics only and never changes how an entry is processed.
// Uses a doubly-linked list to maintain insertion order for O(1) eviction.
type seenCache struct {
	mu      sync.Mutex
	seen    map[string]*seenEntry
	order   *list.List // entry IDs in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
}

type seenEntry struct {
	timestamp time.Time
	element   *list.Element
}

func newSeenCache(ttl time.Duration, maxSize int) *seenCache {
	return &seenCache{
		seen:    make(map[string]*seenEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// checkAndMark atomically reports whether the ID was already seen within the
// TTL, marking it as seen either way. Expired and overflow entries are
// evicted inline; the cache needs no background goroutine.
func (c *seenCache) checkAndMark(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.evictExpired(now)

	if entry, ok := c.seen[id]; ok && now.Sub(entry.timestamp) < c.ttl {
		return true
	}

	for len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	c.seen[id] = &seenEntry{
		timestamp: now,
		element:   c.order.PushBack(id),
	}
	return false
}

// evictExpired removes entries older than the TTL. Callers must hold c.mu.
func (c *seenCache) evictExpired(now time.Time) {
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		id := front.Value.(string)
		entry, ok := c.seen[id]
		if ok && now.Sub(entry.timestamp) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.seen, id)
	}
}

// evictOldest removes the oldest entry. Callers must hold c.mu.
func (c *seenCache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	c.order.Remove(front)
	delete(c.seen, front.Value.(string))
}

// ABOUTME: Thread-safe TTL cache for authorization decisions.
// ABOUTME: Decisions without a TTL are never stored; expired entries read as absent.

package authz

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// DefaultMaxEntries caps the cache when no size is configured.
const DefaultMaxEntries = 4096

// cacheEntry stores a cached decision, its expiry, and its eviction-order element.
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
	element   *list.Element
}

// Cache maps a decision key to a previously obtained authorization decision.
// A deny is cached exactly like an allow if and only if the control plane
// granted it a TTL; the policy engine decides how long either outcome is
// trustworthy. Uses a doubly-linked list for O(1) size-capped eviction.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   *list.List // keys in insertion order, oldest at front
	maxSize int
	done    chan struct{}
	closed  bool
}

// NewCache creates a decision cache. A background goroutine periodically
// sweeps expired entries; expired entries are also treated as absent on read.
func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxEntries
	}
	c := &Cache{
		entries: make(map[string]*cacheEntry),
		order:   list.New(),
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// cacheKey joins the decision key fields. Resource may be empty.
func cacheKey(tenantID, actorID, action, resource string) string {
	return strings.Join([]string{tenantID, actorID, action, resource}, "\x1f")
}

// Get returns the cached decision for the key, or nil when absent or
// expired. A nil return means "not cached", never "denied".
func (c *Cache) Get(tenantID, actorID, action, resource string) *Response {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[cacheKey(tenantID, actorID, action, resource)]
	if !ok {
		return nil
	}
	if !time.Now().Before(entry.expiresAt) {
		return nil
	}
	return entry.response
}

// Put stores a decision only when it carries a positive TTL. A response
// without decision_ttl_ms is never cached, so every subsequent identical
// request re-authorizes.
func (c *Cache) Put(tenantID, actorID, action, resource string, resp *Response) {
	if resp == nil || resp.DecisionTTLMillis == nil || *resp.DecisionTTLMillis <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(tenantID, actorID, action, resource)
	expiresAt := time.Now().Add(time.Duration(*resp.DecisionTTLMillis) * time.Millisecond)

	if entry, exists := c.entries[key]; exists {
		entry.response = resp
		entry.expiresAt = expiresAt
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.entries[key] = &cacheEntry{
		response:  resp,
		expiresAt: expiresAt,
		element:   elem,
	}
}

// Len returns the number of stored entries, including any not yet swept.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}

// sweep runs in a background goroutine, periodically removing expired entries.
func (c *Cache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runSweep()
		case <-c.done:
			return
		}
	}
}

// runSweep removes all expired entries from the cache.
func (c *Cache) runSweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			c.order.Remove(entry.element)
			delete(c.entries, key)
		}
	}
}

// Close stops the background sweep goroutine. Safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}

package chat

import (
	"container/list"
	"sync"
	"time"
)

// ResponseCache is a TTL cache for AI mention replies, keyed by
// (prompt, channel). Entries expire after ttl; when full, the oldest
// entry is evicted.
type ResponseCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	entries map[cacheKey]*list.Element
	order   *list.List // front = oldest
	now     func() time.Time
}

type cacheKey struct {
	prompt  string
	channel string
}

type cacheEntry struct {
	key      cacheKey
	value    string
	expireAt time.Time
}

// NewResponseCache builds a cache with the given capacity and TTL.
func NewResponseCache(maxSize int, ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		maxSize: maxSize,
		ttl:     ttl,
		entries: make(map[cacheKey]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// Get returns the cached response for (prompt, channel) if present and fresh.
func (c *ResponseCache) Get(prompt, channel string) (string, bool) {
	key := cacheKey{prompt: prompt, channel: channel}
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return "", false
	}
	entry := el.Value.(*cacheEntry)
	if c.now().After(entry.expireAt) {
		c.order.Remove(el)
		delete(c.entries, key)
		return "", false
	}
	return entry.value, true
}

// Put stores a response, evicting expired entries first and then the
// oldest entry if the cache is still full.
func (c *ResponseCache) Put(prompt, channel, response string) {
	key := cacheKey{prompt: prompt, channel: channel}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.value = response
		entry.expireAt = c.now().Add(c.ttl)
		c.order.MoveToBack(el)
		return
	}

	c.pruneExpiredLocked()
	for len(c.entries) >= c.maxSize {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}

	el := c.order.PushBack(&cacheEntry{key: key, value: response, expireAt: c.now().Add(c.ttl)})
	c.entries[key] = el
}

func (c *ResponseCache) pruneExpiredLocked() {
	now := c.now()
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		entry := el.Value.(*cacheEntry)
		if now.After(entry.expireAt) {
			c.order.Remove(el)
			delete(c.entries, entry.key)
		}
		el = next
	}
}

// Len returns the number of live entries.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneExpiredLocked()
	return len(c.entries)
}

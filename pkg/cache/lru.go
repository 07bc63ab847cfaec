package cache

import (
	"container/list"
	"sync"

	"golang.org/x/sync/singleflight"
)

type lruEntry[K comparable, V any] struct {
	key   K
	value V
}

// LRUCache is a thread-safe bounded LRU cache.
// When the cache reaches its capacity, the least recently used item is evicted.
type LRUCache[K comparable, V any] struct {
	capacity int
	items    map[K]*list.Element
	eviction *list.List
	mu       sync.Mutex
	onEvict  func(key K, value V)

	loads   singleflight.Group
	stats   Stats
	metrics *cacheMetrics
}

// NewLRUCache creates a new LRU cache with the specified capacity.
// The capacity must be positive, otherwise it panics.
func NewLRUCache[K comparable, V any](capacity int, opts ...Option) *LRUCache[K, V] {
	if capacity <= 0 {
		panic("LRU cache capacity must be positive")
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	c := &LRUCache[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element, capacity),
		eviction: list.New(),
	}
	if o.metrics != nil {
		c.metrics = o.metrics
		c.metrics.capacity.Set(float64(capacity))
	}
	return c
}

// SetEvictCallback sets a callback function that is called when items are evicted.
func (c *LRUCache[K, V]) SetEvictCallback(fn func(key K, value V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// Capacity returns the maximum number of entries the cache retains.
func (c *LRUCache[K, V]) Capacity() int { return c.capacity }

// Get retrieves a value from the cache and marks it as recently used.
// Returns the value and true if found, zero value and false otherwise.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.eviction.MoveToFront(elem)
		c.recordHit()
		return elem.Value.(*lruEntry[K, V]).value, true
	}

	c.recordMiss()
	var zero V
	return zero, false
}

// Peek returns a value without touching its recency or the hit/miss counters.
func (c *LRUCache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		return elem.Value.(*lruEntry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Put adds or updates a value in the cache.
// If the cache is at capacity, the least recently used item is evicted.
// Returns the previous value if it existed, and a boolean indicating if it existed.
func (c *LRUCache[K, V]) Put(key K, value V) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.putLocked(key, value)
}

// Must be called with lock held.
func (c *LRUCache[K, V]) putLocked(key K, value V) (V, bool) {
	if elem, ok := c.items[key]; ok {
		c.eviction.MoveToFront(elem)
		entry := elem.Value.(*lruEntry[K, V])
		oldValue := entry.value
		entry.value = value
		return oldValue, true
	}

	elem := c.eviction.PushFront(&lruEntry[K, V]{key: key, value: value})
	c.items[key] = elem

	if c.eviction.Len() > c.capacity {
		c.evictOldest()
	}
	c.updateSize()

	var zero V
	return zero, false
}

// Remove removes an item from the cache.
// Returns the removed value and true if it existed, zero value and false otherwise.
func (c *LRUCache[K, V]) Remove(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
		c.updateSize()
		return elem.Value.(*lruEntry[K, V]).value, true
	}

	var zero V
	return zero, false
}

func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eviction.Len()
}

// Clear removes all items from the cache.
// If an evict callback is set, it's called for each item.
func (c *LRUCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.onEvict != nil {
		for _, elem := range c.items {
			entry := elem.Value.(*lruEntry[K, V])
			c.onEvict(entry.key, entry.value)
		}
	}

	c.items = make(map[K]*list.Element, c.capacity)
	c.eviction.Init()
	c.updateSize()
}

// Stats returns a snapshot of the hit, miss, load and eviction counters.
func (c *LRUCache[K, V]) Stats() Snapshot {
	s := c.stats.snapshot()
	s.Size = c.Len()
	s.Capacity = c.capacity
	return s
}

// Must be called with lock held.
func (c *LRUCache[K, V]) evictOldest() {
	elem := c.eviction.Back()
	if elem != nil {
		c.removeElement(elem)
		c.stats.evictions.Add(1)
		if c.metrics != nil {
			c.metrics.evictions.Inc()
		}
	}
}

// Must be called with lock held.
func (c *LRUCache[K, V]) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	entry := elem.Value.(*lruEntry[K, V])
	delete(c.items, entry.key)

	if c.onEvict != nil {
		c.onEvict(entry.key, entry.value)
	}
}

func (c *LRUCache[K, V]) recordHit() {
	c.stats.hits.Add(1)
	if c.metrics != nil {
		c.metrics.hits.Inc()
	}
}

func (c *LRUCache[K, V]) recordMiss() {
	c.stats.misses.Add(1)
	if c.metrics != nil {
		c.metrics.misses.Inc()
	}
}

// Must be called with lock held.
func (c *LRUCache[K, V]) updateSize() {
	if c.metrics != nil {
		c.metrics.size.Set(float64(c.eviction.Len()))
	}
}

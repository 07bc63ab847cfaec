// Package cache provides a generic, thread-safe LRU (Least Recently Used)
// cache used to bound the number of decoded dataset records held in memory.
//
// The cache evicts the least recently used entry once it reaches its
// configured capacity. Eviction only drops the cached copy: a value can be
// loaded again on the next request, so keys stay valid for the lifetime of
// whatever they index.
//
// # Key Features
//
//   - Generic implementation supporting any comparable key type and any value type
//   - Thread-safe operations with mutex-based synchronization
//   - GetOrLoad with single-flight loading: concurrent misses for the same
//     key run one load and share its result
//   - Optional eviction callbacks
//   - Lock-free hit, miss, load and eviction counters
//   - Optional Prometheus export through NewMetrics and WithMetrics
//
// # Usage
//
//	strings := cache.NewLRUCache[int32, string](5000)
//
//	s, err := strings.GetOrLoad(offset, func() (string, error) {
//		return readString(src, offset)
//	})
//
// Basic operations:
//
//	c.Put(1, "one")
//	v, found := c.Get(1)
//	removed, existed := c.Remove(1)
//	c.Clear()
//
// # Metrics
//
//	m, err := cache.NewMetrics(prometheus.DefaultRegisterer, "devicedetect", "profiles")
//	if err != nil {
//		return err
//	}
//	profiles := cache.NewLRUCache[int32, *Profile](1000, cache.WithMetrics(m))
//
// Stats returns a Snapshot of the in-process counters whether or not
// Prometheus export is enabled.
//
// # Performance Characteristics
//
//   - Get, Put, Remove: O(1) average case
//   - GetOrLoad on a hit: same as Get
//   - GetOrLoad on a miss: one load per key regardless of concurrent callers
package cache

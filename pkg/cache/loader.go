package cache

import "fmt"

// GetOrLoad returns the cached value for key, calling load on a miss and
// storing its result.
//
// Concurrent misses for the same key share a single load call: the first
// caller runs it, the others block until it returns and receive the same
// value. A failed load stores nothing and its error is returned to every
// waiting caller.
func (c *LRUCache[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.loads.Do(fmt.Sprint(key), func() (any, error) {
		// A caller that lost the race to the lock may find the value already stored.
		if v, ok := c.Peek(key); ok {
			return v, nil
		}

		v, err := load()
		if err != nil {
			c.stats.loadErrors.Add(1)
			return nil, err
		}

		c.stats.loads.Add(1)
		if c.metrics != nil {
			c.metrics.loads.Inc()
		}
		c.Put(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

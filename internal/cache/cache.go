package cache

import "sync"

// Cache stores values keyed by string. It is safe for concurrent use.
type Cache[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

// New creates a new Cache instance.
func New[T any]() *Cache[T] {
	return &Cache[T]{
		items: make(map[string]T),
	}
}

// Get returns a cached value and whether it exists.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.items[key]

	return value, ok
}

// Set stores a value in the cache.
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = value
}

// SetIfAbsent stores value unless key is already present and returns the
// value held by the cache afterwards.
func (c *Cache[T]) SetIfAbsent(key string, value T) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.items[key]; ok {
		return existing, false
	}

	c.items[key] = value

	return value, true
}

// Delete removes key and reports whether it was present.
func (c *Cache[T]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.items[key]
	delete(c.items, key)

	return ok
}

// Len returns the number of cached entries.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Range calls fn for every entry until fn returns false. fn must not call
// back into the cache.
func (c *Cache[T]) Range(fn func(key string, value T) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for key, value := range c.items {
		if !fn(key, value) {
			return
		}
	}
}

// Package cache implements a generic async cache map: a concurrent-safe
// key/value store whose GetOrCreate guarantees the factory runs at most
// once per key across every racing caller, and whose
// GetOrCreateWithCallback additionally notifies every caller — winner and
// losers alike — once the shared value is ready. This second operation is
// the primitive the asset pipeline's load-deduplication is built on.
package cache

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// AsyncMap is safe for concurrent use from multiple goroutines.
type AsyncMap[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
	group singleflight.Group
}

func New[K comparable, V any]() *AsyncMap[K, V] {
	return &AsyncMap[K, V]{items: make(map[K]V)}
}

func (m *AsyncMap[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok
}

func (m *AsyncMap[K, V]) Has(key K) bool {
	_, ok := m.Get(key)
	return ok
}

func (m *AsyncMap[K, V]) Set(key K, val V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = val
}

// GetOrSet returns the existing value for key if present, otherwise
// stores and returns val.
func (m *AsyncMap[K, V]) GetOrSet(key K, val V) V {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.items[key]; ok {
		return existing
	}
	m.items[key] = val
	return val
}

func (m *AsyncMap[K, V]) Erase(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
}

func (m *AsyncMap[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *AsyncMap[K, V]) Keys() []K {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]K, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	return keys
}

func (m *AsyncMap[K, V]) sfKey(key K) string {
	return fmt.Sprint(key)
}

// GetOrCreate returns the cached value for key, or calls factory exactly
// once across all concurrently-racing callers and caches the result. A
// factory error is not cached: the next call (whether concurrent or
// later) retries it.
func (m *AsyncMap[K, V]) GetOrCreate(key K, factory func() (V, error)) (V, error) {
	if v, ok := m.Get(key); ok {
		return v, nil
	}
	v, err, _ := m.group.Do(m.sfKey(key), func() (any, error) {
		if v, ok := m.Get(key); ok {
			return v, nil
		}
		val, err := factory()
		if err != nil {
			return val, err
		}
		m.Set(key, val)
		return val, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// GetOrCreateWithCallback behaves like GetOrCreate, but additionally
// invokes onResult for every caller — not just the one whose factory call
// actually ran — once the shared result is available. This is the
// in-flight coalescing contract the asset loaders are built on: every
// caller that arrived while a load was already underway still gets its
// own delivery of the eventual result.
func (m *AsyncMap[K, V]) GetOrCreateWithCallback(key K, onResult func(V, error), factory func() (V, error)) (V, error) {
	v, err := m.GetOrCreate(key, factory)
	onResult(v, err)
	return v, err
}

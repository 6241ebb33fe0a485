package tilecache

import (
	"container/list"
	"sync"
)

// lru is a bounded, goroutine-safe recency cache. A capacity of zero or less
// stores nothing. onEvict runs under the lock for entries pushed out by
// capacity, not for explicit removals.
type lru[K comparable, V any] struct {
	capacity int
	onEvict  func(K, V)

	mu    sync.Mutex
	order *list.List // front is most recently used
	items map[K]*list.Element
}

type lruItem[K comparable, V any] struct {
	key K
	val V
}

func newLRU[K comparable, V any](capacity int, onEvict func(K, V)) *lru[K, V] {
	return &lru[K, V]{
		capacity: capacity,
		onEvict:  onEvict,
		order:    list.New(),
		items:    make(map[K]*list.Element),
	}
}

func (c *lru[K, V]) get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruItem[K, V]).val, true
}

func (c *lru[K, V]) add(key K, val V) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*lruItem[K, V]).val = val
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&lruItem[K, V]{key: key, val: val})

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		it := c.order.Remove(oldest).(*lruItem[K, V])
		delete(c.items, it.key)
		if c.onEvict != nil {
			c.onEvict(it.key, it.val)
		}
	}
}

// remove drops key, reporting whether it was present.
func (c *lru[K, V]) remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.order.Remove(el)
	delete(c.items, key)
	return true
}

func (c *lru[K, V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

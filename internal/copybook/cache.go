package copybook

import (
	"container/list"
	"sync"
	"time"
)

// lruCache is a size-bounded map with per-entry expiry. The least recently
// used entry is evicted when a Put exceeds maxSize; expired entries are
// dropped when read.
type lruCache[K comparable, V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	order   *list.List
	items   map[K]*list.Element
}

type cacheEntry[K comparable, V any] struct {
	key     K
	value   V
	expires time.Time
}

// newLRUCache returns a cache holding at most maxSize entries, each for at
// most ttl. Zero disables the corresponding bound.
func newLRUCache[K comparable, V any](maxSize int, ttl time.Duration) *lruCache[K, V] {
	return &lruCache[K, V]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		order:   list.New(),
		items:   make(map[K]*list.Element),
	}
}

func (c *lruCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	e := el.Value.(*cacheEntry[K, V])
	if c.ttl > 0 && !c.now().Before(e.expires) {
		c.removeLocked(el)
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

func (c *lruCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*cacheEntry[K, V])
		e.value = value
		e.expires = expires
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&cacheEntry[K, V]{key: key, value: value, expires: expires})
	for c.maxSize > 0 && c.order.Len() > c.maxSize {
		c.removeLocked(c.order.Back())
	}
}

// Clear drops every entry.
func (c *lruCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[K]*list.Element)
}

func (c *lruCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *lruCache[K, V]) removeLocked(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*cacheEntry[K, V]).key)
}

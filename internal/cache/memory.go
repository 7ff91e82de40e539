// internal/cache/memory.go
//
// In-process cache: LRU for keys with lazy TTL expiry, plus bounded lists.
//
// Notes
// -----
//   - Expired entries are dropped when read or when they fall off the LRU
//     tail; there is no janitor goroutine.
//   - Lists do not count against the LRU capacity.  Each one is bounded by
//     the trim passed to Push.
//   - Safe for concurrent use; every method holds one mutex.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Memory is a least-recently-used cache with per-entry TTL.
type Memory struct {
	mu    sync.Mutex
	cap   int
	ll    *list.List
	dict  map[string]*list.Element
	lists map[string][]string
	now   func() time.Time
}

type pair struct {
	key     string
	val     []byte
	expires time.Time // zero = never
}

var _ Cache = (*Memory)(nil)

// NewMemory returns a Memory cache with the given key capacity.  Panics on
// capacity < 1.
func NewMemory(capacity int) *Memory {
	if capacity < 1 {
		panic("cache: capacity must be ≥1")
	}
	return &Memory{
		cap:   capacity,
		ll:    list.New(),
		dict:  make(map[string]*list.Element, capacity),
		lists: make(map[string][]string),
		now:   time.Now,
	}
}

// SetClock replaces time.Now; tests use it to expire entries.
func (c *Memory) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Get retrieves a value and marks it MRU.
func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ele, hit := c.dict[key]
	if !hit {
		return nil, false, nil
	}
	p := ele.Value.(pair)
	if !p.expires.IsZero() && !c.now().Before(p.expires) {
		c.ll.Remove(ele)
		delete(c.dict, key)
		return nil, false, nil
	}
	c.ll.MoveToFront(ele)
	return append([]byte(nil), p.val...), true, nil
}

// Set inserts or updates a value.
func (c *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := pair{key: key, val: append([]byte(nil), val...)}
	if ttl > 0 {
		p.expires = c.now().Add(ttl)
	}
	if ele, hit := c.dict[key]; hit {
		ele.Value = p
		c.ll.MoveToFront(ele)
		return nil
	}
	c.dict[key] = c.ll.PushFront(p)
	if c.ll.Len() > c.cap {
		last := c.ll.Back()
		c.ll.Remove(last)
		delete(c.dict, last.Value.(pair).key)
	}
	return nil
}

// Delete removes keys and lists with the given names.
func (c *Memory) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		if ele, hit := c.dict[k]; hit {
			c.ll.Remove(ele)
			delete(c.dict, k)
		}
		delete(c.lists, k)
	}
	return nil
}

// Push moves member to the head of list key and trims it.
func (c *Memory) Push(_ context.Context, key, member string, trim int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.lists[key]
	next := make([]string, 0, len(cur)+1)
	next = append(next, member)
	for _, m := range cur {
		if m != member {
			next = append(next, m)
		}
	}
	if trim > 0 && len(next) > trim {
		next = next[:trim]
	}
	c.lists[key] = next
	return nil
}

// Range returns up to limit members from the head of key.  limit <= 0
// returns the whole list.
func (c *Memory) Range(_ context.Context, key string, limit int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.lists[key]
	if limit > 0 && len(cur) > limit {
		cur = cur[:limit]
	}
	return append([]string(nil), cur...), nil
}

// Remove drops member from list key.
func (c *Memory) Remove(_ context.Context, key, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.lists[key]
	next := cur[:0]
	for _, m := range cur {
		if m != member {
			next = append(next, m)
		}
	}
	c.lists[key] = next
	return nil
}

// Len reports the number of keys held, lists excluded.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *Memory) Ping(context.Context) error { return nil }
func (c *Memory) Close() error               { return nil }

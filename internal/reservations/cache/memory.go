package cache

import (
	"container/list"
	"context"
	"slices"
	"sync"
	"time"

	"slotbook/pkg/model"
)

// MemoryCache is a bounded LRU whose entries expire a fixed time after their
// last access. The list is kept in access order, so expired entries always
// sit at the back.
type MemoryCache struct {
	mu          sync.Mutex
	capacity    int
	ttl         time.Duration
	entries     map[Key]*list.Element
	order       *list.List
	generation  uint64
	now         func() time.Time
	sweepEvery  time.Duration
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

type memoryEntry struct {
	key        Key
	slots      []model.AvailableSlot
	lastAccess time.Time
}

type MemoryOption func(*MemoryCache)

func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) { c.now = now }
}

// WithSweepEvery sets how often expired entries are purged in the
// background. Zero disables the janitor; expiry is still enforced on read.
func WithSweepEvery(d time.Duration) MemoryOption {
	return func(c *MemoryCache) { c.sweepEvery = d }
}

func NewMemoryCache(capacity int, expireAfterAccess time.Duration, opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		capacity:    capacity,
		ttl:         expireAfterAccess,
		entries:     make(map[Key]*list.Element, capacity),
		order:       list.New(),
		now:         time.Now,
		sweepEvery:  time.Minute,
		stopCleanup: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.sweepEvery > 0 {
		go c.janitor()
	}
	return c
}

func (c *MemoryCache) Get(_ context.Context, key Key) ([]model.AvailableSlot, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	ent := el.Value.(*memoryEntry)
	if now.Sub(ent.lastAccess) >= c.ttl {
		c.removeElement(el)
		return nil, false
	}

	ent.lastAccess = now
	c.order.MoveToFront(el)
	return slices.Clone(ent.slots), true
}

func (c *MemoryCache) Put(_ context.Context, key Key, slots []model.AvailableSlot, generation uint64) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return
	}

	if el, ok := c.entries[key]; ok {
		ent := el.Value.(*memoryEntry)
		ent.slots = slices.Clone(slots)
		ent.lastAccess = now
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&memoryEntry{key: key, slots: slices.Clone(slots), lastAccess: now})
	c.entries[key] = el

	for c.order.Len() > c.capacity {
		c.removeElement(c.order.Back())
	}
}

func (c *MemoryCache) Generation(_ context.Context) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *MemoryCache) EvictAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	clear(c.entries)
	c.order.Init()
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Cleanup removes every entry whose access window has passed.
func (c *MemoryCache) Cleanup() {
	cutoff := c.now().Add(-c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.order.Back(); el != nil; el = c.order.Back() {
		if el.Value.(*memoryEntry).lastAccess.After(cutoff) {
			return
		}
		c.removeElement(el)
	}
}

func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
}

func (c *MemoryCache) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*memoryEntry).key)
}

func (c *MemoryCache) janitor() {
	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

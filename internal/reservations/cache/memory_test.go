package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"slotbook/pkg/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(capacity int, ttl time.Duration) (*MemoryCache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewMemoryCache(capacity, ttl, WithClock(clock.Now), WithSweepEvery(0)), clock
}

func page(ids ...string) []model.AvailableSlot {
	out := make([]model.AvailableSlot, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.AvailableSlot{SlotID: id})
	}
	return out
}

func key(n int) Key {
	return NewKey(time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC), model.PageRequest{Page: n, Size: 20})
}

func TestMemoryCache_GetPut(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(10, time.Minute)

	if _, ok := c.Get(ctx, key(0)); ok {
		t.Fatalf("expected miss on empty cache")
	}

	c.Put(ctx, key(0), page("a", "b"), c.Generation(ctx))

	got, ok := c.Get(ctx, key(0))
	if !ok {
		t.Fatalf("expected hit after put")
	}
	if len(got) != 2 || got[0].SlotID != "a" || got[1].SlotID != "b" {
		t.Errorf("unexpected page %+v", got)
	}

	if _, ok := c.Get(ctx, key(1)); ok {
		t.Errorf("different page must miss")
	}
}

func TestMemoryCache_KeyNormalization(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(10, time.Minute)

	local := time.Date(2030, 1, 1, 12, 0, 0, 0, time.FixedZone("UTC+3", 3*3600))
	utc := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	c.Put(ctx, NewKey(local, model.PageRequest{Size: 5}), page("a"), c.Generation(ctx))

	if _, ok := c.Get(ctx, NewKey(utc, model.PageRequest{Size: 5})); !ok {
		t.Errorf("equal instants in different zones must share a key")
	}
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(10, time.Minute)

	src := page("a")
	c.Put(ctx, key(0), src, c.Generation(ctx))
	src[0].SlotID = "mutated"

	got, _ := c.Get(ctx, key(0))
	got[0].SlotID = "mutated-again"

	again, _ := c.Get(ctx, key(0))
	if again[0].SlotID != "a" {
		t.Errorf("cache contents leaked to callers: %+v", again)
	}
}

func TestMemoryCache_CapacityEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(3, time.Hour)
	gen := c.Generation(ctx)

	for i := range 3 {
		c.Put(ctx, key(i), page(fmt.Sprint(i)), gen)
	}
	// Touch 0 so 1 becomes the oldest.
	if _, ok := c.Get(ctx, key(0)); !ok {
		t.Fatalf("expected hit for key 0")
	}
	c.Put(ctx, key(3), page("3"), gen)

	if c.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", c.Len())
	}
	if _, ok := c.Get(ctx, key(1)); ok {
		t.Errorf("least recently used entry should have been evicted")
	}
	for _, n := range []int{0, 2, 3} {
		if _, ok := c.Get(ctx, key(n)); !ok {
			t.Errorf("expected key %d to survive", n)
		}
	}
}

func TestMemoryCache_ExpireAfterAccess(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache(10, 30*time.Minute)

	c.Put(ctx, key(0), page("a"), c.Generation(ctx))

	clock.Advance(20 * time.Minute)
	if _, ok := c.Get(ctx, key(0)); !ok {
		t.Fatalf("entry should be alive 20m after write")
	}

	// The read above renewed the window.
	clock.Advance(20 * time.Minute)
	if _, ok := c.Get(ctx, key(0)); !ok {
		t.Fatalf("entry should be alive 20m after last access")
	}

	clock.Advance(30 * time.Minute)
	if _, ok := c.Get(ctx, key(0)); ok {
		t.Errorf("entry should expire 30m after last access")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be removed on read, len=%d", c.Len())
	}
}

func TestMemoryCache_Cleanup(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache(10, 10*time.Minute)
	gen := c.Generation(ctx)

	c.Put(ctx, key(0), page("old"), gen)
	clock.Advance(6 * time.Minute)
	c.Put(ctx, key(1), page("new"), gen)
	clock.Advance(6 * time.Minute)

	c.Cleanup()

	if c.Len() != 1 {
		t.Fatalf("expected only the fresh entry to remain, len=%d", c.Len())
	}
	if _, ok := c.Get(ctx, key(1)); !ok {
		t.Errorf("fresh entry should survive cleanup")
	}
}

func TestMemoryCache_EvictAll(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(10, time.Hour)
	gen := c.Generation(ctx)

	c.Put(ctx, key(0), page("a"), gen)
	c.Put(ctx, key(1), page("b"), gen)

	if err := c.EvictAll(ctx); err != nil {
		t.Fatalf("EvictAll() error = %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache after EvictAll, len=%d", c.Len())
	}
	if c.Generation(ctx) != gen+1 {
		t.Errorf("EvictAll should advance the generation")
	}
}

func TestMemoryCache_PutAfterEvictionIsDropped(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(10, time.Hour)

	// A reader takes the generation and loads a page...
	gen := c.Generation(ctx)
	// ...a mutation evicts meanwhile...
	if err := c.EvictAll(ctx); err != nil {
		t.Fatalf("EvictAll() error = %v", err)
	}
	// ...and the reader's stale page must not land in the cache.
	c.Put(ctx, key(0), page("stale"), gen)

	if _, ok := c.Get(ctx, key(0)); ok {
		t.Errorf("page loaded before eviction must not be cached")
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(50, time.Minute, WithSweepEvery(time.Millisecond))
	defer c.Stop()

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				k := key((w*200 + i) % 80)
				c.Put(ctx, k, page("x"), c.Generation(ctx))
				c.Get(ctx, k)
				if i%50 == 0 {
					_ = c.EvictAll(ctx)
				}
			}
		}()
	}
	wg.Wait()

	if c.Len() > 50 {
		t.Errorf("capacity exceeded: %d", c.Len())
	}
}

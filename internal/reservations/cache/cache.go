package cache

import (
	"context"
	"fmt"
	"time"

	"slotbook/pkg/model"
)

// Key identifies one page of the available-slot listing.
type Key struct {
	From time.Time
	Page int
	Size int
}

// NewKey normalizes from so that equal instants map to equal keys.
func NewKey(from time.Time, page model.PageRequest) Key {
	return Key{From: model.NormalizeTime(from), Page: page.Page, Size: page.Size}
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d:%d", k.From.Unix(), k.Page, k.Size)
}

// AvailabilityCache holds materialized pages of available slots.
//
// Readers take a Generation before loading from the store and pass it to Put.
// A Put whose generation is older than the latest EvictAll is dropped, so a
// page read before a mutation is never stored after that mutation's eviction.
type AvailabilityCache interface {
	Get(ctx context.Context, key Key) ([]model.AvailableSlot, bool)
	Put(ctx context.Context, key Key, slots []model.AvailableSlot, generation uint64)
	Generation(ctx context.Context) uint64
	EvictAll(ctx context.Context) error
}

package testutil

import (
	"context"
	"testing"
	"time"

	"slotbook/internal/reservations/repository"
	"slotbook/pkg/model"

	"github.com/google/uuid"
)

// FutureHour returns the start of an hour n hours from now, at second precision in UTC.
func FutureHour(n int) time.Time {
	return time.Now().UTC().Truncate(time.Hour).Add(time.Duration(n) * time.Hour)
}

type SlotBuilder struct {
	slot model.Slot
}

func NewSlotBuilder() *SlotBuilder {
	start := FutureHour(24)
	return &SlotBuilder{
		slot: model.Slot{
			ID:        uuid.NewString(),
			StartTime: start,
			EndTime:   start.Add(time.Hour),
		},
	}
}

func (b *SlotBuilder) WithID(id string) *SlotBuilder {
	b.slot.ID = id
	return b
}

func (b *SlotBuilder) StartingAt(start time.Time) *SlotBuilder {
	d := b.slot.EndTime.Sub(b.slot.StartTime)
	b.slot.StartTime = start
	b.slot.EndTime = start.Add(d)
	return b
}

func (b *SlotBuilder) WithDuration(d time.Duration) *SlotBuilder {
	b.slot.EndTime = b.slot.StartTime.Add(d)
	return b
}

func (b *SlotBuilder) Reserved() *SlotBuilder {
	b.slot.Reserved = true
	return b
}

func (b *SlotBuilder) Build() *model.Slot {
	s := b.slot
	return &s
}

// SeedSlots inserts the given slots and fails the test on any error.
func SeedSlots(t *testing.T, slots repository.SlotRepository, items ...*model.Slot) {
	t.Helper()
	for _, s := range items {
		if err := slots.Create(context.Background(), s); err != nil {
			t.Fatalf("failed to seed slot %s: %v", s.ID, err)
		}
	}
}

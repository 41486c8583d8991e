package repository_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	reservationserrors "slotbook/internal/reservations/errors"
	"slotbook/internal/reservations/repository"
	"slotbook/internal/testutil"
	"slotbook/pkg/config"
	"slotbook/pkg/model"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	name string
	open func(t *testing.T) (*repository.Store, *config.Config)
}

var backends = []backend{
	{name: "sqlite", open: testutil.NewSQLiteStore},
	{name: "postgres", open: testutil.NewPostgresStore},
	{name: "mongo", open: testutil.NewMongoStore},
}

func forEachBackend(t *testing.T, fn func(t *testing.T, store *repository.Store)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store, _ := b.open(t)
			fn(t, store)
		})
	}
}

func TestSlotRepository_CreateAndFind(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *repository.Store) {
		ctx := context.Background()
		slot := testutil.NewSlotBuilder().Build()
		testutil.SeedSlots(t, store.Slots, slot)

		got, err := store.Slots.FindByID(ctx, slot.ID)
		require.NoError(t, err)
		if diff := cmp.Diff(slot, got); diff != "" {
			t.Errorf("FindByID mismatch (-want +got):\n%s", diff)
		}

		got, err = store.Slots.FindByStartTime(ctx, slot.StartTime)
		require.NoError(t, err)
		assert.Equal(t, slot.ID, got.ID)
		assert.Equal(t, int64(0), got.Version)

		_, err = store.Slots.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, reservationserrors.ErrSlotNotFound)

		_, err = store.Slots.FindByStartTime(ctx, slot.StartTime.Add(time.Minute))
		assert.ErrorIs(t, err, reservationserrors.ErrSlotNotFound)
	})
}

func TestSlotRepository_DuplicateStartTime(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *repository.Store) {
		start := testutil.FutureHour(5)
		testutil.SeedSlots(t, store.Slots, testutil.NewSlotBuilder().StartingAt(start).Build())

		err := store.Slots.Create(context.Background(), testutil.NewSlotBuilder().StartingAt(start).Build())
		assert.ErrorIs(t, err, reservationserrors.ErrDuplicateSlot)
	})
}

func TestSlotRepository_FindAvailableFrom(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *repository.Store) {
		ctx := context.Background()
		base := testutil.FutureHour(48)

		early := testutil.NewSlotBuilder().StartingAt(base.Add(-2 * time.Hour)).Build()
		first := testutil.NewSlotBuilder().StartingAt(base).Build()
		taken := testutil.NewSlotBuilder().StartingAt(base.Add(time.Hour)).Reserved().Build()
		second := testutil.NewSlotBuilder().StartingAt(base.Add(2 * time.Hour)).Build()
		third := testutil.NewSlotBuilder().StartingAt(base.Add(3 * time.Hour)).Build()
		// Inserted out of order to check sorting.
		testutil.SeedSlots(t, store.Slots, third, taken, early, second, first)

		page0, err := store.Slots.FindAvailableFrom(ctx, base, model.PageRequest{Page: 0, Size: 2})
		require.NoError(t, err)
		require.Len(t, page0, 2)
		assert.Equal(t, first.ID, page0[0].ID)
		assert.Equal(t, second.ID, page0[1].ID)

		page1, err := store.Slots.FindAvailableFrom(ctx, base, model.PageRequest{Page: 1, Size: 2})
		require.NoError(t, err)
		require.Len(t, page1, 1)
		assert.Equal(t, third.ID, page1[0].ID)

		page2, err := store.Slots.FindAvailableFrom(ctx, base, model.PageRequest{Page: 2, Size: 2})
		require.NoError(t, err)
		assert.Empty(t, page2)
	})
}

func TestSlotRepository_TryReserveAndRelease(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *repository.Store) {
		ctx := context.Background()
		slot := testutil.NewSlotBuilder().Build()
		testutil.SeedSlots(t, store.Slots, slot)

		ok, err := store.Slots.TryReserve(ctx, slot.ID, 1)
		require.NoError(t, err)
		assert.False(t, ok, "stale version must not match")

		ok, err = store.Slots.TryReserve(ctx, slot.ID, 0)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Slots.TryReserve(ctx, slot.ID, 1)
		require.NoError(t, err)
		assert.False(t, ok, "reserved slot must not be reserved again")

		_, err = store.Slots.FindByStartTime(ctx, slot.StartTime)
		assert.ErrorIs(t, err, reservationserrors.ErrSlotTaken)

		require.NoError(t, store.Slots.Release(ctx, slot.ID))
		got, err := store.Slots.FindByID(ctx, slot.ID)
		require.NoError(t, err)
		assert.False(t, got.Reserved)
		assert.Equal(t, int64(2), got.Version)

		// Releasing again changes nothing.
		require.NoError(t, store.Slots.Release(ctx, slot.ID))
		got, err = store.Slots.FindByID(ctx, slot.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
	})
}

func TestSlotRepository_TryReserveSingleWinner(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *repository.Store) {
		ctx := context.Background()
		slot := testutil.NewSlotBuilder().Build()
		testutil.SeedSlots(t, store.Slots, slot)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := store.Slots.TryReserve(ctx, slot.ID, 0)
				if err == nil && ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
	})
}

func TestReservationRepository_Lifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *repository.Store) {
		ctx := context.Background()
		slot := testutil.NewSlotBuilder().Build()
		testutil.SeedSlots(t, store.Slots, slot)

		res := &model.Reservation{UserID: "alice", SlotID: slot.ID}
		require.NoError(t, store.Reservations.Create(ctx, res))
		assert.NotEmpty(t, res.ID)
		assert.False(t, res.CreatedAt.IsZero())

		err := store.Reservations.Create(ctx, &model.Reservation{UserID: "bob", SlotID: slot.ID})
		assert.ErrorIs(t, err, reservationserrors.ErrDuplicateReservation)

		got, err := store.Reservations.FindByUserAndSlot(ctx, "alice", slot.ID)
		require.NoError(t, err)
		assert.Equal(t, res.ID, got.ID)

		_, err = store.Reservations.FindByUserAndSlot(ctx, "bob", slot.ID)
		assert.ErrorIs(t, err, reservationserrors.ErrReservationNotFound)

		require.NoError(t, store.Reservations.Delete(ctx, got))
		_, err = store.Reservations.FindByUserAndSlot(ctx, "alice", slot.ID)
		assert.ErrorIs(t, err, reservationserrors.ErrReservationNotFound)

		assert.ErrorIs(t, store.Reservations.Delete(ctx, got), reservationserrors.ErrReservationNotFound)
	})
}

func TestStore_TransactionRollsBackReserve(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *repository.Store) {
		ctx := context.Background()
		slot := testutil.NewSlotBuilder().Build()
		testutil.SeedSlots(t, store.Slots, slot)
		require.NoError(t, store.Reservations.Create(ctx, &model.Reservation{UserID: "squatter", SlotID: slot.ID}))

		err := store.Transactor.WithinTransaction(ctx, func(ctx context.Context) error {
			ok, err := store.Slots.TryReserve(ctx, slot.ID, 0)
			if err != nil {
				return err
			}
			require.True(t, ok)
			return store.Reservations.Create(ctx, &model.Reservation{UserID: "alice", SlotID: slot.ID})
		})
		require.ErrorIs(t, err, reservationserrors.ErrDuplicateReservation)

		got, err := store.Slots.FindByID(ctx, slot.ID)
		require.NoError(t, err)
		assert.False(t, got.Reserved, "slot update must roll back with the failed insert")
		assert.Equal(t, int64(0), got.Version)
	})
}

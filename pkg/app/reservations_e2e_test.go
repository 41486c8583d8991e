package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"slotbook/internal/reservations/cache"
	"slotbook/internal/reservations/handler"
	"slotbook/internal/reservations/service"
	"slotbook/internal/reservations/validator"
	"slotbook/internal/testutil"
	"slotbook/pkg/client"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/identity"
	"slotbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reservationData struct {
	Data model.ReservationDetails `json:"data"`
}

type slotPage struct {
	Data []model.AvailableSlot `json:"data"`
	Page int                   `json:"page"`
	Size int                   `json:"size"`
}

func TestReservationsOverHTTP(t *testing.T) {
	store, cfg := testutil.NewSQLiteStore(t)
	cfg.RequestTimeout = 5 * time.Second
	cfg.IdempotencyTTL = time.Minute
	cfg.MaxRequestSize = 4096
	cfg.RateLimitRPS = 1000
	cfg.RateLimitBurst = 1000

	slot := testutil.NewSlotBuilder().StartingAt(testutil.FutureHour(48)).Build()
	testutil.SeedSlots(t, store.Slots, slot)

	key, err := identity.GenerateKey()
	require.NoError(t, err)
	sealer, err := identity.NewSealer(key)
	require.NoError(t, err)

	availability := cache.NewMemoryCache(cfg.CacheCapacity, cfg.CacheExpireAfterAccess, cache.WithSweepEvery(0))
	t.Cleanup(availability.Stop)

	svc := service.NewReservationService(store, availability, nil, cfg)
	a := NewApplication(cfg)
	a.SetApp(sealer,
		handler.NewReservationHandler(svc, validator.NewReservationValidator(cfg.Log), cfg.Log),
		handler.NewHealthHandler(cfg.Log, handler.Dependency{Name: "sqlite", Ping: store.Slots.Ping}),
	)
	t.Cleanup(func() {
		a.idempotencyStore.Stop()
		a.rateLimiter.Stop()
	})

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, client.NewHttpClient(srv.URL).WaitForHealthy(ctx, 50*time.Millisecond))

	token := func(user string) string {
		tok, err := sealer.Seal(user, time.Now().Add(time.Hour))
		require.NoError(t, err)
		return tok
	}
	alice := client.NewReservationClient(srv.URL, token("alice"))
	bob := client.NewReservationClient(srv.URL, token("bob"))
	anonymous := client.NewReservationClient(srv.URL, "")

	start := slot.StartTime.Format(time.RFC3339)
	from := time.Now().UTC().Add(time.Minute).Format(time.RFC3339)

	resp, err := anonymous.ListAvailable(ctx, from, 0, 10)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page slotPage
	require.NoError(t, resp.DecodeJSON(&page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, slot.ID, page.Data[0].SlotID)

	resp, err = anonymous.Reserve(ctx, start, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = alice.Reserve(ctx, start, "k-1")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created reservationData
	require.NoError(t, resp.DecodeJSON(&created))
	assert.Equal(t, slot.ID, created.Data.SlotID)
	assert.True(t, slot.StartTime.Equal(created.Data.StartTime))

	replay, err := alice.Reserve(ctx, start, "k-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, replay.StatusCode)
	assert.Equal(t, "true", replay.Header.Get("Idempotent-Replayed"))
	assert.Equal(t, resp.Body, replay.Body)

	resp, err = bob.Reserve(ctx, start, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, apperrors.CodeSlotConflict, resp.ErrorCode())

	resp, err = anonymous.ListAvailable(ctx, from, 0, 10)
	require.NoError(t, err)
	require.NoError(t, resp.DecodeJSON(&page))
	assert.Empty(t, page.Data)

	resp, err = bob.Cancel(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = alice.Cancel(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = anonymous.ListAvailable(ctx, from, 0, 10)
	require.NoError(t, err)
	require.NoError(t, resp.DecodeJSON(&page))
	require.Len(t, page.Data, 1)

	resp, err = anonymous.ListAvailable(ctx, "2001-01-01T00:00:00Z", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

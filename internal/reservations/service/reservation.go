package service

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"slotbook/internal/reservations/cache"
	reservationserrors "slotbook/internal/reservations/errors"
	"slotbook/internal/reservations/repository"
	"slotbook/pkg/config"
	"slotbook/pkg/contracts"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/model"
)

type ReservationService interface {
	// ListAvailable returns one page of unreserved slots starting at or after from.
	ListAvailable(ctx context.Context, from time.Time, page model.PageRequest) ([]model.AvailableSlot, error)
	// Reserve books the slot starting at start for userID. Among concurrent
	// callers for the same slot exactly one succeeds.
	Reserve(ctx context.Context, userID string, start time.Time) (*model.ReservationDetails, error)
	// Cancel releases userID's reservation of slotID. A reservation owned by
	// another user is reported as not found.
	Cancel(ctx context.Context, userID, slotID string) error
}

// EventPublisher receives committed reservation changes.
type EventPublisher interface {
	Publish(ctx context.Context, event *model.ReservationEvent) error
}

type reservationService struct {
	slots         repository.SlotRepository
	reservations  repository.ReservationRepository
	tx            contracts.Transactor
	transactional bool
	cache         cache.AvailabilityCache
	publisher     EventPublisher
	cfg           *config.Config
	now           func() time.Time

	// failedEvictions counts mutations whose eviction never went through.
	// While it is non-zero the cache may hold pages older than the store.
	failedEvictions atomic.Uint64
}

// evictAttempts bounds how often one mutation retries the cache eviction.
const evictAttempts = 3

func NewReservationService(
	store *repository.Store,
	availability cache.AvailabilityCache,
	publisher EventPublisher,
	cfg *config.Config,
) ReservationService {
	_, plain := store.Transactor.(contracts.NoTransaction)
	return &reservationService{
		slots:         store.Slots,
		reservations:  store.Reservations,
		tx:            store.Transactor,
		transactional: !plain,
		cache:         availability,
		publisher:     publisher,
		cfg:           cfg,
		now:           time.Now,
	}
}

func (s *reservationService) ListAvailable(ctx context.Context, from time.Time, page model.PageRequest) ([]model.AvailableSlot, error) {
	from = model.NormalizeTime(from)
	if from.Before(model.NormalizeTime(s.now())) {
		return nil, apperrors.Validation("Time must be in the present or future", map[string]any{
			"from": from.Format(time.RFC3339),
		})
	}
	if page.Page < 0 || page.Size < 1 || page.Size > config.MaxPageSize || page.Page > math.MaxInt/page.Size {
		return nil, apperrors.Validation("Invalid page request", map[string]any{
			"page": page.Page,
			"size": page.Size,
		})
	}

	key := cache.NewKey(from, page)
	useCache := s.cacheUsable(ctx)
	generation := s.cache.Generation(ctx)
	if useCache {
		if slots, ok := s.cache.Get(ctx, key); ok {
			return slots, nil
		}
	}

	found, err := s.slots.FindAvailableFrom(ctx, from, page)
	if err != nil {
		s.cfg.Log.Error("Failed to list available slots", "from", from, "page", page.Page, "size", page.Size, "error", err)
		return nil, apperrors.Internal("Failed to retrieve available slots", err)
	}

	slots := make([]model.AvailableSlot, 0, len(found))
	for _, slot := range found {
		slots = append(slots, slot.Available())
	}

	if useCache {
		s.cache.Put(ctx, key, slots, generation)
	}
	s.cfg.Log.Debug("Available slots loaded from store", "from", from, "page", page.Page, "size", page.Size, "count", len(slots))
	return slots, nil
}

func (s *reservationService) Reserve(ctx context.Context, userID string, start time.Time) (*model.ReservationDetails, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}
	start = model.NormalizeTime(start)
	maxAttempts := max(1, s.cfg.ReserveMaxAttempts)

	for attempt := 1; ; attempt++ {
		details, err := s.reserveOnce(ctx, userID, start)
		if err == nil {
			s.afterMutation(ctx, &model.ReservationEvent{
				EventType:     model.EventReservationCreated,
				ReservationID: details.ReservationID,
				SlotID:        details.SlotID,
				UserID:        userID,
				StartTime:     &details.StartTime,
				EndTime:       &details.EndTime,
			})
			s.cfg.Log.Info("Slot reserved successfully",
				"reservation_id", details.ReservationID,
				"slot_id", details.SlotID,
				"user_id", userID,
				"start_time", details.StartTime,
				"attempt", attempt,
			)
			return details, nil
		}

		switch {
		case errors.Is(err, reservationserrors.ErrSlotNotFound):
			return nil, apperrors.NotFound("Slot").WithDetails(map[string]any{
				"slot_start_time": start.Format(time.RFC3339),
			})
		case errors.Is(err, reservationserrors.ErrDuplicateReservation):
			s.cfg.Log.Warn("Reservation rejected by uniqueness constraint", "start_time", start, "user_id", userID)
			return nil, apperrors.SlotConflict(start.Format(time.RFC3339), attempt)
		case !reservationserrors.IsRetryable(err):
			s.cfg.Log.Error("Failed to reserve slot", "start_time", start, "user_id", userID, "error", err)
			return nil, apperrors.Internal("Failed to reserve slot", err)
		}

		if attempt >= maxAttempts {
			s.cfg.Log.Warn("Failed to reserve slot after retries", "start_time", start, "user_id", userID, "attempts", attempt)
			return nil, apperrors.SlotConflict(start.Format(time.RFC3339), attempt)
		}

		s.cfg.Log.Debug("Slot reservation conflict, retrying", "start_time", start, "attempt", attempt, "delay", s.cfg.ReserveRetryDelay)
		if err := s.wait(ctx); err != nil {
			return nil, apperrors.Timeout("Request cancelled while retrying reservation")
		}
	}
}

// reserveOnce resolves the slot and, in one unit of work, flips it reserved
// and records the reservation.
func (s *reservationService) reserveOnce(ctx context.Context, userID string, start time.Time) (*model.ReservationDetails, error) {
	slot, err := s.slots.FindByStartTime(ctx, start)
	if err != nil {
		return nil, err
	}

	reservation := &model.Reservation{
		UserID:    userID,
		SlotID:    slot.ID,
		CreatedAt: s.now(),
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.slots.TryReserve(ctx, slot.ID, slot.Version)
		if err != nil {
			return err
		}
		if !ok {
			return reservationserrors.ErrVersionConflict
		}

		if err := s.reservations.Create(ctx, reservation); err != nil {
			// Without a transaction the flip above is already durable.
			if !s.transactional {
				if relErr := s.slots.Release(ctx, slot.ID); relErr != nil {
					s.cfg.Log.Error("Failed to undo slot reservation", "slot_id", slot.ID, "error", relErr)
				}
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.ReservationDetails{
		ReservationID: reservation.ID,
		SlotID:        slot.ID,
		StartTime:     slot.StartTime,
		EndTime:       slot.EndTime,
		CreatedAt:     reservation.CreatedAt,
	}, nil
}

func (s *reservationService) Cancel(ctx context.Context, userID, slotID string) error {
	if userID == "" {
		return apperrors.Unauthorized("authentication required")
	}
	if slotID == "" {
		return apperrors.InvalidInput("Slot ID cannot be empty")
	}

	var reservationID string
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		reservation, err := s.reservations.FindByUserAndSlot(ctx, userID, slotID)
		if err != nil {
			return err
		}
		reservationID = reservation.ID

		// The reservation goes first so a slot is never free while still referenced.
		if err := s.reservations.Delete(ctx, reservation); err != nil {
			return err
		}
		return s.slots.Release(ctx, slotID)
	})
	if err != nil {
		if errors.Is(err, reservationserrors.ErrReservationNotFound) {
			return apperrors.NotFoundWithID("Reservation", slotID)
		}
		s.cfg.Log.Error("Failed to cancel reservation", "slot_id", slotID, "user_id", userID, "error", err)
		return apperrors.Internal("Failed to cancel reservation", err)
	}

	s.afterMutation(ctx, &model.ReservationEvent{
		EventType:     model.EventReservationCancelled,
		ReservationID: reservationID,
		SlotID:        slotID,
		UserID:        userID,
	})
	s.cfg.Log.Info("Reservation cancelled successfully",
		"reservation_id", reservationID,
		"slot_id", slotID,
		"user_id", userID,
	)
	return nil
}

// afterMutation runs once a change has committed: every cached page is
// dropped before the caller sees the result, then the change is announced.
func (s *reservationService) afterMutation(ctx context.Context, event *model.ReservationEvent) {
	if err := s.evictAll(ctx); err != nil {
		s.failedEvictions.Add(1)
		s.cfg.Log.Error("Failed to evict availability cache, bypassing it until eviction succeeds",
			"event", event.EventType, "slot_id", event.SlotID, "error", err)
	}

	if s.publisher == nil {
		return
	}
	event.OccurredAt = s.now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish reservation event", "event", event.EventType, "slot_id", event.SlotID, "error", err)
	}
}

// evictAll retries the eviction a few times, ignoring request cancellation.
func (s *reservationService) evictAll(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	var err error
	for range evictAttempts {
		if err = s.cache.EvictAll(ctx); err == nil {
			return nil
		}
	}
	return err
}

// cacheUsable reports whether cached pages can be trusted. After a failed
// eviction every read retries it, and the cache stays bypassed until one
// succeeds. A failure recorded meanwhile keeps the cache bypassed.
func (s *reservationService) cacheUsable(ctx context.Context) bool {
	pending := s.failedEvictions.Load()
	if pending == 0 {
		return true
	}
	if err := s.evictAll(ctx); err != nil {
		s.cfg.Log.Warn("Availability cache still not evicted, reading from store", "error", err)
		return false
	}
	return s.failedEvictions.CompareAndSwap(pending, 0)
}

func (s *reservationService) wait(ctx context.Context) error {
	if s.cfg.ReserveRetryDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.cfg.ReserveRetryDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

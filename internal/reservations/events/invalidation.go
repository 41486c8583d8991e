package events

import (
	"context"

	"slotbook/internal/reservations/cache"
	"slotbook/pkg/kafka"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"
)

// InvalidationHandler drops the local availability cache when a peer
// instance reports a reservation change. Events from this instance are
// skipped since the mutation already evicted locally.
type InvalidationHandler struct {
	cache      cache.AvailabilityCache
	instanceID string
	log        *logger.Logger
}

func NewInvalidationHandler(availability cache.AvailabilityCache, instanceID string, log *logger.Logger) *InvalidationHandler {
	return &InvalidationHandler{cache: availability, instanceID: instanceID, log: log}
}

func (h *InvalidationHandler) Handle(ctx context.Context, msg kafka.Message) error {
	switch msg.GetEventType() {
	case model.EventReservationCreated, model.EventReservationCancelled:
	default:
		h.log.Debug("Ignoring unknown event type", "event_type", msg.GetEventType(), "event_id", msg.GetEventID())
		return nil
	}

	var event model.ReservationEvent
	if err := msg.DecodeValue(&event); err != nil {
		return err
	}
	if event.SourceInstance == h.instanceID {
		return nil
	}

	if err := h.cache.EvictAll(ctx); err != nil {
		return kafka.NewTransientError("failed to evict availability cache", err)
	}
	h.log.Debug("Availability cache evicted by peer event",
		"event_type", event.EventType,
		"slot_id", event.SlotID,
		"source_instance", event.SourceInstance,
	)
	return nil
}

// ConsumerGroup gives every instance its own group so each one sees every event.
func ConsumerGroup(prefix, instanceID string) string {
	return prefix + "-" + instanceID
}

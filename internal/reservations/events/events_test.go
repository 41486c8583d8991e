package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"slotbook/internal/reservations/cache"
	"slotbook/pkg/kafka"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	messages []kafka.Message
	err      error
}

func (c *capturePublisher) Publish(ctx context.Context, msg kafka.Message) error {
	c.messages = append(c.messages, msg)
	return c.err
}

type failingCache struct {
	cache.AvailabilityCache
}

func (failingCache) EvictAll(ctx context.Context) error {
	return errors.New("redis: connection refused")
}

func sampleEvent() *model.ReservationEvent {
	start := time.Date(2031, 3, 4, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	return &model.ReservationEvent{
		EventType:     model.EventReservationCreated,
		ReservationID: "r-1",
		SlotID:        "slot-1",
		UserID:        "alice",
		StartTime:     &start,
		EndTime:       &end,
		OccurredAt:    start.Add(-24 * time.Hour),
	}
}

func TestPublisher_Publish(t *testing.T) {
	producer := &capturePublisher{}
	p := NewPublisher(producer, "instance-a")

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	require.Len(t, producer.messages, 1)

	msg := producer.messages[0]
	assert.Equal(t, "slot-1", msg.Key)
	assert.Equal(t, model.EventReservationCreated, msg.GetEventType())
	assert.Equal(t, "instance-a", msg.GetSource())
	assert.Equal(t, SchemaVersion, msg.Headers[kafka.HeaderSchemaVersion])

	var decoded model.ReservationEvent
	require.NoError(t, msg.DecodeValue(&decoded))
	assert.Equal(t, "instance-a", decoded.SourceInstance)
	assert.Equal(t, "r-1", decoded.ReservationID)
}

func TestPublisher_WrapsProducerError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewPublisher(&capturePublisher{err: boom}, "instance-a")

	err := p.Publish(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, boom)
}

func encode(t *testing.T, event *model.ReservationEvent) kafka.Message {
	t.Helper()
	producer := &capturePublisher{}
	require.NoError(t, NewPublisher(producer, event.SourceInstance).Publish(context.Background(), event))
	return producer.messages[0]
}

func TestInvalidationHandler(t *testing.T) {
	ctx := context.Background()
	availability := cache.NewMemoryCache(10, time.Minute, cache.WithSweepEvery(0))
	h := NewInvalidationHandler(availability, "instance-a", logger.Discard())

	key := cache.NewKey(time.Now(), model.PageRequest{Page: 0, Size: 10})
	seed := func() {
		availability.Put(ctx, key, []model.AvailableSlot{{SlotID: "slot-1"}}, availability.Generation(ctx))
	}

	t.Run("own event is ignored", func(t *testing.T) {
		seed()
		event := sampleEvent()
		event.SourceInstance = "instance-a"
		require.NoError(t, h.Handle(ctx, encode(t, event)))
		assert.Equal(t, 1, availability.Len())
	})

	t.Run("peer event evicts", func(t *testing.T) {
		seed()
		event := sampleEvent()
		event.SourceInstance = "instance-b"
		require.NoError(t, h.Handle(ctx, encode(t, event)))
		assert.Equal(t, 0, availability.Len())
	})

	t.Run("unknown type is ignored", func(t *testing.T) {
		seed()
		msg := encode(t, &model.ReservationEvent{EventType: "slot.renamed", SlotID: "slot-1", SourceInstance: "instance-b"})
		require.NoError(t, h.Handle(ctx, msg))
		assert.Equal(t, 1, availability.Len())
	})

	t.Run("malformed payload is permanent", func(t *testing.T) {
		msg := encode(t, sampleEvent())
		msg.Value = []byte("{not json")
		err := h.Handle(ctx, msg)
		assert.Equal(t, kafka.ErrorTypePermanent, kafka.ClassifyError(err))
	})
}

func TestInvalidationHandler_EvictFailureIsTransient(t *testing.T) {
	h := NewInvalidationHandler(failingCache{}, "instance-a", logger.Discard())
	event := sampleEvent()
	event.SourceInstance = "instance-b"

	err := h.Handle(context.Background(), encode(t, event))
	assert.Equal(t, kafka.ErrorTypeTransient, kafka.ClassifyError(err))
}

func TestConsumerGroup(t *testing.T) {
	assert.Equal(t, "slotbook-cache-host-1", ConsumerGroup("slotbook-cache", "host-1"))
}

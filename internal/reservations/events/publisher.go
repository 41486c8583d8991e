package events

import (
	"context"
	"fmt"

	"slotbook/pkg/kafka"
	"slotbook/pkg/model"
)

const SchemaVersion = "1"

// MessagePublisher is satisfied by *kafka.Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// Publisher stamps reservation events with this instance's id and writes
// them keyed by slot so that changes to one slot stay ordered.
type Publisher struct {
	producer   MessagePublisher
	instanceID string
}

func NewPublisher(producer MessagePublisher, instanceID string) *Publisher {
	return &Publisher{producer: producer, instanceID: instanceID}
}

func (p *Publisher) Publish(ctx context.Context, event *model.ReservationEvent) error {
	event.SourceInstance = p.instanceID

	msg, err := kafka.NewMessage().
		WithKey(event.SlotID).
		WithValue(event).
		WithEventType(event.EventType).
		WithSchemaVersion(SchemaVersion).
		WithSource(p.instanceID).
		WithTimestamp(event.OccurredAt).
		Build()
	if err != nil {
		return err
	}

	if err := p.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s for slot %s: %w", event.EventType, event.SlotID, err)
	}
	return nil
}

package model

import "time"

const (
	EventReservationCreated   = "reservation.created"
	EventReservationCancelled = "reservation.cancelled"
)

// ReservationEvent is published after a reservation change has committed.
type ReservationEvent struct {
	EventType      string     `json:"event_type"`
	ReservationID  string     `json:"reservation_id"`
	SlotID         string     `json:"slot_id"`
	UserID         string     `json:"user_id"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
	SourceInstance string     `json:"source_instance"`
}

package model

import "time"

type Reservation struct {
	ID        string    `json:"reservation_id" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	SlotID    string    `json:"slot_id" bson:"slot_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// ReservationDetails is returned to the client that made the reservation.
type ReservationDetails struct {
	ReservationID string    `json:"reservation_id"`
	SlotID        string    `json:"slot_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	CreatedAt     time.Time `json:"created_at"`
}

type ReserveRequest struct {
	SlotStartTime string `json:"slot_start_time" validate:"required,slot_time"`
}

type ListAvailableQuery struct {
	From string `json:"from" validate:"required,slot_time"`
	Page int    `json:"page" validate:"min=0,max=10000"`
	Size int    `json:"size" validate:"min=1,max=100"`
}

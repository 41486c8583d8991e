package model

import "time"

// Slot is a bookable time interval. Reserved and Version change only through
// the conditional reserve and release writes of the slot store.
type Slot struct {
	ID        string    `json:"slot_id" bson:"_id"`
	StartTime time.Time `json:"start_time" bson:"start_time"`
	EndTime   time.Time `json:"end_time" bson:"end_time"`
	Reserved  bool      `json:"reserved" bson:"reserved"`
	Version   int64     `json:"version" bson:"version"`
}

// AvailableSlot is the public projection of an unreserved slot.
type AvailableSlot struct {
	SlotID    string    `json:"slot_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func (s *Slot) Available() AvailableSlot {
	return AvailableSlot{
		SlotID:    s.ID,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
	}
}

// PageRequest addresses one page of the available-slot listing.
type PageRequest struct {
	Page int
	Size int
}

func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// NormalizeTime maps an instant onto the stored representation: UTC wall
// clock at second precision. Slot times carry no zone information.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

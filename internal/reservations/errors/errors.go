package errors

import "errors"

var (
	ErrSlotNotFound = errors.New("slot not found")

	ErrReservationNotFound = errors.New("reservation not found")

	// ErrSlotTaken means a slot exists at the requested time but is already reserved.
	ErrSlotTaken = errors.New("slot is already reserved")

	// ErrVersionConflict means the conditional reserve write matched nothing.
	ErrVersionConflict = errors.New("slot version changed concurrently")

	ErrDuplicateReservation = errors.New("reservation for slot already exists")

	ErrDuplicateSlot = errors.New("slot with the same start time already exists")

	ErrPastFromTime = errors.New("from time must be in the present or future")
)

// IsRetryable reports whether err is an optimistic concurrency conflict
// that a fresh read and a new conditional write may resolve.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrSlotTaken)
}

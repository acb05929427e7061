package availability

import "errors"

var (
	// ErrInvalidSlot indicates a malformed worker id, date, or time label.
	ErrInvalidSlot = errors.New("availability: invalid slot")

	// ErrSlotExists indicates the exact (worker, date, label) key is already published.
	ErrSlotExists = errors.New("availability: slot already added")

	// ErrSlotUnavailable indicates the slot is gone, either never published or
	// already reserved by a concurrent booking.
	ErrSlotUnavailable = errors.New("availability: slot unavailable")
)

package availability

import "context"

// Store tracks a worker's open slots. Reserve is the load-bearing operation:
// it must check and consume the slot as one atomic step so that concurrent
// bookings of the same key yield exactly one winner.
type Store interface {
	// Add publishes a slot, failing with ErrSlotExists on a duplicate key.
	Add(ctx context.Context, slot Slot) error

	// List returns a stable snapshot of the worker's open slots ordered by
	// (date, time label). An empty date means all dates.
	List(ctx context.Context, workerID, date string) ([]Slot, error)

	// Reserve atomically consumes the slot, or fails with ErrSlotUnavailable.
	Reserve(ctx context.Context, slot Slot) error

	// Release returns a previously reserved slot to the pool. Releasing a slot
	// that is already open is a no-op.
	Release(ctx context.Context, slot Slot) error
}

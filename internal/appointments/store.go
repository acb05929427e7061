package appointments

import "context"

// Store persists appointments. Transition is a compare-and-set on the status
// column: the write succeeds only when the stored status still equals from,
// which is what keeps two concurrent responses from both winning.
type Store interface {
	Create(ctx context.Context, appt *Appointment) error

	Get(ctx context.Context, id string) (*Appointment, error)

	// Transition atomically moves id from -> to. Fails with ErrNotFound for an
	// unknown id and ErrInvalidTransition when the stored status is not from
	// or the edge is not in the state machine.
	Transition(ctx context.Context, id string, from, to Status) error

	ListByWorker(ctx context.Context, workerID string) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID string) ([]Appointment, error)
	ListPendingForWorker(ctx context.Context, workerID string) ([]Appointment, error)
}

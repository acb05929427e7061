package appointments

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a mutex-guarded in-memory Store for development and tests.
type MemoryStore struct {
	mu    sync.Mutex
	appts map[string]Appointment
}

// NewMemoryStore creates an empty in-memory appointment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{appts: make(map[string]Appointment)}
}

func (s *MemoryStore) Create(ctx context.Context, appt *Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appts[appt.ID] = *appt
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := appt
	return &out, nil
}

func (s *MemoryStore) Transition(ctx context.Context, id string, from, to Status) error {
	if !from.CanTransitionTo(to) {
		return ErrInvalidTransition
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok {
		return ErrNotFound
	}
	if appt.Status != from {
		return ErrInvalidTransition
	}
	appt.Status = to
	s.appts[id] = appt
	return nil
}

func (s *MemoryStore) ListByWorker(ctx context.Context, workerID string) ([]Appointment, error) {
	return s.list(func(a Appointment) bool { return a.WorkerID == workerID })
}

func (s *MemoryStore) ListByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	return s.list(func(a Appointment) bool { return a.PatientID == patientID })
}

func (s *MemoryStore) ListPendingForWorker(ctx context.Context, workerID string) ([]Appointment, error) {
	return s.list(func(a Appointment) bool {
		return a.WorkerID == workerID && a.Status == StatusPending
	})
}

func (s *MemoryStore) list(match func(Appointment) bool) ([]Appointment, error) {
	s.mu.Lock()
	var out []Appointment
	for _, appt := range s.appts {
		if match(appt) {
			out = append(out, appt)
		}
	}
	s.mu.Unlock()

	// Newest first, matching the relational ORDER BY created_at DESC.
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

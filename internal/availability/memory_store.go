package availability

import (
	"context"
	"sort"
	"sync"
)

type slotKey struct {
	workerID  string
	date      string
	timeLabel string
}

// MemoryStore is a mutex-guarded in-memory Store for development and tests.
type MemoryStore struct {
	mu    sync.Mutex
	slots map[slotKey]struct{}
}

// NewMemoryStore creates an empty in-memory slot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[slotKey]struct{})}
}

func (s *MemoryStore) Add(ctx context.Context, slot Slot) error {
	key := slotKey{slot.WorkerID, slot.Date, slot.TimeLabel}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slots[key]; ok {
		return ErrSlotExists
	}
	s.slots[key] = struct{}{}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, workerID, date string) ([]Slot, error) {
	s.mu.Lock()
	var out []Slot
	for key := range s.slots {
		if key.workerID != workerID {
			continue
		}
		if date != "" && key.date != date {
			continue
		}
		out = append(out, Slot{WorkerID: key.workerID, Date: key.date, TimeLabel: key.timeLabel})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].TimeLabel < out[j].TimeLabel
	})
	return out, nil
}

func (s *MemoryStore) Reserve(ctx context.Context, slot Slot) error {
	key := slotKey{slot.WorkerID, slot.Date, slot.TimeLabel}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slots[key]; !ok {
		return ErrSlotUnavailable
	}
	delete(s.slots, key)
	return nil
}

func (s *MemoryStore) Release(ctx context.Context, slot Slot) error {
	key := slotKey{slot.WorkerID, slot.Date, slot.TimeLabel}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[key] = struct{}{}
	return nil
}

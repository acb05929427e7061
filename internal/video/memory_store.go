package video

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory SessionStore for development and tests. It does
// not expire entries.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session // appointment id -> session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (s *MemoryStore) Save(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.AppointmentID] = *session
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, appointmentID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[appointmentID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := sess
	return &out, nil
}

func (s *MemoryStore) GetByRoom(ctx context.Context, roomID string) (*Session, error) {
	appointmentID, ok := AppointmentIDFromRoom(roomID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Get(ctx, appointmentID)
}

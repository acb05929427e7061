package subscription

import (
	"context"
	"sync"
	"time"
)

// MemoryPlanStore holds worker subscriptions in memory for development and
// tests.
type MemoryPlanStore struct {
	mu   sync.RWMutex
	subs map[string]Subscription
}

// NewMemoryPlanStore creates an empty plan store.
func NewMemoryPlanStore() *MemoryPlanStore {
	return &MemoryPlanStore{subs: make(map[string]Subscription)}
}

// Activate assigns a plan to a worker until expiry.
func (s *MemoryPlanStore) Activate(workerID string, plan Plan, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[workerID] = Subscription{
		WorkerID:  workerID,
		Plan:      plan,
		Status:    "active",
		ExpiresAt: expiresAt,
	}
}

func (s *MemoryPlanStore) ActivePlan(ctx context.Context, workerID string) (*Plan, error) {
	s.mu.RLock()
	sub, ok := s.subs[workerID]
	s.mu.RUnlock()
	if !ok || sub.Status != "active" || time.Now().After(sub.ExpiresAt) {
		return nil, ErrNoActiveSubscription
	}
	plan := sub.Plan
	return &plan, nil
}

type quotaKey struct {
	workerID string
	date     string
}

// MemoryQuotaStore is a mutex-guarded per-key counter.
type MemoryQuotaStore struct {
	mu   sync.Mutex
	used map[quotaKey]int
}

// NewMemoryQuotaStore creates an empty quota store.
func NewMemoryQuotaStore() *MemoryQuotaStore {
	return &MemoryQuotaStore{used: make(map[quotaKey]int)}
}

func (s *MemoryQuotaStore) Consume(ctx context.Context, workerID, date string, limit int) error {
	key := quotaKey{workerID, date}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used[key] >= limit {
		return ErrQuotaExceeded
	}
	s.used[key]++
	return nil
}

func (s *MemoryQuotaStore) Used(ctx context.Context, workerID, date string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used[quotaKey{workerID, date}], nil
}

package subscription

import "context"

// PlanStore resolves a worker's active subscription plan.
type PlanStore interface {
	// ActivePlan returns the plan of the worker's current active subscription,
	// or ErrNoActiveSubscription.
	ActivePlan(ctx context.Context, workerID string) (*Plan, error)
}

// QuotaStore tracks per-worker, per-day acceptance counts. Consume must be
// atomic with respect to concurrent calls for the same (worker, date) key:
// the counter never passes limit.
type QuotaStore interface {
	// Consume increments the worker's count for date if it is below limit,
	// otherwise fails with ErrQuotaExceeded.
	Consume(ctx context.Context, workerID, date string, limit int) error

	// Used returns the worker's count for date; zero for an unseen date.
	Used(ctx context.Context, workerID, date string) (int, error)
}

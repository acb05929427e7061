package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/expertease/consult-engine/pkg/logging"
)

const dateLayout = "2006-01-02"

// Gate is the admission control in front of appointment acceptance. A worker
// may accept at most Plan.DailyLimit appointments per calendar day; workers
// without an active subscription are denied outright.
type Gate struct {
	plans  PlanStore
	quota  QuotaStore
	logger *logging.Logger
	now    func() time.Time
}

// NewGate creates an admission gate.
func NewGate(plans PlanStore, quota QuotaStore, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.Default()
	}
	return &Gate{
		plans:  plans,
		quota:  quota,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the gate's clock, for tests.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

func (g *Gate) today() string {
	return g.now().UTC().Format(dateLayout)
}

// Check reports whether the worker currently has quota headroom without
// consuming any. Used as the cheap pre-check before a slot is reserved.
func (g *Gate) Check(ctx context.Context, workerID string) error {
	plan, err := g.plans.ActivePlan(ctx, workerID)
	if err != nil {
		return err
	}
	used, err := g.quota.Used(ctx, workerID, g.today())
	if err != nil {
		return fmt.Errorf("subscription: read usage: %w", err)
	}
	if used >= plan.DailyLimit {
		return ErrQuotaExceeded
	}
	return nil
}

// CheckAndConsume atomically takes one unit of today's quota. It must be
// called inside the acceptance path only: a denied consume leaves the
// appointment untouched.
func (g *Gate) CheckAndConsume(ctx context.Context, workerID string) error {
	plan, err := g.plans.ActivePlan(ctx, workerID)
	if err != nil {
		return err
	}
	if plan.DailyLimit <= 0 {
		return ErrQuotaExceeded
	}
	if err := g.quota.Consume(ctx, workerID, g.today(), plan.DailyLimit); err != nil {
		return err
	}
	g.logger.Debug("quota consumed", "worker_id", workerID, "daily_limit", plan.DailyLimit)
	return nil
}

// Stats returns today's usage for the worker's active plan.
func (g *Gate) Stats(ctx context.Context, workerID string) (*UsageStats, error) {
	plan, err := g.plans.ActivePlan(ctx, workerID)
	if err != nil {
		return nil, err
	}
	used, err := g.quota.Used(ctx, workerID, g.today())
	if err != nil {
		return nil, fmt.Errorf("subscription: read usage: %w", err)
	}
	remaining := plan.DailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return &UsageStats{
		PlanName:       plan.Name,
		DailyLimit:     plan.DailyLimit,
		UsedToday:      used,
		RemainingToday: remaining,
	}, nil
}

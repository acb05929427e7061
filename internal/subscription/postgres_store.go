package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresPlanStore resolves active subscriptions from the relational store.
type PostgresPlanStore struct {
	db db
}

// NewPostgresPlanStore creates a plan store backed by a pgx pool (or mock).
func NewPostgresPlanStore(db db) *PostgresPlanStore {
	if db == nil {
		panic("subscription: db required")
	}
	return &PostgresPlanStore{db: db}
}

func (s *PostgresPlanStore) ActivePlan(ctx context.Context, workerID string) (*Plan, error) {
	var plan Plan
	err := s.db.QueryRow(ctx, `
		SELECT sp.id, sp.name, sp.price_cents, sp.duration_days, sp.daily_appointment_limit, sp.is_trial
		FROM worker_subscriptions ws
		JOIN subscription_plans sp ON sp.id = ws.plan_id
		WHERE ws.worker_id = $1 AND ws.status = 'active' AND ws.expires_at > now()
		ORDER BY ws.expires_at DESC
		LIMIT 1
	`, workerID).Scan(&plan.ID, &plan.Name, &plan.PriceCents, &plan.DaysValid, &plan.DailyLimit, &plan.Trial)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoActiveSubscription
	}
	if err != nil {
		return nil, fmt.Errorf("subscription: load plan: %w", err)
	}
	return &plan, nil
}

// PostgresQuotaStore keeps the daily counters in subscription_usage. Consume
// is one guarded upsert, so two racing acceptances serialize on the row and
// the counter can never pass the limit.
type PostgresQuotaStore struct {
	db db
}

// NewPostgresQuotaStore creates a quota store backed by a pgx pool (or mock).
func NewPostgresQuotaStore(db db) *PostgresQuotaStore {
	if db == nil {
		panic("subscription: db required")
	}
	return &PostgresQuotaStore{db: db}
}

func (s *PostgresQuotaStore) Consume(ctx context.Context, workerID, date string, limit int) error {
	if limit <= 0 {
		return ErrQuotaExceeded
	}
	var used int
	err := s.db.QueryRow(ctx, `
		INSERT INTO subscription_usage (worker_id, date, used_count, daily_limit)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (worker_id, date) DO UPDATE
		SET used_count = subscription_usage.used_count + 1, daily_limit = EXCLUDED.daily_limit
		WHERE subscription_usage.used_count < EXCLUDED.daily_limit
		RETURNING used_count
	`, workerID, date, limit).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrQuotaExceeded
	}
	if err != nil {
		return fmt.Errorf("subscription: consume quota: %w", err)
	}
	return nil
}

func (s *PostgresQuotaStore) Used(ctx context.Context, workerID, date string) (int, error) {
	var used int
	err := s.db.QueryRow(ctx, `
		SELECT used_count FROM subscription_usage
		WHERE worker_id = $1 AND date = $2
	`, workerID, date).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("subscription: read usage: %w", err)
	}
	return used, nil
}

package subscription

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
)

func TestPostgresPlanStore_ActivePlan(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT sp.id, sp.name").
		WithArgs("worker-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "price_cents", "duration_days", "daily_appointment_limit", "is_trial"}).
			AddRow("pro", "Pro", 99900, 30, 15, false))

	store := NewPostgresPlanStore(mock)
	plan, err := store.ActivePlan(context.Background(), "worker-1")
	if err != nil {
		t.Fatalf("active plan: %v", err)
	}
	if plan.Name != "Pro" || plan.DailyLimit != 15 {
		t.Errorf("unexpected plan: %+v", plan)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresPlanStore_NoSubscription(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT sp.id, sp.name").
		WithArgs("worker-9").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "price_cents", "duration_days", "daily_appointment_limit", "is_trial"}))

	store := NewPostgresPlanStore(mock)
	if _, err := store.ActivePlan(context.Background(), "worker-9"); !errors.Is(err, ErrNoActiveSubscription) {
		t.Errorf("expected ErrNoActiveSubscription, got %v", err)
	}
}

func TestPostgresQuotaStore_ConsumeAtLimit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	// Guarded upsert returns no row once the counter is at the limit.
	mock.ExpectQuery("INSERT INTO subscription_usage").
		WithArgs("worker-1", "2026-02-14", 3).
		WillReturnRows(pgxmock.NewRows([]string{"used_count"}).AddRow(3))
	mock.ExpectQuery("INSERT INTO subscription_usage").
		WithArgs("worker-1", "2026-02-14", 3).
		WillReturnRows(pgxmock.NewRows([]string{"used_count"}))

	store := NewPostgresQuotaStore(mock)
	if err := store.Consume(context.Background(), "worker-1", "2026-02-14", 3); err != nil {
		t.Fatalf("consume below limit: %v", err)
	}
	if err := store.Consume(context.Background(), "worker-1", "2026-02-14", 3); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("expected ErrQuotaExceeded, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresQuotaStore_ZeroLimitShortCircuits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewPostgresQuotaStore(mock)
	if err := store.Consume(context.Background(), "worker-1", "2026-02-14", 0); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("expected ErrQuotaExceeded, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresQuotaStore_UsedDefaultsToZero(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT used_count FROM subscription_usage").
		WithArgs("worker-1", "2026-02-14").
		WillReturnRows(pgxmock.NewRows([]string{"used_count"}))

	store := NewPostgresQuotaStore(mock)
	used, err := store.Used(context.Background(), "worker-1", "2026-02-14")
	if err != nil {
		t.Fatalf("used: %v", err)
	}
	if used != 0 {
		t.Errorf("used=%d, want 0", used)
	}
}

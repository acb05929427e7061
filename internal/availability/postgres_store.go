package availability

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

// PostgresStore persists slots in the availability table. Reservation is a
// single DELETE so concurrent bookings of one key race inside the database,
// not in application code.
type PostgresStore struct {
	db db
}

// NewPostgresStore creates a slot store backed by a pgx pool (or mock).
func NewPostgresStore(db db) *PostgresStore {
	if db == nil {
		panic("availability: db required")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Add(ctx context.Context, slot Slot) error {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO availability (worker_id, date, time_slot)
		VALUES ($1, $2, $3)
		ON CONFLICT (worker_id, date, time_slot) DO NOTHING
	`, slot.WorkerID, slot.Date, slot.TimeLabel)
	if err != nil {
		return fmt.Errorf("availability: insert failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotExists
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, workerID, date string) ([]Slot, error) {
	query := `
		SELECT worker_id, date, time_slot
		FROM availability
		WHERE worker_id = $1
		ORDER BY date, time_slot
	`
	args := []any{workerID}
	if date != "" {
		query = `
			SELECT worker_id, date, time_slot
			FROM availability
			WHERE worker_id = $1 AND date = $2
			ORDER BY date, time_slot
		`
		args = append(args, date)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("availability: select failed: %w", err)
	}
	defer rows.Close()

	var out []Slot
	for rows.Next() {
		var slot Slot
		if err := rows.Scan(&slot.WorkerID, &slot.Date, &slot.TimeLabel); err != nil {
			return nil, fmt.Errorf("availability: scan failed: %w", err)
		}
		out = append(out, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("availability: rows failed: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Reserve(ctx context.Context, slot Slot) error {
	var workerID string
	err := s.db.QueryRow(ctx, `
		DELETE FROM availability
		WHERE worker_id = $1 AND date = $2 AND time_slot = $3
		RETURNING worker_id
	`, slot.WorkerID, slot.Date, slot.TimeLabel).Scan(&workerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSlotUnavailable
	}
	if err != nil {
		return fmt.Errorf("availability: reserve failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Release(ctx context.Context, slot Slot) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO availability (worker_id, date, time_slot)
		VALUES ($1, $2, $3)
		ON CONFLICT (worker_id, date, time_slot) DO NOTHING
	`, slot.WorkerID, slot.Date, slot.TimeLabel)
	if err != nil {
		return fmt.Errorf("availability: release failed: %w", err)
	}
	return nil
}

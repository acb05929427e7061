package appointments

import (
	"context"
	"database/sql"
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

// PostgresStore persists appointments in the appointments table.
type PostgresStore struct {
	db db
}

// NewPostgresStore creates an appointment store backed by a pgx pool (or mock).
func NewPostgresStore(db db) *PostgresStore {
	if db == nil {
		panic("appointments: db required")
	}
	return &PostgresStore{db: db}
}

const apptColumns = "id, patient_id, worker_id, kind, status, symptoms, date, time_slot, created_at"

func (s *PostgresStore) Create(ctx context.Context, appt *Appointment) error {
	var timeLabel sql.NullString
	if appt.TimeLabel != "" {
		timeLabel = sql.NullString{String: appt.TimeLabel, Valid: true}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO appointments (id, patient_id, worker_id, kind, status, symptoms, date, time_slot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, appt.ID, appt.PatientID, appt.WorkerID, string(appt.Kind), string(appt.Status),
		appt.Symptoms, appt.Date, timeLabel, appt.CreatedAt)
	if err != nil {
		return fmt.Errorf("appointments: insert failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	return appt, nil
}

func (s *PostgresStore) Transition(ctx context.Context, id string, from, to Status) error {
	if !from.CanTransitionTo(to) {
		return ErrInvalidTransition
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET status = $3
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("appointments: transition failed: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Distinguish a missing row from a lost status race.
	var current string
	err = s.db.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("appointments: status read failed: %w", err)
	}
	return ErrInvalidTransition
}

func (s *PostgresStore) ListByWorker(ctx context.Context, workerID string) ([]Appointment, error) {
	return s.listWhere(ctx, "worker_id = $1", workerID)
}

func (s *PostgresStore) ListByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	return s.listWhere(ctx, "patient_id = $1", patientID)
}

func (s *PostgresStore) ListPendingForWorker(ctx context.Context, workerID string) ([]Appointment, error) {
	return s.listWhere(ctx, "worker_id = $1 AND status = 'pending'", workerID)
}

func (s *PostgresStore) listWhere(ctx context.Context, where string, args ...any) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE `+where+`
		ORDER BY created_at DESC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan failed: %w", err)
		}
		out = append(out, *appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: rows failed: %w", err)
	}
	return out, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		appt      Appointment
		kind      string
		status    string
		timeLabel sql.NullString
	)
	if err := row.Scan(
		&appt.ID,
		&appt.PatientID,
		&appt.WorkerID,
		&kind,
		&status,
		&appt.Symptoms,
		&appt.Date,
		&timeLabel,
		&appt.CreatedAt,
	); err != nil {
		return nil, err
	}
	appt.Kind = Kind(kind)
	appt.Status = Status(status)
	if timeLabel.Valid {
		appt.TimeLabel = timeLabel.String
	}
	return &appt, nil
}

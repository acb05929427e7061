package appointments

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/expertease/consult-engine/internal/availability"
	"github.com/expertease/consult-engine/internal/observability/metrics"
	"github.com/expertease/consult-engine/internal/subscription"
	"github.com/expertease/consult-engine/pkg/logging"
)

// AdmissionGate is the quota check consumed on acceptance.
type AdmissionGate interface {
	Check(ctx context.Context, workerID string) error
	CheckAndConsume(ctx context.Context, workerID string) error
}

// SessionService drives the video session side effects of transitions.
type SessionService interface {
	CreateForAppointment(ctx context.Context, appointmentID string) error
	EndForAppointment(ctx context.Context, appointmentID, actorID string) error
}

// Notifier delivers best-effort human-readable events. Implementations must
// never block or fail a state transition.
type Notifier interface {
	AppointmentBooked(ctx context.Context, appt Appointment)
	AppointmentResponded(ctx context.Context, appt Appointment)
	AppointmentCancelled(ctx context.Context, appt Appointment)
}

// Decision is a worker's answer to a pending appointment.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// Service owns the appointment lifecycle: booking, worker response, and
// cancellation, including the slot and quota coupling around each edge.
type Service struct {
	store    Store
	slots    availability.Store
	gate     AdmissionGate
	sessions SessionService
	notifier Notifier
	metrics  *metrics.EngineMetrics
	logger   *logging.Logger
	now      func() time.Time

	// Per-appointment serialization of respond/cancel so that quota
	// consumption and the status write form one critical section. Striped
	// so the lock table stays bounded regardless of appointment volume.
	locks [lockStripes]sync.Mutex
}

const lockStripes = 64

// NewService creates the appointment service. sessions and notifier may be
// nil (clinic-only or silent deployments).
func NewService(store Store, slots availability.Store, gate AdmissionGate, sessions SessionService, notifier Notifier, m *metrics.EngineMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:    store,
		slots:    slots,
		gate:     gate,
		sessions: sessions,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.locks[h.Sum32()%lockStripes]
}

// BookClinic reserves the slot and creates a pending clinic appointment.
// The quota pre-check runs first so a worker with no headroom left never
// burns a slot reservation.
func (s *Service) BookClinic(ctx context.Context, patientID, workerID, date, timeLabel, symptoms string) (*Appointment, error) {
	if patientID == "" || workerID == "" {
		return nil, ErrValidation
	}
	date, err := availability.NormalizeDate(date)
	if err != nil {
		return nil, ErrValidation
	}
	timeLabel, err = availability.NormalizeLabel(timeLabel)
	if err != nil {
		return nil, ErrValidation
	}

	if err := s.gate.Check(ctx, workerID); err != nil {
		s.metrics.ObserveBooking(string(KindClinic), "quota_denied")
		return nil, err
	}

	slot := availability.Slot{WorkerID: workerID, Date: date, TimeLabel: timeLabel}
	if err := s.slots.Reserve(ctx, slot); err != nil {
		s.metrics.ObserveBooking(string(KindClinic), "slot_unavailable")
		return nil, err
	}

	appt := &Appointment{
		ID:        uuid.NewString(),
		PatientID: patientID,
		WorkerID:  workerID,
		Kind:      KindClinic,
		Status:    StatusPending,
		Symptoms:  symptoms,
		Date:      date,
		TimeLabel: timeLabel,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Create(ctx, appt); err != nil {
		// Return the slot so a storage hiccup does not strand it.
		if relErr := s.slots.Release(ctx, slot); relErr != nil {
			s.logger.Error("failed to release slot after create failure", "error", relErr, "worker_id", workerID)
		}
		s.metrics.ObserveBooking(string(KindClinic), "error")
		return nil, fmt.Errorf("appointments: create clinic booking: %w", err)
	}

	s.metrics.ObserveBooking(string(KindClinic), "created")
	s.logger.Info("clinic appointment booked",
		"appointment_id", appt.ID, "worker_id", workerID, "date", date, "time_slot", timeLabel)
	s.notify(func(n Notifier) { n.AppointmentBooked(ctx, *appt) })
	return appt, nil
}

// BookVideo creates a pending video appointment dated today. Video requests
// carry no slot; they are served as soon as the worker accepts.
func (s *Service) BookVideo(ctx context.Context, patientID, workerID, symptoms string) (*Appointment, error) {
	if patientID == "" || workerID == "" {
		return nil, ErrValidation
	}

	appt := &Appointment{
		ID:        uuid.NewString(),
		PatientID: patientID,
		WorkerID:  workerID,
		Kind:      KindVideo,
		Status:    StatusPending,
		Symptoms:  symptoms,
		Date:      s.now().UTC().Format(availability.DateLayout),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Create(ctx, appt); err != nil {
		s.metrics.ObserveBooking(string(KindVideo), "error")
		return nil, fmt.Errorf("appointments: create video booking: %w", err)
	}

	s.metrics.ObserveBooking(string(KindVideo), "created")
	s.logger.Info("video appointment requested", "appointment_id", appt.ID, "worker_id", workerID)
	s.notify(func(n Notifier) { n.AppointmentBooked(ctx, *appt) })
	return appt, nil
}

// Respond applies the worker's accept/reject decision to a pending
// appointment. On accept, one unit of today's quota is consumed inside the
// same critical section as the status write; a denied quota leaves the
// appointment pending so it can be retried or reassigned.
func (s *Service) Respond(ctx context.Context, appointmentID, workerID string, decision Decision) (*Appointment, error) {
	if appointmentID == "" || workerID == "" {
		return nil, ErrValidation
	}
	if decision != DecisionAccept && decision != DecisionReject {
		return nil, ErrValidation
	}

	mu := s.lockFor(appointmentID)
	mu.Lock()
	defer mu.Unlock()

	appt, err := s.store.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.WorkerID != workerID {
		return nil, ErrNotOwner
	}
	if appt.Status != StatusPending {
		return nil, ErrInvalidTransition
	}

	if decision == DecisionReject {
		if err := s.store.Transition(ctx, appointmentID, StatusPending, StatusRejected); err != nil {
			return nil, err
		}
		appt.Status = StatusRejected
		s.releaseClinicSlot(ctx, appt)
		s.logger.Info("appointment rejected", "appointment_id", appointmentID, "worker_id", workerID)
		s.notify(func(n Notifier) { n.AppointmentResponded(ctx, *appt) })
		return appt, nil
	}

	if err := s.gate.CheckAndConsume(ctx, workerID); err != nil {
		if errors.Is(err, subscription.ErrQuotaExceeded) || errors.Is(err, subscription.ErrNoActiveSubscription) {
			s.metrics.ObserveQuotaDenied()
		}
		return nil, err
	}
	if err := s.store.Transition(ctx, appointmentID, StatusPending, StatusAccepted); err != nil {
		return nil, err
	}
	appt.Status = StatusAccepted

	if appt.Kind == KindVideo && s.sessions != nil {
		if err := s.sessions.CreateForAppointment(ctx, appointmentID); err != nil {
			// The explicit create-session endpoint remains available for retry.
			s.logger.Error("failed to create video session on accept",
				"error", err, "appointment_id", appointmentID)
		}
	}

	s.logger.Info("appointment accepted", "appointment_id", appointmentID, "worker_id", workerID)
	s.notify(func(n Notifier) { n.AppointmentResponded(ctx, *appt) })
	return appt, nil
}

// Cancel lets the owning patient withdraw a pending or accepted appointment.
// A live or created video session is torn down as a cascading side effect.
func (s *Service) Cancel(ctx context.Context, appointmentID, actorID string) (*Appointment, error) {
	if appointmentID == "" || actorID == "" {
		return nil, ErrValidation
	}

	mu := s.lockFor(appointmentID)
	mu.Lock()
	defer mu.Unlock()

	appt, err := s.store.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.PatientID != actorID {
		return nil, ErrNotOwner
	}
	if appt.Status != StatusPending && appt.Status != StatusAccepted {
		return nil, ErrInvalidTransition
	}

	if err := s.store.Transition(ctx, appointmentID, appt.Status, StatusCancelled); err != nil {
		return nil, err
	}
	prev := appt.Status
	appt.Status = StatusCancelled

	s.releaseClinicSlot(ctx, appt)

	if appt.Kind == KindVideo && prev == StatusAccepted && s.sessions != nil {
		if err := s.sessions.EndForAppointment(ctx, appointmentID, actorID); err != nil {
			s.logger.Error("failed to end session on cancel", "error", err, "appointment_id", appointmentID)
		}
	}

	s.logger.Info("appointment cancelled", "appointment_id", appointmentID, "actor_id", actorID)
	s.notify(func(n Notifier) { n.AppointmentCancelled(ctx, *appt) })
	return appt, nil
}

// Get returns one appointment.
func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	return s.store.Get(ctx, id)
}

// ListByWorker returns the worker's appointments, newest first.
func (s *Service) ListByWorker(ctx context.Context, workerID string) ([]Appointment, error) {
	return s.store.ListByWorker(ctx, workerID)
}

// ListByPatient returns the patient's appointments, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	return s.store.ListByPatient(ctx, patientID)
}

// ListPendingForWorker returns the worker's open requests.
func (s *Service) ListPendingForWorker(ctx context.Context, workerID string) ([]Appointment, error) {
	return s.store.ListPendingForWorker(ctx, workerID)
}

// releaseClinicSlot returns a clinic appointment's slot to the pool after a
// rejection or cancellation.
func (s *Service) releaseClinicSlot(ctx context.Context, appt *Appointment) {
	if appt.Kind != KindClinic || appt.TimeLabel == "" {
		return
	}
	slot := availability.Slot{WorkerID: appt.WorkerID, Date: appt.Date, TimeLabel: appt.TimeLabel}
	if err := s.slots.Release(ctx, slot); err != nil {
		s.logger.Error("failed to release slot", "error", err, "appointment_id", appt.ID)
	}
}

func (s *Service) notify(fn func(Notifier)) {
	if s.notifier == nil {
		return
	}
	fn(s.notifier)
}

package video

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/expertease/consult-engine/internal/appointments"
	"github.com/expertease/consult-engine/internal/observability/metrics"
	"github.com/expertease/consult-engine/pkg/logging"
)

// AppointmentDirectory is the slice of the appointment store the session
// manager needs: reading records and moving their status.
type AppointmentDirectory interface {
	Get(ctx context.Context, id string) (*appointments.Appointment, error)
	Transition(ctx context.Context, id string, from, to appointments.Status) error
}

// Announcer receives room-level lifecycle broadcasts. The signaling hub
// implements it; a nil announcer means nobody is listening yet.
type Announcer interface {
	AnnounceCallEnded(roomID string)
}

// OTPNotifier delivers the freshly issued passcode to the patient.
type OTPNotifier interface {
	SessionOTPIssued(ctx context.Context, appt appointments.Appointment, otp string, expiresAt time.Time)
}

// Manager owns the video session lifecycle: issuing OTP-gated rooms for
// accepted appointments, admitting patients on a correct passcode, and tearing
// rooms down.
type Manager struct {
	store    SessionStore
	appts    AppointmentDirectory
	notifier OTPNotifier
	metrics  *metrics.EngineMetrics
	logger   *logging.Logger
	otpTTL   time.Duration
	now      func() time.Time

	announcerMu sync.RWMutex
	announcer   Announcer

	// Striped per-appointment locks; bounded no matter how many sessions
	// pass through.
	locks [lockStripes]sync.Mutex
}

const lockStripes = 64

// NewManager creates a session manager. notifier may be nil.
func NewManager(store SessionStore, appts AppointmentDirectory, notifier OTPNotifier, m *metrics.EngineMetrics, logger *logging.Logger, otpTTL time.Duration) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	if otpTTL <= 0 {
		otpTTL = 10 * time.Minute
	}
	return &Manager{
		store:    store,
		appts:    appts,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		otpTTL:   otpTTL,
		now:      time.Now,
	}
}

// WithClock overrides the manager clock, for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// SetAnnouncer attaches the signaling hub once it exists. Safe to call after
// the manager is already serving.
func (m *Manager) SetAnnouncer(a Announcer) {
	m.announcerMu.Lock()
	m.announcer = a
	m.announcerMu.Unlock()
}

func (m *Manager) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &m.locks[h.Sum32()%lockStripes]
}

// Create issues a session for an accepted video appointment: a deterministic
// room id plus a fresh 6-digit OTP with a bounded lifetime. Fails with
// ErrSessionExists while a non-ended session covers the appointment. A
// non-empty actorID must be the appointment's worker; internal callers pass
// the empty string.
func (m *Manager) Create(ctx context.Context, appointmentID, actorID string) (*Session, error) {
	mu := m.lockFor(appointmentID)
	mu.Lock()
	defer mu.Unlock()

	appt, err := m.appts.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if actorID != "" && actorID != appt.WorkerID {
		return nil, ErrNotParticipant
	}
	if appt.Kind != appointments.KindVideo || appt.Status != appointments.StatusAccepted {
		return nil, ErrNotAccepted
	}

	if existing, err := m.store.Get(ctx, appointmentID); err == nil && existing.Status != SessionEnded {
		return nil, ErrSessionExists
	} else if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}

	otp, err := generateOTP()
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	session := &Session{
		AppointmentID: appointmentID,
		RoomID:        RoomIDFor(appointmentID),
		OTP:           otp,
		OTPExpiresAt:  now.Add(m.otpTTL),
		Status:        SessionCreated,
		CreatedAt:     now,
	}
	if err := m.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("video: save session: %w", err)
	}

	m.metrics.ObserveSession("created")
	m.logger.Info("video session created", "appointment_id", appointmentID, "room_id", session.RoomID)
	if m.notifier != nil {
		m.notifier.SessionOTPIssued(ctx, *appt, otp, session.OTPExpiresAt)
	}
	return session, nil
}

// Verify admits the patient: on a correct, unexpired passcode the session goes
// live and the appointment moves to in_consultation. Verifying an already live
// session as a bound participant is a no-op success so a reconnecting patient
// is not locked out.
func (m *Manager) Verify(ctx context.Context, appointmentID, actorID, otp string) (*Session, error) {
	mu := m.lockFor(appointmentID)
	mu.Lock()
	defer mu.Unlock()

	session, err := m.store.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if session.Status == SessionEnded {
		return nil, ErrSessionEnded
	}

	appt, err := m.appts.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if actorID != appt.PatientID && actorID != appt.WorkerID {
		return nil, ErrNotParticipant
	}
	if session.Status == SessionLive {
		return session, nil
	}

	if m.now().UTC().After(session.OTPExpiresAt) {
		return nil, ErrOTPExpired
	}
	if subtle.ConstantTimeCompare([]byte(otp), []byte(session.OTP)) != 1 {
		return nil, ErrOTPMismatch
	}

	if err := m.appts.Transition(ctx, appointmentID, appointments.StatusAccepted, appointments.StatusInConsultation); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	session.Status = SessionLive
	session.StartedAt = &now
	if err := m.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("video: save session: %w", err)
	}

	m.metrics.ObserveSession("started")
	m.logger.Info("video session live", "appointment_id", appointmentID, "room_id", session.RoomID)
	return session, nil
}

// End closes the session for either participant. The appointment completes
// only if the consultation actually ran; ending a never-live session leaves it
// accepted. Ending twice is a no-op.
func (m *Manager) End(ctx context.Context, appointmentID, actorID string) (*Session, error) {
	mu := m.lockFor(appointmentID)
	mu.Lock()
	defer mu.Unlock()

	session, err := m.store.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if session.Status == SessionEnded {
		return session, nil
	}

	appt, err := m.appts.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if actorID != appt.PatientID && actorID != appt.WorkerID {
		return nil, ErrNotParticipant
	}

	if session.Status == SessionLive {
		err := m.appts.Transition(ctx, appointmentID, appointments.StatusInConsultation, appointments.StatusCompleted)
		if err != nil && !errors.Is(err, appointments.ErrInvalidTransition) {
			return nil, err
		}
		// An invalid transition means a cancellation already moved the
		// appointment; the session still ends.
		if err != nil {
			m.logger.Debug("appointment not completed on session end",
				"appointment_id", appointmentID, "error", err)
		}
	}

	now := m.now().UTC()
	session.Status = SessionEnded
	session.EndedAt = &now
	if err := m.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("video: save session: %w", err)
	}

	m.metrics.ObserveSession("ended")
	m.logger.Info("video session ended", "appointment_id", appointmentID, "actor_id", actorID)

	m.announcerMu.RLock()
	announcer := m.announcer
	m.announcerMu.RUnlock()
	if announcer != nil {
		announcer.AnnounceCallEnded(session.RoomID)
	}
	return session, nil
}

// Get returns the session for an appointment.
func (m *Manager) Get(ctx context.Context, appointmentID string) (*Session, error) {
	return m.store.Get(ctx, appointmentID)
}

// GetByRoom resolves a signaling room to its session.
func (m *Manager) GetByRoom(ctx context.Context, roomID string) (*Session, error) {
	return m.store.GetByRoom(ctx, roomID)
}

// Authorize reports whether the actor may enter the room right now, and as
// whom. Workers may wait in their own room at any point before it ends;
// patients are admitted only once the session is live.
func (m *Manager) Authorize(ctx context.Context, roomID, actorID string) (*Session, string, error) {
	session, err := m.store.GetByRoom(ctx, roomID)
	if err != nil {
		return nil, "", err
	}
	if session.Status == SessionEnded {
		return nil, "", ErrSessionEnded
	}

	appt, err := m.appts.Get(ctx, session.AppointmentID)
	if err != nil {
		return nil, "", err
	}
	switch actorID {
	case appt.WorkerID:
		return session, "worker", nil
	case appt.PatientID:
		if session.Status != SessionLive {
			return nil, "", ErrNotLive
		}
		return session, "patient", nil
	default:
		return nil, "", ErrNotParticipant
	}
}

// CreateForAppointment lets the appointment service start a session as an
// acceptance side effect.
func (m *Manager) CreateForAppointment(ctx context.Context, appointmentID string) error {
	_, err := m.Create(ctx, appointmentID, "")
	return err
}

// EndForAppointment tears the session down during cancellation. A missing
// session (creation failed or record expired) is not an error here.
func (m *Manager) EndForAppointment(ctx context.Context, appointmentID, actorID string) error {
	_, err := m.End(ctx, appointmentID, actorID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	return err
}

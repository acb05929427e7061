package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/expertease/consult-engine/internal/appointments"
	"github.com/expertease/consult-engine/internal/video"
	"github.com/expertease/consult-engine/pkg/logging"
)

// ContactDirectory resolves actor ids to email addresses. A missing contact is
// not an error the caller can act on, so implementations return ok=false.
type ContactDirectory interface {
	Email(ctx context.Context, actorID string) (address, name string, ok bool)
}

// MemoryDirectory is a static id -> contact map for development and tests.
type MemoryDirectory struct {
	mu       sync.RWMutex
	contacts map[string]Contact
}

// Contact is one reachable participant.
type Contact struct {
	Email string
	Name  string
}

// NewMemoryDirectory creates an empty contact directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{contacts: make(map[string]Contact)}
}

// Put registers a contact.
func (d *MemoryDirectory) Put(actorID string, c Contact) {
	d.mu.Lock()
	d.contacts[actorID] = c
	d.mu.Unlock()
}

func (d *MemoryDirectory) Email(ctx context.Context, actorID string) (string, string, bool) {
	d.mu.RLock()
	c, ok := d.contacts[actorID]
	d.mu.RUnlock()
	return c.Email, c.Name, ok
}

const sendTimeout = 10 * time.Second

// Service turns appointment lifecycle events into emails. Every delivery is
// fire-and-forget on its own goroutine: a slow or failing mail provider must
// never hold up a booking or a state transition.
type Service struct {
	email     EmailSender
	contacts  ContactDirectory
	logger    *logging.Logger
	baseURL   string
	deliverFn func(fn func()) // test seam; defaults to go fn()
}

// NewService creates a notification service. email and contacts may be nil,
// in which case deliveries are logged and dropped.
func NewService(email EmailSender, contacts ContactDirectory, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:     email,
		contacts:  contacts,
		logger:    logger,
		deliverFn: func(fn func()) { go fn() },
	}
}

// WithBaseURL sets the public URL emails link back to. Without it, emails
// describe the action but carry no link.
func (s *Service) WithBaseURL(url string) *Service {
	s.baseURL = strings.TrimRight(url, "/")
	return s
}

// Synchronous makes deliveries run inline, for tests.
func (s *Service) Synchronous() *Service {
	s.deliverFn = func(fn func()) { fn() }
	return s
}

// AppointmentBooked tells the worker a new request is waiting.
func (s *Service) AppointmentBooked(ctx context.Context, appt appointments.Appointment) {
	subject := "New consultation request"
	body := fmt.Sprintf(`You have a new %s consultation request.

Date: %s%s
Symptoms: %s

Please accept or reject it from your dashboard.

— ExpertEase`, appt.Kind, appt.Date, timeSlotLine(appt), orNone(appt.Symptoms))
	s.deliver(appt.WorkerID, subject, body, "appointment_id", appt.ID)
}

// AppointmentResponded tells the patient the worker's decision.
func (s *Service) AppointmentResponded(ctx context.Context, appt appointments.Appointment) {
	var subject, outcome string
	switch appt.Status {
	case appointments.StatusAccepted:
		subject = "Your consultation was accepted"
		outcome = "accepted"
	case appointments.StatusRejected:
		subject = "Your consultation was declined"
		outcome = "declined"
	default:
		return
	}
	body := fmt.Sprintf(`Your %s consultation request for %s was %s.

— ExpertEase`, appt.Kind, appt.Date, outcome)
	s.deliver(appt.PatientID, subject, body, "appointment_id", appt.ID)
}

// AppointmentCancelled tells the worker the patient withdrew.
func (s *Service) AppointmentCancelled(ctx context.Context, appt appointments.Appointment) {
	body := fmt.Sprintf(`The %s consultation scheduled for %s%s was cancelled by the patient.

— ExpertEase`, appt.Kind, appt.Date, timeSlotLine(appt))
	s.deliver(appt.WorkerID, "Consultation cancelled", body, "appointment_id", appt.ID)
}

// SessionOTPIssued sends the patient their video room passcode.
func (s *Service) SessionOTPIssued(ctx context.Context, appt appointments.Appointment, otp string, expiresAt time.Time) {
	body := fmt.Sprintf(`Your doctor is ready to see you.

Your one-time passcode is: %s

Enter it on the consultation page to join the video call. The code expires at %s.%s

— ExpertEase`, otp, expiresAt.UTC().Format("15:04 UTC"), s.joinLine(appt))
	s.deliver(appt.PatientID, "Your video consultation passcode", body, "appointment_id", appt.ID)
}

func (s *Service) joinLine(appt appointments.Appointment) string {
	if s.baseURL == "" {
		return ""
	}
	return fmt.Sprintf("\n\nJoin here: %s/video/join/%s", s.baseURL, video.RoomIDFor(appt.ID))
}

func (s *Service) deliver(actorID, subject, body string, logArgs ...any) {
	if s.email == nil || s.contacts == nil {
		s.logger.Debug("notify: delivery skipped, sender not configured", logArgs...)
		return
	}
	address, name, ok := s.contacts.Email(context.Background(), actorID)
	if !ok {
		s.logger.Debug("notify: no contact on file", append([]any{"actor_id", actorID}, logArgs...)...)
		return
	}

	s.deliverFn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		msg := EmailMessage{To: address, ToName: name, Subject: subject, Body: body}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("notify: delivery failed", append([]any{"error", err, "to", address}, logArgs...)...)
		}
	})
}

func timeSlotLine(appt appointments.Appointment) string {
	if appt.TimeLabel == "" {
		return ""
	}
	return fmt.Sprintf("\nTime: %s", appt.TimeLabel)
}

func orNone(s string) string {
	if s == "" {
		return "(not provided)"
	}
	return s
}

var _ appointments.Notifier = (*Service)(nil)

package notify

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/expertease/consult-engine/internal/appointments"
)

type captureSender struct {
	mu   sync.Mutex
	sent []EmailMessage
}

func (c *captureSender) Send(ctx context.Context, msg EmailMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func newNotifyFixture() (*Service, *captureSender) {
	sender := &captureSender{}
	dir := NewMemoryDirectory()
	dir.Put("p1", Contact{Email: "patient@example.com", Name: "Pat"})
	dir.Put("w1", Contact{Email: "doctor@example.com", Name: "Dr. W"})
	return NewService(sender, dir, nil).Synchronous(), sender
}

func videoAppt(status appointments.Status) appointments.Appointment {
	return appointments.Appointment{
		ID: "a1", PatientID: "p1", WorkerID: "w1",
		Kind: appointments.KindVideo, Status: status,
		Symptoms: "fever", Date: "2026-02-14",
	}
}

func TestService_BookedGoesToWorker(t *testing.T) {
	svc, sender := newNotifyFixture()

	svc.AppointmentBooked(context.Background(), videoAppt(appointments.StatusPending))

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "doctor@example.com" {
		t.Errorf("expected worker recipient, got %s", msg.To)
	}
	if !strings.Contains(msg.Body, "fever") {
		t.Errorf("expected symptoms in body: %s", msg.Body)
	}
}

func TestService_RespondedGoesToPatient(t *testing.T) {
	svc, sender := newNotifyFixture()
	ctx := context.Background()

	svc.AppointmentResponded(ctx, videoAppt(appointments.StatusAccepted))
	svc.AppointmentResponded(ctx, videoAppt(appointments.StatusRejected))
	// A status that is not a decision produces nothing.
	svc.AppointmentResponded(ctx, videoAppt(appointments.StatusPending))

	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(sender.sent))
	}
	for _, msg := range sender.sent {
		if msg.To != "patient@example.com" {
			t.Errorf("expected patient recipient, got %s", msg.To)
		}
	}
	if !strings.Contains(sender.sent[0].Body, "accepted") {
		t.Errorf("expected acceptance wording: %s", sender.sent[0].Body)
	}
	if !strings.Contains(sender.sent[1].Body, "declined") {
		t.Errorf("expected decline wording: %s", sender.sent[1].Body)
	}
}

func TestService_CancelledGoesToWorker(t *testing.T) {
	svc, sender := newNotifyFixture()

	appt := videoAppt(appointments.StatusCancelled)
	appt.Kind = appointments.KindClinic
	appt.TimeLabel = "09:00-10:00"
	svc.AppointmentCancelled(context.Background(), appt)

	if len(sender.sent) != 1 || sender.sent[0].To != "doctor@example.com" {
		t.Fatalf("expected worker email, got %+v", sender.sent)
	}
	if !strings.Contains(sender.sent[0].Body, "09:00-10:00") {
		t.Errorf("expected time slot in body: %s", sender.sent[0].Body)
	}
}

func TestService_OTPGoesToPatient(t *testing.T) {
	svc, sender := newNotifyFixture()

	expiry := time.Date(2026, 2, 14, 10, 10, 0, 0, time.UTC)
	svc.SessionOTPIssued(context.Background(), videoAppt(appointments.StatusAccepted), "123456", expiry)

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "patient@example.com" || !strings.Contains(msg.Body, "123456") {
		t.Errorf("expected otp email to patient, got %+v", msg)
	}
	if !strings.Contains(msg.Body, "10:10 UTC") {
		t.Errorf("expected expiry in body: %s", msg.Body)
	}
}

func TestService_OTPIncludesJoinLinkWhenConfigured(t *testing.T) {
	svc, sender := newNotifyFixture()
	svc.WithBaseURL("https://app.expertease.dev/")

	svc.SessionOTPIssued(context.Background(), videoAppt(appointments.StatusAccepted), "123456", time.Now())

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0].Body, "https://app.expertease.dev/video/join/appointment_a1") {
		t.Errorf("expected join link in body: %s", sender.sent[0].Body)
	}
}

func TestService_UnknownContactIsDropped(t *testing.T) {
	svc, sender := newNotifyFixture()

	appt := videoAppt(appointments.StatusPending)
	appt.WorkerID = "nobody"
	svc.AppointmentBooked(context.Background(), appt)

	if len(sender.sent) != 0 {
		t.Errorf("expected no email for unknown contact, got %+v", sender.sent)
	}
}

func TestService_NilSenderIsSafe(t *testing.T) {
	svc := NewService(nil, nil, nil).Synchronous()
	svc.AppointmentBooked(context.Background(), videoAppt(appointments.StatusPending))
}

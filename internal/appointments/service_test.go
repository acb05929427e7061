package appointments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/expertease/consult-engine/internal/availability"
	"github.com/expertease/consult-engine/internal/subscription"
)

type sessionSpy struct {
	mu      sync.Mutex
	created []string
	ended   []string
	failure error
}

func (s *sessionSpy) CreateForAppointment(ctx context.Context, appointmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	s.created = append(s.created, appointmentID)
	return nil
}

func (s *sessionSpy) EndForAppointment(ctx context.Context, appointmentID, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = append(s.ended, appointmentID)
	return nil
}

type notifierSpy struct {
	mu     sync.Mutex
	events []string
}

func (n *notifierSpy) record(kind string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, kind)
}

func (n *notifierSpy) AppointmentBooked(ctx context.Context, appt Appointment)    { n.record("booked") }
func (n *notifierSpy) AppointmentResponded(ctx context.Context, appt Appointment) { n.record("responded") }
func (n *notifierSpy) AppointmentCancelled(ctx context.Context, appt Appointment) { n.record("cancelled") }

type serviceFixture struct {
	service  *Service
	store    *MemoryStore
	slots    *availability.MemoryStore
	plans    *subscription.MemoryPlanStore
	sessions *sessionSpy
	notifier *notifierSpy
}

func newServiceFixture(t *testing.T, dailyLimit int) *serviceFixture {
	t.Helper()

	store := NewMemoryStore()
	slots := availability.NewMemoryStore()
	plans := subscription.NewMemoryPlanStore()
	gate := subscription.NewGate(plans, subscription.NewMemoryQuotaStore(), nil)
	sessions := &sessionSpy{}
	notifier := &notifierSpy{}

	if dailyLimit >= 0 {
		plans.Activate("w1", subscription.Plan{Name: "Pro", DailyLimit: dailyLimit}, time.Now().Add(24*time.Hour))
	}

	return &serviceFixture{
		service:  NewService(store, slots, gate, sessions, notifier, nil, nil),
		store:    store,
		slots:    slots,
		plans:    plans,
		sessions: sessions,
		notifier: notifier,
	}
}

func (f *serviceFixture) addSlot(t *testing.T, date, label string) availability.Slot {
	t.Helper()
	slot := availability.Slot{WorkerID: "w1", Date: date, TimeLabel: label}
	if err := f.slots.Add(context.Background(), slot); err != nil {
		t.Fatalf("add slot: %v", err)
	}
	return slot
}

func TestService_BookClinicReservesSlot(t *testing.T) {
	f := newServiceFixture(t, 5)
	ctx := context.Background()
	f.addSlot(t, "2026-02-14", "09:00-10:00")

	appt, err := f.service.BookClinic(ctx, "p1", "w1", "2026-02-14", "09:00-10:00", "headache")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if appt.Status != StatusPending || appt.Kind != KindClinic {
		t.Errorf("unexpected appointment: %+v", appt)
	}

	open, _ := f.slots.List(ctx, "w1", "2026-02-14")
	if len(open) != 0 {
		t.Errorf("expected slot consumed, still open: %+v", open)
	}
}

func TestService_BookClinicLosesContendedSlot(t *testing.T) {
	f := newServiceFixture(t, 5)
	ctx := context.Background()
	f.addSlot(t, "2026-02-14", "09:00-10:00")

	if _, err := f.service.BookClinic(ctx, "p1", "w1", "2026-02-14", "09:00-10:00", ""); err != nil {
		t.Fatalf("first book: %v", err)
	}
	_, err := f.service.BookClinic(ctx, "p2", "w1", "2026-02-14", "09:00-10:00", "")
	if !errors.Is(err, availability.ErrSlotUnavailable) {
		t.Errorf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestService_BookClinicDeniedWithoutSubscription(t *testing.T) {
	f := newServiceFixture(t, -1) // no plan activated
	f.addSlot(t, "2026-02-14", "09:00-10:00")

	_, err := f.service.BookClinic(context.Background(), "p1", "w1", "2026-02-14", "09:00-10:00", "")
	if !errors.Is(err, subscription.ErrNoActiveSubscription) {
		t.Fatalf("expected ErrNoActiveSubscription, got %v", err)
	}

	// The pre-check must run before the slot is touched.
	open, _ := f.slots.List(context.Background(), "w1", "2026-02-14")
	if len(open) != 1 {
		t.Errorf("slot should remain open, got %+v", open)
	}
}

func TestService_BookClinicValidation(t *testing.T) {
	f := newServiceFixture(t, 5)
	ctx := context.Background()

	cases := []struct {
		name                             string
		patientID, workerID, date, label string
	}{
		{"missing patient", "", "w1", "2026-02-14", "09:00-10:00"},
		{"missing worker", "p1", "", "2026-02-14", "09:00-10:00"},
		{"bad date", "p1", "w1", "14/02/2026", "09:00-10:00"},
		{"empty label", "p1", "w1", "2026-02-14", "  "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.BookClinic(ctx, tc.patientID, tc.workerID, tc.date, tc.label, "")
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestService_BookVideoIsPendingToday(t *testing.T) {
	f := newServiceFixture(t, 5)
	now := time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)
	f.service.WithClock(func() time.Time { return now })

	appt, err := f.service.BookVideo(context.Background(), "p1", "w1", "fever")
	if err != nil {
		t.Fatalf("book video: %v", err)
	}
	if appt.Kind != KindVideo || appt.Status != StatusPending {
		t.Errorf("unexpected appointment: %+v", appt)
	}
	if appt.Date != "2026-02-14" || appt.TimeLabel != "" {
		t.Errorf("video request should be dated today with no slot: %+v", appt)
	}
}

func TestService_RespondRejectReleasesSlot(t *testing.T) {
	f := newServiceFixture(t, 5)
	ctx := context.Background()
	f.addSlot(t, "2026-02-14", "09:00-10:00")

	appt, err := f.service.BookClinic(ctx, "p1", "w1", "2026-02-14", "09:00-10:00", "")
	if err != nil {
		t.Fatal(err)
	}

	got, err := f.service.Respond(ctx, appt.ID, "w1", DecisionReject)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if got.Status != StatusRejected {
		t.Errorf("expected rejected, got %s", got.Status)
	}

	open, _ := f.slots.List(ctx, "w1", "2026-02-14")
	if len(open) != 1 {
		t.Errorf("rejected slot should be bookable again, got %+v", open)
	}
}

func TestService_RespondAcceptConsumesQuotaAndStartsSession(t *testing.T) {
	f := newServiceFixture(t, 1)
	ctx := context.Background()

	appt, err := f.service.BookVideo(ctx, "p1", "w1", "")
	if err != nil {
		t.Fatal(err)
	}

	got, err := f.service.Respond(ctx, appt.ID, "w1", DecisionAccept)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if got.Status != StatusAccepted {
		t.Errorf("expected accepted, got %s", got.Status)
	}
	if len(f.sessions.created) != 1 || f.sessions.created[0] != appt.ID {
		t.Errorf("expected session created for %s, got %v", appt.ID, f.sessions.created)
	}

	// The single quota unit is now gone: a second acceptance must be denied.
	second, err := f.service.BookVideo(ctx, "p2", "w1", "")
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.service.Respond(ctx, second.ID, "w1", DecisionAccept)
	if !errors.Is(err, subscription.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	// A denied quota leaves the appointment pending so it can be retried.
	stored, _ := f.store.Get(ctx, second.ID)
	if stored.Status != StatusPending {
		t.Errorf("quota-denied appointment should stay pending, got %s", stored.Status)
	}
}

func TestService_RespondOwnershipAndState(t *testing.T) {
	f := newServiceFixture(t, 5)
	ctx := context.Background()

	appt, err := f.service.BookVideo(ctx, "p1", "w1", "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.service.Respond(ctx, appt.ID, "w2", DecisionAccept); !errors.Is(err, ErrNotOwner) {
		t.Errorf("other worker: expected ErrNotOwner, got %v", err)
	}
	if _, err := f.service.Respond(ctx, "missing", "w1", DecisionAccept); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: expected ErrNotFound, got %v", err)
	}

	if _, err := f.service.Respond(ctx, appt.ID, "w1", DecisionAccept); err != nil {
		t.Fatal(err)
	}
	if _, err := f.service.Respond(ctx, appt.ID, "w1", DecisionReject); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second response: expected ErrInvalidTransition, got %v", err)
	}
}

func TestService_ConcurrentRespondSingleWinner(t *testing.T) {
	f := newServiceFixture(t, 10)
	ctx := context.Background()

	appt, err := f.service.BookVideo(ctx, "p1", "w1", "")
	if err != nil {
		t.Fatal(err)
	}

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		decision := DecisionAccept
		if i%2 == 1 {
			decision = DecisionReject
		}
		go func(d Decision) {
			defer wg.Done()
			_, err := f.service.Respond(ctx, appt.ID, "w1", d)
			results <- err
		}(decision)
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one winning response, got %d", wins)
	}

	stored, _ := f.store.Get(ctx, appt.ID)
	if stored.Status != StatusAccepted && stored.Status != StatusRejected {
		t.Errorf("unexpected final status %s", stored.Status)
	}
}

func TestService_CancelPendingReleasesSlot(t *testing.T) {
	f := newServiceFixture(t, 5)
	ctx := context.Background()
	f.addSlot(t, "2026-02-14", "09:00-10:00")

	appt, err := f.service.BookClinic(ctx, "p1", "w1", "2026-02-14", "09:00-10:00", "")
	if err != nil {
		t.Fatal(err)
	}

	got, err := f.service.Cancel(ctx, appt.ID, "p1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}

	open, _ := f.slots.List(ctx, "w1", "2026-02-14")
	if len(open) != 1 {
		t.Errorf("cancelled slot should be bookable again, got %+v", open)
	}
}

func TestService_CancelAcceptedVideoEndsSession(t *testing.T) {
	f := newServiceFixture(t, 5)
	ctx := context.Background()

	appt, err := f.service.BookVideo(ctx, "p1", "w1", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.service.Respond(ctx, appt.ID, "w1", DecisionAccept); err != nil {
		t.Fatal(err)
	}

	if _, err := f.service.Cancel(ctx, appt.ID, "p1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(f.sessions.ended) != 1 || f.sessions.ended[0] != appt.ID {
		t.Errorf("expected session end for %s, got %v", appt.ID, f.sessions.ended)
	}
}

func TestService_CancelGuards(t *testing.T) {
	f := newServiceFixture(t, 5)
	ctx := context.Background()

	appt, err := f.service.BookVideo(ctx, "p1", "w1", "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.service.Cancel(ctx, appt.ID, "p2"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("other patient: expected ErrNotOwner, got %v", err)
	}
	if _, err := f.service.Cancel(ctx, appt.ID, "w1"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("worker cannot cancel as patient: expected ErrNotOwner, got %v", err)
	}

	if _, err := f.service.Respond(ctx, appt.ID, "w1", DecisionReject); err != nil {
		t.Fatal(err)
	}
	if _, err := f.service.Cancel(ctx, appt.ID, "p1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("rejected appointment: expected ErrInvalidTransition, got %v", err)
	}
}

func TestService_SessionFailureDoesNotBlockAccept(t *testing.T) {
	f := newServiceFixture(t, 5)
	f.sessions.failure = errors.New("redis down")
	ctx := context.Background()

	appt, err := f.service.BookVideo(ctx, "p1", "w1", "")
	if err != nil {
		t.Fatal(err)
	}

	got, err := f.service.Respond(ctx, appt.ID, "w1", DecisionAccept)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if got.Status != StatusAccepted {
		t.Errorf("acceptance must survive session failure, got %s", got.Status)
	}
}

func TestService_LockForIsStablePerAppointment(t *testing.T) {
	f := newServiceFixture(t, 5)
	if f.service.lockFor("a1") != f.service.lockFor("a1") {
		t.Error("same appointment must resolve to the same lock")
	}
}

package video

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisFixture(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client, ttl), mr
}

func TestRedisStore_SaveAndGet(t *testing.T) {
	store, _ := newRedisFixture(t, time.Hour)
	ctx := context.Background()

	now := time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)
	session := &Session{
		AppointmentID: "a1",
		RoomID:        RoomIDFor("a1"),
		OTP:           "123456",
		OTPExpiresAt:  now.Add(10 * time.Minute),
		Status:        SessionCreated,
		CreatedAt:     now,
	}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RoomID != "appointment_a1" || got.OTP != "123456" || got.Status != SessionCreated {
		t.Errorf("unexpected session: %+v", got)
	}

	byRoom, err := store.GetByRoom(ctx, "appointment_a1")
	if err != nil {
		t.Fatalf("get by room: %v", err)
	}
	if byRoom.AppointmentID != "a1" {
		t.Errorf("unexpected session: %+v", byRoom)
	}
}

func TestRedisStore_MissingAndMalformedKeys(t *testing.T) {
	store, _ := newRedisFixture(t, time.Hour)
	ctx := context.Background()

	if _, err := store.Get(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("missing: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := store.GetByRoom(ctx, "not_a_room"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("malformed room: expected ErrSessionNotFound, got %v", err)
	}
}

func TestRedisStore_RecordsExpire(t *testing.T) {
	store, mr := newRedisFixture(t, time.Hour)
	ctx := context.Background()

	session := &Session{AppointmentID: "a1", RoomID: RoomIDFor("a1"), Status: SessionCreated}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := store.Get(ctx, "a1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expired record should read as not found, got %v", err)
	}
}

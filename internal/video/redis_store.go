package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists sessions in Redis with a retention TTL. Sessions whose
// patients never verify the OTP simply expire, so abandoned rooms need no
// separate reaper.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore creates a session store on the given client. ttl bounds how
// long any session record, live or not, stays readable.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("video: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{redis: client, ttl: ttl}
}

func sessionKey(appointmentID string) string {
	return fmt.Sprintf("video_session:%s", appointmentID)
}

func (s *RedisStore) Save(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("video: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(session.AppointmentID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("video: failed to persist session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, appointmentID string) (*Session, error) {
	data, err := s.redis.Get(ctx, sessionKey(appointmentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("video: failed to load session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("video: failed to decode session: %w", err)
	}
	return &session, nil
}

func (s *RedisStore) GetByRoom(ctx context.Context, roomID string) (*Session, error) {
	appointmentID, ok := AppointmentIDFromRoom(roomID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Get(ctx, appointmentID)
}

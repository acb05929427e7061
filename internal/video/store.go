package video

import "context"

// SessionStore persists video sessions keyed by appointment, with a secondary
// lookup by room id for the signaling path. Implementations may expire entries
// after a retention TTL; an expired session reads as ErrSessionNotFound, which
// is how rooms that never went live get reaped.
type SessionStore interface {
	// Save upserts the session and refreshes its retention TTL.
	Save(ctx context.Context, session *Session) error

	Get(ctx context.Context, appointmentID string) (*Session, error)

	GetByRoom(ctx context.Context, roomID string) (*Session, error)
}

package signaling

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/expertease/consult-engine/internal/http/middleware"
	"github.com/expertease/consult-engine/internal/video"
	"github.com/expertease/consult-engine/pkg/logging"
)

// Handler upgrades authorized participants onto the signaling hub.
type Handler struct {
	hub      *Hub
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates the websocket entry point. allowedOrigins mirrors the
// HTTP CORS allowlist; empty or "*" admits any origin.
func NewHandler(hub *Hub, logger *logging.Logger, allowedOrigins []string) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = struct{}{}
	}

	return &Handler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// ServeWS handles GET /ws?room_id=...&actor_id=... . Admission runs before the
// upgrade so rejected participants get a plain HTTP status instead of a
// half-open socket.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room_id")
	actorID := r.URL.Query().Get("actor_id")
	if actor, ok := middleware.ActorFromContext(r.Context()); ok {
		actorID = actor.ID
	}
	if roomID == "" || actorID == "" {
		http.Error(w, "room_id and actor_id are required", http.StatusBadRequest)
		return
	}

	session, role, err := h.hub.directory.Authorize(r.Context(), roomID, actorID)
	if err != nil {
		h.writeRejection(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("signaling: upgrade failed", "error", err, "room", roomID)
		return
	}

	client := newClient(h.hub, conn, roomID, session.AppointmentID, actorID, role)
	h.hub.register(client, session.Status == video.SessionLive)

	go client.writePump()
	go client.readPump()
}

func (h *Handler) writeRejection(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, video.ErrSessionNotFound):
		http.Error(w, "room not found", http.StatusNotFound)
	case errors.Is(err, video.ErrSessionEnded):
		http.Error(w, "session already ended", http.StatusGone)
	case errors.Is(err, video.ErrNotLive):
		http.Error(w, "waiting for the consultation to start", http.StatusForbidden)
	case errors.Is(err, video.ErrNotParticipant):
		http.Error(w, "not a participant", http.StatusForbidden)
	default:
		h.logger.Error("signaling: admission check failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

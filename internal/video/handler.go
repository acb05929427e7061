package video

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/expertease/consult-engine/internal/appointments"
	"github.com/expertease/consult-engine/internal/http/middleware"
	"github.com/expertease/consult-engine/pkg/logging"
)

// Handler exposes the video session endpoints.
type Handler struct {
	manager *Manager
	logger  *logging.Logger
}

// NewHandler creates a video session handler.
func NewHandler(manager *Manager, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{manager: manager, logger: logger}
}

// CreateSessionRequest is the body for POST /video/create-session/{appointmentID}.
type CreateSessionRequest struct {
	WorkerID string `json:"worker_id"`
}

// CreateSession handles POST /video/create-session/{appointmentID}. The OTP is
// returned to the worker, who relays it to the patient alongside the email
// notification.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	appointmentID := chi.URLParam(r, "appointmentID")
	if appointmentID == "" {
		http.Error(w, "missing appointment id", http.StatusBadRequest)
		return
	}
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.WorkerID = actorOverride(r, "worker", req.WorkerID)

	session, err := h.manager.Create(r.Context(), appointmentID, req.WorkerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"room_id":        session.RoomID,
		"otp":            session.OTP,
		"otp_expires_at": session.OTPExpiresAt,
	})
}

// StartRequest is the body for POST /video/start.
type StartRequest struct {
	AppointmentID string `json:"appointment_id"`
	PatientID     string `json:"patient_id"`
	OTP           string `json:"otp"`
}

// Start handles POST /video/start: the patient presents the passcode and, on
// success, the room goes live.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.PatientID = actorOverride(r, "patient", req.PatientID)
	if req.AppointmentID == "" || req.OTP == "" {
		http.Error(w, "appointment_id and otp are required", http.StatusBadRequest)
		return
	}

	session, err := h.manager.Verify(r.Context(), req.AppointmentID, req.PatientID, req.OTP)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room_id": session.RoomID,
		"status":  session.Status,
	})
}

// Join handles GET /video/join/{roomID}: the pre-flight check a client runs
// before opening its signaling socket.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	actorID := r.URL.Query().Get("actor_id")
	if actor, ok := middleware.ActorFromContext(r.Context()); ok {
		actorID = actor.ID
	}
	if roomID == "" || actorID == "" {
		http.Error(w, "room id and actor_id are required", http.StatusBadRequest)
		return
	}

	session, role, err := h.manager.Authorize(r.Context(), roomID, actorID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room_id":        session.RoomID,
		"appointment_id": session.AppointmentID,
		"status":         session.Status,
		"role":           role,
	})
}

// EndRequest is the body for POST /video/end.
type EndRequest struct {
	AppointmentID string `json:"appointment_id"`
	ActorID       string `json:"actor_id"`
}

// End handles POST /video/end.
func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	var req EndRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if actor, ok := middleware.ActorFromContext(r.Context()); ok {
		req.ActorID = actor.ID
	}
	if req.AppointmentID == "" || req.ActorID == "" {
		http.Error(w, "appointment_id and actor_id are required", http.StatusBadRequest)
		return
	}

	session, err := h.manager.End(r.Context(), req.AppointmentID, req.ActorID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room_id":  session.RoomID,
		"status":   session.Status,
		"ended_at": session.EndedAt,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, appointments.ErrNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.Is(err, ErrSessionExists):
		http.Error(w, "session already exists", http.StatusConflict)
	case errors.Is(err, ErrNotAccepted):
		http.Error(w, "appointment is not an accepted video consultation", http.StatusBadRequest)
	case errors.Is(err, ErrOTPMismatch), errors.Is(err, ErrOTPExpired):
		http.Error(w, "invalid or expired passcode", http.StatusUnauthorized)
	case errors.Is(err, ErrSessionEnded):
		http.Error(w, "session already ended", http.StatusGone)
	case errors.Is(err, ErrNotParticipant):
		http.Error(w, "not a participant", http.StatusForbidden)
	case errors.Is(err, ErrNotLive):
		http.Error(w, "waiting for the consultation to start", http.StatusForbidden)
	default:
		h.logger.Error("video request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func actorOverride(r *http.Request, role, fallback string) string {
	if actor, ok := middleware.ActorFromContext(r.Context()); ok && actor.Role == role {
		return actor.ID
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

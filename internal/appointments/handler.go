package appointments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/expertease/consult-engine/internal/availability"
	"github.com/expertease/consult-engine/internal/http/middleware"
	"github.com/expertease/consult-engine/internal/subscription"
	"github.com/expertease/consult-engine/pkg/logging"
)

// Handler exposes the booking and response endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates an appointments handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// BookClinicRequest is the body for POST /appointment/book.
type BookClinicRequest struct {
	PatientID string `json:"patient_id"`
	WorkerID  string `json:"worker_id"`
	Date      string `json:"date"`
	TimeLabel string `json:"time_slot"`
	Symptoms  string `json:"symptoms"`
}

// BookClinic handles POST /appointment/book.
func (h *Handler) BookClinic(w http.ResponseWriter, r *http.Request) {
	var req BookClinicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.PatientID = actorOverride(r, "patient", req.PatientID)

	appt, err := h.service.BookClinic(r.Context(), req.PatientID, req.WorkerID, req.Date, req.TimeLabel, req.Symptoms)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"appointment_id": appt.ID})
}

// BookVideoRequest is the body for POST /appointment/video-request.
type BookVideoRequest struct {
	PatientID string `json:"patient_id"`
	WorkerID  string `json:"worker_id"`
	Symptoms  string `json:"symptoms"`
}

// BookVideo handles POST /appointment/video-request.
func (h *Handler) BookVideo(w http.ResponseWriter, r *http.Request) {
	var req BookVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.PatientID = actorOverride(r, "patient", req.PatientID)

	appt, err := h.service.BookVideo(r.Context(), req.PatientID, req.WorkerID, req.Symptoms)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"appointment_id": appt.ID})
}

// RespondRequest is the body for POST /worker/respond.
type RespondRequest struct {
	AppointmentID string `json:"appointment_id"`
	WorkerID      string `json:"worker_id"`
	Status        string `json:"status"` // accept | reject
}

// Respond handles POST /worker/respond.
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	var req RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.WorkerID = actorOverride(r, "worker", req.WorkerID)

	var decision Decision
	switch req.Status {
	case "accept", "accepted":
		decision = DecisionAccept
	case "reject", "rejected":
		decision = DecisionReject
	default:
		http.Error(w, "status must be accept or reject", http.StatusBadRequest)
		return
	}

	appt, err := h.service.Respond(r.Context(), req.AppointmentID, req.WorkerID, decision)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// CancelRequest is the body for POST /appointment/cancel.
type CancelRequest struct {
	AppointmentID string `json:"appointment_id"`
	PatientID     string `json:"patient_id"`
}

// Cancel handles POST /appointment/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.PatientID = actorOverride(r, "patient", req.PatientID)

	appt, err := h.service.Cancel(r.Context(), req.AppointmentID, req.PatientID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// ListForWorker handles GET /worker/{workerID}/appointments, with
// ?status=pending narrowing to open requests.
func (h *Handler) ListForWorker(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")
	if workerID == "" {
		http.Error(w, "missing worker id", http.StatusBadRequest)
		return
	}

	var (
		appts []Appointment
		err   error
	)
	if r.URL.Query().Get("status") == "pending" {
		appts, err = h.service.ListPendingForWorker(r.Context(), workerID)
	} else {
		appts, err = h.service.ListByWorker(r.Context(), workerID)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	if appts == nil {
		appts = []Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string][]Appointment{"appointments": appts})
}

// ListForPatient handles GET /patient/{patientID}/appointments.
func (h *Handler) ListForPatient(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	if patientID == "" {
		http.Error(w, "missing patient id", http.StatusBadRequest)
		return
	}
	appts, err := h.service.ListByPatient(r.Context(), patientID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if appts == nil {
		appts = []Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string][]Appointment{"appointments": appts})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		http.Error(w, "missing or invalid fields", http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "appointment not found", http.StatusNotFound)
	case errors.Is(err, ErrNotOwner):
		http.Error(w, "not allowed", http.StatusForbidden)
	case errors.Is(err, ErrInvalidTransition):
		http.Error(w, "invalid state transition", http.StatusConflict)
	case errors.Is(err, availability.ErrSlotUnavailable):
		http.Error(w, "selected time slot is not available", http.StatusConflict)
	case errors.Is(err, subscription.ErrQuotaExceeded):
		http.Error(w, "daily appointment limit reached", http.StatusPaymentRequired)
	case errors.Is(err, subscription.ErrNoActiveSubscription):
		http.Error(w, "worker has no active subscription", http.StatusPaymentRequired)
	default:
		h.logger.Error("appointment request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// actorOverride prefers the authenticated identity over a body-supplied id
// when the roles match.
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

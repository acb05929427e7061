package availability

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/expertease/consult-engine/pkg/logging"
)

// Handler exposes the worker availability endpoints.
type Handler struct {
	store  Store
	logger *logging.Logger
}

// NewHandler creates an availability handler.
func NewHandler(store Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// AddSlotRequest is the body for publishing a slot.
type AddSlotRequest struct {
	Date      string `json:"date"`
	TimeLabel string `json:"time_slot"`
}

// AddSlot handles POST /worker/{workerID}/availability.
func (h *Handler) AddSlot(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")
	if workerID == "" {
		http.Error(w, "missing worker id", http.StatusBadRequest)
		return
	}

	var req AddSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	date, err := NormalizeDate(req.Date)
	if err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	label, err := NormalizeLabel(req.TimeLabel)
	if err != nil {
		http.Error(w, "time_slot is required", http.StatusBadRequest)
		return
	}

	slot := Slot{WorkerID: workerID, Date: date, TimeLabel: label}
	if err := h.store.Add(r.Context(), slot); err != nil {
		if errors.Is(err, ErrSlotExists) {
			http.Error(w, "this time slot is already added", http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to add slot", "error", err, "worker_id", workerID)
		http.Error(w, "failed to add slot", http.StatusInternalServerError)
		return
	}

	h.logger.Info("slot added", "worker_id", workerID, "date", date, "time_slot", label)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "availability added"})
}

// ListSlots handles GET /worker/{workerID}/availability?date=.
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")
	if workerID == "" {
		http.Error(w, "missing worker id", http.StatusBadRequest)
		return
	}

	date := r.URL.Query().Get("date")
	if date != "" {
		normalized, err := NormalizeDate(date)
		if err != nil {
			http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = normalized
	}

	slots, err := h.store.List(r.Context(), workerID, date)
	if err != nil {
		h.logger.Error("failed to list slots", "error", err, "worker_id", workerID)
		http.Error(w, "failed to list availability", http.StatusInternalServerError)
		return
	}
	if slots == nil {
		slots = []Slot{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string][]Slot{"availability": slots})
}

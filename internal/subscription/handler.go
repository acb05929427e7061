package subscription

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/expertease/consult-engine/pkg/logging"
)

// Handler exposes subscription usage reads.
type Handler struct {
	gate   *Gate
	logger *logging.Logger
}

// NewHandler creates a subscription handler.
func NewHandler(gate *Gate, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{gate: gate, logger: logger}
}

// Usage handles GET /worker/{workerID}/subscription/usage.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")
	if workerID == "" {
		http.Error(w, "missing worker id", http.StatusBadRequest)
		return
	}

	stats, err := h.gate.Stats(r.Context(), workerID)
	if err != nil {
		if errors.Is(err, ErrNoActiveSubscription) {
			http.Error(w, "no active subscription", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load usage stats", "error", err, "worker_id", workerID)
		http.Error(w, "failed to load usage", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

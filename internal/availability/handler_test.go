package availability

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestRouter(store Store) http.Handler {
	h := NewHandler(store, nil)
	r := chi.NewRouter()
	r.Get("/worker/{workerID}/availability", h.ListSlots)
	r.Post("/worker/{workerID}/availability", h.AddSlot)
	return r
}

func TestHandler_AddAndList(t *testing.T) {
	store := NewMemoryStore()
	router := newTestRouter(store)

	body, _ := json.Marshal(AddSlotRequest{Date: "2026-02-14", TimeLabel: "09:00-10:00"})
	req := httptest.NewRequest(http.MethodPost, "/worker/4/availability", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("add: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/worker/4/availability?date=2026-02-14", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}

	var resp struct {
		Availability []Slot `json:"availability"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Availability) != 1 || resp.Availability[0].TimeLabel != "09:00-10:00" {
		t.Errorf("unexpected availability: %+v", resp.Availability)
	}
}

func TestHandler_AddDuplicateIsBadRequest(t *testing.T) {
	store := NewMemoryStore()
	router := newTestRouter(store)

	body, _ := json.Marshal(AddSlotRequest{Date: "2026-02-14", TimeLabel: "09:00-10:00"})
	for i, want := range []int{http.StatusOK, http.StatusBadRequest} {
		req := httptest.NewRequest(http.MethodPost, "/worker/4/availability", bytes.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("attempt %d: expected %d, got %d", i, want, w.Code)
		}
		body, _ = json.Marshal(AddSlotRequest{Date: "2026-02-14", TimeLabel: "09:00-10:00"})
	}
}

func TestHandler_AddRejectsBadDate(t *testing.T) {
	router := newTestRouter(NewMemoryStore())

	body, _ := json.Marshal(AddSlotRequest{Date: "14/02/2026", TimeLabel: "09:00-10:00"})
	req := httptest.NewRequest(http.MethodPost, "/worker/4/availability", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandler_ListEmptyIsArray(t *testing.T) {
	router := newTestRouter(NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/worker/9/availability", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Body.String(); !bytes.Contains([]byte(got), []byte(`"availability":[]`)) {
		t.Errorf("expected empty array, got %s", got)
	}
}

package availability

import (
	"fmt"
	"strings"
	"time"
)

// Slot is one bookable (date, time label) offer published by a worker. It has
// no identity beyond its composite key and disappears when reserved.
type Slot struct {
	WorkerID  string `json:"worker_id"`
	Date      string `json:"date"`      // YYYY-MM-DD
	TimeLabel string `json:"time_slot"` // opaque label, e.g. "09:00-10:00"
}

// DateLayout is the wire format for slot dates.
const DateLayout = "2006-01-02"

// NormalizeDate validates and canonicalizes a slot date.
func NormalizeDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("availability: invalid date %q: %w", date, ErrInvalidSlot)
	}
	return t.Format(DateLayout), nil
}

// NormalizeLabel trims a time label, rejecting empty ones.
func NormalizeLabel(label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", fmt.Errorf("availability: empty time slot: %w", ErrInvalidSlot)
	}
	return label, nil
}

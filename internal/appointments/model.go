package appointments

import "time"

// Kind distinguishes clinic visits from video consultations.
type Kind string

const (
	KindClinic Kind = "clinic"
	KindVideo  Kind = "video"
)

// Status is the appointment lifecycle state. Transitions are only legal along
// the edges in transitions below; everything else is terminal.
type Status string

const (
	StatusPending        Status = "pending"
	StatusAccepted       Status = "accepted"
	StatusRejected       Status = "rejected"
	StatusCancelled      Status = "cancelled"
	StatusInConsultation Status = "in_consultation"
	StatusCompleted      Status = "completed"
)

// transitions is the single authoritative edge list for the appointment state
// machine. Illegal transitions fail in one place instead of being re-checked
// ad hoc at every call site.
var transitions = map[Status][]Status{
	StatusPending:        {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted:       {StatusInConsultation, StatusCancelled},
	StatusInConsultation: {StatusCompleted},
}

// CanTransitionTo reports whether from -> to is a legal edge.
func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no outgoing edges.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusCancelled, StatusInConsultation, StatusCompleted:
		return true
	}
	return false
}

// Appointment is the patient-worker encounter record.
type Appointment struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id"`
	WorkerID  string    `json:"worker_id"`
	Kind      Kind      `json:"kind"`
	Status    Status    `json:"status"`
	Symptoms  string    `json:"symptoms"`
	Date      string    `json:"date"`                // YYYY-MM-DD
	TimeLabel string    `json:"time_slot,omitempty"` // clinic appointments only
	CreatedAt time.Time `json:"created_at"`
}

package appointments

import "errors"

var (
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("appointments: invalid request")

	// ErrNotFound indicates an unknown appointment id.
	ErrNotFound = errors.New("appointments: appointment not found")

	// ErrNotOwner indicates the actor does not own the appointment.
	ErrNotOwner = errors.New("appointments: actor does not own appointment")

	// ErrInvalidTransition indicates an illegal status change, including a
	// lost race against a concurrent transition on the same appointment.
	ErrInvalidTransition = errors.New("appointments: invalid state transition")
)

package video

import "errors"

var (
	// ErrSessionNotFound is returned when no session exists for the key.
	ErrSessionNotFound = errors.New("video: session not found")

	// ErrSessionExists is returned when a non-ended session already covers the
	// appointment.
	ErrSessionExists = errors.New("video: session already exists")

	// ErrSessionEnded is returned for operations on an ended session.
	ErrSessionEnded = errors.New("video: session already ended")

	// ErrNotAccepted is returned when the appointment is not an accepted video
	// consultation.
	ErrNotAccepted = errors.New("video: appointment is not an accepted video consultation")

	// ErrOTPMismatch is returned when the presented passcode is wrong.
	ErrOTPMismatch = errors.New("video: otp mismatch")

	// ErrOTPExpired is returned when the passcode TTL has lapsed.
	ErrOTPExpired = errors.New("video: otp expired")

	// ErrNotParticipant is returned when the actor is neither the patient nor
	// the worker of the appointment.
	ErrNotParticipant = errors.New("video: not a participant")

	// ErrNotLive is returned when a patient tries to enter a room whose OTP has
	// not been verified yet.
	ErrNotLive = errors.New("video: session is not live")
)

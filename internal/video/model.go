package video

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// SessionStatus is the video session lifecycle state.
type SessionStatus string

const (
	SessionCreated SessionStatus = "created" // OTP issued, waiting for the patient
	SessionLive    SessionStatus = "live"    // OTP verified, consultation running
	SessionEnded   SessionStatus = "ended"
)

// Session is the OTP-gated video room attached to one accepted appointment.
// At most one non-ended session exists per appointment.
type Session struct {
	AppointmentID string        `json:"appointment_id"`
	RoomID        string        `json:"room_id"`
	OTP           string        `json:"otp"`
	OTPExpiresAt  time.Time     `json:"otp_expires_at"`
	Status        SessionStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	EndedAt       *time.Time    `json:"ended_at,omitempty"`
}

const roomPrefix = "appointment_"

// RoomIDFor derives the deterministic room id for an appointment.
func RoomIDFor(appointmentID string) string {
	return roomPrefix + appointmentID
}

// AppointmentIDFromRoom inverts RoomIDFor.
func AppointmentIDFromRoom(roomID string) (string, bool) {
	id, ok := strings.CutPrefix(roomID, roomPrefix)
	return id, ok && id != ""
}

const otpDigits = 6

// generateOTP returns a 6-digit numeric one-time passcode from crypto/rand.
func generateOTP() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("video: generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

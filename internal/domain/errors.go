package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated: the channel could not be identified. The
	// connection is rejected at handshake and never admitted to the
	// registry.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrAccessDenied: join attempt failed the ownership/status check.
	// Non-retriable for the client.
	ErrAccessDenied = errors.New("access denied")

	// ErrRoomFull: two non-admin participants already present. Retriable
	// once the stale participant disconnects.
	ErrRoomFull = errors.New("room full")

	// ErrSessionEnded: late message to a terminal session. Dropped and
	// logged, never surfaced as a hard failure.
	ErrSessionEnded = errors.New("session already ended")

	ErrSessionNotFound = errors.New("session not found")

	ErrAppointmentNotFound = errors.New("appointment not found")
)

type DenyReason string

const (
	DenyNotParticipant  DenyReason = "NotParticipant"
	DenyCancelled       DenyReason = "AppointmentCancelled"
	DenyNotYetConfirmed DenyReason = "AppointmentNotYetConfirmed"
)

// AccessDenied carries the reason of a guard denial. errors.Is matches it
// against ErrAccessDenied.
type AccessDenied struct {
	Reason DenyReason
}

func (e *AccessDenied) Error() string {
	return fmt.Sprintf("access denied: %s", e.Reason)
}

func (e *AccessDenied) Unwrap() error { return ErrAccessDenied }

func Denied(reason DenyReason) error {
	return &AccessDenied{Reason: reason}
}

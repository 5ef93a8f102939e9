package domain

import "time"

type SessionID string

type SessionState string

const (
	SessionPending SessionState = "pending"
	SessionWaiting SessionState = "waiting"
	SessionActive  SessionState = "active"
	SessionEnded   SessionState = "ended"
)

type EndReason string

const (
	EndCompleted EndReason = "completed"
	EndTimeout   EndReason = "timeout"
	EndDropped   EndReason = "dropped"
	EndAdmin     EndReason = "admin"
)

type QualityTier string

const (
	QualityAuto   QualityTier = "auto"
	QualityLow    QualityTier = "low"
	QualityMedium QualityTier = "medium"
	QualityHigh   QualityTier = "high"
)

// Summary is emitted exactly once per session, at the ended transition.
// Consumed by billing/notification collaborators.
type Summary struct {
	SessionID       SessionID     `json:"session_id"`
	AppointmentID   AppointmentID `json:"appointment_id"`
	StartedAt       time.Time     `json:"started_at"`
	EndedAt         time.Time     `json:"ended_at"`
	DurationSeconds int           `json:"duration_seconds"`
	EndReason       EndReason     `json:"end_reason"`
	Quality         QualityTier   `json:"quality"`
}

// AuditEvent is a single line in the append-only join/leave/end log.
type AuditEvent struct {
	SessionID  SessionID  `json:"session_id"`
	IdentityID IdentityID `json:"identity_id"`
	Event      string     `json:"event"`
	At         time.Time  `json:"at"`
}

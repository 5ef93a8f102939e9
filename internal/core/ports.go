package core

import (
	"context"

	"github.com/carebridge/telecare/internal/domain"
)

// Authenticator resolves an opaque credential to an identity.
// External collaborator; failures map to domain.ErrUnauthenticated.
type Authenticator interface {
	Resolve(ctx context.Context, credential string) (*domain.Identity, error)
}

// AppointmentStore is the external appointment collaborator. Get is I/O
// bound and must never be called while holding a session lock.
type AppointmentStore interface {
	Get(ctx context.Context, id domain.AppointmentID) (*domain.Appointment, error)
	SetStatus(ctx context.Context, id domain.AppointmentID, status domain.AppointmentStatus) error
}

// AuditLog is the append-only join/leave/end event sink.
type AuditLog interface {
	Append(ctx context.Context, ev domain.AuditEvent) error
}

// SummarySink receives the session summary exactly once, at the ended
// transition. Consumers: billing, notifications.
type SummarySink interface {
	Deliver(ctx context.Context, s domain.Summary) error
}

package app

import (
	"context"
	"fmt"

	"github.com/carebridge/telecare/internal/core"
	"github.com/carebridge/telecare/internal/domain"
)

// Guard authorizes joins against the external appointment collaborator.
// The check is re-run on every join attempt, never cached: appointment state
// can change between attempts. The lookup is I/O and runs before any session
// lock is taken.
type Guard struct {
	Appointments core.AppointmentStore
}

// CanJoin returns the appointment when the identity may join the session
// backing it, or a domain.AccessDenied error. Admins join as observers
// regardless of the participant set, but never past a cancelled appointment.
func (g *Guard) CanJoin(ctx context.Context, identity *domain.Identity, apptID domain.AppointmentID) (*domain.Appointment, error) {
	appt, err := g.Appointments.Get(ctx, apptID)
	if err != nil {
		return nil, fmt.Errorf("appointment lookup: %w", err)
	}
	if !appt.Joinable() {
		if appt.Status == domain.AppointmentPending {
			return nil, domain.Denied(domain.DenyNotYetConfirmed)
		}
		return nil, domain.Denied(domain.DenyCancelled)
	}
	if identity.Role == domain.RoleAdmin {
		return appt, nil
	}
	if !appt.ParticipantOf(identity.ID) {
		return nil, domain.Denied(domain.DenyNotParticipant)
	}
	return appt, nil
}

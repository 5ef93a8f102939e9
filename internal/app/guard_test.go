package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carebridge/telecare/internal/adapters/store"
	"github.com/carebridge/telecare/internal/domain"
)

func TestGuardCanJoin(t *testing.T) {
	mem := store.NewMemoryStore()
	seed := func(id domain.AppointmentID, status domain.AppointmentStatus) {
		mem.Seed(domain.Appointment{
			ID:          id,
			PatientID:   patient.ID,
			DoctorID:    doctor.ID,
			Status:      status,
			ScheduledAt: time.Now(),
		})
	}
	seed("confirmed", domain.AppointmentConfirmed)
	seed("in-progress", domain.AppointmentInProgress)
	seed("cancelled", domain.AppointmentCancelled)
	seed("unconfirmed", domain.AppointmentPending)
	seed("done", domain.AppointmentCompleted)

	g := &Guard{Appointments: mem}
	stranger := &domain.Identity{ID: "someone-else", Role: domain.RolePatient}

	tests := []struct {
		name     string
		identity *domain.Identity
		appt     domain.AppointmentID
		reason   domain.DenyReason
	}{
		{"patient on confirmed", patient, "confirmed", ""},
		{"doctor on confirmed", doctor, "confirmed", ""},
		{"patient on in-progress", patient, "in-progress", ""},
		{"admin observer", admin, "confirmed", ""},
		{"stranger with live channel elsewhere", stranger, "confirmed", domain.DenyNotParticipant},
		{"cancelled appointment", patient, "cancelled", domain.DenyCancelled},
		{"completed appointment", patient, "done", domain.DenyCancelled},
		{"not yet confirmed", patient, "unconfirmed", domain.DenyNotYetConfirmed},
		{"admin on cancelled", admin, "cancelled", domain.DenyCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appt, err := g.CanJoin(context.Background(), tt.identity, tt.appt)
			if tt.reason == "" {
				require.NoError(t, err)
				require.Equal(t, tt.appt, appt.ID)
				return
			}
			require.ErrorIs(t, err, domain.ErrAccessDenied)
			var denied *domain.AccessDenied
			require.True(t, errors.As(err, &denied))
			require.Equal(t, tt.reason, denied.Reason)
		})
	}
}

func TestGuardUnknownAppointment(t *testing.T) {
	g := &Guard{Appointments: store.NewMemoryStore()}
	_, err := g.CanJoin(context.Background(), patient, "missing")
	require.ErrorIs(t, err, domain.ErrAppointmentNotFound)
}

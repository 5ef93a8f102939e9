package domain

import "time"

type AppointmentID string

type AppointmentStatus string

const (
	AppointmentPending    AppointmentStatus = "pending"
	AppointmentConfirmed  AppointmentStatus = "confirmed"
	AppointmentInProgress AppointmentStatus = "in_progress"
	AppointmentCompleted  AppointmentStatus = "completed"
	AppointmentCancelled  AppointmentStatus = "cancelled"
)

// Appointment is owned by an external collaborator; the core only reads it
// through the AppointmentStore port and flips its status on session
// start/end.
type Appointment struct {
	ID          AppointmentID     `json:"id"`
	PatientID   IdentityID        `json:"patient_id"`
	DoctorID    IdentityID        `json:"doctor_id"`
	Status      AppointmentStatus `json:"status"`
	ScheduledAt time.Time         `json:"scheduled_at"`
}

// Joinable reports whether the appointment status still permits a live
// session.
func (a *Appointment) Joinable() bool {
	return a.Status == AppointmentConfirmed || a.Status == AppointmentInProgress
}

func (a *Appointment) ParticipantOf(id IdentityID) bool {
	return id == a.PatientID || id == a.DoctorID
}

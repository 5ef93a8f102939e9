// Package domain contains entities without logic, just meta-data.
package domain

type IdentityID string

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Identity is a resolved, authenticated user. The core never issues or
// verifies credentials; it trusts the identity attached to a channel.
type Identity struct {
	ID   IdentityID `json:"id"`
	Role Role       `json:"role"`
}

// Participant reports whether this identity counts against room capacity.
// Admins are read-only observers.
func (i *Identity) Participant() bool {
	return i.Role != RoleAdmin
}

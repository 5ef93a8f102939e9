// Package store holds the adapters behind the appointment, audit and
// summary ports: a postgres implementation for production and an in-memory
// twin for dev mode and tests.
package store

import (
	"context"
	"sync"

	"github.com/carebridge/telecare/internal/core"
	"github.com/carebridge/telecare/internal/domain"
)

// MemoryStore implements AppointmentStore, AuditLog and SummarySink in
// memory. Mirrors the postgres adapter's behavior, including the
// one-summary-per-session idempotency rule.
type MemoryStore struct {
	mu           sync.RWMutex
	appointments map[domain.AppointmentID]*domain.Appointment
	events       []domain.AuditEvent
	summaries    map[domain.SessionID]domain.Summary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		appointments: make(map[domain.AppointmentID]*domain.Appointment),
		summaries:    make(map[domain.SessionID]domain.Summary),
	}
}

// Seed installs an appointment; dev-mode bootstrap and tests.
func (m *MemoryStore) Seed(a domain.Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := a
	m.appointments[a.ID] = &cp
}

func (m *MemoryStore) Get(ctx context.Context, id domain.AppointmentID) (*domain.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, domain.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) SetStatus(ctx context.Context, id domain.AppointmentID, status domain.AppointmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return domain.ErrAppointmentNotFound
	}
	a.Status = status
	return nil
}

func (m *MemoryStore) Append(ctx context.Context, ev domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *MemoryStore) Deliver(ctx context.Context, s domain.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.summaries[s.SessionID]; ok {
		return nil
	}
	m.summaries[s.SessionID] = s
	return nil
}

// Events returns a copy of the audit log.
func (m *MemoryStore) Events() []domain.AuditEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.AuditEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Summaries returns the delivered summaries keyed by session.
func (m *MemoryStore) Summaries() map[domain.SessionID]domain.Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[domain.SessionID]domain.Summary, len(m.summaries))
	for k, v := range m.summaries {
		out[k] = v
	}
	return out
}

var (
	_ core.AppointmentStore = (*MemoryStore)(nil)
	_ core.AuditLog         = (*MemoryStore)(nil)
	_ core.SummarySink      = (*MemoryStore)(nil)
)

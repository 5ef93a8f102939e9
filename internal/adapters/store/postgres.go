package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/telecare/internal/core"
	"github.com/carebridge/telecare/internal/domain"
)

// PostgresStore backs the appointment, audit and summary ports with the
// platform database. Schema is owned by the platform's migration tooling,
// not by this service.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgx ping: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() { p.pool.Close() }

func (p *PostgresStore) Get(ctx context.Context, id domain.AppointmentID) (*domain.Appointment, error) {
	const q = `SELECT id, patient_id, doctor_id, status, scheduled_at
	           FROM appointments WHERE id = $1`
	var a domain.Appointment
	err := p.pool.QueryRow(ctx, q, string(id)).
		Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.Status, &a.ScheduledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select appointment: %w", err)
	}
	return &a, nil
}

func (p *PostgresStore) SetStatus(ctx context.Context, id domain.AppointmentID, status domain.AppointmentStatus) error {
	const q = `UPDATE appointments SET status = $2, updated_at = now() WHERE id = $1`
	tag, err := p.pool.Exec(ctx, q, string(id), string(status))
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAppointmentNotFound
	}
	return nil
}

func (p *PostgresStore) Append(ctx context.Context, ev domain.AuditEvent) error {
	const q = `INSERT INTO session_events (session_id, identity_id, event, at)
	           VALUES ($1, $2, $3, $4)`
	_, err := p.pool.Exec(ctx, q, string(ev.SessionID), string(ev.IdentityID), ev.Event, ev.At)
	if err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}
	return nil
}

// Deliver persists the summary once per session. Duplicate end-triggers are
// tolerated at the database level too.
func (p *PostgresStore) Deliver(ctx context.Context, s domain.Summary) error {
	const q = `INSERT INTO session_summaries
	           (session_id, appointment_id, started_at, ended_at, duration_seconds, end_reason, quality)
	           VALUES ($1, $2, $3, $4, $5, $6, $7)
	           ON CONFLICT (session_id) DO NOTHING`
	_, err := p.pool.Exec(ctx, q,
		string(s.SessionID), string(s.AppointmentID),
		s.StartedAt, s.EndedAt, s.DurationSeconds,
		string(s.EndReason), string(s.Quality))
	if err != nil {
		return fmt.Errorf("insert session summary: %w", err)
	}
	return nil
}

var (
	_ core.AppointmentStore = (*PostgresStore)(nil)
	_ core.AuditLog         = (*PostgresStore)(nil)
	_ core.SummarySink      = (*PostgresStore)(nil)
)

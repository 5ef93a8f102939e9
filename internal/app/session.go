package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/carebridge/telecare/internal/core"
	"github.com/carebridge/telecare/internal/domain"
)

// Session is the lifecycle object of one video consultation, tied 1:1 to an
// appointment. All mutations go through SessionManager and are serialized
// behind the per-session mutex; timers re-check state under the same lock
// before acting, so firing against a concurrent transition is harmless.
type Session struct {
	ID            domain.SessionID
	AppointmentID domain.AppointmentID
	Patient       domain.IdentityID
	Doctor        domain.IdentityID

	mu        sync.Mutex
	state     domain.SessionState
	endReason domain.EndReason
	createdAt time.Time
	startedAt time.Time
	endedAt   time.Time
	quality   domain.QualityTier
	joined    map[domain.IdentityID]struct{}
	graceFor  domain.IdentityID
	waitTimer *time.Timer
	graceTmr  *time.Timer
}

// Snapshot is the read-only view of a session for APIs and join acks.
type Snapshot struct {
	ID            domain.SessionID     `json:"session_id"`
	AppointmentID domain.AppointmentID `json:"appointment_id"`
	State         domain.SessionState  `json:"state"`
	EndReason     domain.EndReason     `json:"end_reason,omitempty"`
	StartedAt     time.Time            `json:"started_at,omitzero"`
	EndedAt       time.Time            `json:"ended_at,omitzero"`
	Quality       domain.QualityTier   `json:"quality"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:            s.ID,
		AppointmentID: s.AppointmentID,
		State:         s.state,
		EndReason:     s.endReason,
		StartedAt:     s.startedAt,
		EndedAt:       s.endedAt,
		Quality:       s.quality,
	}
}

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionEvents receives state-machine callbacks that need fan-out. The
// orchestrator implements it; it must not call back into the manager while
// handling an event.
type SessionEvents interface {
	SessionEnded(id domain.SessionID, reason domain.EndReason)
}

// JoinOutcome tells the caller what a join did to the session.
type JoinOutcome struct {
	State       domain.SessionState
	Activated   bool // waiting → active on this join
	Reconnected bool // grace window cancelled by this join
}

type SessionManager struct {
	mu            sync.RWMutex
	byID          map[domain.SessionID]*Session
	byAppointment map[domain.AppointmentID]*Session

	waitingTimeout time.Duration
	graceWindow    time.Duration

	appointments core.AppointmentStore
	audit        core.AuditLog
	summaries    core.SummarySink
	events       SessionEvents

	now func() time.Time
}

func NewSessionManager(
	waitingTimeout, graceWindow time.Duration,
	appointments core.AppointmentStore,
	audit core.AuditLog,
	summaries core.SummarySink,
) *SessionManager {
	return &SessionManager{
		byID:           make(map[domain.SessionID]*Session),
		byAppointment:  make(map[domain.AppointmentID]*Session),
		waitingTimeout: waitingTimeout,
		graceWindow:    graceWindow,
		appointments:   appointments,
		audit:          audit,
		summaries:      summaries,
		now:            time.Now,
	}
}

// SetEvents wires the fan-out sink. Must be called before any join.
func (m *SessionManager) SetEvents(ev SessionEvents) { m.events = ev }

// GetOrCreate lazily creates the session for an appointment. Reused across
// reconnects; a terminal session stays indexed so late joins see ended state
// instead of spawning a fresh one.
func (m *SessionManager) GetOrCreate(appt *domain.Appointment) *Session {
	m.mu.RLock()
	s, ok := m.byAppointment[appt.ID]
	m.mu.RUnlock()
	if ok {
		return s
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.byAppointment[appt.ID]; ok {
		return s
	}
	s = &Session{
		ID:            domain.SessionID(uuid.NewString()),
		AppointmentID: appt.ID,
		Patient:       appt.PatientID,
		Doctor:        appt.DoctorID,
		state:         domain.SessionPending,
		createdAt:     m.now(),
		quality:       domain.QualityAuto,
		joined:        make(map[domain.IdentityID]struct{}),
	}
	m.byID[s.ID] = s
	m.byAppointment[appt.ID] = s
	log.Info().Str("module", "app.session").Str("session", string(s.ID)).
		Str("appointment", string(appt.ID)).Msg("session created")
	return s
}

func (m *SessionManager) Get(id domain.SessionID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	return s, ok
}

// IsActive is the live presence query used by the waiting-room UI.
func (m *SessionManager) IsActive(id domain.SessionID) bool {
	s, ok := m.Get(id)
	if !ok {
		return false
	}
	return s.State() == domain.SessionActive
}

// OnJoin applies the join transition. Admin observers are recorded in the
// audit log but never move the state machine.
func (m *SessionManager) OnJoin(ctx context.Context, s *Session, identity *domain.Identity) (JoinOutcome, error) {
	s.mu.Lock()
	if s.state == domain.SessionEnded {
		s.mu.Unlock()
		return JoinOutcome{State: domain.SessionEnded}, domain.ErrSessionEnded
	}

	out := JoinOutcome{}
	activatedNow := false
	if identity.Participant() {
		s.joined[identity.ID] = struct{}{}
		switch s.state {
		case domain.SessionPending:
			s.state = domain.SessionWaiting
			m.startWaitTimer(s)
		case domain.SessionWaiting:
			if s.graceFor == identity.ID {
				// Reconnect inside the grace window restores the call.
				s.stopGraceTimer()
				s.graceFor = ""
				s.state = domain.SessionActive
				out.Reconnected = true
			} else if s.graceFor == "" && len(s.joined) == domain.MaxRoomParticipants {
				s.stopWaitTimer()
				s.state = domain.SessionActive
				s.startedAt = m.now()
				out.Activated = true
				activatedNow = true
			}
		case domain.SessionActive:
			// Second device of an already-joined participant.
		}
	}
	out.State = s.state
	s.mu.Unlock()

	m.appendAudit(ctx, s.ID, identity.ID, "join")
	if activatedNow {
		if err := m.appointments.SetStatus(ctx, s.AppointmentID, domain.AppointmentInProgress); err != nil {
			log.Error().Err(err).Str("module", "app.session").
				Str("session", string(s.ID)).Msg("set appointment in_progress")
		}
	}
	return out, nil
}

// OnGone applies the departure transition for both explicit leave and
// channel loss. An active participant gets the grace window; the session
// drops only if nobody rejoins in time.
func (m *SessionManager) OnGone(ctx context.Context, s *Session, identity *domain.Identity) {
	if !identity.Participant() {
		m.appendAudit(ctx, s.ID, identity.ID, "leave")
		return
	}
	s.mu.Lock()
	if s.state == domain.SessionEnded {
		s.mu.Unlock()
		return
	}
	delete(s.joined, identity.ID)

	endNow := false
	switch s.state {
	case domain.SessionActive:
		s.state = domain.SessionWaiting
		s.graceFor = identity.ID
		m.startGraceTimer(s)
	case domain.SessionWaiting:
		if len(s.joined) == 0 {
			if s.graceFor != "" {
				// Both participants gone: no one left to wait for.
				endNow = true
			} else {
				s.state = domain.SessionPending
				s.stopWaitTimer()
			}
		}
	}
	s.mu.Unlock()

	m.appendAudit(ctx, s.ID, identity.ID, "leave")
	if endNow {
		if err := m.End(ctx, s, "", domain.EndDropped); err != nil {
			log.Warn().Err(err).Str("module", "app.session").
				Str("session", string(s.ID)).Msg("drop after grace lost race")
		}
	}
}

// End performs the terminal transition. Exactly one caller wins; everyone
// else gets domain.ErrSessionEnded. Persistence happens outside the session
// lock, guarded by the transition itself.
func (m *SessionManager) End(ctx context.Context, s *Session, by domain.IdentityID, reason domain.EndReason) error {
	s.mu.Lock()
	if s.state == domain.SessionEnded {
		s.mu.Unlock()
		return domain.ErrSessionEnded
	}
	// A session that never went active cannot be billed as completed; a
	// hang-up out of pending/waiting is an abandonment.
	if reason == domain.EndCompleted && s.state != domain.SessionActive {
		reason = domain.EndDropped
	}
	s.state = domain.SessionEnded
	s.endReason = reason
	s.endedAt = m.now()
	s.graceFor = ""
	s.stopWaitTimer()
	s.stopGraceTimer()

	summary := domain.Summary{
		SessionID:     s.ID,
		AppointmentID: s.AppointmentID,
		StartedAt:     s.startedAt,
		EndedAt:       s.endedAt,
		EndReason:     reason,
		Quality:       s.quality,
	}
	if !s.startedAt.IsZero() {
		summary.DurationSeconds = int(s.endedAt.Sub(s.startedAt) / time.Second)
	}
	s.mu.Unlock()

	log.Info().Str("module", "app.session").Str("session", string(s.ID)).
		Str("reason", string(reason)).Int("duration_s", summary.DurationSeconds).
		Msg("session ended")

	m.appendAudit(ctx, s.ID, by, "end")
	if reason == domain.EndCompleted {
		if err := m.appointments.SetStatus(ctx, s.AppointmentID, domain.AppointmentCompleted); err != nil {
			log.Error().Err(err).Str("module", "app.session").
				Str("session", string(s.ID)).Msg("set appointment completed")
		}
	}
	if err := m.summaries.Deliver(ctx, summary); err != nil {
		log.Error().Err(err).Str("module", "app.session").
			Str("session", string(s.ID)).Msg("deliver summary")
	}
	if m.events != nil {
		m.events.SessionEnded(s.ID, reason)
	}
	return nil
}

// RecordQuality stores the last negotiated tier for the summary.
func (m *SessionManager) RecordQuality(s *Session, tier domain.QualityTier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.SessionEnded {
		return
	}
	s.quality = tier
}

// startWaitTimer arms the no-second-participant timeout. Caller holds s.mu.
func (m *SessionManager) startWaitTimer(s *Session) {
	s.stopWaitTimer()
	s.waitTimer = time.AfterFunc(m.waitingTimeout, func() {
		s.mu.Lock()
		fire := s.state == domain.SessionWaiting && s.graceFor == ""
		s.mu.Unlock()
		if !fire {
			return
		}
		if err := m.End(context.Background(), s, "", domain.EndTimeout); err != nil {
			log.Debug().Err(err).Str("module", "app.session").
				Str("session", string(s.ID)).Msg("waiting timeout lost race")
		}
	})
}

// startGraceTimer arms the post-disconnect drop. Caller holds s.mu.
func (m *SessionManager) startGraceTimer(s *Session) {
	s.stopGraceTimer()
	s.graceTmr = time.AfterFunc(m.graceWindow, func() {
		s.mu.Lock()
		fire := s.state == domain.SessionWaiting && s.graceFor != ""
		s.mu.Unlock()
		if !fire {
			return
		}
		if err := m.End(context.Background(), s, "", domain.EndDropped); err != nil {
			log.Debug().Err(err).Str("module", "app.session").
				Str("session", string(s.ID)).Msg("grace timeout lost race")
		}
	})
}

func (s *Session) stopWaitTimer() {
	if s.waitTimer != nil {
		s.waitTimer.Stop()
		s.waitTimer = nil
	}
}

func (s *Session) stopGraceTimer() {
	if s.graceTmr != nil {
		s.graceTmr.Stop()
		s.graceTmr = nil
	}
}

func (m *SessionManager) appendAudit(ctx context.Context, sid domain.SessionID, who domain.IdentityID, event string) {
	ev := domain.AuditEvent{SessionID: sid, IdentityID: who, Event: event, At: m.now()}
	if err := m.audit.Append(ctx, ev); err != nil {
		log.Error().Err(err).Str("module", "app.session").
			Str("session", string(sid)).Str("event", event).Msg("audit append")
	}
}

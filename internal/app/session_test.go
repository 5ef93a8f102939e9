package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carebridge/telecare/internal/adapters/store"
	"github.com/carebridge/telecare/internal/domain"
)

var (
	patient = &domain.Identity{ID: "p1", Role: domain.RolePatient}
	doctor  = &domain.Identity{ID: "d1", Role: domain.RoleDoctor}
	admin   = &domain.Identity{ID: "a1", Role: domain.RoleAdmin}
)

func confirmedAppointment() domain.Appointment {
	return domain.Appointment{
		ID:          "appt-1",
		PatientID:   patient.ID,
		DoctorID:    doctor.ID,
		Status:      domain.AppointmentConfirmed,
		ScheduledAt: time.Now(),
	}
}

type endedRecorder struct {
	mu    sync.Mutex
	calls []domain.EndReason
}

func (e *endedRecorder) SessionEnded(id domain.SessionID, reason domain.EndReason) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, reason)
}

func (e *endedRecorder) reasons() []domain.EndReason {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.EndReason, len(e.calls))
	copy(out, e.calls)
	return out
}

func newTestManager(t *testing.T, waiting, grace time.Duration) (*SessionManager, *store.MemoryStore, *endedRecorder) {
	t.Helper()
	mem := store.NewMemoryStore()
	mem.Seed(confirmedAppointment())
	m := NewSessionManager(waiting, grace, mem, mem, mem)
	rec := &endedRecorder{}
	m.SetEvents(rec)
	return m, mem, rec
}

func TestSessionLifecycleCompleted(t *testing.T) {
	ctx := context.Background()
	m, mem, rec := newTestManager(t, time.Minute, time.Minute)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	appt := confirmedAppointment()
	s := m.GetOrCreate(&appt)
	require.Equal(t, domain.SessionPending, s.State())
	require.Same(t, s, m.GetOrCreate(&appt))

	out, err := m.OnJoin(ctx, s, patient)
	require.NoError(t, err)
	require.Equal(t, domain.SessionWaiting, out.State)
	require.False(t, m.IsActive(s.ID))

	out, err = m.OnJoin(ctx, s, doctor)
	require.NoError(t, err)
	require.Equal(t, domain.SessionActive, out.State)
	require.True(t, out.Activated)
	require.True(t, m.IsActive(s.ID))

	got, err := mem.Get(ctx, appt.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AppointmentInProgress, got.Status)

	m.now = func() time.Time { return base.Add(5 * time.Minute) }
	require.NoError(t, m.End(ctx, s, doctor.ID, domain.EndCompleted))
	require.ErrorIs(t, m.End(ctx, s, patient.ID, domain.EndCompleted), domain.ErrSessionEnded)

	snap := s.Snapshot()
	require.Equal(t, domain.SessionEnded, snap.State)
	require.Equal(t, domain.EndCompleted, snap.EndReason)

	got, err = mem.Get(ctx, appt.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AppointmentCompleted, got.Status)

	sums := mem.Summaries()
	require.Len(t, sums, 1)
	sum := sums[s.ID]
	require.Equal(t, 300, sum.DurationSeconds)
	require.Equal(t, domain.EndCompleted, sum.EndReason)
	require.Equal(t, []domain.EndReason{domain.EndCompleted}, rec.reasons())
}

func TestWaitingTimeoutEndsSession(t *testing.T) {
	ctx := context.Background()
	m, mem, _ := newTestManager(t, 30*time.Millisecond, time.Minute)

	appt := confirmedAppointment()
	s := m.GetOrCreate(&appt)
	_, err := m.OnJoin(ctx, s, patient)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return s.State() == domain.SessionEnded
	}, time.Second, 5*time.Millisecond)

	snap := s.Snapshot()
	require.Equal(t, domain.EndTimeout, snap.EndReason)
	require.True(t, snap.StartedAt.IsZero())
	require.Len(t, mem.Summaries(), 1)
}

func TestSoleParticipantLeaveReturnsToPending(t *testing.T) {
	ctx := context.Background()
	m, _, rec := newTestManager(t, time.Minute, time.Minute)

	appt := confirmedAppointment()
	s := m.GetOrCreate(&appt)
	_, err := m.OnJoin(ctx, s, patient)
	require.NoError(t, err)
	require.Equal(t, domain.SessionWaiting, s.State())

	m.OnGone(ctx, s, patient)
	require.Equal(t, domain.SessionPending, s.State())
	require.Empty(t, rec.reasons())

	// The waiting timer belongs to the waiting state; it restarts on the
	// next first join.
	out, err := m.OnJoin(ctx, s, patient)
	require.NoError(t, err)
	require.Equal(t, domain.SessionWaiting, out.State)
}

func TestGraceWindowRejoinRestoresActive(t *testing.T) {
	ctx := context.Background()
	m, _, rec := newTestManager(t, time.Minute, 50*time.Millisecond)

	appt := confirmedAppointment()
	s := m.GetOrCreate(&appt)
	_, err := m.OnJoin(ctx, s, patient)
	require.NoError(t, err)
	_, err = m.OnJoin(ctx, s, doctor)
	require.NoError(t, err)

	m.OnGone(ctx, s, doctor)
	require.Equal(t, domain.SessionWaiting, s.State())

	out, err := m.OnJoin(ctx, s, doctor)
	require.NoError(t, err)
	require.True(t, out.Reconnected)
	require.Equal(t, domain.SessionActive, out.State)

	// Make sure the cancelled grace timer never fires.
	time.Sleep(120 * time.Millisecond)
	require.Equal(t, domain.SessionActive, s.State())
	require.Empty(t, rec.reasons())
}

func TestGraceWindowExpiryDropsOnce(t *testing.T) {
	ctx := context.Background()
	m, mem, rec := newTestManager(t, time.Minute, 30*time.Millisecond)

	appt := confirmedAppointment()
	s := m.GetOrCreate(&appt)
	_, err := m.OnJoin(ctx, s, patient)
	require.NoError(t, err)
	_, err = m.OnJoin(ctx, s, doctor)
	require.NoError(t, err)

	m.OnGone(ctx, s, doctor)
	// Second departure report for the same identity must not double-fire.
	m.OnGone(ctx, s, doctor)

	require.Eventually(t, func() bool {
		return s.State() == domain.SessionEnded
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, domain.EndDropped, s.Snapshot().EndReason)
	require.Len(t, mem.Summaries(), 1)
	require.Equal(t, []domain.EndReason{domain.EndDropped}, rec.reasons())
}

func TestBothGoneDuringGraceEndsImmediately(t *testing.T) {
	ctx := context.Background()
	m, _, rec := newTestManager(t, time.Minute, time.Minute)

	appt := confirmedAppointment()
	s := m.GetOrCreate(&appt)
	_, err := m.OnJoin(ctx, s, patient)
	require.NoError(t, err)
	_, err = m.OnJoin(ctx, s, doctor)
	require.NoError(t, err)

	m.OnGone(ctx, s, doctor)
	m.OnGone(ctx, s, patient)

	require.Equal(t, domain.SessionEnded, s.State())
	require.Equal(t, []domain.EndReason{domain.EndDropped}, rec.reasons())
}

func TestConcurrentEndTriggersExactlyOneTerminal(t *testing.T) {
	ctx := context.Background()
	m, mem, rec := newTestManager(t, time.Minute, time.Minute)

	appt := confirmedAppointment()
	s := m.GetOrCreate(&appt)
	_, err := m.OnJoin(ctx, s, patient)
	require.NoError(t, err)
	_, err = m.OnJoin(ctx, s, doctor)
	require.NoError(t, err)

	const n = 10
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.End(ctx, s, doctor.ID, domain.EndCompleted)
		}()
	}
	wg.Wait()
	close(errs)

	won, lost := 0, 0
	for err := range errs {
		if err == nil {
			won++
		} else {
			require.ErrorIs(t, err, domain.ErrSessionEnded)
			lost++
		}
	}
	require.Equal(t, 1, won)
	require.Equal(t, n-1, lost)
	require.Len(t, mem.Summaries(), 1)
	require.Len(t, rec.reasons(), 1)
}

func TestAdminObserverNeverTransitions(t *testing.T) {
	ctx := context.Background()
	m, mem, _ := newTestManager(t, time.Minute, time.Minute)

	appt := confirmedAppointment()
	s := m.GetOrCreate(&appt)
	out, err := m.OnJoin(ctx, s, admin)
	require.NoError(t, err)
	require.Equal(t, domain.SessionPending, out.State)

	m.OnGone(ctx, s, admin)
	require.Equal(t, domain.SessionPending, s.State())

	// Observer joins still land in the audit log.
	events := mem.Events()
	require.NotEmpty(t, events)
	require.Equal(t, admin.ID, events[0].IdentityID)
}

func TestJoinAfterEndedIsRejected(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t, time.Minute, time.Minute)

	appt := confirmedAppointment()
	s := m.GetOrCreate(&appt)
	require.NoError(t, m.End(ctx, s, "", domain.EndAdmin))

	_, err := m.OnJoin(ctx, s, patient)
	require.ErrorIs(t, err, domain.ErrSessionEnded)
}

func TestEndBeforeActiveIsNotBilledAsCompleted(t *testing.T) {
	ctx := context.Background()
	m, mem, rec := newTestManager(t, time.Minute, time.Minute)

	appt := confirmedAppointment()
	s := m.GetOrCreate(&appt)
	_, err := m.OnJoin(ctx, s, patient)
	require.NoError(t, err)
	require.Equal(t, domain.SessionWaiting, s.State())

	// Hanging up while still waiting is an abandonment, not a completed
	// consultation.
	require.NoError(t, m.End(ctx, s, patient.ID, domain.EndCompleted))

	snap := s.Snapshot()
	require.Equal(t, domain.EndDropped, snap.EndReason)
	require.True(t, snap.StartedAt.IsZero())

	got, err := mem.Get(ctx, appt.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AppointmentConfirmed, got.Status)

	sum := mem.Summaries()[s.ID]
	require.Equal(t, domain.EndDropped, sum.EndReason)
	require.Zero(t, sum.DurationSeconds)
	require.Equal(t, []domain.EndReason{domain.EndDropped}, rec.reasons())
}

func TestRecordQuality(t *testing.T) {
	ctx := context.Background()
	m, mem, _ := newTestManager(t, time.Minute, time.Minute)

	appt := confirmedAppointment()
	s := m.GetOrCreate(&appt)
	m.RecordQuality(s, domain.QualityHigh)
	require.NoError(t, m.End(ctx, s, "", domain.EndAdmin))

	require.Equal(t, domain.QualityHigh, mem.Summaries()[s.ID].Quality)

	// Terminal sessions ignore late quality updates.
	m.RecordQuality(s, domain.QualityLow)
	require.Equal(t, domain.QualityHigh, s.Snapshot().Quality)
}

package app

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/carebridge/telecare/internal/core"
	"github.com/carebridge/telecare/internal/domain"
)

// Orchestrator ties the registry, rooms, sessions and guard together. Every
// connection event and signal message flows through here; it is also the
// disconnect reconciler.
type Orchestrator struct {
	Registry *Registry
	Rooms    *RoomManager
	Sessions *SessionManager
	Guard    *Guard
}

// JoinResult is what the signaling adapter acks a join with.
type JoinResult struct {
	Session Snapshot
	Members []core.MemberDTO
	Outcome JoinOutcome
}

// Connect admits an authenticated channel: registers it and subscribes it to
// its own user inbox room for out-of-band notices.
func (o *Orchestrator) Connect(cs core.ChannelSession, cancel context.CancelFunc) core.ChannelID {
	chID := o.Registry.Register(cs, cancel)
	inbox := domain.UserRoom(cs.Identity().ID)
	if _, err := o.Rooms.GetOrCreate(inbox).Add(chID, cs); err != nil {
		log.Error().Err(err).Str("module", "app.orchestrator").
			Str("channel", string(chID)).Msg("inbox join")
	} else {
		o.Registry.JoinedRoom(chID, inbox)
	}
	return chID
}

// JoinSession runs the full join path: guard check (I/O, no locks held),
// lazy session creation, room admission with the reconnect-eviction rule,
// then the state transition. Session state is re-checked after the guard
// I/O completed, so a cancellation that raced the lookup still loses.
func (o *Orchestrator) JoinSession(ctx context.Context, chID core.ChannelID, apptID domain.AppointmentID) (*JoinResult, error) {
	cs, ok := o.Registry.Lookup(chID)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	ident := cs.Identity()

	appt, err := o.Guard.CanJoin(ctx, ident, apptID)
	if err != nil {
		return nil, err
	}

	s := o.Sessions.GetOrCreate(appt)
	roomName := domain.SessionRoom(s.ID)
	room := o.Rooms.GetOrCreate(roomName)

	evicted, err := room.Add(chID, cs)
	if err != nil {
		return nil, err
	}
	if evicted != "" {
		o.Registry.LeftRoom(evicted, roomName)
		o.Registry.Cancel(evicted)
		// Closing the transport unblocks the stale channel's reader so its
		// disconnect reconciliation runs instead of waiting on a dead client.
		if stale, ok := o.Registry.Lookup(evicted); ok {
			stale.Signal().Close()
		}
		log.Info().Str("module", "app.orchestrator").Str("session", string(s.ID)).
			Str("evicted", string(evicted)).Msg("stale channel evicted on reconnect")
	}

	outcome, err := o.Sessions.OnJoin(ctx, s, ident)
	if err != nil {
		room.Remove(chID)
		return nil, err
	}
	o.Registry.JoinedRoom(chID, roomName)

	kind := "peer-joined"
	if outcome.Reconnected {
		kind = "peer-reconnected"
	}
	o.notifyRoom(room, chID, notice{
		Type:      kind,
		SessionID: s.ID,
		Identity:  ident.ID,
		Role:      ident.Role,
	})

	return &JoinResult{
		Session: s.Snapshot(),
		Members: room.MembersSnapshot(),
		Outcome: outcome,
	}, nil
}

// LeaveSession handles an explicit leave-room. The grace window applies the
// same way it does for a lost channel.
func (o *Orchestrator) LeaveSession(ctx context.Context, chID core.ChannelID, sessionID domain.SessionID) error {
	cs, ok := o.Registry.Lookup(chID)
	if !ok {
		return domain.ErrUnauthenticated
	}
	s, ok := o.Sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	roomName := domain.SessionRoom(sessionID)
	room, ok := o.Rooms.Get(roomName)
	if !ok || !room.Has(chID) {
		return nil
	}
	room.Remove(chID)
	o.Registry.LeftRoom(chID, roomName)
	o.notifyRoom(room, chID, notice{
		Type:      "peer-disconnected",
		SessionID: sessionID,
		Identity:  cs.Identity().ID,
	})
	o.Sessions.OnGone(ctx, s, cs.Identity())
	if room.MemberCount() == 0 {
		o.Rooms.StopRoom(roomName)
	}
	return nil
}

// Relay forwards a signal message verbatim to the other members of the
// session room, stamped with the sender identity. A room with no other
// member is not an error: the protocol is retry tolerant, so the frame is
// dropped and logged.
func (o *Orchestrator) Relay(chID core.ChannelID, env *domain.Envelope) error {
	cs, ok := o.Registry.Lookup(chID)
	if !ok {
		return domain.ErrUnauthenticated
	}
	s, ok := o.Sessions.Get(env.SessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if s.State() == domain.SessionEnded {
		return domain.ErrSessionEnded
	}
	room, ok := o.Rooms.Get(domain.SessionRoom(env.SessionID))
	if !ok || !room.Has(chID) {
		return domain.Denied(domain.DenyNotParticipant)
	}

	env.Sender = cs.Identity().ID
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	res := room.Broadcast(chID, core.Frame(data))
	if res.SentTo == 0 {
		log.Debug().Str("module", "app.orchestrator").Str("session", string(env.SessionID)).
			Str("kind", string(env.Type)).Msg("no peer yet, frame dropped")
	}
	for _, slow := range res.Dropped {
		log.Warn().Str("module", "app.orchestrator").Str("session", string(env.SessionID)).
			Str("channel", string(slow)).Msg("slow consumer, frame dropped")
	}
	return nil
}

// EndSession handles an explicit end-session from a participant or admin.
func (o *Orchestrator) EndSession(ctx context.Context, chID core.ChannelID, sessionID domain.SessionID) error {
	cs, ok := o.Registry.Lookup(chID)
	if !ok {
		return domain.ErrUnauthenticated
	}
	s, ok := o.Sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	ident := cs.Identity()
	reason := domain.EndCompleted
	switch {
	case ident.Role == domain.RoleAdmin:
		reason = domain.EndAdmin
	case ident.ID != s.Patient && ident.ID != s.Doctor:
		return domain.Denied(domain.DenyNotParticipant)
	}
	return o.Sessions.End(ctx, s, ident.ID, reason)
}

// ForceEnd is the admin REST path.
func (o *Orchestrator) ForceEnd(ctx context.Context, sessionID domain.SessionID) error {
	s, ok := o.Sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return o.Sessions.End(ctx, s, "", domain.EndAdmin)
}

// Disconnect reconciles a lost channel: membership cleanup, peer notices and
// the disconnect transition for every session room the channel was in.
// Safe to call twice; the second call is a no-op.
func (o *Orchestrator) Disconnect(ctx context.Context, chID core.ChannelID) {
	cs, rooms, ok := o.Registry.Unregister(chID)
	if !ok {
		return
	}
	ident := cs.Identity()
	for _, name := range rooms {
		room, ok := o.Rooms.Get(name)
		if !ok {
			continue
		}
		room.Remove(chID)
		sid, isSession := name.Session()
		if isSession {
			o.notifyRoom(room, chID, notice{
				Type:      "peer-disconnected",
				SessionID: sid,
				Identity:  ident.ID,
			})
			if s, ok := o.Sessions.Get(sid); ok {
				o.Sessions.OnGone(ctx, s, ident)
			}
		}
		if room.MemberCount() == 0 {
			o.Rooms.StopRoom(name)
		}
	}
	cs.Signal().Close()
}

// SessionEnded implements SessionEvents: fan the terminal notice out to the
// room, then tear the room down. Runs without any session lock held.
func (o *Orchestrator) SessionEnded(id domain.SessionID, reason domain.EndReason) {
	name := domain.SessionRoom(id)
	room, ok := o.Rooms.Get(name)
	if !ok {
		return
	}
	o.notifyRoom(room, "", notice{Type: "session-ended", SessionID: id, Reason: reason})
	for _, m := range room.MembersSnapshot() {
		room.Remove(m.Channel)
		o.Registry.LeftRoom(m.Channel, name)
	}
	o.Rooms.StopRoom(name)
}

// IsActive is the presence query exposed to the waiting-room UI.
func (o *Orchestrator) IsActive(id domain.SessionID) bool {
	return o.Sessions.IsActive(id)
}

type notice struct {
	Type      string            `json:"type"`
	SessionID domain.SessionID  `json:"sessionId,omitempty"`
	Identity  domain.IdentityID `json:"identityId,omitempty"`
	Role      domain.Role       `json:"role,omitempty"`
	Reason    domain.EndReason  `json:"reason,omitempty"`
}

func (o *Orchestrator) notifyRoom(room core.RoomService, exclude core.ChannelID, n notice) {
	data, err := json.Marshal(n)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orchestrator").Msg("notice marshal")
		return
	}
	room.Broadcast(exclude, core.Frame(data))
}

// IsTerminal reports whether an error is one of the drop-and-log kind that
// must not be surfaced to the client as a hard failure.
func IsTerminal(err error) bool {
	return errors.Is(err, domain.ErrSessionEnded) || errors.Is(err, domain.ErrSessionNotFound)
}

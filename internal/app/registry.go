package app

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/carebridge/telecare/internal/core"
	"github.com/carebridge/telecare/internal/domain"
)

type channelEntry struct {
	Session core.ChannelSession
	Rooms   map[domain.RoomName]struct{}
	Cancel  context.CancelFunc
}

// Registry is the single owner of the channel→identity mapping. Rooms hold
// only channel ids, never lifecycle ownership. All registry mutations are
// serialized behind its own lock, independent of any session lock.
type Registry struct {
	mu         sync.RWMutex
	channels   map[core.ChannelID]*channelEntry
	byIdentity map[domain.IdentityID]map[core.ChannelID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		channels:   make(map[core.ChannelID]*channelEntry),
		byIdentity: make(map[domain.IdentityID]map[core.ChannelID]struct{}),
	}
}

// Register admits an authenticated channel and mints its id.
func (r *Registry) Register(cs core.ChannelSession, cancel context.CancelFunc) core.ChannelID {
	id := core.ChannelID(uuid.NewString())
	ident := cs.Identity().ID
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[id] = &channelEntry{
		Session: cs,
		Rooms:   make(map[domain.RoomName]struct{}),
		Cancel:  cancel,
	}
	set, ok := r.byIdentity[ident]
	if !ok {
		set = make(map[core.ChannelID]struct{})
		r.byIdentity[ident] = set
	}
	set[id] = struct{}{}
	log.Info().Str("module", "app.registry").Str("channel", string(id)).
		Str("identity", string(ident)).Msg("channel registered")
	return id
}

// Unregister removes the channel and reports the rooms it belonged to so the
// caller can reconcile membership. Idempotent: the second call for the same
// id returns ok=false and does nothing.
func (r *Registry) Unregister(id core.ChannelID) (core.ChannelSession, []domain.RoomName, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.channels[id]
	if !ok {
		return nil, nil, false
	}
	delete(r.channels, id)
	ident := e.Session.Identity().ID
	if set, ok := r.byIdentity[ident]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(r.byIdentity, ident)
		}
	}
	rooms := make([]domain.RoomName, 0, len(e.Rooms))
	for name := range e.Rooms {
		rooms = append(rooms, name)
	}
	log.Info().Str("module", "app.registry").Str("channel", string(id)).
		Str("identity", string(ident)).Msg("channel unregistered")
	return e.Session, rooms, true
}

func (r *Registry) Lookup(id core.ChannelID) (core.ChannelSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.channels[id]; ok {
		return e.Session, true
	}
	return nil, false
}

// ChannelsOf lists the live channels of one identity (multi-device).
func (r *Registry) ChannelsOf(identity domain.IdentityID) []core.ChannelID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byIdentity[identity]
	out := make([]core.ChannelID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (r *Registry) JoinedRoom(id core.ChannelID, name domain.RoomName) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.channels[id]; ok {
		e.Rooms[name] = struct{}{}
	}
}

func (r *Registry) LeftRoom(id core.ChannelID, name domain.RoomName) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.channels[id]; ok {
		delete(e.Rooms, name)
	}
}

func (r *Registry) RoomsOf(id core.ChannelID) []domain.RoomName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.channels[id]
	if !ok {
		return nil
	}
	out := make([]domain.RoomName, 0, len(e.Rooms))
	for name := range e.Rooms {
		out = append(out, name)
	}
	return out
}

// Cancel fires the connection-scoped context of a channel, tearing down its
// pumps. Used when a reconnecting identity evicts a stale channel.
func (r *Registry) Cancel(id core.ChannelID) bool {
	r.mu.RLock()
	e, ok := r.channels[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("channel", string(id)).Msg("canceled channel")
	return true
}

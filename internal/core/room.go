package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/carebridge/telecare/internal/domain"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	name   domain.RoomName
	capped bool // session rooms cap participants; user inbox rooms do not

	mu         sync.RWMutex
	byChannel  map[ChannelID]ChannelSession
	byIdentity map[domain.IdentityID]ChannelID // participants only, one slot each
}

func NewRoomService(name domain.RoomName) RoomService {
	return &roomImpl{
		name:       name,
		capped:     name.IsSession(),
		byChannel:  make(map[ChannelID]ChannelSession),
		byIdentity: make(map[domain.IdentityID]ChannelID),
	}
}

func (r *roomImpl) Name() domain.RoomName { return r.name }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byChannel)
}

func (r *roomImpl) ParticipantCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity)
}

func (r *roomImpl) Has(id ChannelID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byChannel[id]
	return ok
}

func (r *roomImpl) ChannelOf(identity domain.IdentityID) (ChannelID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byIdentity[identity]
	return id, ok
}

// Add admits a channel, enforcing the two-participant cap. A participant
// reconnecting under a new channel evicts its previous one; the evicted id
// is returned so the caller can close that transport. Admin observers are
// admitted without a capacity check.
func (r *roomImpl) Add(id ChannelID, cs ChannelSession) (ChannelID, error) {
	ident := cs.Identity()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byChannel[id]; ok {
		return "", nil
	}

	var evicted ChannelID
	if r.capped && ident.Participant() {
		if prev, ok := r.byIdentity[ident.ID]; ok {
			delete(r.byChannel, prev)
			evicted = prev
		} else if len(r.byIdentity) >= domain.MaxRoomParticipants {
			return "", domain.ErrRoomFull
		}
		r.byIdentity[ident.ID] = id
	}
	r.byChannel[id] = cs
	log.Info().Str("module", "core.room").Str("room", string(r.name)).
		Str("channel", string(id)).Str("identity", string(ident.ID)).
		Str("evicted", string(evicted)).Msg("member added")
	return evicted, nil
}

func (r *roomImpl) Remove(id ChannelID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.byChannel[id]
	if !ok {
		return
	}
	ident := cs.Identity()
	if cur, ok := r.byIdentity[ident.ID]; ok && cur == id {
		delete(r.byIdentity, ident.ID)
	}
	delete(r.byChannel, id)
	log.Info().Str("module", "core.room").Str("room", string(r.name)).
		Str("channel", string(id)).Msg("member removed")
}

// Broadcast fans a frame out to every member except the sender. Delivery is
// synchronous into per-connection send buffers, so frames from one sender
// keep their order. Slow consumers get the frame dropped, never block the
// room.
func (r *roomImpl) Broadcast(from ChannelID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for id, cs := range r.byChannel {
		if id == from {
			continue
		}
		if err := cs.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.name)).
		Str("from", string(from)).Int("sent_to", res.SentTo).
		Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.byChannel))
	for id, cs := range r.byChannel {
		ident := cs.Identity()
		out = append(out, MemberDTO{Channel: id, Identity: ident.ID, Role: ident.Role})
	}
	return out
}

package core

import "github.com/carebridge/telecare/internal/domain"

// PublishResult reports delivery stats/backpressure to the orchestrator.
type PublishResult struct {
	SentTo  int
	Dropped []ChannelID
}

// MemberDTO is a read-only view for APIs and join acks (no transport fields).
type MemberDTO struct {
	Channel  ChannelID         `json:"channel_id"`
	Identity domain.IdentityID `json:"identity_id"`
	Role     domain.Role       `json:"role"`
}

// RoomService is the core-facing API of a room. It owns the membership set
// but never touches transport resources. Add enforces the participant
// capacity; the evicted id, if any, is the previous channel of the same
// identity (reconnect case) and must be closed by the caller.
type RoomService interface {
	Name() domain.RoomName
	MemberCount() int
	ParticipantCount() int
	MembersSnapshot() []MemberDTO

	Add(id ChannelID, cs ChannelSession) (evicted ChannelID, err error)
	Remove(id ChannelID)
	Has(id ChannelID) bool
	ChannelOf(identity domain.IdentityID) (ChannelID, bool)
	Broadcast(from ChannelID, data Frame) PublishResult
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"member_count"`
}

type RoomFactory interface {
	GetOrCreate(name domain.RoomName) RoomService
	Get(name domain.RoomName) (RoomService, bool)
	List() []RoomInfo
	StopRoom(name domain.RoomName)
}

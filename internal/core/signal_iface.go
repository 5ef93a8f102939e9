package core

import "github.com/carebridge/telecare/internal/domain"

// Frame is a raw encoded signal message.
type Frame []byte

// ChannelID is opaque and unique per connection attempt.
type ChannelID string

// SignalConnection abstracts the messaging transport of one channel.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// ChannelSession binds a resolved identity to its transport endpoint.
// This is what rooms store and fan out to.
type ChannelSession interface {
	Identity() *domain.Identity
	Signal() SignalConnection
}

type channelSession struct {
	identity *domain.Identity
	conn     SignalConnection
}

func NewChannelSession(identity *domain.Identity, conn SignalConnection) ChannelSession {
	return &channelSession{identity: identity, conn: conn}
}

func (c *channelSession) Identity() *domain.Identity { return c.identity }
func (c *channelSession) Signal() SignalConnection   { return c.conn }

package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carebridge/telecare/internal/core"
	"github.com/carebridge/telecare/internal/domain"
)

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close()                   {}

func TestRegistryMultiDevice(t *testing.T) {
	r := NewRegistry()

	ch1 := r.Register(core.NewChannelSession(patient, nopConn{}), nil)
	ch2 := r.Register(core.NewChannelSession(patient, nopConn{}), nil)
	chD := r.Register(core.NewChannelSession(doctor, nopConn{}), nil)
	require.NotEqual(t, ch1, ch2)

	require.ElementsMatch(t, []core.ChannelID{ch1, ch2}, r.ChannelsOf(patient.ID))
	require.ElementsMatch(t, []core.ChannelID{chD}, r.ChannelsOf(doctor.ID))

	cs, ok := r.Lookup(ch1)
	require.True(t, ok)
	require.Equal(t, patient.ID, cs.Identity().ID)
}

func TestRegistryUnregisterIdempotent(t *testing.T) {
	r := NewRegistry()
	ch := r.Register(core.NewChannelSession(patient, nopConn{}), nil)
	r.JoinedRoom(ch, domain.SessionRoom("s1"))
	r.JoinedRoom(ch, domain.UserRoom(patient.ID))

	_, rooms, ok := r.Unregister(ch)
	require.True(t, ok)
	require.ElementsMatch(t, []domain.RoomName{
		domain.SessionRoom("s1"),
		domain.UserRoom(patient.ID),
	}, rooms)

	_, _, ok = r.Unregister(ch)
	require.False(t, ok)

	_, ok = r.Lookup(ch)
	require.False(t, ok)
	require.Empty(t, r.ChannelsOf(patient.ID))
}

func TestRegistryRoomBookkeeping(t *testing.T) {
	r := NewRegistry()
	ch := r.Register(core.NewChannelSession(doctor, nopConn{}), nil)

	room := domain.SessionRoom("s1")
	r.JoinedRoom(ch, room)
	require.Equal(t, []domain.RoomName{room}, r.RoomsOf(ch))

	r.LeftRoom(ch, room)
	require.Empty(t, r.RoomsOf(ch))
}

func TestRegistryCancel(t *testing.T) {
	r := NewRegistry()
	fired := false
	ch := r.Register(core.NewChannelSession(patient, nopConn{}), func() { fired = true })

	require.True(t, r.Cancel(ch))
	require.True(t, fired)
	require.False(t, r.Cancel("ghost"))
}

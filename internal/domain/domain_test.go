package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoomNames(t *testing.T) {
	sr := SessionRoom("abc")
	require.Equal(t, RoomName("session:abc"), sr)
	require.True(t, sr.IsSession())
	sid, ok := sr.Session()
	require.True(t, ok)
	require.Equal(t, SessionID("abc"), sid)

	ur := UserRoom("p1")
	require.Equal(t, RoomName("user:p1"), ur)
	require.False(t, ur.IsSession())
	_, ok = ur.Session()
	require.False(t, ok)
}

func TestRelayableKinds(t *testing.T) {
	relayable := []MessageKind{
		KindOffer, KindAnswer, KindICECandidate,
		KindToggleVideo, KindToggleAudio,
		KindScreenShareStart, KindScreenShareStop,
		KindQualityUpdate,
	}
	for _, k := range relayable {
		require.True(t, k.Relayable(), string(k))
	}
	for _, k := range []MessageKind{KindJoinRoom, KindLeaveRoom, KindEndSession, KindPing, "bogus"} {
		require.False(t, k.Relayable(), string(k))
	}
}

func TestAppointmentChecks(t *testing.T) {
	a := Appointment{ID: "a1", PatientID: "p", DoctorID: "d", Status: AppointmentConfirmed}
	require.True(t, a.Joinable())
	require.True(t, a.ParticipantOf("p"))
	require.True(t, a.ParticipantOf("d"))
	require.False(t, a.ParticipantOf("x"))

	for _, st := range []AppointmentStatus{AppointmentPending, AppointmentCancelled, AppointmentCompleted} {
		a.Status = st
		require.False(t, a.Joinable(), string(st))
	}
}

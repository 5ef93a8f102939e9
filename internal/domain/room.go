package domain

import "strings"

type RoomName string

// IsSession reports whether this room backs a consultation (as opposed to a
// per-user inbox).
func (n RoomName) IsSession() bool {
	return strings.HasPrefix(string(n), "session:")
}

// Session extracts the session id from a session room name.
func (n RoomName) Session() (SessionID, bool) {
	if !n.IsSession() {
		return "", false
	}
	return SessionID(strings.TrimPrefix(string(n), "session:")), true
}

// MaxRoomParticipants is the hard cap of non-admin members per session room.
// Admin observers are not counted.
const MaxRoomParticipants = 2

// SessionRoom names the broadcast group for one consultation.
func SessionRoom(id SessionID) RoomName {
	return RoomName("session:" + string(id))
}

// UserRoom names the per-identity inbox used for out-of-band notices.
func UserRoom(id IdentityID) RoomName {
	return RoomName("user:" + string(id))
}

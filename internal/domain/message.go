package domain

import "encoding/json"

type MessageKind string

const (
	KindJoinRoom         MessageKind = "join-room"
	KindLeaveRoom        MessageKind = "leave-room"
	KindOffer            MessageKind = "offer"
	KindAnswer           MessageKind = "answer"
	KindICECandidate     MessageKind = "ice-candidate"
	KindToggleVideo      MessageKind = "toggle-video"
	KindToggleAudio      MessageKind = "toggle-audio"
	KindScreenShareStart MessageKind = "screen-share-start"
	KindScreenShareStop  MessageKind = "screen-share-stop"
	KindQualityUpdate    MessageKind = "quality-update"
	KindEndSession       MessageKind = "end-session"
	KindPing             MessageKind = "ping"
)

// Relayable reports whether a kind is forwarded verbatim to the other room
// members. Everything else is a control message handled by the server.
func (k MessageKind) Relayable() bool {
	switch k {
	case KindOffer, KindAnswer, KindICECandidate,
		KindToggleVideo, KindToggleAudio,
		KindScreenShareStart, KindScreenShareStop,
		KindQualityUpdate:
		return true
	}
	return false
}

// Envelope is the wire format of a signal message. Payload is opaque to the
// core; only Type and SessionID are inspected for routing. Sender is stamped
// by the relay, never trusted from the client.
type Envelope struct {
	Type      MessageKind     `json:"type"`
	SessionID SessionID       `json:"sessionId,omitempty"`
	Sender    IdentityID      `json:"senderIdentityId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

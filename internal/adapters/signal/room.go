package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/carebridge/telecare/internal/app"
	"github.com/carebridge/telecare/internal/core"
	"github.com/carebridge/telecare/internal/domain"
)

type errorFrame struct {
	Type      string            `json:"type"`
	Code      string            `json:"code"`
	Reason    domain.DenyReason `json:"reason,omitempty"`
	Retriable bool              `json:"retriable"`
}

func (ctl *Controller) sendError(c *WsSignalConn, code string, reason domain.DenyReason, retriable bool) {
	ctl.sendJSON(c, errorFrame{Type: "error", Code: code, Reason: reason, Retriable: retriable})
}

func (ctl *Controller) handleJoin(ctx context.Context, chID core.ChannelID, cs core.ChannelSession, c *WsSignalConn, env *domain.Envelope) {
	var p struct {
		AppointmentID domain.AppointmentID `json:"appointmentId"`
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.AppointmentID == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(c, "BadPayload", "", false)
		return
	}

	ident := cs.Identity()
	if !ctl.joins.Allow(ident.ID) {
		ctl.sendError(c, "TooManyJoins", "", true)
		return
	}

	res, err := ctl.Orch.JoinSession(ctx, chID, p.AppointmentID)
	if err != nil {
		var denied *domain.AccessDenied
		switch {
		case errors.As(err, &denied):
			ctl.sendError(c, "AccessDenied", denied.Reason, false)
		case errors.Is(err, domain.ErrRoomFull):
			ctl.sendError(c, "RoomFull", "", true)
		case errors.Is(err, domain.ErrSessionEnded):
			ctl.sendError(c, "SessionAlreadyEnded", "", false)
		default:
			log.Error().Err(err).Str("module", "signal").Str("channel", string(chID)).Msg("join failed")
			ctl.sendError(c, "Internal", "", true)
		}
		return
	}

	log.Info().Str("module", "signal").Str("channel", string(chID)).
		Str("session", string(res.Session.ID)).Str("state", string(res.Session.State)).
		Msg("joined session room")

	ctl.sendJSON(c, struct {
		Type       string             `json:"type"`
		Session    app.Snapshot       `json:"session"`
		Members    []core.MemberDTO   `json:"members"`
		ICEServers []webrtc.ICEServer `json:"iceServers"`
	}{
		Type:       "room-joined",
		Session:    res.Session,
		Members:    res.Members,
		ICEServers: ctl.ice,
	})
}

func (ctl *Controller) handleLeave(ctx context.Context, chID core.ChannelID, c *WsSignalConn, env *domain.Envelope) {
	if env.SessionID == "" {
		ctl.sendError(c, "BadPayload", "", false)
		return
	}
	if err := ctl.Orch.LeaveSession(ctx, chID, env.SessionID); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("channel", string(chID)).Msg("leave")
		return
	}
	ctl.sendJSON(c, map[string]any{"type": "room-left", "sessionId": env.SessionID})
}

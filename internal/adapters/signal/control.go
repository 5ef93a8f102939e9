package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/carebridge/telecare/internal/app"
	"github.com/carebridge/telecare/internal/core"
	"github.com/carebridge/telecare/internal/domain"
)

func (ctl *Controller) handlePing(c *WsSignalConn) {
	ctl.sendJSON(c, map[string]string{"type": "pong"})
}

// handleEnd applies the explicit hang-up. A lost end-race is logged and
// dropped: the session-ended broadcast already told this client the outcome.
func (ctl *Controller) handleEnd(ctx context.Context, chID core.ChannelID, c *WsSignalConn, env *domain.Envelope) {
	if env.SessionID == "" {
		ctl.sendError(c, "BadPayload", "", false)
		return
	}
	err := ctl.Orch.EndSession(ctx, chID, env.SessionID)
	switch {
	case err == nil:
	case app.IsTerminal(err):
		log.Info().Err(err).Str("module", "signal").Str("channel", string(chID)).
			Str("session", string(env.SessionID)).Msg("late end-session dropped")
	default:
		log.Warn().Err(err).Str("module", "signal").Str("channel", string(chID)).Msg("end-session")
		ctl.sendError(c, "AccessDenied", domain.DenyNotParticipant, false)
	}
}

// handleRelay forwards a pass-through kind. quality-update is additionally
// recorded on the session for the billing summary, but only once the relay
// has accepted the sender as a room member.
func (ctl *Controller) handleRelay(chID core.ChannelID, c *WsSignalConn, env *domain.Envelope) {
	if env.SessionID == "" {
		ctl.sendError(c, "BadPayload", "", false)
		return
	}
	err := ctl.Orch.Relay(chID, env)
	switch {
	case err == nil:
		if env.Type == domain.KindQualityUpdate {
			ctl.recordQuality(env)
		}
	case app.IsTerminal(err):
		log.Info().Err(err).Str("module", "signal").Str("channel", string(chID)).
			Str("session", string(env.SessionID)).Str("kind", string(env.Type)).
			Msg("late signal dropped")
	default:
		log.Warn().Err(err).Str("module", "signal").Str("channel", string(chID)).
			Str("kind", string(env.Type)).Msg("relay refused")
	}
}

func (ctl *Controller) recordQuality(env *domain.Envelope) {
	var p struct {
		Tier domain.QualityTier `json:"tier"`
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.Tier == "" {
		return
	}
	if s, ok := ctl.Orch.Sessions.Get(env.SessionID); ok {
		ctl.Orch.Sessions.RecordQuality(s, p.Tier)
	}
}

package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/carebridge/telecare/internal/core"
	"github.com/carebridge/telecare/internal/domain"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsSignalConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, chID core.ChannelID, cs core.ChannelSession, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("channel", string(chID)).Msg("readPump closing")
		ctl.Orch.Disconnect(context.Background(), chID)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("channel", string(chID)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("channel", string(chID)).Msg("readPump read error")
				return
			}
			ctl.handleSignal(ctx, chID, cs, c, data)
		}
	}
}

func (ctl *Controller) handleSignal(ctx context.Context, chID core.ChannelID, cs core.ChannelSession, c *WsSignalConn, data []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case domain.KindJoinRoom:
		ctl.handleJoin(ctx, chID, cs, c, &env)
	case domain.KindLeaveRoom:
		ctl.handleLeave(ctx, chID, c, &env)
	case domain.KindEndSession:
		ctl.handleEnd(ctx, chID, c, &env)
	case domain.KindPing:
		ctl.handlePing(c)
	default:
		if env.Type.Relayable() {
			ctl.handleRelay(chID, c, &env)
			return
		}
		log.Warn().Str("module", "signal").Str("type", string(env.Type)).Msg("unknown signal")
	}
}

func (ctl *Controller) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

// Package signal is the WebSocket signaling adapter. It owns the transport
// resources of every channel; the core never touches sockets.
package signal

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/carebridge/telecare/internal/app"
	"github.com/carebridge/telecare/internal/config"
	"github.com/carebridge/telecare/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Orch  *app.Orchestrator
	Auth  core.Authenticator
	Cfg   *config.Config
	joins *JoinRateLimiter
	ice   []webrtc.ICEServer
}

func NewController(orch *app.Orchestrator, auth core.Authenticator, cfg *config.Config) *Controller {
	ice := make([]webrtc.ICEServer, 0, len(cfg.ICEServers))
	for _, u := range cfg.ICEServers {
		ice = append(ice, webrtc.ICEServer{URLs: []string{u}})
	}
	return &Controller{
		Orch:  orch,
		Auth:  auth,
		Cfg:   cfg,
		joins: NewJoinRateLimiter(cfg.JoinRateLimit, cfg.JoinRateInterval),
		ice:   ice,
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func credential(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	return strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
}

// HandleSignal authenticates the handshake and, only on success, admits the
// channel to the registry and starts the pumps. An unidentified connection
// is rejected before the upgrade.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	identity, err := ctl.Auth.Resolve(c.Request.Context(), credential(c))
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").
			Str("ct", c.GetString("client_token")).Msg("handshake rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Cfg.ReadLimit)

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	cs := core.NewChannelSession(identity, conn)
	ctx, cancel := context.WithCancel(ctx)
	chID := ctl.Orch.Connect(cs, cancel)
	log.Info().Str("module", "signal").Str("channel", string(chID)).
		Str("identity", string(identity.ID)).Str("role", string(identity.Role)).
		Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, chID, cs, conn)
}

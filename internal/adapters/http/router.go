package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/carebridge/telecare/internal/adapters/signal"
	"github.com/carebridge/telecare/internal/app"
	"github.com/carebridge/telecare/internal/config"
	"github.com/carebridge/telecare/internal/core"
	"github.com/carebridge/telecare/internal/domain"
)

// ClientTokenMiddleware tags every browser with a stable token so reconnects
// of the same device correlate in the logs.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// BearerIdentityMiddleware resolves the Authorization header for REST
// routes. Routes behind it can additionally require a role.
func BearerIdentityMiddleware(auth core.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred := c.GetHeader("Authorization")
		if len(cred) > 7 && cred[:7] == "Bearer " {
			cred = cred[7:]
		}
		identity, err := auth.Resolve(c.Request.Context(), cred)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		c.Set("identity", identity)
		c.Next()
	}
}

func requireAdmin(c *gin.Context) *domain.Identity {
	v, ok := c.Get("identity")
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return nil
	}
	identity := v.(*domain.Identity)
	if identity.Role != domain.RoleAdmin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
		return nil
	}
	return identity
}

func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator, auth core.Authenticator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("TelecareSessions", store))
	r.Use(ClientTokenMiddleware())

	ctrl := signal.NewController(orch, auth, cfg)
	r.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("ct", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	api := r.Group("/api", BearerIdentityMiddleware(auth))

	// GET /api/sessions/:id — state + member count, for ops tooling.
	api.GET("/sessions/:id", func(c *gin.Context) {
		id := domain.SessionID(c.Param("id"))
		s, ok := orch.Sessions.Get(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		members := 0
		if room, ok := orch.Rooms.Get(domain.SessionRoom(id)); ok {
			members = room.MemberCount()
		}
		c.JSON(http.StatusOK, gin.H{"session": s.Snapshot(), "member_count": members})
	})

	// GET /api/sessions/:id/active — waiting-room presence query.
	api.GET("/sessions/:id/active", func(c *gin.Context) {
		id := domain.SessionID(c.Param("id"))
		c.JSON(http.StatusOK, gin.H{"session_id": id, "active": orch.IsActive(id)})
	})

	// POST /api/sessions/:id/end — admin force-end.
	api.POST("/sessions/:id/end", func(c *gin.Context) {
		if requireAdmin(c) == nil {
			return
		}
		id := domain.SessionID(c.Param("id"))
		err := orch.ForceEnd(c.Request.Context(), id)
		switch {
		case err == nil:
			c.Status(http.StatusNoContent)
		case errors.Is(err, domain.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		case errors.Is(err, domain.ErrSessionEnded):
			c.JSON(http.StatusConflict, gin.H{"error": "session already ended"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
	})

	// GET /api/rooms — ops listing of live rooms.
	api.GET("/rooms", func(c *gin.Context) {
		if requireAdmin(c) == nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{"rooms": orch.Rooms.List()})
	})

	return r
}

package http

import (
	"context"

	"github.com/dkeye/Presence/internal/adapters/signal"
	"github.com/dkeye/Presence/internal/app/orch"
	"github.com/dkeye/Presence/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	clientTokenCookie = "ct"
	clientTokenKey    = "client_token"
	displayNameKey    = "display_name"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware identifies the browser by a long-lived cookie. The
// token doubles as the user id of its connections and messages.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(clientTokenCookie)
		if token == "" {
			token = genClientToken()
			c.SetCookie(clientTokenCookie, token, 3600*24*7, "/", "", false, true)
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

// SessionNameMiddleware resolves the display name from the name query
// parameter, falling back to the one remembered in the session.
func SessionNameMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		name := c.Query("name")
		if name != "" {
			session.Set("name", name)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		} else if stored, ok := session.Get("name").(string); ok {
			name = stored
		}
		c.Set(displayNameKey, name)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("PresenceSessions", store))
	r.Use(ClientTokenMiddleware())
	r.Use(SessionNameMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewSignalWSController(o, signal.Options{
		ReadLimit:  cfg.ReadLimit,
		SendBuffer: cfg.SendBuffer,
		PingPeriod: cfg.PingPeriod,
	})
	h := &handlers{
		orch:    o,
		limiter: NewRateLimiter(cfg.RateLimit.Messages, cfg.RateLimit.Interval),
	}

	api := r.Group("/api")

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString(clientTokenKey)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})
	api.GET("/health", h.health)
	api.GET("/connections", h.connections)
	api.GET("/servers/:serverId/voice", h.voiceSnapshot)
	api.POST("/servers/:serverId/channels/:channelId/messages", h.publishMessage)
	api.GET("/channels/:channelId/messages", h.missedMessages)

	return r
}

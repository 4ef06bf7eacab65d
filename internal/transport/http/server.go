package http

import (
	stdhttp "net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/inaumanmajeed/epicrealm-support/internal/config"
	"github.com/inaumanmajeed/epicrealm-support/internal/core"
)

// Deps are the collaborators the HTTP layer serves.
type Deps struct {
	Hub      *core.Hub
	Service  core.ChatService
	Resolver interface {
		IdentityResolver
		Authenticator
	}
}

// NewServer builds the HTTP server with the WebSocket gateway and staff REST routes.
func NewServer(deps Deps, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(deps, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter builds the gin engine.
func NewRouter(deps Deps, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(corsMiddleware(cfg.CORSOrigins))

	router.GET("/health", healthHandler)

	ws := NewWSHandler(deps.Hub, deps.Resolver, WSOptions{
		MaxMessageBytes:    cfg.MaxMessageBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     cfg.CORSOrigins,
	}, logger)
	router.GET("/ws", gin.WrapH(ws))

	support := NewSupportHandlers(deps.Service, deps.Hub.Presence(), logger)
	api := router.Group("/api/support")
	api.Use(StaffAuth(deps.Resolver, logger))
	{
		api.GET("/chats", support.ListChats)
		api.GET("/chats/:id", support.GetChat)
		api.GET("/stats", support.GetStats)
		api.GET("/presence", support.GetPresence)
	}

	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Type"},
		MaxAge:        12 * time.Hour,
	}
	if _, wildcard := originPatterns(origins); wildcard || len(origins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	}
	return cors.New(corsConfig)
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}

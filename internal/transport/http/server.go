package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/echoline/echochat-server/internal/auth"
	"github.com/echoline/echochat-server/internal/config"
	"github.com/echoline/echochat-server/internal/core"
	"github.com/echoline/echochat-server/internal/media"
	"github.com/echoline/echochat-server/internal/service/messages"
	"github.com/echoline/echochat-server/internal/store"
)

// NewServer builds the HTTP server: REST surface, websocket endpoint and
// static media files.
func NewServer(
	gateway *core.ConnectionGateway,
	authService *auth.Service,
	msgService *messages.Service,
	mediaStore media.Store,
	st store.Store,
	cfg config.Config,
	logger *zerolog.Logger,
) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	authHandlers := NewAuthHandlers(authService, mediaStore, st, logger)
	msgHandlers := NewMessageHandlers(msgService, logger)
	requireAuth := AuthMiddleware(authService, logger)

	api := router.Group("/api")
	{
		api.POST("/auth/signup", authHandlers.Signup)
		api.POST("/auth/login", authHandlers.Login)
		api.POST("/auth/logout", authHandlers.Logout)
		api.GET("/auth/check", requireAuth, authHandlers.Check)
		api.PUT("/auth/update-profile", requireAuth, authHandlers.UpdateProfile)

		msgs := api.Group("/messages", requireAuth)
		{
			msgs.GET("/users", msgHandlers.ListContacts)
			msgs.GET("/:id", msgHandlers.ListHistory)
			msgs.POST("/send/:id", msgHandlers.Send)
			msgs.DELETE("/:id", msgHandlers.DeleteHistory)
		}
	}

	router.GET("/ws", gin.WrapH(NewWSHandler(gateway, logger)))

	if cfg.MediaDir != "" {
		router.Static("/media", cfg.MediaDir)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

package router

import (
	"context"
	"time"

	"companion-engine/backend/internal/api"
	"companion-engine/backend/internal/ws"
	"companion-engine/backend/pkg/config"
	"companion-engine/backend/pkg/di"
	"companion-engine/backend/pkg/errors"
	"companion-engine/backend/pkg/logger"
	"companion-engine/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// Track server start time for uptime calculations
var startTime = time.Now()

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Hub       *ws.Hub
	Config    *config.Config
}

// New creates a new router with the given container
func New(ctx context.Context, container *di.Container) *Router {
	logger.SetGlobal(container.Logger)

	cfg := container.Config

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Use the logger middleware first to capture all requests
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(middleware.RequestIDMiddleware())

	// Add custom error handler middleware
	engine.Use(errors.ErrorHandler())

	// Add custom recovery middleware with structured logging instead of default
	engine.Use(errors.RecoveryWithLogger())

	// Create rate limiter with default options
	rateLimiter := middleware.NewRateLimiter(container.Logger)
	engine.Use(rateLimiter.Middleware())

	hub := ws.NewHub(container.Controller, container.Bus, container.Logger)
	go hub.Run(ctx)

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Hub:       hub,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.Engine.Use(corsMiddleware())

	jwtAuth := middleware.JWTAuthMiddleware(r.Container.JWTService, r.Logger)

	authHandler := api.NewAuthHandler(r.Container.UserService, r.Logger)
	characterHandler := api.NewCharacterHandler(r.Container.CharacterService, r.Container.Controller, r.Logger)
	sessionHandler := api.NewSessionHandler(r.Container.Controller, r.Container.MessageService, r.Logger)
	mediaHandler := api.NewMediaHandler(r.Container.MediaService, r.Container.Controller, r.Logger)
	voiceHandler := api.NewVoiceHandler(r.Container.VoiceNoteService, r.Logger)
	archiveHandler := api.NewArchiveHandler(r.Container.Archiver, r.Logger)

	r.setupHealthRoutes()

	v1 := r.Engine.Group("/api/v1")

	// Public routes (no auth required)
	authRoutes := v1.Group("/auth")
	{
		authRoutes.POST("/signup", authHandler.Signup)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.GET("/me", jwtAuth, authHandler.Me)
	}

	// Protected routes (require authentication)
	protected := v1.Group("/")
	protected.Use(jwtAuth)
	{
		characterRoutes := protected.Group("/characters")
		{
			characterRoutes.POST("", characterHandler.CreateCharacter)
			characterRoutes.GET("", characterHandler.ListCharacters)
			characterRoutes.GET("/:id", characterHandler.GetCharacter)
			characterRoutes.DELETE("/:id", characterHandler.DeleteCharacter)
			characterRoutes.POST("/:id/avatar", characterHandler.GenerateAvatar)
			characterRoutes.GET("/:id/intimacy", characterHandler.GetIntimacy)
			characterRoutes.GET("/:id/history", sessionHandler.History)
			characterRoutes.GET("/:id/media", mediaHandler.ListGallery)
			characterRoutes.GET("/:id/voice-notes", voiceHandler.List)
			characterRoutes.GET("/:id/export", archiveHandler.Export)
		}

		sessionRoutes := protected.Group("/sessions")
		{
			sessionRoutes.POST("", sessionHandler.Open)
			sessionRoutes.DELETE("/:sessionId", sessionHandler.Close)
		}

		mediaRoutes := protected.Group("/media")
		{
			mediaRoutes.POST("", mediaHandler.Generate)
			mediaRoutes.GET("/:mediaId", mediaHandler.GetMedia)
			mediaRoutes.DELETE("/:mediaId", mediaHandler.DeleteMedia)
			mediaRoutes.POST("/:mediaId/retry", mediaHandler.Retry)
			mediaRoutes.POST("/:mediaId/fallback/confirm", mediaHandler.ConfirmFallback)
			mediaRoutes.POST("/:mediaId/fallback/cancel", mediaHandler.CancelFallback)
		}

		protected.GET("/voice-notes/:noteId/audio", voiceHandler.GetAudio)
		protected.POST("/archives/import", archiveHandler.Import)
	}

	// WebSocket route
	r.Engine.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(r.Hub, c)
	})
}

// Enhance CORS middleware to explicitly allow WebSocket-specific headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, X-CSRF-Token, Authorization, Origin, Upgrade, Connection, Cache-Control")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"companion-engine/backend/internal/models"
	"companion-engine/backend/pkg/config"
	"companion-engine/backend/pkg/di"
	"companion-engine/backend/pkg/logger"
	"companion-engine/backend/pkg/observability"
	"companion-engine/backend/pkg/router"
	"companion-engine/backend/pkg/secrets"
)

func main() {
	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting application", "version", os.Getenv("APP_VERSION"))

	// Secrets from Vault when configured, env otherwise
	if err := secrets.Init(log); err != nil {
		log.Warn("Secrets manager unavailable, using environment variables", "error", err)
	} else {
		ctx := context.Background()
		cfg.JWT.Secret = secrets.GetSecretWithDefault(ctx, "jwt-secret", cfg.JWT.Secret)
		cfg.GenAI.APIKey = secrets.GetSecretWithDefault(ctx, "genai-api-key", cfg.GenAI.APIKey)
	}

	shutdownTracing := observability.SetupTracing("companion-engine")
	defer shutdownTracing()
	observability.SetupPrometheusMetrics(":2112")

	// Initialize database
	db, err := config.NewDB()
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	// Auto-migrate the schema
	if err := db.AutoMigrate(
		&models.User{},
		&models.Character{},
		&models.Message{},
		&models.Media{},
		&models.VoiceNote{},
	); err != nil {
		log.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}

	// Create indexes for better query performance
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_messages_char_session ON messages(character_id, session_id)").Error; err != nil {
		log.LogError(err, "Failed to create message index", "index", "idx_messages_char_session")
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_media_character ON media(character_id)").Error; err != nil {
		log.LogError(err, "Failed to create media index", "index", "idx_media_character")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	container, err := di.New(ctx, db, cfg)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}
	defer container.Close()

	// Mirror bus traffic into metrics
	go func() {
		for e := range container.Bus.Subscribe() {
			observability.CountEvent(ctx, string(e.Type))
		}
	}()

	// Initialize and setup router
	r := router.New(ctx, container)
	r.SetupRoutes()

	// Add OpenAPI validation if schema file is available
	schemaPath := os.Getenv("OPENAPI_SCHEMA_PATH")
	if schemaPath != "" {
		r.AddOpenAPIValidation(schemaPath)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r.Engine,
	}

	// Start the server in a goroutine
	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}

	log.Info("Server exited gracefully")
}

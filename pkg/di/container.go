// Package di wires the application's component graph in one place so
// main and the tests construct the same topology.
package di

import (
	"context"

	"gorm.io/gorm"

	"companion-engine/backend/internal/archive"
	"companion-engine/backend/internal/chat"
	"companion-engine/backend/internal/events"
	"companion-engine/backend/internal/genai"
	"companion-engine/backend/internal/intimacy"
	"companion-engine/backend/internal/media"
	"companion-engine/backend/internal/service"
	"companion-engine/backend/internal/session"
	"companion-engine/backend/internal/store"
	"companion-engine/backend/internal/voice"
	"companion-engine/backend/pkg/config"
	"companion-engine/backend/pkg/jwt"
	"companion-engine/backend/pkg/logger"
)

// Container holds all the dependencies for the application
type Container struct {
	DB     *gorm.DB
	Logger *logger.Logger
	Config *config.Config

	JWTService *jwt.Service
	Bus        *events.Bus
	KV         store.KV

	UserService      *service.UserService
	CharacterService *service.CharacterService
	MessageService   *service.MessageService
	MediaService     *service.MediaService
	VoiceNoteService *service.VoiceNoteService

	GenAI         genai.Client
	Sessions      *session.Manager
	SessionStore  *store.SessionStore
	Orchestrator  *media.Orchestrator
	VoicePipeline *voice.Pipeline
	Intimacy      *intimacy.Engine
	Controller    *chat.Controller
	Archiver      *archive.Archiver
}

// New builds the full component graph from configuration.
func New(ctx context.Context, db *gorm.DB, cfg *config.Config) (*Container, error) {
	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		JSON:   cfg.Logging.Format == "json",
		Output: logger.DefaultConfig().Output,
	})
	logger.SetGlobal(log)

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.ExpiryHours)
	bus := events.NewBus()

	var kv store.KV
	if cfg.Redis.Enabled {
		redisKV, err := store.NewRedisKV(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		kv = redisKV
	} else {
		kv = store.NewMemoryKV()
	}

	userService := service.NewUserService(db, jwtService)
	characterService := service.NewCharacterService(db)
	messageService := service.NewMessageService(db)
	mediaService := service.NewMediaService(db)
	voiceNoteService := service.NewVoiceNoteService(db)

	client := genai.NewService(genai.Config{
		APIKey:       cfg.GenAI.APIKey,
		TextBaseURL:  cfg.GenAI.TextBaseURL,
		TextModel:    cfg.GenAI.TextModel,
		MediaBaseURL: cfg.GenAI.MediaBaseURL,
		Timeout:      cfg.GenAI.Timeout,
	}, log)

	sessions := session.NewManager(nil)
	sessionStore := store.NewSessionStore(kv, cfg.Chat.SnapshotTTL)

	orchestrator := media.NewOrchestrator(
		client,
		mediaService,
		media.NewModelDirector(client),
		session.NewModelStylist(client),
		bus,
		log,
	)
	voicePipeline := voice.NewPipeline(client, log)
	scoring := intimacy.NewEngine(intimacy.NewModelJudge(client), characterService, bus, log)

	controller := chat.NewController(chat.Options{
		Characters:    characterService,
		Messages:      messageService,
		VoiceNotes:    voiceNoteService,
		Orchestrator:  orchestrator,
		VoicePipeline: voicePipeline,
		Scoring:       scoring,
		Sessions:      sessions,
		Snapshots:     sessionStore,
		Client:        client,
		Bus:           bus,
		Log:           log,
		HistoryWindow: cfg.Chat.HistoryWindow,
		SafetyLevel:   media.SafetyLevel(cfg.Chat.DefaultSafetyLevel),
	})

	return &Container{
		DB:               db,
		Logger:           log,
		Config:           cfg,
		JWTService:       jwtService,
		Bus:              bus,
		KV:               kv,
		UserService:      userService,
		CharacterService: characterService,
		MessageService:   messageService,
		MediaService:     mediaService,
		VoiceNoteService: voiceNoteService,
		GenAI:            client,
		Sessions:         sessions,
		SessionStore:     sessionStore,
		Orchestrator:     orchestrator,
		VoicePipeline:    voicePipeline,
		Intimacy:         scoring,
		Controller:       controller,
		Archiver:         archive.NewArchiver(db, log),
	}, nil
}

// Close releases connection-holding dependencies.
func (c *Container) Close() {
	if closer, ok := c.KV.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			c.Logger.Warn("failed to close kv store", "error", err.Error())
		}
	}
}


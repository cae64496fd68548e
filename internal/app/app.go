package app

import (
	"context"

	"github.com/go-redis/redis"
	"github.com/xpanvictor/modality/internal/auth"
	"github.com/xpanvictor/modality/internal/config"
	"github.com/xpanvictor/modality/internal/llm"
	"github.com/xpanvictor/modality/internal/media"
	"github.com/xpanvictor/modality/internal/realtime"
	"github.com/xpanvictor/modality/internal/repository/transcript"
	"github.com/xpanvictor/modality/internal/server"
	"github.com/xpanvictor/modality/pkg/Logger"
	"gorm.io/gorm"
)

// App represents the application with all its dependencies
type App struct {
	Config  *config.Settings
	Logger  *Logger.Logger
	DB      *gorm.DB
	RC      *redis.Client
	Encoder media.Encoder
	Backend llm.Client
	Manager *realtime.Manager
	// repos
	TranscriptRepo transcript.Repository
	ServerDeps     server.Dependencies
}

// NewApp creates a new application instance with all dependencies properly
// wired. db and rc may be nil; the archive and presence layers are skipped
// when they are.
func NewApp(ctx context.Context, cfg *config.Settings, logger *Logger.Logger, db *gorm.DB, rc *redis.Client) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
		DB:     db,
		RC:     rc,
	}

	if err := app.setupDependencies(ctx); err != nil {
		return nil, err
	}

	return app, nil
}

// setupDependencies initializes all application dependencies
func (a *App) setupDependencies(ctx context.Context) error {
	// 1. media encoder (ffmpeg wrapper)
	a.Encoder = media.NewFFmpeg(a.Config.Media, a.Logger)

	// 2. inference backend
	backend, err := llm.New(ctx, a.Config.LLM, a.Logger)
	if err != nil {
		return err
	}
	a.Backend = backend

	// 3. optional transcript archive
	if a.DB != nil {
		a.TranscriptRepo = transcript.NewGormTranscriptRepo(a.DB, a.Logger)
	}

	// 4. optional cross-instance presence
	var presence *realtime.Presence
	if a.RC != nil {
		presence = realtime.NewPresence(a.RC, a.Config.Realtime.PresenceTTL(), a.Logger)
	}

	// 5. realtime session manager
	store := realtime.NewStore(int(a.Config.Realtime.MaxBufferBytes))
	var archive realtime.Archiver
	if a.TranscriptRepo != nil {
		archive = a.TranscriptRepo
	}
	a.Manager = realtime.NewManager(a.Config.Realtime, store, a.Encoder, a.Backend, presence, archive, a.Logger)

	// JWT settings from config; empty secret disables token checks
	verifier := auth.NewVerifier(a.Config.Auth.JWTSecret)
	if verifier == nil {
		a.Logger.Warn("JWT secret not configured, websocket auth disabled")
	}

	a.ServerDeps = server.NewServerDependencies(
		a.Config,
		a.Logger,
		a.Encoder,
		a.Backend,
		a.Manager,
		a.TranscriptRepo,
		verifier,
	)

	return nil
}

// GetServerDependencies returns the server dependencies
func (a *App) GetServerDependencies() server.Dependencies {
	return a.ServerDeps
}

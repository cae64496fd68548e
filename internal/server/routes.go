package server

import (
	"github.com/gin-gonic/gin"
	"github.com/xpanvictor/modality/internal/auth"
	"github.com/xpanvictor/modality/internal/config"
	"github.com/xpanvictor/modality/internal/handlers"
	"github.com/xpanvictor/modality/internal/llm"
	"github.com/xpanvictor/modality/internal/media"
	"github.com/xpanvictor/modality/internal/realtime"
	"github.com/xpanvictor/modality/internal/repository/transcript"
	"github.com/xpanvictor/modality/pkg/Logger"
)

// Dependencies carries everything the route tree needs. Archive and
// Verifier may be nil when the corresponding infra isn't configured.
type Dependencies struct {
	Configs  *config.Settings
	Logger   *Logger.Logger
	Encoder  media.Encoder
	Backend  llm.Client
	Manager  *realtime.Manager
	Archive  transcript.Repository
	Verifier *auth.Verifier
}

func NewServerDependencies(
	cfg *config.Settings,
	logger *Logger.Logger,
	encoder media.Encoder,
	backend llm.Client,
	manager *realtime.Manager,
	archive transcript.Repository,
	verifier *auth.Verifier,
) Dependencies {
	return Dependencies{
		Configs:  cfg,
		Logger:   logger,
		Encoder:  encoder,
		Backend:  backend,
		Manager:  manager,
		Archive:  archive,
		Verifier: verifier,
	}
}

func InitializeRoutes(cfg *config.Settings, r *gin.Engine, dep Dependencies) {
	r.Use(corsMiddleware())

	r.GET("/", func(ctx *gin.Context) { ctx.JSON(200, gin.H{"message": "Server healthy"}) })

	handlers.NewMediaHandler(dep.Encoder, dep.Logger).RegisterRoutes(r)
	handlers.NewLLMHandler(dep.Encoder, dep.Backend, dep.Logger).RegisterRoutes(r)
	handlers.NewSystemHandler(dep.Backend, dep.Archive, dep.Logger).RegisterRoutes(r)

	rt := realtime.NewHandler(cfg.Realtime, dep.Manager, dep.Encoder, dep.Backend, dep.Verifier, dep.Logger)
	rt.RegisterRoutes(r)
}

// corsMiddleware keeps browser demo pages working against the API.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

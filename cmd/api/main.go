package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis"
	"github.com/xpanvictor/modality/internal/app"
	"github.com/xpanvictor/modality/internal/config"
	"github.com/xpanvictor/modality/internal/database"
	"github.com/xpanvictor/modality/internal/server"
	"github.com/xpanvictor/modality/pkg/Logger"
	"gorm.io/gorm"
)

// This is the main entry point for the API server.
// Loads in all system components
// Exposes functionalities
func main() {
	// fetch cfg
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	// load global logger
	logger := Logger.New(cfg.Debug)
	logger.Info("Logger initialized")

	// optional database for the transcript archive
	var db *gorm.DB
	if cfg.DB.Enabled() {
		db, err = database.InitDB(cfg.DB)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		if err := database.MigrateDB(db); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
	} else {
		logger.Info("Database not configured, transcript archive disabled")
	}

	// optional redis for cross-instance session presence
	var rc *redis.Client
	if cfg.Redis.Enabled() {
		rc, err = database.NewRedis(cfg.Redis)
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
	} else {
		logger.Info("Redis not configured, session presence disabled")
	}

	ctx := context.Background()
	application, err := app.NewApp(ctx, cfg, logger, db, rc)
	if err != nil {
		logger.Fatalf("Failed to wire application: %v", err)
	}

	// compose router
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	server.InitializeRoutes(cfg, router, application.GetServerDependencies())

	// listen with graceful exit
	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router.Handler(),
	}
	go func() {
		logger.Infof("Listening on %s (backend: %s)", cfg.Server.Addr(), cfg.LLM.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server exiting %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// 5 secs then cancel
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Shutdown err %v", err)
	}
	logger.Info("Shutdown system")
}

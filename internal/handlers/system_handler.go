package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xpanvictor/modality/internal/llm"
	"github.com/xpanvictor/modality/internal/repository/transcript"
	"github.com/xpanvictor/modality/pkg/Logger"
)

// SystemHandler serves health, status, config and the archived
// transcript listing.
type SystemHandler struct {
	backend llm.Client
	archive transcript.Repository // nil when no database is configured
	logger  *Logger.Logger
}

func NewSystemHandler(backend llm.Client, archive transcript.Repository, logger *Logger.Logger) *SystemHandler {
	return &SystemHandler{
		backend: backend,
		archive: archive,
		logger:  logger.Component("system-api"),
	}
}

func (h *SystemHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/status", h.Status)
		api.GET("/config", h.Config)
		api.GET("/transcripts", h.ListTranscripts)
		api.GET("/transcripts/:sessionID", h.GetTranscript)
	}
}

func (h *SystemHandler) Health(c *gin.Context) {
	info := h.backend.Info()
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Backend: info.Backend,
		Details: info,
	})
}

func (h *SystemHandler) Status(c *gin.Context) {
	info := h.backend.Info()
	c.JSON(http.StatusOK, StatusResponse{
		ServerStatus: "running",
		Message:      "Processing ready",
		Backend:      info.Backend,
	})
}

func (h *SystemHandler) Config(c *gin.Context) {
	info := h.backend.Info()
	c.JSON(http.StatusOK, ConfigResponse{
		Backend:      info.Backend,
		Model:        info.Model,
		BackendURL:   info.URL,
		HasAPIKey:    info.HasAPIKey,
		ArchiveReady: h.archive != nil,
		Server:       "modality",
	})
}

func (h *SystemHandler) ListTranscripts(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Transcript archive not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	summaries, err := h.archive.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Errorw("transcript listing failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, TranscriptListResponse{Transcripts: summaries, Count: len(summaries)})
}

func (h *SystemHandler) GetTranscript(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Transcript archive not configured"})
		return
	}
	sessionID := c.Param("sessionID")

	summary, entries, err := h.archive.GetBySessionID(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, transcript.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Transcript not found"})
			return
		}
		h.logger.Errorw("transcript lookup failed", "session_id", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary, "items": entries})
}

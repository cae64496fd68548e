package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/xpanvictor/modality/internal/auth"
	"github.com/xpanvictor/modality/internal/config"
	"github.com/xpanvictor/modality/internal/llm"
	"github.com/xpanvictor/modality/internal/media"
	"github.com/xpanvictor/modality/pkg/Logger"
)

// Handler owns the realtime WebSocket routes and the status endpoint.
type Handler struct {
	logger   *Logger.Logger
	manager  *Manager
	encoder  media.Encoder
	backend  llm.Client
	verifier *auth.Verifier
	cfg      config.RealtimeConfig
	upgrader websocket.Upgrader
}

func NewHandler(
	cfg config.RealtimeConfig,
	manager *Manager,
	encoder media.Encoder,
	backend llm.Client,
	verifier *auth.Verifier,
	logger *Logger.Logger,
) *Handler {
	return &Handler{
		logger:   logger.Component("realtime-ws"),
		manager:  manager,
		encoder:  encoder,
		backend:  backend,
		verifier: verifier,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: Implement proper origin checking for production
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes attaches the realtime endpoints.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	ws := router.Group("/ws")
	{
		ws.GET("/realtime", h.HandleRealtime)
		ws.GET("/realtime/video", h.HandleVideoStream)
	}
	router.GET("/api/realtime/status", h.HandleStatus)
}

// authorize checks the optional token query parameter. With no secret
// configured every connection is allowed.
func (h *Handler) authorize(c *gin.Context) bool {
	if h.verifier == nil {
		return true
	}
	claims, err := h.verifier.ValidateToken(c.Query("token"))
	if err != nil {
		h.logger.Warnf("WebSocket token validation failed: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return false
	}
	h.logger.Infof("Authenticated WebSocket client: %s", claims.ClientID)
	return true
}

// HandleRealtime upgrades the connection and hands it to the session
// manager's event loop.
func (h *Handler) HandleRealtime(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	h.manager.HandleConnection(c.Request.Context(), conn)
}

// Video stream protocol messages.
type videoStreamMessage struct {
	Type    string `json:"type"`
	Frame   string `json:"frame"`
	FrameID *int64 `json:"frame_id"`
	Prompt  string `json:"prompt"`
	Video   string `json:"video"`
}

// HandleVideoStream serves the frame-by-frame analysis socket. Frames
// queue through a bounded ring so a fast camera cannot grow memory
// while the backend is mid-inference; when the ring overflows, the
// oldest unanalyzed frames are dropped.
func (h *Handler) HandleVideoStream(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("Video stream upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	streamID := "video_session_" + randomID()
	ring := newFrameRing(h.cfg.FrameRingBytes)
	var frameCount int64

	h.logger.Infof("Video streaming WebSocket connected: %s", streamID)
	greeting := gin.H{
		"type":              "video_stream.connected",
		"session_id":        streamID,
		"status":            "ready",
		"supported_formats": []string{"mp4", "webm", "avi"},
	}
	if err := conn.WriteJSON(greeting); err != nil {
		return
	}

	ctx := c.Request.Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			h.logger.Infof("Video streaming WebSocket disconnected: %s", streamID)
			return
		}

		var msg videoStreamMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.logger.Errorf("JSON decode error in video stream %s: %v", streamID, err)
			if err := conn.WriteJSON(gin.H{"type": "error", "message": "Invalid JSON format"}); err != nil {
				return
			}
			continue
		}

		switch msg.Type {
		case "video_frame":
			frameID := frameCount
			if msg.FrameID != nil {
				frameID = *msg.FrameID
			}
			frameCount++

			data, err := base64.StdEncoding.DecodeString(msg.Frame)
			if err != nil {
				h.logger.Errorf("Frame decode error in stream %s: %v", streamID, err)
				if err := conn.WriteJSON(gin.H{"type": "error", "frame_id": frameID, "message": "Frame processing failed"}); err != nil {
					return
				}
				continue
			}

			if err := ring.Enqueue(streamFrame{ID: frameID, Data: data}); err != nil {
				h.logger.Errorf("Frame enqueue failed in stream %s: %v", streamID, err)
				if err := conn.WriteJSON(gin.H{"type": "error", "frame_id": frameID, "message": "Frame processing failed"}); err != nil {
					return
				}
				continue
			}

			// Analyze whatever the ring holds next; frames a burst
			// pushed out were already forgotten by Enqueue.
			frame, ok := ring.Dequeue()
			if !ok {
				continue
			}
			prompt := msg.Prompt
			if prompt == "" {
				prompt = llm.DefaultFramePrompt
			}
			reply, err := h.analyzeFrame(ctx, frame, prompt)
			if err != nil {
				h.logger.Errorf("Frame processing error in stream %s: %v", streamID, err)
				if err := conn.WriteJSON(gin.H{"type": "error", "frame_id": frame.ID, "message": "Frame processing failed"}); err != nil {
					return
				}
				continue
			}
			out := gin.H{
				"type":      "video_frame.analyzed",
				"frame_id":  frame.ID,
				"analysis":  reply,
				"timestamp": unixSeconds(),
			}
			if err := conn.WriteJSON(out); err != nil {
				return
			}

		case "video_complete":
			data, err := base64.StdEncoding.DecodeString(msg.Video)
			if err != nil {
				h.logger.Errorf("Video decode error in stream %s: %v", streamID, err)
				if err := conn.WriteJSON(gin.H{"type": "error", "message": "Video processing failed"}); err != nil {
					return
				}
				continue
			}
			reply, err := h.analyzeVideo(ctx, streamID, data)
			if err != nil {
				h.logger.Errorf("Video processing error in stream %s: %v", streamID, err)
				if err := conn.WriteJSON(gin.H{"type": "error", "message": "Video processing failed"}); err != nil {
					return
				}
				continue
			}
			out := gin.H{
				"type":      "video_complete.analyzed",
				"analysis":  reply,
				"timestamp": unixSeconds(),
			}
			if err := conn.WriteJSON(out); err != nil {
				return
			}

		case "ping":
			if err := conn.WriteJSON(gin.H{"type": "pong", "timestamp": unixSeconds()}); err != nil {
				return
			}
		}
	}
}

func (h *Handler) analyzeFrame(ctx context.Context, frame streamFrame, prompt string) (string, error) {
	imageB64, err := h.encoder.EncodeImage(ctx, frame.Data, fmt.Sprintf("frame_%d.jpg", frame.ID))
	if err != nil {
		return "", err
	}
	return h.backend.Generate(ctx, llm.Request{
		Prompt:   prompt,
		ImageB64: []string{imageB64},
	})
}

func (h *Handler) analyzeVideo(ctx context.Context, streamID string, data []byte) (string, error) {
	if int64(len(data)) < h.cfg.MinVideoBytes {
		return videoTooSmallNotice, nil
	}
	videoB64, _, err := h.encoder.EncodeVideo(ctx, data, streamID+".mp4")
	if err != nil {
		return "", err
	}
	return h.backend.Generate(ctx, llm.Request{
		Prompt:   videoCommitPrompt,
		VideoB64: []string{videoB64},
	})
}

// HandleStatus reports live session activity.
func (h *Handler) HandleStatus(c *gin.Context) {
	store := h.manager.Store()
	status := gin.H{
		"status":          "active",
		"active_sessions": store.Len(),
		"sessions":        store.IDs(),
		"endpoints": gin.H{
			"multimodal":      "/ws/realtime",
			"video_streaming": "/ws/realtime/video",
		},
		"supported_modalities": []string{"text", "audio", "image", "video"},
		"video_features": gin.H{
			"buffer_support": true,
			"frame_by_frame": true,
			"complete_video": true,
			"streaming":      true,
		},
		"openai_compatible": true,
	}
	if count := h.manager.presence.Count(); count >= 0 {
		status["cluster_sessions"] = count
	}
	c.JSON(http.StatusOK, status)
}

func unixSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

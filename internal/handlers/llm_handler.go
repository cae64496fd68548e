package handlers

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xpanvictor/modality/internal/llm"
	"github.com/xpanvictor/modality/internal/media"
	"github.com/xpanvictor/modality/pkg/Logger"
)

// LLMHandler serves the invoke-* endpoints: media in, model analysis
// out. Uploads are transcoded to the backend wire formats before
// inference.
type LLMHandler struct {
	encoder media.Encoder
	backend llm.Client
	logger  *Logger.Logger
}

func NewLLMHandler(encoder media.Encoder, backend llm.Client, logger *Logger.Logger) *LLMHandler {
	return &LLMHandler{
		encoder: encoder,
		backend: backend,
		logger:  logger.Component("llm-api"),
	}
}

func (h *LLMHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api")
	{
		api.POST("/invoke-text", h.InvokeText)
		api.POST("/invoke-audio", h.InvokeAudio)
		api.POST("/invoke-image", h.InvokeImage)
		api.POST("/invoke-video", h.InvokeVideo)
		api.POST("/invoke-video-base64", h.InvokeVideoBase64)
		api.POST("/invoke-multimodal", h.InvokeMultimodal)
	}
}

// formPrompt reads the prompt and conversation_mode form fields,
// falling back to a per-modality default and the conversation variant.
func formPrompt(c *gin.Context, fallback, conversationPrompt string) (string, bool) {
	conversationMode, _ := strconv.ParseBool(c.PostForm("conversation_mode"))
	if conversationMode {
		return conversationPrompt, true
	}
	if prompt := c.PostForm("prompt"); prompt != "" {
		return prompt, false
	}
	return fallback, false
}

func (h *LLMHandler) InvokeText(c *gin.Context) {
	var req InvokeTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data")
		return
	}

	prompt := req.Text
	if req.Prompt != "" {
		prompt = req.Text + "\n\n" + req.Prompt
	}

	analysis, err := h.backend.Generate(c.Request.Context(), llm.Request{
		Prompt:           prompt,
		ConversationMode: req.ConversationMode,
	})
	if err != nil {
		h.logger.Errorw("text analysis failed", "error", err)
		processingFailed(c, "Text analysis")
		return
	}

	c.JSON(http.StatusOK, AnalysisResponse{
		Status:      "success",
		Message:     "Text analyzed successfully",
		ContentType: "text/plain",
		SizeBytes:   len(req.Text),
		Analysis:    analysis,
	})
}

func (h *LLMHandler) InvokeAudio(c *gin.Context) {
	data, filename, err := requireUpload(c, "audio", media.KindAudio)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	h.logger.Infow("audio analysis upload", "filename", filename, "bytes", len(data))

	audioB64, err := h.encoder.EncodeAudio(ctx, data, filename)
	if err != nil {
		h.logger.Errorw("audio analysis encode failed", "filename", filename, "error", err)
		processingFailed(c, "Audio analysis")
		return
	}

	prompt, conversationMode := formPrompt(c, llm.DefaultAudioPrompt, llm.ConversationAudioPrompt)
	analysis, err := h.backend.Generate(ctx, llm.Request{
		Prompt:           prompt,
		AudioB64:         []string{audioB64},
		ConversationMode: conversationMode,
	})
	if err != nil {
		h.logger.Errorw("audio analysis failed", "filename", filename, "error", err)
		processingFailed(c, "Audio analysis")
		return
	}

	c.JSON(http.StatusOK, TranscriptionResponse{
		Status:        "success",
		Message:       "Audio analyzed successfully",
		Transcription: analysis,
		SizeBytes:     len(data),
	})
}

func (h *LLMHandler) InvokeImage(c *gin.Context) {
	data, filename, err := requireUpload(c, "image", media.KindImage)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	h.logger.Infow("image analysis upload", "filename", filename, "bytes", len(data))

	imageB64, err := h.encoder.EncodeImage(ctx, data, filename)
	if err != nil {
		h.logger.Errorw("image analysis encode failed", "filename", filename, "error", err)
		processingFailed(c, "Image analysis")
		return
	}

	prompt, conversationMode := formPrompt(c, llm.DefaultImagePrompt, llm.ConversationImagePrompt)
	analysis, err := h.backend.Generate(ctx, llm.Request{
		Prompt:           prompt,
		ImageB64:         []string{imageB64},
		ConversationMode: conversationMode,
	})
	if err != nil {
		h.logger.Errorw("image analysis failed", "filename", filename, "error", err)
		processingFailed(c, "Image analysis")
		return
	}

	c.JSON(http.StatusOK, AnalysisResponse{
		Status:      "success",
		Message:     "Image analyzed successfully",
		ContentType: "image",
		SizeBytes:   len(data),
		Analysis:    analysis,
	})
}

func (h *LLMHandler) InvokeVideo(c *gin.Context) {
	data, filename, err := requireUpload(c, "video", media.KindVideo)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	h.analyzeVideo(c, data, filename, "Video analyzed successfully")
}

func (h *LLMHandler) InvokeVideoBase64(c *gin.Context) {
	var req InvokeVideoBase64Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data")
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.VideoB64)
	if err != nil {
		badRequest(c, "video_b64 is not valid base64")
		return
	}
	filename := req.Filename
	if filename == "" {
		filename = "upload.mp4"
	}

	// JSON requests carry their prompt inline rather than as form fields.
	ctx := c.Request.Context()
	videoB64, _, err := h.encoder.EncodeVideo(ctx, data, filename)
	if err != nil {
		h.logger.Errorw("base64 video encode failed", "filename", filename, "error", err)
		processingFailed(c, "Base64 video analysis")
		return
	}

	prompt := req.Prompt
	if req.ConversationMode {
		prompt = llm.ConversationVideoPrompt
	} else if prompt == "" {
		prompt = llm.DefaultVideoPrompt
	}

	analysis, err := h.backend.Generate(ctx, llm.Request{
		Prompt:           prompt,
		VideoB64:         []string{videoB64},
		ConversationMode: req.ConversationMode,
	})
	if err != nil {
		h.logger.Errorw("base64 video analysis failed", "filename", filename, "error", err)
		processingFailed(c, "Base64 video analysis")
		return
	}

	c.JSON(http.StatusOK, AnalysisResponse{
		Status:      "success",
		Message:     "Base64 video analyzed successfully",
		ContentType: "video",
		SizeBytes:   len(data),
		Analysis:    analysis,
	})
}

func (h *LLMHandler) analyzeVideo(c *gin.Context, data []byte, filename, successMsg string) {
	ctx := c.Request.Context()
	h.logger.Infow("video analysis upload", "filename", filename, "bytes", len(data))

	videoB64, info, err := h.encoder.EncodeVideo(ctx, data, filename)
	if err != nil {
		h.logger.Errorw("video analysis encode failed", "filename", filename, "error", err)
		processingFailed(c, "Video analysis")
		return
	}
	h.logger.Debugw("video encoded for analysis",
		"filename", filename, "size_mb", info.FileSizeMB, "duration_s", info.DurationSeconds)

	prompt, conversationMode := formPrompt(c, llm.DefaultVideoPrompt, llm.ConversationVideoPrompt)
	analysis, err := h.backend.Generate(ctx, llm.Request{
		Prompt:           prompt,
		VideoB64:         []string{videoB64},
		ConversationMode: conversationMode,
	})
	if err != nil {
		h.logger.Errorw("video analysis failed", "filename", filename, "error", err)
		processingFailed(c, "Video analysis")
		return
	}

	c.JSON(http.StatusOK, AnalysisResponse{
		Status:      "success",
		Message:     successMsg,
		ContentType: "video",
		SizeBytes:   len(data),
		Analysis:    analysis,
	})
}

// InvokeMultimodal accepts any combination of the three media fields
// plus a prompt and runs a single inference over all of them.
func (h *LLMHandler) InvokeMultimodal(c *gin.Context) {
	ctx := c.Request.Context()
	req := llm.Request{}
	var contentTypes []string
	var totalSize int

	if data, filename, present, err := readUpload(c, "audio", media.KindAudio); err != nil {
		badRequest(c, err.Error())
		return
	} else if present {
		b64, err := h.encoder.EncodeAudio(ctx, data, filename)
		if err != nil {
			h.logger.Errorw("multimodal audio encode failed", "filename", filename, "error", err)
			processingFailed(c, "Multimodal analysis")
			return
		}
		req.AudioB64 = append(req.AudioB64, b64)
		contentTypes = append(contentTypes, "audio")
		totalSize += len(data)
	}

	if data, filename, present, err := readUpload(c, "image", media.KindImage); err != nil {
		badRequest(c, err.Error())
		return
	} else if present {
		b64, err := h.encoder.EncodeImage(ctx, data, filename)
		if err != nil {
			h.logger.Errorw("multimodal image encode failed", "filename", filename, "error", err)
			processingFailed(c, "Multimodal analysis")
			return
		}
		req.ImageB64 = append(req.ImageB64, b64)
		contentTypes = append(contentTypes, "image")
		totalSize += len(data)
	}

	if data, filename, present, err := readUpload(c, "video", media.KindVideo); err != nil {
		badRequest(c, err.Error())
		return
	} else if present {
		b64, _, err := h.encoder.EncodeVideo(ctx, data, filename)
		if err != nil {
			h.logger.Errorw("multimodal video encode failed", "filename", filename, "error", err)
			processingFailed(c, "Multimodal analysis")
			return
		}
		req.VideoB64 = append(req.VideoB64, b64)
		contentTypes = append(contentTypes, "video")
		totalSize += len(data)
	}

	if len(contentTypes) == 0 {
		badRequest(c, "at least one of audio, image or video must be provided")
		return
	}

	prompt, conversationMode := formPrompt(c, llm.DefaultMultimodalPrompt, llm.ConversationMultimodalPrompt)
	req.Prompt = prompt
	req.ConversationMode = conversationMode

	analysis, err := h.backend.Generate(ctx, req)
	if err != nil {
		h.logger.Errorw("multimodal analysis failed", "content_types", contentTypes, "error", err)
		processingFailed(c, "Multimodal analysis")
		return
	}

	c.JSON(http.StatusOK, AnalysisResponse{
		Status:      "success",
		Message:     "Multimodal content analyzed successfully",
		ContentType: "multimodal",
		SizeBytes:   totalSize,
		Analysis:    analysis,
	})
}

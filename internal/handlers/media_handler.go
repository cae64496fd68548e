package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xpanvictor/modality/internal/media"
	"github.com/xpanvictor/modality/pkg/Logger"
)

// MediaHandler serves the pure encoding endpoints: upload in, base64
// wire format out, no inference involved.
type MediaHandler struct {
	encoder media.Encoder
	logger  *Logger.Logger
}

func NewMediaHandler(encoder media.Encoder, logger *Logger.Logger) *MediaHandler {
	return &MediaHandler{
		encoder: encoder,
		logger:  logger.Component("media-api"),
	}
}

func (h *MediaHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api")
	{
		api.POST("/encode-audio", h.EncodeAudio)
		api.POST("/encode-image", h.EncodeImage)
		api.POST("/encode-video", h.EncodeVideo)
		api.POST("/video-info", h.VideoInfo)
		api.POST("/encode-multimodal", h.EncodeMultimodal)
	}
}

func (h *MediaHandler) EncodeAudio(c *gin.Context) {
	data, filename, err := requireUpload(c, "audio", media.KindAudio)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	h.logger.Infow("audio encoding upload", "filename", filename, "bytes", len(data))

	audioB64, err := h.encoder.EncodeAudio(c.Request.Context(), data, filename)
	if err != nil {
		h.logger.Errorw("audio encoding failed", "filename", filename, "error", err)
		processingFailed(c, "Audio encoding")
		return
	}

	c.JSON(http.StatusOK, EncodeAudioResponse{
		Status:    "success",
		Message:   "Audio encoded successfully",
		AudioB64:  audioB64,
		SizeBytes: len(data),
	})
}

func (h *MediaHandler) EncodeImage(c *gin.Context) {
	data, filename, err := requireUpload(c, "image", media.KindImage)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	h.logger.Infow("image encoding upload", "filename", filename, "bytes", len(data))

	imageB64, err := h.encoder.EncodeImage(c.Request.Context(), data, filename)
	if err != nil {
		h.logger.Errorw("image encoding failed", "filename", filename, "error", err)
		processingFailed(c, "Image encoding")
		return
	}

	c.JSON(http.StatusOK, EncodeImageResponse{
		Status:    "success",
		Message:   "Image encoded successfully",
		ImageB64:  imageB64,
		SizeBytes: len(data),
	})
}

func (h *MediaHandler) EncodeVideo(c *gin.Context) {
	data, filename, err := requireUpload(c, "video", media.KindVideo)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	h.logger.Infow("video encoding upload", "filename", filename, "bytes", len(data))

	videoB64, info, err := h.encoder.EncodeVideo(c.Request.Context(), data, filename)
	if err != nil {
		h.logger.Errorw("video encoding failed", "filename", filename, "error", err)
		processingFailed(c, "Video encoding")
		return
	}

	c.JSON(http.StatusOK, EncodeVideoResponse{
		Status:    "success",
		Message:   "Video encoded successfully",
		VideoB64:  videoB64,
		VideoInfo: info,
		SizeBytes: len(data),
	})
}

func (h *MediaHandler) VideoInfo(c *gin.Context) {
	data, filename, err := requireUpload(c, "video", media.KindVideo)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	info, err := h.encoder.Probe(c.Request.Context(), data, filename)
	if err != nil {
		h.logger.Errorw("video probe failed", "filename", filename, "error", err)
		processingFailed(c, "Video info extraction")
		return
	}

	c.JSON(http.StatusOK, VideoInfoResponse{
		Status:    "success",
		Message:   "Video information extracted",
		VideoInfo: info,
		SizeBytes: len(data),
	})
}

// EncodeMultimodal accepts any combination of audio, image and video
// fields and encodes each that is present.
func (h *MediaHandler) EncodeMultimodal(c *gin.Context) {
	resp := EncodeMultimodalResponse{
		Status:  "success",
		Message: "Multimodal content encoded successfully",
	}
	ctx := c.Request.Context()

	if data, filename, present, err := readUpload(c, "audio", media.KindAudio); err != nil {
		badRequest(c, err.Error())
		return
	} else if present {
		b64, err := h.encoder.EncodeAudio(ctx, data, filename)
		if err != nil {
			h.logger.Errorw("multimodal audio encoding failed", "filename", filename, "error", err)
			processingFailed(c, "Audio encoding")
			return
		}
		resp.AudioB64 = b64
		resp.ContentTypes = append(resp.ContentTypes, "audio")
		resp.TotalSize += len(data)
	}

	if data, filename, present, err := readUpload(c, "image", media.KindImage); err != nil {
		badRequest(c, err.Error())
		return
	} else if present {
		b64, err := h.encoder.EncodeImage(ctx, data, filename)
		if err != nil {
			h.logger.Errorw("multimodal image encoding failed", "filename", filename, "error", err)
			processingFailed(c, "Image encoding")
			return
		}
		resp.ImageB64 = b64
		resp.ContentTypes = append(resp.ContentTypes, "image")
		resp.TotalSize += len(data)
	}

	if data, filename, present, err := readUpload(c, "video", media.KindVideo); err != nil {
		badRequest(c, err.Error())
		return
	} else if present {
		b64, _, err := h.encoder.EncodeVideo(ctx, data, filename)
		if err != nil {
			h.logger.Errorw("multimodal video encoding failed", "filename", filename, "error", err)
			processingFailed(c, "Video encoding")
			return
		}
		resp.VideoB64 = b64
		resp.ContentTypes = append(resp.ContentTypes, "video")
		resp.TotalSize += len(data)
	}

	if len(resp.ContentTypes) == 0 {
		badRequest(c, "at least one of audio, image or video must be provided")
		return
	}
	c.JSON(http.StatusOK, resp)
}

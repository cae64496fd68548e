package handlers

import (
	"github.com/xpanvictor/modality/internal/llm"
	"github.com/xpanvictor/modality/internal/media"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// EncodeAudioResponse is returned by the audio encoding endpoint.
type EncodeAudioResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	AudioB64  string `json:"audio_b64"`
	SizeBytes int    `json:"size_bytes"`
}

// EncodeImageResponse is returned by the image encoding endpoint.
type EncodeImageResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ImageB64  string `json:"image_b64"`
	SizeBytes int    `json:"size_bytes"`
}

// EncodeVideoResponse is returned by the video encoding endpoint.
type EncodeVideoResponse struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	VideoB64  string          `json:"video_b64"`
	VideoInfo media.VideoInfo `json:"video_info"`
	SizeBytes int             `json:"size_bytes"`
}

// VideoInfoResponse carries probe metadata without any transcoding.
type VideoInfoResponse struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	VideoInfo media.VideoInfo `json:"video_info"`
	SizeBytes int             `json:"size_bytes"`
}

// EncodeMultimodalResponse aggregates the per-kind encodings of one
// multipart upload batch.
type EncodeMultimodalResponse struct {
	Status       string   `json:"status"`
	Message      string   `json:"message"`
	AudioB64     string   `json:"audio_b64,omitempty"`
	ImageB64     string   `json:"image_b64,omitempty"`
	VideoB64     string   `json:"video_b64,omitempty"`
	ContentTypes []string `json:"content_types"`
	TotalSize    int      `json:"total_size"`
}

// AnalysisResponse is the shared shape of the invoke-* endpoints.
type AnalysisResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int    `json:"size_bytes"`
	Analysis    string `json:"analysis"`
}

// TranscriptionResponse is returned by the audio analysis endpoint,
// which reports its output as a transcription.
type TranscriptionResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	Transcription string `json:"transcription"`
	SizeBytes     int    `json:"size_bytes"`
}

// InvokeTextRequest is the JSON body of the text analysis endpoint.
type InvokeTextRequest struct {
	Text             string `json:"text" binding:"required"`
	Prompt           string `json:"prompt"`
	ConversationMode bool   `json:"conversation_mode"`
}

// InvokeVideoBase64Request is the JSON body of the base64 video
// analysis endpoint.
type InvokeVideoBase64Request struct {
	VideoB64         string `json:"video_b64" binding:"required"`
	Filename         string `json:"filename"`
	Prompt           string `json:"prompt"`
	ConversationMode bool   `json:"conversation_mode"`
}

// HealthResponse reports backend reachability configuration.
type HealthResponse struct {
	Status  string          `json:"status"`
	Backend string          `json:"backend"`
	Details llm.BackendInfo `json:"details"`
}

// StatusResponse reports coarse server state.
type StatusResponse struct {
	ServerStatus string `json:"server_status"`
	Message      string `json:"message"`
	Backend      string `json:"backend"`
}

// ConfigResponse exposes non-secret configuration for diagnostics.
type ConfigResponse struct {
	Backend      string `json:"backend"`
	Model        string `json:"model"`
	BackendURL   string `json:"backend_url,omitempty"`
	HasAPIKey    bool   `json:"has_api_key"`
	ArchiveReady bool   `json:"archive_ready"`
	Server       string `json:"server"`
}

// TranscriptListResponse wraps the archived session listing.
type TranscriptListResponse struct {
	Transcripts interface{} `json:"transcripts"`
	Count       int         `json:"count"`
}

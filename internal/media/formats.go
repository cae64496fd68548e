package media

import (
	"path/filepath"
	"strings"
)

// Kind names one media modality handled by the encoder.
type Kind string

const (
	KindAudio Kind = "audio"
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Extension allow-lists match what the Gemini API accepts. Audio covers
// a couple of extra container formats that ffmpeg converts first.
var (
	SupportedImageExts = map[string]bool{
		".png": true, ".jpeg": true, ".jpg": true, ".webp": true, ".heic": true, ".heif": true,
	}

	SupportedAudioExts = map[string]bool{
		".wav": true, ".mp3": true, ".aiff": true, ".aac": true, ".ogg": true, ".flac": true,
	}

	AdditionalAudioExts = map[string]bool{
		".webm": true, ".m4a": true,
	}

	SupportedVideoExts = map[string]bool{
		".mp4": true, ".mpeg": true, ".mov": true, ".avi": true, ".flv": true,
		".mpg": true, ".webm": true, ".wmv": true, ".3gp": true,
	}
)

// MIME type to extension mappings for web uploads.
var (
	AudioMIMEExts = map[string]string{
		"audio/webm": ".webm",
		"audio/wav":  ".wav",
		"audio/mp3":  ".mp3",
		"audio/mpeg": ".mp3",
		"audio/flac": ".flac",
		"audio/ogg":  ".ogg",
		"audio/m4a":  ".m4a",
		"audio/aac":  ".aac",
		"audio/aiff": ".aiff",
	}

	ImageMIMEExts = map[string]string{
		"image/png":  ".png",
		"image/jpeg": ".jpg",
		"image/jpg":  ".jpg",
		"image/webp": ".webp",
		"image/heic": ".heic",
		"image/heif": ".heif",
	}

	VideoMIMEExts = map[string]string{
		"video/mp4":   ".mp4",
		"video/mpeg":  ".mpeg",
		"video/mov":   ".mov",
		"video/avi":   ".avi",
		"video/x-flv": ".flv",
		"video/mpg":   ".mpg",
		"video/webm":  ".webm",
		"video/wmv":   ".wmv",
		"video/3gpp":  ".3gp",
	}
)

func lowerExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// IsImageSupported reports whether an image file extension is accepted.
func IsImageSupported(filename string) bool {
	return SupportedImageExts[lowerExt(filename)]
}

// IsAudioSupported reports whether an audio file extension is accepted,
// including formats that need conversion first.
func IsAudioSupported(filename string) bool {
	ext := lowerExt(filename)
	return SupportedAudioExts[ext] || AdditionalAudioExts[ext]
}

// IsVideoSupported reports whether a video file extension is accepted.
func IsVideoSupported(filename string) bool {
	return SupportedVideoExts[lowerExt(filename)]
}

// MIMEAllowed reports whether an upload's declared content type is a
// known one for the given kind. Unknown types are tolerated upstream
// with a warning; this only feeds that decision.
func MIMEAllowed(kind Kind, contentType string) bool {
	switch kind {
	case KindAudio:
		_, ok := AudioMIMEExts[contentType]
		return ok
	case KindImage:
		_, ok := ImageMIMEExts[contentType]
		return ok
	case KindVideo:
		_, ok := VideoMIMEExts[contentType]
		return ok
	}
	return false
}

// UploadExt picks the temp-file extension for an upload: the filename's
// own extension when present, otherwise a per-kind default.
func UploadExt(kind Kind, filename string) string {
	if ext := lowerExt(filename); ext != "" {
		return ext
	}
	switch kind {
	case KindAudio:
		return ".webm"
	case KindImage:
		return ".jpg"
	default:
		return ".mp4"
	}
}

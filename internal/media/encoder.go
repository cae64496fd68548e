package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xpanvictor/modality/internal/config"
	"github.com/xpanvictor/modality/pkg/Logger"
)

// Encoder turns raw uploaded media into the base64 form the inference
// backends accept. Implementations must be safe for repeated calls with
// the same input and must not retain state between calls.
type Encoder interface {
	// EncodeAudio converts any supported audio container to mono 32k
	// mp3 at 16 kHz and returns it base64-encoded.
	EncodeAudio(ctx context.Context, data []byte, filename string) (string, error)
	// EncodeImage validates the extension and base64-encodes as-is.
	EncodeImage(ctx context.Context, data []byte, filename string) (string, error)
	// EncodeVideo converts to an mp4 the backend accepts (h264/aac,
	// crf 28, fragmented moov) and reports size/duration of the input.
	EncodeVideo(ctx context.Context, data []byte, filename string) (string, VideoInfo, error)
	// EncodePCM frames raw pcm16 realtime audio as WAV, then encodes
	// it like any other audio input.
	EncodePCM(ctx context.Context, pcm []byte) (string, error)
	// Probe reports video info without transcoding.
	Probe(ctx context.Context, data []byte, filename string) (VideoInfo, error)
}

// VideoInfo is the ffprobe summary returned alongside encoded video.
type VideoInfo struct {
	FileSizeMB      float64 `json:"file_size_mb"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// EncodingError wraps an external conversion failure. The stderr detail
// stays server-side; clients only ever see a generic message.
type EncodingError struct {
	Op     string
	Detail string
	Err    error
}

func (e *EncodingError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("media %s failed: %v: %s", e.Op, e.Err, e.Detail)
	}
	return fmt.Sprintf("media %s failed: %v", e.Op, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// runner executes an external command; split out so tests can stub
// ffmpeg/ffprobe.
type runner interface {
	run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// FFmpeg shells out to the ffmpeg/ffprobe binaries for all transcoding.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	logger      *Logger.Logger
	runner      runner
}

// NewFFmpeg builds the production encoder using binaries from config.
func NewFFmpeg(cfg config.MediaConfig, logger *Logger.Logger) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  cfg.FFmpegPath,
		ffprobePath: cfg.FFprobePath,
		logger:      logger,
		runner:      execRunner{},
	}
}

// EncodeAudio implements Encoder.
func (f *FFmpeg) EncodeAudio(ctx context.Context, data []byte, filename string) (string, error) {
	in, cleanup, err := f.tempInput(data, UploadExt(KindAudio, filename))
	if err != nil {
		return "", &EncodingError{Op: "audio encode", Err: err}
	}
	defer cleanup()

	// Mono and a low bitrate: the backend downsamples to ~16 Kbps anyway.
	out, stderr, err := f.runner.run(ctx, f.ffmpegPath,
		"-v", "error", "-nostdin",
		"-i", in,
		"-f", "mp3", "-acodec", "libmp3lame",
		"-b:a", "32k", "-ac", "1", "-ar", "16000",
		"pipe:1",
	)
	if err != nil {
		f.logger.Errorf("ffmpeg audio conversion failed for %s: %v: %s", filename, err, stderr)
		return "", &EncodingError{Op: "audio encode", Detail: string(stderr), Err: err}
	}

	f.logger.Debugf("audio encoded: %s (%d bytes in, %d bytes out)", filename, len(data), len(out))
	return base64.StdEncoding.EncodeToString(out), nil
}

// EncodeImage implements Encoder.
func (f *FFmpeg) EncodeImage(_ context.Context, data []byte, filename string) (string, error) {
	if !IsImageSupported(filename) {
		return "", &EncodingError{
			Op:  "image encode",
			Err: fmt.Errorf("unsupported image format %q", lowerExt(filename)),
		}
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// EncodeVideo implements Encoder.
func (f *FFmpeg) EncodeVideo(ctx context.Context, data []byte, filename string) (string, VideoInfo, error) {
	in, cleanup, err := f.tempInput(data, UploadExt(KindVideo, filename))
	if err != nil {
		return "", VideoInfo{}, &EncodingError{Op: "video encode", Err: err}
	}
	defer cleanup()

	info := f.probeFile(ctx, in, int64(len(data)))

	out, stderr, err := f.runner.run(ctx, f.ffmpegPath,
		"-v", "error", "-nostdin",
		"-i", in,
		"-f", "mp4", "-c:v", "libx264", "-c:a", "aac",
		"-preset", "medium", "-crf", "28",
		"-movflags", "frag_keyframe+empty_moov",
		"pipe:1",
	)
	if err != nil {
		f.logger.Errorf("ffmpeg video conversion failed for %s: %v: %s", filename, err, stderr)
		return "", info, &EncodingError{Op: "video encode", Detail: string(stderr), Err: err}
	}

	f.logger.Debugf("video encoded: %s (%d bytes in, %d bytes out, %.2fs)",
		filename, len(data), len(out), info.DurationSeconds)
	return base64.StdEncoding.EncodeToString(out), info, nil
}

// EncodePCM implements Encoder.
func (f *FFmpeg) EncodePCM(ctx context.Context, pcm []byte) (string, error) {
	return f.EncodeAudio(ctx, pcmToWAV(pcm), "realtime.wav")
}

// Probe implements Encoder.
func (f *FFmpeg) Probe(ctx context.Context, data []byte, filename string) (VideoInfo, error) {
	in, cleanup, err := f.tempInput(data, UploadExt(KindVideo, filename))
	if err != nil {
		return VideoInfo{}, &EncodingError{Op: "video probe", Err: err}
	}
	defer cleanup()

	return f.probeFile(ctx, in, int64(len(data))), nil
}

// probeFile reports size/duration, tolerating probe failure: some
// containers won't report a duration and that is not fatal.
func (f *FFmpeg) probeFile(ctx context.Context, path string, sizeBytes int64) VideoInfo {
	info := VideoInfo{FileSizeMB: float64(sizeBytes) / (1024 * 1024)}

	out, stderr, err := f.runner.run(ctx, f.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		f.logger.Warnf("ffprobe failed for %s: %v: %s", path, err, stderr)
		return info
	}

	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		f.logger.Warnf("could not parse ffprobe duration %q: %v", out, err)
		return info
	}
	info.DurationSeconds = dur
	return info
}

// tempInput writes the upload to a temp file ffmpeg can read and
// returns its path with a cleanup func.
func (f *FFmpeg) tempInput(data []byte, ext string) (string, func(), error) {
	tmp, err := os.CreateTemp("", "modality-*"+ext)
	if err != nil {
		return "", nil, err
	}
	path := tmp.Name()
	cleanup := func() { os.Remove(path) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

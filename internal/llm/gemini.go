package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/xpanvictor/modality/internal/config"
	"github.com/xpanvictor/modality/pkg/Logger"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/"

// MIME types the encoder normalizes everything to.
const (
	mimeAudio = "audio/mp3"
	mimeImage = "image/png"
	mimeVideo = "video/mp4"
)

// GeminiClient is the hosted Gemini backend, the primary one.
type GeminiClient struct {
	client *genai.Client
	model  string
	hasKey bool
	logger *Logger.Logger
}

func NewGemini(ctx context.Context, cfg config.GeminiConfig, logger *Logger.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is not configured")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("gemini model is not configured")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini API client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  cfg.Model,
		hasKey: true,
		logger: logger,
	}, nil
}

// Generate implements Client.
func (g *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	if err := validate("gemini", req); err != nil {
		return "", err
	}

	parts, err := buildGeminiParts(req)
	if err != nil {
		return "", &InferenceError{Kind: KindRejected, Backend: "gemini", Err: err}
	}

	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(float32(req.temperature()))
	model.SetTopP(defaultTopP)
	model.SetMaxOutputTokens(int32(req.maxOutputTokens()))

	g.logger.Infof("gemini request: %s", summarize(req))
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", g.classify(err)
	}

	text := collectGeminiText(resp)
	if text == "" {
		g.logger.Errorf("gemini returned an empty response")
		return emptyResponseFallback, nil
	}
	g.logger.Infof("gemini response received: %d chars", len(text))
	return text, nil
}

// Info implements Client.
func (g *GeminiClient) Info() BackendInfo {
	return BackendInfo{
		Backend:        "gemini",
		Model:          g.model,
		URL:            geminiEndpoint,
		Local:          false,
		APIKeyRequired: true,
		HasAPIKey:      g.hasKey,
	}
}

// buildGeminiParts orders media before text; the model grounds better
// when the instruction comes last.
func buildGeminiParts(req Request) ([]genai.Part, error) {
	parts := make([]genai.Part, 0, len(req.AudioB64)+len(req.ImageB64)+len(req.VideoB64)+1)

	appendBlobs := func(items []string, mime string) error {
		for _, b64 := range items {
			data, err := base64.StdEncoding.DecodeString(b64)
			if err != nil {
				return fmt.Errorf("invalid base64 %s payload: %w", mime, err)
			}
			parts = append(parts, genai.Blob{MIMEType: mime, Data: data})
		}
		return nil
	}

	if err := appendBlobs(req.ImageB64, mimeImage); err != nil {
		return nil, err
	}
	if err := appendBlobs(req.AudioB64, mimeAudio); err != nil {
		return nil, err
	}
	if err := appendBlobs(req.VideoB64, mimeVideo); err != nil {
		return nil, err
	}

	if prompt := req.EffectivePrompt(); prompt != "" {
		parts = append(parts, genai.Text(prompt))
	}
	return parts, nil
}

func collectGeminiText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return b.String()
}

func (g *GeminiClient) classify(err error) error {
	kind := KindUnreachable

	var apiErr *googleapi.Error
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case errors.As(err, &apiErr):
		// the backend answered; it just didn't like the request
		kind = KindRejected
	}

	g.logger.Errorf("gemini request failed (%s): %v", kind, err)
	return &InferenceError{Kind: kind, Backend: "gemini", Err: err}
}

func summarize(req Request) string {
	var fields []string
	if req.Prompt != "" {
		fields = append(fields, fmt.Sprintf("text(%d chars)", len(req.Prompt)))
	}
	if n := len(req.AudioB64); n > 0 {
		fields = append(fields, fmt.Sprintf("audio(%d)", n))
	}
	if n := len(req.ImageB64); n > 0 {
		fields = append(fields, fmt.Sprintf("image(%d)", n))
	}
	if n := len(req.VideoB64); n > 0 {
		fields = append(fields, fmt.Sprintf("video(%d)", n))
	}
	return strings.Join(fields, ", ")
}

package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/xpanvictor/modality/internal/config"
	"github.com/xpanvictor/modality/pkg/Logger"
)

// OllamaClient targets a local Ollama daemon running a vision model.
// Only text and image inputs map onto its chat API.
type OllamaClient struct {
	client *api.Client
	model  string
	url    string
	logger *Logger.Logger
}

func NewOllama(cfg config.OllamaConfig, logger *Logger.Logger) (*OllamaClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("ollama URL is not configured")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model is not configured")
	}

	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL: %w", err)
	}

	return &OllamaClient{
		client: api.NewClient(base, http.DefaultClient),
		model:  cfg.Model,
		url:    cfg.URL,
		logger: logger,
	}, nil
}

// Generate implements Client.
func (o *OllamaClient) Generate(ctx context.Context, req Request) (string, error) {
	if err := validate("ollama", req); err != nil {
		return "", err
	}
	if len(req.AudioB64) > 0 || len(req.VideoB64) > 0 {
		return "", &InferenceError{
			Kind:    KindRejected,
			Backend: "ollama",
			Err:     errors.New("only text and image inputs are supported by this backend"),
		}
	}

	images := make([]api.ImageData, 0, len(req.ImageB64))
	for _, b64 := range req.ImageB64 {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return "", &InferenceError{
				Kind:    KindRejected,
				Backend: "ollama",
				Err:     fmt.Errorf("invalid base64 image payload: %w", err),
			}
		}
		images = append(images, api.ImageData(data))
	}

	stream := false
	chatReq := api.ChatRequest{
		Model: o.model,
		Messages: []api.Message{{
			Role:    "user",
			Content: req.EffectivePrompt(),
			Images:  images,
		}},
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature": req.temperature(),
			"num_predict": req.maxOutputTokens(),
		},
	}

	o.logger.Infof("ollama request: %s", summarize(req))
	var b strings.Builder
	err := o.client.Chat(ctx, &chatReq, func(resp api.ChatResponse) error {
		b.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", o.classify(err)
	}

	if b.Len() == 0 {
		o.logger.Errorf("ollama returned an empty response")
		return emptyResponseFallback, nil
	}
	return b.String(), nil
}

// Info implements Client.
func (o *OllamaClient) Info() BackendInfo {
	return BackendInfo{
		Backend:        "ollama",
		Model:          o.model,
		URL:            o.url,
		Local:          true,
		APIKeyRequired: false,
		HasAPIKey:      false,
	}
}

func (o *OllamaClient) classify(err error) error {
	kind := KindUnreachable

	var netErr net.Error
	var statusErr api.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case errors.As(err, &statusErr):
		kind = KindRejected
	}

	o.logger.Errorf("ollama request failed (%s): %v", kind, err)
	return &InferenceError{Kind: kind, Backend: "ollama", Err: err}
}

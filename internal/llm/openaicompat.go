package llm

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/xpanvictor/modality/internal/config"
	"github.com/xpanvictor/modality/pkg/Logger"
)

// OpenAICompatClient speaks the OpenAI chat-completions dialect against
// any compatible server; in practice this is a local llama-server
// running a multimodal GGUF model. Video input is not part of that
// dialect.
type OpenAICompatClient struct {
	client  openai.Client
	model   string
	baseURL string
	hasKey  bool
	logger  *Logger.Logger
}

func NewOpenAICompat(cfg config.OpenAICompatConfig, logger *Logger.Logger) (*OpenAICompatClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai_compat base URL is not configured")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai_compat model is not configured")
	}

	// local servers don't check the key, but the SDK wants one
	key := cfg.APIKey
	if key == "" {
		key = "dummy-key"
	}

	return &OpenAICompatClient{
		client:  openai.NewClient(option.WithAPIKey(key), option.WithBaseURL(cfg.BaseURL)),
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
		hasKey:  cfg.APIKey != "",
		logger:  logger,
	}, nil
}

// Generate implements Client.
func (o *OpenAICompatClient) Generate(ctx context.Context, req Request) (string, error) {
	if err := validate("openai_compat", req); err != nil {
		return "", err
	}
	if len(req.VideoB64) > 0 {
		return "", &InferenceError{
			Kind:    KindRejected,
			Backend: "openai_compat",
			Err:     errors.New("video input is not supported by this backend"),
		}
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, 4)
	if prompt := req.EffectivePrompt(); prompt != "" {
		parts = append(parts, openai.TextContentPart(prompt))
	}
	for _, img := range req.ImageB64 {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: "data:image/png;base64," + img,
		}))
	}
	for _, aud := range req.AudioB64 {
		parts = append(parts, openai.InputAudioContentPart(openai.ChatCompletionContentPartInputAudioInputAudioParam{
			Data:   aud,
			Format: "mp3",
		}))
	}

	o.logger.Infof("openai_compat request: %s", summarize(req))
	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
		Model:       o.model,
		Temperature: openai.Float(req.temperature()),
		MaxTokens:   openai.Int(int64(req.maxOutputTokens())),
	})
	if err != nil {
		return "", o.classify(err)
	}

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		o.logger.Errorf("openai_compat returned an empty response")
		return emptyResponseFallback, nil
	}
	return completion.Choices[0].Message.Content, nil
}

// Info implements Client.
func (o *OpenAICompatClient) Info() BackendInfo {
	return BackendInfo{
		Backend:        "openai_compat",
		Model:          o.model,
		URL:            o.baseURL,
		Local:          true,
		APIKeyRequired: false,
		HasAPIKey:      o.hasKey,
	}
}

func (o *OpenAICompatClient) classify(err error) error {
	kind := KindUnreachable

	var apiErr *openai.Error
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case errors.As(err, &apiErr):
		kind = KindRejected
	}

	o.logger.Errorf("openai_compat request failed (%s): %v", kind, err)
	return &InferenceError{Kind: kind, Backend: "openai_compat", Err: err}
}

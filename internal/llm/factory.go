package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/xpanvictor/modality/internal/config"
	"github.com/xpanvictor/modality/pkg/Logger"
)

// New selects and builds the configured inference backend, wrapped with
// the per-call timeout ceiling. Unbounded external latency would pin
// live connections, so every Generate call gets a deadline.
func New(ctx context.Context, cfg config.LLMConfig, logger *Logger.Logger) (Client, error) {
	var (
		client Client
		err    error
	)

	switch cfg.Backend {
	case "gemini":
		client, err = NewGemini(ctx, cfg.Gemini, logger)
	case "openai_compat":
		client, err = NewOpenAICompat(cfg.OpenAICompat, logger)
	case "ollama":
		client, err = NewOllama(cfg.Ollama, logger)
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	logger.Infof("llm backend initialized: %s (%s)", cfg.Backend, client.Info().Model)
	return &timeoutClient{inner: client, ceiling: cfg.CallTimeout()}, nil
}

// timeoutClient bounds every call; a deadline blown here surfaces as a
// KindTimeout inference error from the backend's classifier.
type timeoutClient struct {
	inner   Client
	ceiling time.Duration
}

func (t *timeoutClient) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.ceiling)
	defer cancel()
	return t.inner.Generate(ctx, req)
}

func (t *timeoutClient) Info() BackendInfo {
	return t.inner.Info()
}

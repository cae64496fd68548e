package llm

import (
	"context"
	"errors"
	"fmt"
)

// Default generation parameters, matching what the hosted backend is
// tuned for. Conversation mode trades depth for one-sentence replies.
const (
	defaultTemperature       = 0.7
	defaultTopP              = 0.95
	defaultMaxOutputTokens   = 8192
	conversationOutputTokens = 150
)

// emptyResponseFallback is returned when a backend produces no text at
// all; clients always get something renderable.
const emptyResponseFallback = "I apologize, but I couldn't generate a response. Please try again."

// ErrorKind classifies inference failures for dispatch decisions.
type ErrorKind int

const (
	KindNoInput ErrorKind = iota
	KindUnreachable
	KindRejected
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindNoInput:
		return "no_input"
	case KindUnreachable:
		return "unreachable"
	case KindRejected:
		return "rejected"
	case KindTimeout:
		return "timeout"
	}
	return "unknown"
}

// InferenceError wraps a backend failure with its classification. The
// wrapped detail is for server logs only.
type InferenceError struct {
	Kind    ErrorKind
	Backend string
	Err     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference %s (%s): %v", e.Kind, e.Backend, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// AsInferenceError pulls an *InferenceError out of a wrapped chain.
func AsInferenceError(err error) (*InferenceError, bool) {
	var infErr *InferenceError
	ok := errors.As(err, &infErr)
	return infErr, ok
}

// Request is one inference call: an optional prompt plus zero or more
// base64-encoded media items, already normalized by the media encoder.
type Request struct {
	Prompt   string
	AudioB64 []string
	ImageB64 []string
	VideoB64 []string

	// Temperature and MaxOutputTokens override the defaults when > 0.
	Temperature     float64
	MaxOutputTokens int

	// ConversationMode asks for brief single-sentence output.
	ConversationMode bool
}

// Empty reports whether the request carries no input at all.
func (r Request) Empty() bool {
	return r.Prompt == "" && len(r.AudioB64) == 0 && len(r.ImageB64) == 0 && len(r.VideoB64) == 0
}

// EffectivePrompt is the prompt actually sent, with the brevity suffix
// applied in conversation mode.
func (r Request) EffectivePrompt() string {
	if r.ConversationMode && r.Prompt != "" {
		return r.Prompt + ConversationTextSuffix
	}
	return r.Prompt
}

func (r Request) temperature() float64 {
	if r.Temperature > 0 {
		return r.Temperature
	}
	return defaultTemperature
}

func (r Request) maxOutputTokens() int {
	if r.MaxOutputTokens > 0 {
		return r.MaxOutputTokens
	}
	if r.ConversationMode {
		return conversationOutputTokens
	}
	return defaultMaxOutputTokens
}

// validate rejects empty requests before any network call is made.
func validate(backend string, r Request) error {
	if r.Empty() {
		return &InferenceError{
			Kind:    KindNoInput,
			Backend: backend,
			Err:     errors.New("at least one input must be provided"),
		}
	}
	return nil
}

// BackendInfo describes the configured backend for status endpoints.
// It never carries the key itself, only whether one is present.
type BackendInfo struct {
	Backend        string `json:"backend"`
	Model          string `json:"model"`
	URL            string `json:"url,omitempty"`
	Local          bool   `json:"local"`
	APIKeyRequired bool   `json:"api_key_required"`
	HasAPIKey      bool   `json:"has_api_key"`
}

// Client is the inference collaborator: prompt plus encoded media in,
// generated text out. Implementations must fail fast on unreachable
// backends rather than hang.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
	Info() BackendInfo
}

package realtime

// SessionConfig is the per-session configuration clients control via
// session.update. Updates replace the whole struct: fields a partial
// payload omits fall back to these defaults, not to their previous
// values.
type SessionConfig struct {
	Modalities              []string `json:"modalities"`
	Instructions            string   `json:"instructions,omitempty"`
	Voice                   string   `json:"voice,omitempty"`
	InputAudioFormat        string   `json:"input_audio_format"`
	OutputAudioFormat       string   `json:"output_audio_format"`
	Temperature             float64  `json:"temperature"`
	MaxResponseOutputTokens int      `json:"max_response_output_tokens,omitempty"`
}

// DefaultSessionConfig is the state of a freshly created session.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Modalities:        []string{"text"},
		Voice:             "alloy",
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
		Temperature:       0.6,
	}
}

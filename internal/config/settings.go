package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
}

func (d DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Name)
}

// Enabled reports whether a database was configured at all. The
// conversation archive is skipped entirely when it wasn't.
func (d DBConfig) Enabled() bool {
	return d.Host != ""
}

type RedisConfig struct {
	Addr string `mapstructure:"addr"`
	Pass string `mapstructure:"pass"`
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenAICompatConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

type OllamaConfig struct {
	URL   string `mapstructure:"url"`
	Model string `mapstructure:"model"`
}

type LLMConfig struct {
	// Backend selects the inference provider: gemini, openai_compat or ollama.
	Backend         string             `mapstructure:"backend"`
	CallTimeoutSecs int                `mapstructure:"call_timeout_secs"`
	Gemini          GeminiConfig       `mapstructure:"gemini"`
	OpenAICompat    OpenAICompatConfig `mapstructure:"openai_compat"`
	Ollama          OllamaConfig       `mapstructure:"ollama"`
}

func (l LLMConfig) CallTimeout() time.Duration {
	if l.CallTimeoutSecs <= 0 {
		return 45 * time.Second
	}
	return time.Duration(l.CallTimeoutSecs) * time.Second
}

type MediaConfig struct {
	FFmpegPath  string `mapstructure:"ffmpeg_path"`
	FFprobePath string `mapstructure:"ffprobe_path"`
}

type RealtimeConfig struct {
	// MaxBufferBytes caps each per-modality session buffer.
	MaxBufferBytes int64 `mapstructure:"max_buffer_bytes"`
	// MinVideoBytes is the smallest video commit worth sending to the
	// backend; Gemini rejects tiny chunks.
	MinVideoBytes   int64 `mapstructure:"min_video_bytes"`
	PresenceTTLMins int   `mapstructure:"presence_ttl_mins"`
	FrameRingBytes  int   `mapstructure:"frame_ring_bytes"`
}

func (r RealtimeConfig) PresenceTTL() time.Duration {
	if r.PresenceTTLMins <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(r.PresenceTTLMins) * time.Minute
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type Settings struct {
	Server   ServerConfig   `mapstructure:"server"`
	DB       DBConfig       `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Media    MediaConfig    `mapstructure:"media"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Env      string         `mapstructure:"env"`
	Debug    bool           `mapstructure:"debug" default:"false"`
}

func Load() (*Settings, error) {
	viper.SetConfigName("config_" + genEnv())
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 3030)
	viper.SetDefault("llm.backend", "gemini")
	viper.SetDefault("media.ffmpeg_path", "ffmpeg")
	viper.SetDefault("media.ffprobe_path", "ffprobe")
	viper.SetDefault("realtime.max_buffer_bytes", 32<<20)
	viper.SetDefault("realtime.min_video_bytes", 100<<10)
	viper.SetDefault("realtime.frame_ring_bytes", 4<<20)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var settings Settings
	if err := viper.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &settings, nil
}

func genEnv() string {
	env := viper.GetString("ENV")
	if env == "" {
		return "dev"
	}
	return env
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds runtime configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	DB     DBConfig     `yaml:"database"`
	Auth   AuthConfig   `yaml:"auth"`
	OpenAI OpenAIConfig `yaml:"openai"`
	TTS    TTSConfig    `yaml:"tts"`
	Sheet  SheetConfig  `yaml:"sheet"`
	CORS   CORSConfig   `yaml:"cors"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `yaml:"port"             env:"PORT"                    env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"150s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	// GatewayTimeout bounds a single /chat, /tts or /sheet call including all upstream requests.
	GatewayTimeout time.Duration `yaml:"gateway_timeout" env:"GATEWAY_TIMEOUT" env-default:"120s"`
}

// DBConfig holds PostgreSQL settings.
type DBConfig struct {
	DSN string `yaml:"dsn" env:"DB_DSN" env-required:"true"`
}

// AuthConfig holds bearer token validation settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET" env-required:"true"`
	// JWTIssuer is checked only when set.
	JWTIssuer string `yaml:"jwt_issuer" env:"AUTH_JWT_ISSUER"`
}

// OpenAIConfig holds completion and speech provider settings.
type OpenAIConfig struct {
	APIKey      string  `yaml:"api_key"      env:"OPENAI_API_KEY"`
	BaseURL     string  `yaml:"base_url"     env:"OPENAI_BASE_URL"`
	ChatModel   string  `yaml:"chat_model"   env:"OPENAI_CHAT_MODEL"   env-default:"gpt-4.1"`
	SpeechModel string  `yaml:"speech_model" env:"OPENAI_SPEECH_MODEL" env-default:"gpt-4o-mini-tts"`
	SpeechSpeed float64 `yaml:"speech_speed" env:"OPENAI_SPEECH_SPEED" env-default:"0.9"`
}

// TTSConfig selects the speech provider.
type TTSConfig struct {
	Provider         string `yaml:"provider"           env:"TTS_PROVIDER"        env-default:"openai"`
	ElevenLabsAPIKey string `yaml:"elevenlabs_api_key" env:"ELEVENLABS_API_KEY"`
	ElevenLabsVoice  string `yaml:"elevenlabs_voice"   env:"ELEVENLABS_VOICE_ID"`
}

// SheetConfig points at the published spreadsheet export.
type SheetConfig struct {
	ID  string `yaml:"id"  env:"SHEET_ID"`
	URL string `yaml:"url" env:"SHEET_CSV_URL"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// CSVURL returns the export URL for the configured sheet.
func (c SheetConfig) CSVURL() string {
	if c.URL != "" {
		return c.URL
	}
	if c.ID == "" {
		return ""
	}
	return "https://docs.google.com/spreadsheets/d/" + c.ID + "/export?format=csv"
}

// Origins splits the comma-separated origin list.
func (c CORSConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// UseStubs reports whether the development stub clients should replace the real providers.
func (c Config) UseStubs() bool {
	return c.OpenAI.APIKey == ""
}

// Load reads configuration from an optional YAML file (CONFIG_PATH) and the environment,
// then validates required values.
func Load() (Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.TTS.Provider {
	case "openai":
	case "elevenlabs":
		if c.TTS.ElevenLabsAPIKey == "" || c.TTS.ElevenLabsVoice == "" {
			return errors.New("ELEVENLABS_API_KEY and ELEVENLABS_VOICE_ID are required for the elevenlabs provider")
		}
	default:
		return fmt.Errorf("unknown TTS_PROVIDER %q", c.TTS.Provider)
	}
	if c.OpenAI.SpeechSpeed < 0.25 || c.OpenAI.SpeechSpeed > 4 {
		return fmt.Errorf("OPENAI_SPEECH_SPEED must be within [0.25, 4], got %v", c.OpenAI.SpeechSpeed)
	}
	if c.Server.GatewayTimeout <= 0 {
		return errors.New("GATEWAY_TIMEOUT must be positive")
	}
	return nil
}

// ClientConfig holds settings of the terminal chat client.
type ClientConfig struct {
	ServerURL string `yaml:"server_url" env:"STORYCHAT_URL"   env-default:"http://localhost:8080"`
	Token     string `yaml:"token"      env:"STORYCHAT_TOKEN"`
	UILang    string `yaml:"ui_lang"    env:"STORYCHAT_UI_LANG" env-default:"en"`
	// SpeechLanguage overrides the speech language derived from UILang.
	SpeechLanguage string `yaml:"speech_language" env:"STORYCHAT_SPEECH_LANGUAGE"`
	// Player is the command clips are handed to; empty disables playback.
	Player   string    `yaml:"player"    env:"STORYCHAT_PLAYER"    env-default:"mpg123 -q"`
	AudioDir string    `yaml:"audio_dir" env:"STORYCHAT_AUDIO_DIR"`
	Log      LogConfig `yaml:"log"`
}

// LoadClient reads the client configuration the same way Load does.
func LoadClient() (ClientConfig, error) {
	var cfg ClientConfig

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return ClientConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("read env: %w", err)
	}

	if !strings.HasPrefix(cfg.ServerURL, "http://") && !strings.HasPrefix(cfg.ServerURL, "https://") {
		return ClientConfig{}, fmt.Errorf("STORYCHAT_URL must be an http(s) URL, got %q", cfg.ServerURL)
	}
	return cfg, nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"

	// Filesystem layout
	DataDir   string // JSON file store (used when DATABASE_URL is empty)
	AssetsDir string // images/, videos/, audio/
	RenderDir string // finished renders
	WorkDir   string // per-render scratch workspaces

	// Database (empty = JSON file store under DataDir)
	DatabaseURL string

	// Redis (empty = in-process queue)
	RedisURL      string
	RedisQueueKey string

	// Supabase (optional publication of finished renders)
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// OpenAI (script drafting, optional TTS)
	OpenAIKey   string
	OpenAIModel string

	// Gemini (image generation)
	GeminiKey   string
	ImagenModel string

	// ElevenLabs (preferred TTS provider)
	ElevenLabsKey     string
	ElevenLabsVoiceID string

	// Narration
	TTSProvider       string // "elevenlabs" or "openai"
	DefaultVoice      string
	NarrationTruncate bool

	// Render
	CollaboratorTimeout      time.Duration
	RenderPrepareConcurrency int
	TemplatesPath            string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:                  getEnv("API_PORT", "8080"),
		WorkerEnabled:            getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:            getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:       getEnv("CORS_ALLOWED_ORIGINS", ""),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		LogFormat:                getEnv("LOG_FORMAT", "text"),
		DataDir:                  getEnv("DATA_DIR", "data"),
		AssetsDir:                getEnv("ASSETS_DIR", "assets"),
		RenderDir:                getEnv("RENDER_DIR", "rendered"),
		WorkDir:                  getEnv("WORK_DIR", "/tmp/reelsmith"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		RedisURL:                 getEnv("REDIS_URL", ""),
		RedisQueueKey:            getEnv("REDIS_QUEUE_KEY", "reelsmith:render_jobs"),
		SupabaseURL:              getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:       getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket:    getEnv("SUPABASE_STORAGE_BUCKET", "reelsmith-renders"),
		OpenAIKey:                getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:              getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiKey:                getEnv("GEMINI_API_KEY", ""),
		ImagenModel:              getEnv("IMAGEN_MODEL", "imagen-4.0-generate-001"),
		ElevenLabsKey:            getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:        getEnv("ELEVENLABS_VOICE_ID", ""),
		TTSProvider:              strings.ToLower(getEnv("TTS_PROVIDER", "")),
		DefaultVoice:             getEnv("DEFAULT_VOICE", ""),
		NarrationTruncate:        getEnvBool("NARRATION_TRUNCATE", true),
		CollaboratorTimeout:      time.Duration(getEnvInt("COLLABORATOR_TIMEOUT_SEC", 30)) * time.Second,
		RenderPrepareConcurrency: getEnvInt("RENDER_PREPARE_CONCURRENCY", 1),
		TemplatesPath:            getEnv("TEMPLATES_PATH", ""),
	}

	// Pick a TTS provider from whichever key is present
	if cfg.TTSProvider == "" {
		switch {
		case cfg.ElevenLabsKey != "":
			cfg.TTSProvider = "elevenlabs"
		case cfg.OpenAIKey != "":
			cfg.TTSProvider = "openai"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.TTSProvider {
	case "", "elevenlabs", "openai":
	default:
		return fmt.Errorf("TTS_PROVIDER must be elevenlabs or openai, got %q", c.TTSProvider)
	}

	if c.TTSProvider == "elevenlabs" && c.ElevenLabsKey == "" {
		return fmt.Errorf("ELEVENLABS_API_KEY is required when TTS_PROVIDER=elevenlabs")
	}

	if c.TTSProvider == "openai" && c.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when TTS_PROVIDER=openai")
	}

	if c.RenderPrepareConcurrency < 1 {
		return fmt.Errorf("RENDER_PREPARE_CONCURRENCY must be at least 1, got %d", c.RenderPrepareConcurrency)
	}

	if c.CollaboratorTimeout <= 0 {
		return fmt.Errorf("COLLABORATOR_TIMEOUT_SEC must be positive")
	}

	if (c.SupabaseURL == "") != (c.SupabaseServiceKey == "") {
		return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY must be set together")
	}

	return nil
}

// NarrationEnabled reports whether a TTS provider is configured.
func (c *Config) NarrationEnabled() bool {
	return c.TTSProvider != ""
}

// PublishEnabled reports whether finished renders are uploaded to Supabase.
func (c *Config) PublishEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

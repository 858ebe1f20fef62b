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
	Server  ServerConfig
	Gemini  GeminiConfig
	OpenAI  OpenAIConfig
	Video   VideoConfig
	Session SessionConfig
	Store   StoreConfig
	Redis   RedisConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Addr           string
	PublicBaseURL  string
	AllowedOrigins []string
}

type GeminiConfig struct {
	APIKey        string
	BaseURL       string
	AnalysisModel string
	VideoModel    string
}

type OpenAIConfig struct {
	APIKey         string
	Model          string
	EnableFallback bool
}

type VideoConfig struct {
	PollInterval time.Duration
	MaxWait      time.Duration
	Resolution   string
	FetchTimeout time.Duration
}

// JobTimeout bounds a whole video job: the poll wait plus margin for submit
// and fetch. It is zero when MaxWait is zero.
func (v VideoConfig) JobTimeout(margin time.Duration) time.Duration {
	if v.MaxWait <= 0 {
		return 0
	}
	return v.MaxWait + v.FetchTimeout + margin
}

type SessionConfig struct {
	TTL           time.Duration
	SweepSchedule string
}

type StoreConfig struct {
	Backend string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LoggingConfig struct {
	Level string
	File  string
}

const (
	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"
)

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:           getEnv("HTTP_ADDR", ":8080"),
			PublicBaseURL:  strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", ""), "/"),
			AllowedOrigins: parseCommaSeparated(getEnv("ALLOWED_ORIGINS", "*")),
		},
		Gemini: GeminiConfig{
			APIKey:        getEnv("GEMINI_API_KEY", getEnv("API_KEY", "")),
			BaseURL:       getEnv("GEMINI_BASE_URL", ""),
			AnalysisModel: getEnv("GEMINI_ANALYSIS_MODEL", "gemini-3-pro-preview"),
			VideoModel:    getEnv("GEMINI_VIDEO_MODEL", "veo-3.1-fast-generate-preview"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-4.1-mini"),
			EnableFallback: getEnvBool("OPENAI_ENABLE_FALLBACK", true),
		},
		Video: VideoConfig{
			PollInterval: time.Duration(getEnvInt("VIDEO_POLL_INTERVAL_SECONDS", 5)) * time.Second,
			MaxWait:      time.Duration(getEnvInt("VIDEO_MAX_WAIT_MINUTES", 15)) * time.Minute,
			Resolution:   getEnv("VIDEO_RESOLUTION", "720p"),
			FetchTimeout: time.Duration(getEnvInt("VIDEO_FETCH_TIMEOUT_SECONDS", 120)) * time.Second,
		},
		Session: SessionConfig{
			TTL:           time.Duration(getEnvInt("SESSION_TTL_MINUTES", 120)) * time.Minute,
			SweepSchedule: getEnv("SWEEP_SCHEDULE", "@every 5m"),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", StoreBackendMemory)),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks invariants. A missing Gemini key is allowed: the key can be
// supplied at runtime through the key-selection endpoint.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.Gemini.AnalysisModel == "" {
		return fmt.Errorf("GEMINI_ANALYSIS_MODEL is required")
	}
	if c.Gemini.VideoModel == "" {
		return fmt.Errorf("GEMINI_VIDEO_MODEL is required")
	}
	if c.Video.PollInterval <= 0 {
		return fmt.Errorf("VIDEO_POLL_INTERVAL_SECONDS must be positive")
	}
	if c.Video.MaxWait < 0 {
		return fmt.Errorf("VIDEO_MAX_WAIT_MINUTES must not be negative")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be positive")
	}
	switch c.Store.Backend {
	case StoreBackendMemory, StoreBackendRedis:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreBackendMemory, StoreBackendRedis, c.Store.Backend)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func parseCommaSeparated(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

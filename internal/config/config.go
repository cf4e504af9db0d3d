package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the chat backend.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	LogLevel         string

	AllowAnyOrigin bool

	DatabaseURL string
	SQLitePath  string

	SessionFreshnessWindow time.Duration
	SessionEvictionWindow  time.Duration
	HistoryContextLimit    int

	GeneratorMode     string
	GenerationTimeout time.Duration
	GroqAPIKey        string
	GroqBaseURL       string
	GroqModel         string

	RetrievalK        int
	RetrievalTimeout  time.Duration
	VectorDir         string
	EmbeddingsBaseURL string
	EmbeddingsAPIKey  string
	EmbeddingsModel   string
}

// Load reads environment variables and applies safe defaults. A .env file in
// the working directory is honored when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "aira"),
		LogLevel:          envOrDefault("APP_LOG_LEVEL", "info"),
		AllowAnyOrigin:    false,
		DatabaseURL:       stringsTrimSpace("DATABASE_URL"),
		SQLitePath:        stringsTrimSpace("SQLITE_PATH"),
		GeneratorMode:     envOrDefault("GENERATOR_MODE", "auto"),
		GroqAPIKey:        stringsTrimSpace("GROQ_API_KEY"),
		GroqBaseURL:       envOrDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GroqModel:         envOrDefault("GROQ_MODEL", "llama-3.3-70b-versatile"),
		VectorDir:         stringsTrimSpace("VECTOR_DIR"),
		EmbeddingsBaseURL: stringsTrimSpace("EMBEDDINGS_BASE_URL"),
		EmbeddingsAPIKey:  stringsTrimSpace("EMBEDDINGS_API_KEY"),
		EmbeddingsModel:   envOrDefault("EMBEDDINGS_MODEL", "text-embedding-3-small"),

		ShutdownTimeout: 15 * time.Second,
		// Freshness trades staleness for skipping a store round trip on
		// every message; eviction is the hard cap on cached sessions.
		SessionFreshnessWindow: 5 * time.Minute,
		SessionEvictionWindow:  10 * time.Minute,
		HistoryContextLimit:    32,
		GenerationTimeout:      30 * time.Second,
		RetrievalK:             2,
		RetrievalTimeout:       2 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionFreshnessWindow, err = durationFromEnv("SESSION_FRESHNESS_WINDOW", cfg.SessionFreshnessWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionEvictionWindow, err = durationFromEnv("SESSION_EVICTION_WINDOW", cfg.SessionEvictionWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerationTimeout, err = durationFromEnv("GENERATION_TIMEOUT", cfg.GenerationTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrievalTimeout, err = durationFromEnv("RETRIEVAL_TIMEOUT", cfg.RetrievalTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryContextLimit, err = intFromEnv("CHAT_HISTORY_LIMIT", cfg.HistoryContextLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrievalK, err = intFromEnv("RETRIEVAL_K", cfg.RetrievalK)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionFreshnessWindow < 10*time.Second {
		return Config{}, fmt.Errorf("SESSION_FRESHNESS_WINDOW must be at least 10s")
	}
	if cfg.SessionEvictionWindow <= cfg.SessionFreshnessWindow {
		return Config{}, fmt.Errorf("SESSION_EVICTION_WINDOW must be longer than SESSION_FRESHNESS_WINDOW")
	}
	if cfg.GenerationTimeout < time.Second {
		return Config{}, fmt.Errorf("GENERATION_TIMEOUT must be at least 1s")
	}
	if cfg.HistoryContextLimit <= 0 {
		return Config{}, fmt.Errorf("CHAT_HISTORY_LIMIT must be positive")
	}
	if cfg.RetrievalK <= 0 {
		return Config{}, fmt.Errorf("RETRIEVAL_K must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}

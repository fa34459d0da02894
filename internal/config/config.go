// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string

	ModelID       string
	BaseURL       string // agent service base URL
	ClientTimeout time.Duration
	Temperature   float64
	TopP          float64
	MaxTokens     int
	Stream        bool
	MaxInferIters int
	VectorDBID    string

	RootLogLevel slog.Level
	AppLogLevel  slog.Level

	FeedbackTTL time.Duration // 0 disables the retention sweep
	Transcript  TranscriptConfig
}

// TranscriptConfig controls NDJSON conversation transcript logging.
type TranscriptConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables. Numeric and log-level
// values must parse: a malformed value is returned as an error so startup
// fails before anything talks to the agent service.
func Load() (*Config, error) {
	temperature, err := getEnvFloat("TEMPERATURE", 0.95)
	if err != nil {
		return nil, err
	}
	topP, err := getEnvFloat("TOP_P", 0.95)
	if err != nil {
		return nil, err
	}
	maxTokens, err := getEnvInt("MAX_TOKENS", 4096)
	if err != nil {
		return nil, err
	}
	maxInferIters, err := getEnvInt("MAX_INFER_ITERS", 1)
	if err != nil {
		return nil, err
	}
	timeoutSec, err := getEnvInt("LLAMA_STACK_TIMEOUT", 120)
	if err != nil {
		return nil, err
	}
	ttlDays, err := getEnvInt("FEEDBACK_TTL_DAYS", 0)
	if err != nil {
		return nil, err
	}
	queueSize, err := getEnvInt("TRANSCRIPT_QUEUE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	rootLevel, err := getEnvLevel("ROOT_LOG_LEVEL", slog.LevelInfo)
	if err != nil {
		return nil, err
	}
	appLevel, err := getEnvLevel("APP_LOG_LEVEL", slog.LevelInfo)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        getEnv("PORT", "7861"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/proposal-chat.db"),

		ModelID:       getEnv("MODEL_ID", "granite-3-3-8b-instruct"),
		BaseURL:       getEnv("LLAMA_STACK_BASE_URL", "http://localhost:8321"),
		ClientTimeout: time.Duration(timeoutSec) * time.Second,
		Temperature:   temperature,
		TopP:          topP,
		MaxTokens:     maxTokens,
		// Anything but the literal "False" enables streaming.
		Stream:        getEnv("STREAM", "True") != "False",
		MaxInferIters: maxInferIters,
		VectorDBID:    getEnv("VECTOR_DB_ID", "ocp_rh_vector_db"),

		RootLogLevel: rootLevel,
		AppLogLevel:  appLevel,

		FeedbackTTL: time.Duration(ttlDays) * 24 * time.Hour,
		Transcript: TranscriptConfig{
			Enabled:   getEnvBool("TRANSCRIPT_ENABLED", true),
			Dir:       getEnv("TRANSCRIPT_DIR", "./data/transcripts"),
			QueueSize: queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.ModelID == "" {
		return fmt.Errorf("MODEL_ID cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("LLAMA_STACK_BASE_URL cannot be empty")
	}
	if c.VectorDBID == "" {
		return fmt.Errorf("VECTOR_DB_ID cannot be empty")
	}
	if c.ClientTimeout <= 0 {
		return fmt.Errorf("LLAMA_STACK_TIMEOUT must be > 0")
	}
	if c.Temperature < 0 {
		return fmt.Errorf("TEMPERATURE cannot be negative")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("MAX_TOKENS must be > 0")
	}
	if c.MaxInferIters <= 0 {
		return fmt.Errorf("MAX_INFER_ITERS must be > 0")
	}
	if c.FeedbackTTL < 0 {
		return fmt.Errorf("FEEDBACK_TTL_DAYS cannot be negative")
	}
	if c.Transcript.Dir == "" {
		return fmt.Errorf("TRANSCRIPT_DIR cannot be empty")
	}
	if c.Transcript.QueueSize <= 0 {
		return fmt.Errorf("TRANSCRIPT_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse %s=%q: %w", key, value, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s=%q: %w", key, value, err)
	}
	return f, nil
}

// getEnvLevel maps a level name onto a slog level. Names follow the usual
// logging vocabulary (DEBUG, INFO, WARNING, ERROR, CRITICAL); an unknown
// name is an error rather than a silent default.
func getEnvLevel(key string, fallback slog.Level) (slog.Level, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR", "CRITICAL":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("parse %s=%q: unknown log level", key, value)
	}
}

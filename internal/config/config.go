// Package config provides environment configuration for the scheduler.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// History backends.
const (
	HistorySQL  = "sql"
	HistoryNATS = "nats"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	CORSOrigins        []string

	// Storage
	DatabaseURL    string
	HistoryBackend string

	// NATS settings, used when HistoryBackend is "nats"
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Identity. An empty JWTSecret selects X-Guest-ID identity.
	JWTSecret string

	// Time
	Timezone            string
	AllowClientTimezone bool

	// LLM settings
	LLMProvider     string
	LLMModel        string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	LLMMaxTokens    int
	LLMTimeout      time.Duration

	// Agent
	MaxToolIterations  int
	HistoryWindow      int
	ChatTimeout        time.Duration
	MaxCancelRangeDays int

	// Rate limiting
	RateLimitRequests   int
	RateLimitWindow     time.Duration
	IPRateLimitRequests int

	// Logging
	LogLevel  string
	LogFormat string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; real environment variables
// take precedence.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),
		CORSOrigins:        getListEnv("CORS_ORIGINS", []string{"*"}),

		// Storage
		DatabaseURL:    getEnv("DATABASE_URL", "scheduler.db"),
		HistoryBackend: strings.ToLower(getEnv("HISTORY_BACKEND", HistorySQL)),

		// NATS
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// Identity
		JWTSecret: getEnv("JWT_SECRET", ""),

		// Time
		Timezone:            getEnv("SCHEDULER_TIMEZONE", "UTC"),
		AllowClientTimezone: getBoolEnv("ALLOW_CLIENT_TIMEZONE", false),

		// LLM
		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:        getEnv("LLM_MODEL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		LLMMaxTokens:    getIntEnv("LLM_MAX_TOKENS", 1024),
		LLMTimeout:      getDurationEnv("LLM_TIMEOUT", 30*time.Second),

		// Agent
		MaxToolIterations:  getIntEnv("MAX_TOOL_ITERATIONS", 8),
		HistoryWindow:      getIntEnv("HISTORY_WINDOW", 10),
		ChatTimeout:        getDurationEnv("CHAT_TIMEOUT", 90*time.Second),
		MaxCancelRangeDays: getIntEnv("MAX_CANCEL_RANGE_DAYS", 366),

		// Rate limiting
		RateLimitRequests:   getIntEnv("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:     getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		IPRateLimitRequests: getIntEnv("IP_RATE_LIMIT_REQUESTS", 120),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate checks settings that have no usable fallback.
func (c *Config) Validate() error {
	var errs []error
	switch c.HistoryBackend {
	case HistorySQL, HistoryNATS:
	default:
		errs = append(errs, fmt.Errorf("HISTORY_BACKEND must be %q or %q, got %q", HistorySQL, HistoryNATS, c.HistoryBackend))
	}
	if c.MaxToolIterations <= 0 {
		errs = append(errs, errors.New("MAX_TOOL_ITERATIONS must be positive"))
	}
	if c.MaxCancelRangeDays <= 0 {
		errs = append(errs, errors.New("MAX_CANCEL_RANGE_DAYS must be positive"))
	}
	if c.Timezone == "" {
		errs = append(errs, errors.New("SCHEDULER_TIMEZONE must not be empty"))
	}
	return errors.Join(errs...)
}

// LLMAPIKey returns the key for the configured provider.
func (c *Config) LLMAPIKey() string {
	if c.LLMProvider == "anthropic" {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

// MaxCancelRange returns MaxCancelRangeDays as a duration.
func (c *Config) MaxCancelRange() time.Duration {
	return time.Duration(c.MaxCancelRangeDays) * 24 * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

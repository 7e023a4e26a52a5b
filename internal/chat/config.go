// Package chat provides configuration helpers that define runtime defaults,
// validation, and limit parameters for the chat relay service.
package chat

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server configuration settings including security controls
// and the behavioral limits enforced by the hub.
type Config struct {
	Port           string
	AllowedOrigins []string
	AdminToken     string

	MaxMessageSize int64
	HistorySize    int

	RateLimitMax    int
	RateLimitWindow time.Duration

	IdleTimeout    time.Duration
	ReaperInterval time.Duration
	RateStateTTL   time.Duration
	RateStateGrace time.Duration

	LogLevel  string
	LogFormat string
}

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize:  4096,
		HistorySize:     50,
		RateLimitMax:    10,
		RateLimitWindow: time.Minute,
		IdleTimeout:     30 * time.Minute,
		ReaperInterval:  5 * time.Minute,
		RateStateTTL:    time.Hour,
		RateStateGrace:  5 * time.Minute,
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

func sanitizeConfig(cfg Config) Config {
	def := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = def.RateLimitMax
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = def.RateLimitWindow
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.ReaperInterval <= 0 {
		cfg.ReaperInterval = def.ReaperInterval
	}
	if cfg.RateStateTTL <= 0 {
		cfg.RateStateTTL = def.RateStateTTL
	}
	if cfg.RateStateGrace <= 0 {
		cfg.RateStateGrace = def.RateStateGrace
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = def.LogFormat
	}

	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}
	if token := os.Getenv("ADMIN_TOKEN"); token != "" {
		cfg.AdminToken = token
	}
	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseInt64Value(maxSize, cfg.MaxMessageSize)
	}
	if size := os.Getenv("HISTORY_SIZE"); size != "" {
		cfg.HistorySize = parseIntValue(size, cfg.HistorySize)
	}
	if limit := os.Getenv("RATE_LIMIT_MAX"); limit != "" {
		cfg.RateLimitMax = parseIntValue(limit, cfg.RateLimitMax)
	}
	if window := os.Getenv("RATE_LIMIT_WINDOW"); window != "" {
		cfg.RateLimitWindow = parseDurationValue(window, cfg.RateLimitWindow)
	}
	if timeout := os.Getenv("IDLE_TIMEOUT"); timeout != "" {
		cfg.IdleTimeout = parseDurationValue(timeout, cfg.IdleTimeout)
	}
	if interval := os.Getenv("REAPER_INTERVAL"); interval != "" {
		cfg.ReaperInterval = parseDurationValue(interval, cfg.ReaperInterval)
	}
	if ttl := os.Getenv("RATE_STATE_TTL"); ttl != "" {
		cfg.RateStateTTL = parseDurationValue(ttl, cfg.RateStateTTL)
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.LogFormat = format
	}

	return &cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseInt64Value(value string, defaultValue int64) int64 {
	if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseDurationValue(value string, defaultValue time.Duration) time.Duration {
	if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

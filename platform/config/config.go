// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// RedisConfig provides Redis connection settings for caching and jobs.
type RedisConfig interface {
	GetRedisURL() string
}

// SettingsConfig provides settings for the rule-configuration provider.
type SettingsConfig interface {
	RedisConfig
	GetSettingsCacheTTL() time.Duration
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// SchedulerConfig provides settings for the background job scheduler.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetDecaySweepSpec() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env              string
	HTTPAddr         string
	DatabaseURL      string
	MigrationsDir    string
	JWTAccessSecret  string
	CORSAllowAll     bool
	CORSOrigins      []string
	CORSAllowCreds   bool
	RedisURL         string
	SettingsCacheTTL time.Duration
	EmailEnabled     bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromName    string
	EmailFromAddress string
	AppBaseURL       string
	AsynqQueueName   string
	AsynqConcurrency int
	DecaySweepSpec   string
	PublicRateLimit  float64
	PublicRateBurst  int
}

// Load reads configuration from the environment (and .env if present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "false"), "true")

	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		MigrationsDir:    getEnv("MIGRATIONS_DIR", "migrations"),
		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:     corsAllowAll,
		CORSOrigins:      corsOrigins,
		CORSAllowCreds:   strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:         getEnv("REDIS_URL", ""),
		SettingsCacheTTL: mustDuration(getEnv("SETTINGS_CACHE_TTL", "5m")),
		EmailEnabled:     emailEnabled,
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587"), 587),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "LeadFlow"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		AppBaseURL:       getEnv("APP_BASE_URL", "http://localhost:4200"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10"), 10),
		DecaySweepSpec:   getEnv("DECAY_SWEEP_SPEC", "@every 24h"),
		PublicRateLimit:  mustFloat(getEnv("PUBLIC_RATE_LIMIT", "1"), 1),
		PublicRateBurst:  mustInt(getEnv("PUBLIC_RATE_BURST", "5"), 5),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.EmailEnabled && (cfg.SMTPHost == "" || cfg.EmailFromAddress == "") {
		return nil, fmt.Errorf("SMTP_HOST and EMAIL_FROM_ADDRESS are required when EMAIL_ENABLED is true")
	}

	return cfg, nil
}

// Interface implementations

func (c *Config) GetDatabaseURL() string            { return c.DatabaseURL }
func (c *Config) GetJWTAccessSecret() string        { return c.JWTAccessSecret }
func (c *Config) GetHTTPAddr() string               { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool             { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string          { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool           { return c.CORSAllowCreds }
func (c *Config) GetRedisURL() string               { return c.RedisURL }
func (c *Config) GetSettingsCacheTTL() time.Duration { return c.SettingsCacheTTL }
func (c *Config) GetEmailEnabled() bool             { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string               { return c.SMTPHost }
func (c *Config) GetSMTPPort() int                  { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string           { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string           { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string          { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string       { return c.EmailFromAddress }
func (c *Config) GetAppBaseURL() string             { return c.AppBaseURL }
func (c *Config) GetAsynqQueueName() string         { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int          { return c.AsynqConcurrency }
func (c *Config) GetDecaySweepSpec() string         { return c.DecaySweepSpec }
func (c *Config) GetPublicRateLimit() float64       { return c.PublicRateLimit }
func (c *Config) GetPublicRateBurst() int           { return c.PublicRateBurst }

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func mustFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}

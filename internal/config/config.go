package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DBPath     string `envconfig:"NANAS_DB_PATH" default:"./data/nanas.sqlite"`
	Port       int    `envconfig:"NANAS_PORT" default:"8080"`
	LogLevel   string `envconfig:"NANAS_LOG_LEVEL" default:"info"`
	LogDir     string `envconfig:"NANAS_LOG_DIR" default:"./logs"`
	PolicyFile string `envconfig:"NANAS_POLICY_FILE" default:"./policy.json"`

	AdminUsername string `envconfig:"NANAS_ADMIN_USERNAME" required:"true"`
	AdminPassword string `envconfig:"NANAS_ADMIN_PASSWORD" required:"true"`

	KYCThreshold   float64       `envconfig:"NANAS_KYC_THRESHOLD" default:"50"`
	MinCashOut     float64       `envconfig:"NANAS_MIN_CASHOUT" default:"5"`
	KYCReviewDelay time.Duration `envconfig:"NANAS_KYC_REVIEW_DELAY" default:"5s"`

	OEmbedURL  string `envconfig:"NANAS_OEMBED_URL" default:"https://www.tiktok.com/oembed"`
	StatsURL   string `envconfig:"NANAS_STATS_URL"`
	QualityURL string `envconfig:"NANAS_QUALITY_URL"`

	// DemoMode turns on simulated latency and market variation.
	DemoMode     bool `envconfig:"NANAS_DEMO_MODE" default:"false"`
	RateLimitRPM int  `envconfig:"NANAS_RATE_LIMIT_RPM" default:"60"`

	// MemoryStore keeps wallets in process memory instead of NANAS_DB_PATH.
	MemoryStore bool     `envconfig:"NANAS_MEMORY_STORE" default:"false"`
	CORSOrigins []string `envconfig:"NANAS_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

// Load reads configuration from .env file (if present) then from environment variables.
// Environment variables override .env values.
func Load() (*Config, error) {
	// godotenv does NOT override already-set env vars.
	envFiles := []string{".env"}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				slog.Warn("failed to load .env file", "file", f, "error", err)
			} else {
				slog.Info("loaded .env file", "file", f)
			}
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be 1-65535, got %d", ErrInvalidConfig, c.Port)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.LogLevel)
	}
	if c.KYCThreshold <= 0 {
		return fmt.Errorf("%w: NANAS_KYC_THRESHOLD must be > 0, got %v", ErrInvalidConfig, c.KYCThreshold)
	}
	if c.MinCashOut <= 0 {
		return fmt.Errorf("%w: NANAS_MIN_CASHOUT must be > 0, got %v", ErrInvalidConfig, c.MinCashOut)
	}
	if c.KYCReviewDelay <= 0 {
		return fmt.Errorf("%w: NANAS_KYC_REVIEW_DELAY must be positive, got %s", ErrInvalidConfig, c.KYCReviewDelay)
	}
	if c.RateLimitRPM < 1 {
		return fmt.Errorf("%w: NANAS_RATE_LIMIT_RPM must be >= 1, got %d", ErrInvalidConfig, c.RateLimitRPM)
	}
	return nil
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                     int    `env:"PORT" envDefault:"8080"`
	DatabaseURL              string `env:"DATABASE_URL,required"`
	RedisURL                 string `env:"REDIS_URL,required"`
	AutoMigrate              bool   `env:"AUTO_MIGRATE" envDefault:"true"`
	AppBaseURL               string `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`
	Timezone                 string `env:"APP_TIMEZONE" envDefault:"Africa/Lagos"`
	SessionSecret            string `env:"SESSION_SECRET"`
	AdminPasswordHash        string `env:"ADMIN_PASSWORD_HASH"`
	MagicLinkTTLMinutes      int    `env:"MAGIC_LINK_TTL_MINUTES" envDefault:"1440"`
	AdminMagicLinkTTLMinutes int    `env:"ADMIN_MAGIC_LINK_TTL_MINUTES" envDefault:"15"`
	SessionTTLHours          int    `env:"SESSION_TTL_HOURS" envDefault:"168"`
	BookingRequiresApproval  bool   `env:"BOOKING_REQUIRES_APPROVAL" envDefault:"false"`
	PostmarkServerToken      string `env:"POSTMARK_SERVER_TOKEN"`
	EmailFrom                string `env:"EMAIL_FROM" envDefault:"no-reply@trpi.app"`
	DailyAPIKey              string `env:"DAILY_API_KEY"`
	DailyAPIURL              string `env:"DAILY_API_URL" envDefault:"https://api.daily.co/v1"`
	DailyWebhookSecret       string `env:"DAILY_WEBHOOK_SECRET"`
	VideoFallbackURL         string `env:"VIDEO_FALLBACK_URL"`
	VideoFrameOrigin         string `env:"VIDEO_FRAME_ORIGIN" envDefault:"https://*.daily.co"`
	Environment              string `env:"APP_ENV" envDefault:"development"`
	LogLevel                 string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) MagicLinkTTL() time.Duration {
	return time.Duration(c.MagicLinkTTLMinutes) * time.Minute
}

func (c *Config) AdminMagicLinkTTL() time.Duration {
	return time.Duration(c.AdminMagicLinkTTLMinutes) * time.Minute
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Location resolves APP_TIMEZONE, falling back to UTC for unknown zones.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", c.Timezone).Msg("unknown APP_TIMEZONE, using UTC")
		return time.UTC
	}
	return loc
}

func (c *Config) Validate(isProduction bool) error {
	if c.AdminPasswordHash != "" {
		if !strings.HasPrefix(c.AdminPasswordHash, "$2a$") &&
			!strings.HasPrefix(c.AdminPasswordHash, "$2b$") &&
			!strings.HasPrefix(c.AdminPasswordHash, "$2y$") {
			return fmt.Errorf("ADMIN_PASSWORD_HASH must be a bcrypt hash (generate with: go run ./cmd/hashpassword)")
		}
	}

	if c.MagicLinkTTLMinutes <= 0 || c.AdminMagicLinkTTLMinutes <= 0 {
		return fmt.Errorf("magic link TTLs must be positive")
	}
	if c.SessionTTLHours <= 0 {
		return fmt.Errorf("SESSION_TTL_HOURS must be positive")
	}

	if isProduction {
		if err := validateSecret("SESSION_SECRET", c.SessionSecret); err != nil {
			return err
		}

		if c.DailyWebhookSecret == "" {
			log.Warn().Msg("DAILY_WEBHOOK_SECRET is empty in production: video webhook signature verification disabled")
		}
		if c.PostmarkServerToken == "" {
			log.Warn().Msg("POSTMARK_SERVER_TOKEN is empty in production: magic links will only be logged")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

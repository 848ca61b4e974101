// Package config loads the service configuration from the environment
// and validates it before anything takes effect. Configuration errors
// are fatal at startup or reload time, never per-request.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/AlyBadawy/Securial-sub000/token"
)

// Config is the full service configuration.
type Config struct {
	SigningSecret    string        `env:"SECURIAL_SIGNING_SECRET"`
	SigningAlgorithm string        `env:"SECURIAL_SIGNING_ALGORITHM" envDefault:"hs256"`
	Issuer           string        `env:"SECURIAL_ISSUER" envDefault:"securial"`
	AccessTokenTTL   time.Duration `env:"SECURIAL_ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL  time.Duration `env:"SECURIAL_REFRESH_TOKEN_TTL" envDefault:"168h"`
	ResetCodeTTL     time.Duration `env:"SECURIAL_RESET_CODE_TTL" envDefault:"2h"`

	// RedisURL, when set, moves rate-limit counters to a shared redis so
	// limits hold across processes.
	RedisURL string `env:"SECURIAL_REDIS_URL"`
	// PostgresURL, when set, selects the postgres session store.
	PostgresURL string `env:"SECURIAL_POSTGRES_URL"`

	// AdminEmail/AdminPassword, when both set, seed a bootstrap admin
	// account at startup so a fresh deployment has someone to log in as.
	AdminEmail    string `env:"SECURIAL_ADMIN_EMAIL"`
	AdminPassword string `env:"SECURIAL_ADMIN_PASSWORD"`

	RateLimit RateLimitConfig
	SMTP      SMTPConfig
}

// RateLimitConfig tunes the throttling rules for the login and
// password-reset endpoints.
type RateLimitConfig struct {
	LoginLimit     int           `env:"SECURIAL_RL_LOGIN_LIMIT" envDefault:"5"`
	LoginWindow    time.Duration `env:"SECURIAL_RL_LOGIN_WINDOW" envDefault:"1m"`
	ResetLimit     int           `env:"SECURIAL_RL_RESET_LIMIT" envDefault:"5"`
	ResetWindow    time.Duration `env:"SECURIAL_RL_RESET_WINDOW" envDefault:"1m"`
	ResponseStatus int           `env:"SECURIAL_RL_STATUS" envDefault:"429"`
	Message        string        `env:"SECURIAL_RL_MESSAGE" envDefault:"too many requests; try again later"`
}

// SMTPConfig configures password-reset mail delivery. When Host is empty
// reset codes are logged instead of mailed (development mode).
type SMTPConfig struct {
	Host     string `env:"SECURIAL_SMTP_HOST"`
	Port     int    `env:"SECURIAL_SMTP_PORT" envDefault:"587"`
	Username string `env:"SECURIAL_SMTP_USERNAME"`
	Password string `env:"SECURIAL_SMTP_PASSWORD"`
	From     string `env:"SECURIAL_SMTP_FROM"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces consistency. It must pass before a configuration
// (initial or changed) takes effect.
func (c *Config) Validate() error {
	if c.SigningSecret == "" {
		return errors.New("config: SECURIAL_SIGNING_SECRET is required")
	}
	if _, err := token.ParseAlgorithm(c.SigningAlgorithm); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.ResetCodeTTL <= 0 {
		return errors.New("config: token TTLs must be positive")
	}
	if c.RateLimit.LoginLimit <= 0 || c.RateLimit.ResetLimit <= 0 {
		return errors.New("config: rate limits must be positive")
	}
	if c.RateLimit.LoginWindow <= 0 || c.RateLimit.ResetWindow <= 0 {
		return errors.New("config: rate-limit windows must be positive")
	}
	return nil
}

// Algorithm returns the validated signing algorithm.
func (c *Config) Algorithm() token.Algorithm {
	alg, _ := token.ParseAlgorithm(c.SigningAlgorithm)
	return alg
}

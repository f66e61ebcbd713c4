package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the storefront bot.
type Config struct {
	AppEnv    string          `mapstructure:"app_env"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Bot       BotConfig       `mapstructure:"bot"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Services  ServicesConfig  `mapstructure:"services"`
	Clerk     ClerkConfig     `mapstructure:"clerk"`
	Purchase  PurchaseConfig  `mapstructure:"purchase"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
}

// LoggerConfig controls slog output.
type LoggerConfig struct {
	Level  string         `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string         `mapstructure:"format" validate:"omitempty,oneof=json text"`
	File   FileSinkConfig `mapstructure:"file"`
}

// FileSinkConfig enables a rotated log file next to stdout.
type FileSinkConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path" validate:"required_if=Enabled true"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	DSN              string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Release          string  `mapstructure:"release"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate" validate:"gte=0,lte=1"`
}

// BotConfig configures the Telegram transport.
type BotConfig struct {
	Token      string        `mapstructure:"token" validate:"required"`
	Mode       string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	Timeout    time.Duration `mapstructure:"timeout"`
	WebhookURL string        `mapstructure:"webhook_url" validate:"required_if=Mode webhook"`
	// ViewCacheSize bounds how many rendered product cards keep a live purchase attempt.
	ViewCacheSize int `mapstructure:"view_cache_size"`
}

// ServerConfig configures the operations HTTP server and the webhook listener.
type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	WebhookPort     string        `mapstructure:"webhook_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host         string `mapstructure:"host" validate:"required"`
	Port         int    `mapstructure:"port" validate:"required"`
	User         string `mapstructure:"user" validate:"required"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name" validate:"required"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN returns a lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, sslMode,
	)
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	PoolTimeout     time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
}

// RateLimitRule describes a limit per window, e.g. {limit: 5, window: "1m"}.
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

// CommandRateLimits holds per-command rules.
type CommandRateLimits struct {
	Buy    RateLimitRule `mapstructure:"buy"`
	Search RateLimitRule `mapstructure:"search"`
	Upload RateLimitRule `mapstructure:"upload"`
}

// RateLimitConfig configures the update rate limiter.
type RateLimitConfig struct {
	Enabled         bool              `mapstructure:"enabled"`
	Global          RateLimitRule     `mapstructure:"global"`
	PerUser         RateLimitRule     `mapstructure:"per_user"`
	Commands        CommandRateLimits `mapstructure:"commands"`
	Whitelist       []int64           `mapstructure:"whitelist"`
	CleanupInterval time.Duration     `mapstructure:"cleanup_interval"`
}

// ServiceEndpoint describes one upstream HTTP service.
type ServiceEndpoint struct {
	BaseURL    string        `mapstructure:"base_url" validate:"omitempty,url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
}

// ServicesConfig lists the marketplace backends.
type ServicesConfig struct {
	UserAPI    ServiceEndpoint `mapstructure:"user_api"`
	PostAPI    ServiceEndpoint `mapstructure:"post_api"`
	PaymentAPI ServiceEndpoint `mapstructure:"payment_api" validate:"required"`
	// WalletTimeout bounds a single wallet bridge request, which includes the time
	// the user needs to approve a prompt.
	WalletTimeout time.Duration `mapstructure:"wallet_timeout"`
	// WalletAllowPrivate lets users register bridges on loopback or private
	// networks. Development only.
	WalletAllowPrivate bool `mapstructure:"wallet_allow_private"`
}

// ClerkConfig configures the identity provider backend API.
type ClerkConfig struct {
	BaseURL       string        `mapstructure:"base_url" validate:"omitempty,url"`
	SecretKey     string        `mapstructure:"secret_key" validate:"required"`
	TokenTemplate string        `mapstructure:"token_template"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// PurchaseConfig tunes the confirmation poll.
type PurchaseConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxPollAttempts int           `mapstructure:"max_poll_attempts" validate:"gte=0"`
}

// JobsConfig configures background jobs.
type JobsConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	SessionSweepCron  string `mapstructure:"session_sweep_cron"`
	WorkerConcurrency int    `mapstructure:"worker_concurrency"`
	// SessionMaxIdle is how long a linked session may stay unused before the
	// sweep revokes it.
	SessionMaxIdle time.Duration `mapstructure:"session_max_idle"`
}

const (
	DefaultUserAPI       = "http://localhost:8080"
	DefaultPostAPI       = "http://localhost:8081"
	DefaultClerkAPI      = "https://api.clerk.com/v1"
	DefaultTokenTemplate = "backendVerification"
)

func (c *Config) applyDefaults() {
	if c.Services.UserAPI.BaseURL == "" {
		c.Services.UserAPI.BaseURL = DefaultUserAPI
	}
	if c.Services.PostAPI.BaseURL == "" {
		c.Services.PostAPI.BaseURL = DefaultPostAPI
	}
	if c.Services.WalletTimeout == 0 {
		c.Services.WalletTimeout = 5 * time.Minute
	}
	if c.Clerk.BaseURL == "" {
		c.Clerk.BaseURL = DefaultClerkAPI
	}
	if c.Clerk.TokenTemplate == "" {
		c.Clerk.TokenTemplate = DefaultTokenTemplate
	}
	if c.Purchase.PollInterval == 0 {
		c.Purchase.PollInterval = 2 * time.Second
	}
	if c.Purchase.MaxPollAttempts == 0 {
		c.Purchase.MaxPollAttempts = 30
	}
	if c.Bot.Mode == "" {
		c.Bot.Mode = "polling"
	}
	if c.Bot.Timeout == 0 {
		c.Bot.Timeout = 10 * time.Second
	}
	if c.Bot.ViewCacheSize == 0 {
		c.Bot.ViewCacheSize = 4096
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.RateLimit.CleanupInterval == 0 {
		c.RateLimit.CleanupInterval = time.Minute
	}
	if c.Jobs.SessionSweepCron == "" {
		c.Jobs.SessionSweepCron = "*/30 * * * *"
	}
	if c.Jobs.WorkerConcurrency == 0 {
		c.Jobs.WorkerConcurrency = 5
	}
	if c.Jobs.SessionMaxIdle == 0 {
		c.Jobs.SessionMaxIdle = 30 * 24 * time.Hour
	}
}

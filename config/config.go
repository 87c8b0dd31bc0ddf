package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/internal/email"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV"       envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT"      envDefault:"8080"  validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"  validate:"oneof=debug info warn error"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	JWTSecret       string `env:"JWT_SECRET,required" validate:"required,min=32"`
	SchedulerSecret string `env:"SCHEDULER_SECRET"    validate:"required_if=Env production,required_if=Env staging"`

	SchedulerTimezone string `env:"SCHEDULER_TIMEZONE" envDefault:"UTC"`
	TickIntervalSec   int    `env:"TICK_INTERVAL_SEC"  envDefault:"30" validate:"min=1,max=3600"`
	RepairIntervalSec int    `env:"REPAIR_INTERVAL_SEC" envDefault:"300" validate:"min=10,max=86400"`
	RunnerConcurrency int    `env:"RUNNER_CONCURRENCY" envDefault:"4"  validate:"min=1,max=64"`

	// RedisURL enables the cross-instance tick lock. Empty keeps the lock in-process.
	RedisURL   string `env:"REDIS_URL"`
	LockTTLSec int    `env:"LOCK_TTL_SEC" envDefault:"300" validate:"min=10,max=3600"`

	EmailProvider   string  `env:"EMAIL_PROVIDER"     envDefault:"log" validate:"oneof=log resend smtp"`
	EmailFrom       string  `env:"EMAIL_FROM"         envDefault:"automations@localhost"`
	ResendAPIKey    string  `env:"RESEND_API_KEY"     validate:"required_if=EmailProvider resend"`
	SMTPHost        string  `env:"SMTP_HOST"          validate:"required_if=EmailProvider smtp"`
	SMTPPort        int     `env:"SMTP_PORT"          envDefault:"587" validate:"min=1,max=65535"`
	SMTPUsername    string  `env:"SMTP_USERNAME"`
	SMTPPassword    string  `env:"SMTP_PASSWORD"`
	EmailRatePerSec float64 `env:"EMAIL_RATE_PER_SEC" envDefault:"2" validate:"gte=0"`

	SlackToken   string `env:"SLACK_TOKEN"`
	SlackChannel string `env:"SLACK_CHANNEL" validate:"required_with=SlackToken"`

	BackupDir         string `env:"BACKUP_DIR" envDefault:"./backups"`
	WebhookTimeoutSec int    `env:"WEBHOOK_TIMEOUT_SEC" envDefault:"10" validate:"min=1,max=120"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if _, err := time.LoadLocation(cfg.SchedulerTimezone); err != nil {
		return nil, fmt.Errorf("invalid config: SCHEDULER_TIMEZONE: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Location is the timezone schedules are evaluated in. Load has already
// checked it resolves.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.SchedulerTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) Email() email.Config {
	return email.Config{
		Provider:     c.EmailProvider,
		From:         c.EmailFrom,
		ResendAPIKey: c.ResendAPIKey,
		SMTPHost:     c.SMTPHost,
		SMTPPort:     c.SMTPPort,
		SMTPUsername: c.SMTPUsername,
		SMTPPassword: c.SMTPPassword,
		RatePerSec:   c.EmailRatePerSec,
	}
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSec) * time.Second
}

func (c *Config) RepairInterval() time.Duration {
	return time.Duration(c.RepairIntervalSec) * time.Second
}

func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSec) * time.Second
}

func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(c.WebhookTimeoutSec) * time.Second
}

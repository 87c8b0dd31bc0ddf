// Package bootstrap wires the runner and its dependencies from config. It
// is shared by cmd/server and cmd/scheduler.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/config"
	"github.com/ErlanBelekov/automation-scheduler/internal/action"
	"github.com/ErlanBelekov/automation-scheduler/internal/email"
	"github.com/ErlanBelekov/automation-scheduler/internal/health"
	"github.com/ErlanBelekov/automation-scheduler/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/automation-scheduler/internal/lock"
	"github.com/ErlanBelekov/automation-scheduler/internal/notify"
	"github.com/ErlanBelekov/automation-scheduler/internal/scheduler"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Deps holds process-wide connections. Redis is nil when REDIS_URL is unset.
type Deps struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client
}

func Open(ctx context.Context, cfg *config.Config) (*Deps, error) {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	d := &Deps{Pool: pool}
	if cfg.RedisURL == "" {
		return d, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	d.Redis = redis.NewClient(opts)
	if err := d.Redis.Ping(ctx).Err(); err != nil {
		d.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	return d, nil
}

func (d *Deps) Close() {
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	d.Pool.Close()
}

// HealthDeps lists the readiness checks for the connections that are open.
func (d *Deps) HealthDeps() []health.Dependency {
	deps := []health.Dependency{{Name: "postgres", Pinger: d.Pool}}
	if d.Redis != nil {
		rdb := d.Redis
		deps = append(deps, health.Dependency{
			Name:   "redis",
			Pinger: health.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		})
	}
	return deps
}

// Clock returns the current time in the scheduler timezone.
func Clock(cfg *config.Config) func() time.Time {
	loc := cfg.Location()
	return func() time.Time { return time.Now().In(loc) }
}

// NewRunner builds the dispatcher and the runner around it. The tick lock
// lives in Redis when configured so several instances stay single-flight.
func NewRunner(cfg *config.Config, d *Deps, logger *slog.Logger) (*scheduler.Runner, *postgres.AutomationRepository) {
	automations := postgres.NewAutomationRepository(d.Pool, logger)
	clock := Clock(cfg)

	env := action.Env{
		Email:     email.NewSender(cfg.Email(), logger),
		Notifier:  notify.NewNotifier(cfg.SlackToken, cfg.SlackChannel, logger),
		Webhook:   notify.NewWebhook(cfg.WebhookTimeout()),
		Workspace: postgres.NewWorkspaceRepository(d.Pool),
		Users:     postgres.NewUserRepository(d.Pool),
		BackupDir: cfg.BackupDir,
		Clock:     clock,
	}
	dispatcher := action.NewDispatcher(env, logger)

	var locker lock.Locker = lock.NewLocal()
	if d.Redis != nil {
		locker = lock.NewRedis(d.Redis, cfg.LockTTL(), logger)
	}

	runner := scheduler.NewRunner(automations, dispatcher, logger,
		scheduler.WithLocker(locker),
		scheduler.WithConcurrency(cfg.RunnerConcurrency),
		scheduler.WithClock(clock),
	)
	return runner, automations
}

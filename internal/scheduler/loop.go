package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/internal/metrics"
)

// Loop drives the runner on a fixed interval for deployments without an
// external cron hitting the HTTP trigger.
type Loop struct {
	runner   *Runner
	logger   *slog.Logger
	interval time.Duration
}

func NewLoop(runner *Runner, logger *slog.Logger, interval time.Duration) *Loop {
	return &Loop{
		runner:   runner,
		logger:   logger.With("component", "loop"),
		interval: interval,
	}
}

func (l *Loop) Start(ctx context.Context) {
	metrics.LoopStartTime.SetToCurrentTime()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("scheduler loop started", "interval", l.interval)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("scheduler loop shut down")
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	// a tick in progress finishes even if shutdown starts
	res, err := l.runner.RunTick(context.WithoutCancel(ctx), l.runner.Now())
	switch {
	case errors.Is(err, ErrTickInProgress):
		l.logger.Debug("previous tick still running, skipping")
	case err != nil:
		l.logger.Error("tick failed", "error", err)
	case res.ExecutedCount > 0:
		l.logger.Info("tick executed automations", "count", res.ExecutedCount)
	}
}

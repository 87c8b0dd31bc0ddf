package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
	"github.com/ErlanBelekov/automation-scheduler/internal/metrics"
	"github.com/ErlanBelekov/automation-scheduler/internal/schedule"
)

const repairBatchSize = 100

type repairStore interface {
	FindActiveWithoutNext(ctx context.Context, limit int) ([]*domain.Automation, error)
	UpdateNextExecution(ctx context.Context, id string, next *time.Time) error
}

// Repairer finds active recurring automations with no next run stored
// (rows edited by hand, failed persists) and computes one for them.
// Exhausted ONCE automations are left alone.
type Repairer struct {
	store    repairStore
	logger   *slog.Logger
	interval time.Duration
	clock    func() time.Time
}

func NewRepairer(store repairStore, logger *slog.Logger, interval time.Duration, clock func() time.Time) *Repairer {
	return &Repairer{
		store:    store,
		logger:   logger.With("component", "repairer"),
		interval: interval,
		clock:    clock,
	}
}

func (r *Repairer) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("repairer started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("repairer shut down")
			return
		case <-ticker.C:
			r.Repair(ctx)
		}
	}
}

// Repair runs one pass and returns how many automations got a next run.
func (r *Repairer) Repair(ctx context.Context) int {
	automations, err := r.store.FindActiveWithoutNext(ctx, repairBatchSize)
	if err != nil {
		r.logger.ErrorContext(ctx, "find automations without next run", "error", err)
		return 0
	}

	now := r.clock()
	repaired := 0
	for _, a := range automations {
		if a.Schedule.Type == domain.ScheduleOnce {
			continue
		}
		next := schedule.NextExecution(a.Schedule, true, now)
		if next == nil {
			continue // YEARLY or a descriptor that no longer computes
		}
		if err := r.store.UpdateNextExecution(ctx, a.ID, next); err != nil {
			r.logger.ErrorContext(ctx, "update next execution", "automation_id", a.ID, "error", err)
			continue
		}
		repaired++
	}

	if repaired > 0 {
		metrics.RepairedTotal.Add(float64(repaired))
		r.logger.InfoContext(ctx, "repaired automations", "count", repaired)
	}
	return repaired
}

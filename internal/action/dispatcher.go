package action

import (
	"context"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
	"github.com/ErlanBelekov/automation-scheduler/internal/metrics"
)

// Dispatcher resolves an automation to its action and runs it.
type Dispatcher struct {
	env    Env
	logger *slog.Logger
}

func NewDispatcher(env Env, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{env: env, logger: logger.With("component", "dispatcher")}
}

// Execute runs the automation's action once. A config that no longer
// decodes is a FAILED outcome, not an error: the row is bad, not the system.
func (d *Dispatcher) Execute(ctx context.Context, a *domain.Automation) (Outcome, error) {
	act, err := Decode(a.Type, a.Config)
	if err != nil {
		return failed("%v", err), nil
	}
	cond, err := DecodeConditions(a.Conditions)
	if err != nil {
		return failed("%v", err), nil
	}

	if cond.SkipWeekends && isWeekend(d.env.now()) {
		d.logger.InfoContext(ctx, "skipped on weekend", "automation_id", a.ID)
		return skipped, nil
	}

	env := d.env
	env.Conditions = cond

	start := time.Now()
	out, err := act.Execute(ctx, env, a)
	metrics.DispatchDuration.WithLabelValues(string(a.Type)).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		d.logger.ErrorContext(ctx, "action errored", "automation_id", a.ID, "action", a.Type, "error", err)
	case !out.OK:
		d.logger.WarnContext(ctx, "action failed", "automation_id", a.ID, "action", a.Type, "reason", out.Error)
	default:
		d.logger.InfoContext(ctx, "action done", "automation_id", a.ID, "action", a.Type, "message", out.Message)
	}
	return out, err
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

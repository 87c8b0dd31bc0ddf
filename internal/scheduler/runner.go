package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/internal/action"
	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
	"github.com/ErlanBelekov/automation-scheduler/internal/lock"
	ctxlog "github.com/ErlanBelekov/automation-scheduler/internal/log"
	"github.com/ErlanBelekov/automation-scheduler/internal/metrics"
	"github.com/ErlanBelekov/automation-scheduler/internal/repository"
	"github.com/ErlanBelekov/automation-scheduler/internal/requestid"
	"github.com/ErlanBelekov/automation-scheduler/internal/schedule"
	"golang.org/x/sync/errgroup"
)

// ErrTickInProgress is returned by RunTick when another tick holds the lock.
var ErrTickInProgress = errors.New("scheduler tick already in progress")

// DefaultConcurrency bounds how many automations one tick dispatches at once.
const DefaultConcurrency = 4

// Dispatcher runs an automation's action.
type Dispatcher interface {
	Execute(ctx context.Context, a *domain.Automation) (action.Outcome, error)
}

// Result is the outcome of one automation within a tick.
type Result struct {
	AutomationID  string
	Name          string
	Status        domain.ExecutionStatus
	NextExecution *time.Time
	Error         string
	Message       string
}

// TickResult summarizes one tick: how many automations ran and how each ended.
type TickResult struct {
	ExecutedCount int
	Results       []Result
}

// Runner executes every due automation under a single-flight lock and
// advances its schedule.
type Runner struct {
	store       repository.AutomationStore
	dispatcher  Dispatcher
	locker      lock.Locker
	logger      *slog.Logger
	concurrency int
	clock       func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

func WithLocker(l lock.Locker) Option { return func(r *Runner) { r.locker = l } }

func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithClock sets the clock used to recompute next runs after dispatch. Its
// location is the scheduler timezone.
func WithClock(clock func() time.Time) Option { return func(r *Runner) { r.clock = clock } }

func NewRunner(store repository.AutomationStore, dispatcher Dispatcher, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		store:       store,
		dispatcher:  dispatcher,
		locker:      lock.NewLocal(),
		logger:      logger.With("component", "runner"),
		concurrency: DefaultConcurrency,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Now returns the runner's clock reading, in the scheduler timezone.
func (r *Runner) Now() time.Time { return r.clock() }

// RunTick executes every automation due at now. A failure of one automation
// never affects the others; only a failure to list due automations fails
// the tick as a whole.
func (r *Runner) RunTick(ctx context.Context, now time.Time) (TickResult, error) {
	unlock, ok, err := r.locker.TryLock(ctx)
	if err != nil {
		metrics.TicksTotal.WithLabelValues("error").Inc()
		return TickResult{}, fmt.Errorf("acquire tick lock: %w", err)
	}
	if !ok {
		metrics.TicksTotal.WithLabelValues("busy").Inc()
		return TickResult{}, ErrTickInProgress
	}
	defer unlock()

	ctx, _ = requestid.Ensure(ctx)
	start := time.Now()
	defer func() { metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	due, err := r.store.FindDue(ctx, now)
	if err != nil {
		metrics.TicksTotal.WithLabelValues("error").Inc()
		r.logger.ErrorContext(ctx, "find due automations", "error", err)
		return TickResult{}, fmt.Errorf("find due automations: %w", err)
	}
	metrics.DuePerTick.Observe(float64(len(due)))

	results := make([]Result, len(due))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, a := range due {
		g.Go(func() error {
			results[i] = r.run(ctx, a, true)
			return nil
		})
	}
	_ = g.Wait() // units never return errors; failures live in results

	metrics.TicksTotal.WithLabelValues("ok").Inc()
	if len(due) > 0 {
		r.logger.InfoContext(ctx, "tick finished", "executed", len(due), "duration", time.Since(start))
	}
	return TickResult{ExecutedCount: len(due), Results: results}, nil
}

// RunNow executes a single automation outside the tick. The schedule is
// left as is, except that a ONCE automation is exhausted.
func (r *Runner) RunNow(ctx context.Context, a *domain.Automation) Result {
	ctx, _ = requestid.Ensure(ctx)
	return r.run(ctx, a, false)
}

func (r *Runner) run(ctx context.Context, a *domain.Automation, reschedule bool) Result {
	ctx = ctxlog.WithAutomationID(ctx, a.ID)

	metrics.ExecutionsInFlight.Inc()
	defer metrics.ExecutionsInFlight.Dec()

	startedAt := r.clock()
	out, err := r.dispatch(ctx, a)
	completedAt := r.clock()

	exec := &domain.AutomationExecution{
		AutomationID: a.ID,
		StartedAt:    startedAt,
		CompletedAt:  &completedAt,
		DurationMS:   completedAt.Sub(startedAt).Milliseconds(),
	}
	switch {
	case err != nil:
		exec.Status = domain.ExecutionCriticalError
		exec.Error = ptr(err.Error())
	case !out.OK:
		exec.Status = domain.ExecutionFailed
		exec.Error = ptr(out.Error)
	default:
		exec.Status = domain.ExecutionSuccess
	}
	if out.Message != "" {
		exec.Message = ptr(out.Message)
	}

	next := a.NextExecutionAt
	if reschedule {
		next = schedule.NextExecution(a.Schedule, a.IsActive, completedAt)
	}
	if a.Schedule.Type == domain.ScheduleOnce {
		next = nil
	}

	res := Result{
		AutomationID:  a.ID,
		Name:          a.Name,
		Status:        exec.Status,
		NextExecution: next,
		Message:       out.Message,
	}
	if exec.Error != nil {
		res.Error = *exec.Error
	}

	if err := r.store.RecordRun(ctx, exec, next); err != nil {
		metrics.PersistFailuresTotal.Inc()
		r.logger.ErrorContext(ctx, "record execution", "error", err)
		// keep the automation moving even if the history row is lost
		if err := r.store.UpdateNextExecution(ctx, a.ID, next); err != nil {
			r.logger.ErrorContext(ctx, "update next execution", "error", err)
		}
		res.Status = domain.ExecutionCriticalError
		res.Error = fmt.Sprintf("record execution: %v", err)
	}

	metrics.ExecutionsTotal.WithLabelValues(string(a.Type), string(res.Status)).Inc()
	r.logger.InfoContext(ctx, "automation executed",
		"name", a.Name,
		"status", res.Status,
		"duration_ms", exec.DurationMS,
		"next_execution_at", next,
	)
	return res
}

// dispatch converts a panic inside an action into an error.
func (r *Runner) dispatch(ctx context.Context, a *domain.Automation) (out action.Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.ErrorContext(ctx, "action panicked", "panic", p, "stack", string(debug.Stack()))
			out, err = action.Outcome{}, fmt.Errorf("panic: %v", p)
		}
	}()
	return r.dispatcher.Execute(ctx, a)
}

func ptr[T any](v T) *T { return &v }

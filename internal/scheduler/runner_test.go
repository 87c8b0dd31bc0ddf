package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/internal/action"
	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
	"github.com/ErlanBelekov/automation-scheduler/internal/scheduler"
)

// ---- fakes ----

type recorded struct {
	exec *domain.AutomationExecution
	next *time.Time
}

type fakeStore struct {
	findDue    func(ctx context.Context, now time.Time) ([]*domain.Automation, error)
	recordRun  func(ctx context.Context, exec *domain.AutomationExecution, next *time.Time) error
	updateNext func(ctx context.Context, id string, next *time.Time) error

	mu       sync.Mutex
	runs     []recorded
	nextOnly map[string]*time.Time
}

func (s *fakeStore) FindDue(ctx context.Context, now time.Time) ([]*domain.Automation, error) {
	return s.findDue(ctx, now)
}

func (s *fakeStore) UpdateNextExecution(ctx context.Context, id string, next *time.Time) error {
	s.mu.Lock()
	if s.nextOnly == nil {
		s.nextOnly = map[string]*time.Time{}
	}
	s.nextOnly[id] = next
	s.mu.Unlock()
	if s.updateNext == nil {
		return nil
	}
	return s.updateNext(ctx, id, next)
}

func (s *fakeStore) AppendExecution(_ context.Context, _ *domain.AutomationExecution) error {
	return errors.New("not used by the runner")
}

func (s *fakeStore) RecordRun(ctx context.Context, exec *domain.AutomationExecution, next *time.Time) error {
	if s.recordRun != nil {
		if err := s.recordRun(ctx, exec, next); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, recorded{exec: exec, next: next})
	return nil
}

func (s *fakeStore) run(automationID string) (recorded, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.exec.AutomationID == automationID {
			return r, true
		}
	}
	return recorded{}, false
}

type fakeDispatcher struct {
	execute func(ctx context.Context, a *domain.Automation) (action.Outcome, error)
}

func (d *fakeDispatcher) Execute(ctx context.Context, a *domain.Automation) (action.Outcome, error) {
	return d.execute(ctx, a)
}

type busyLocker struct{}

func (busyLocker) TryLock(context.Context) (func(), bool, error) { return nil, false, nil }

// ---- helpers ----

// 2026-10-15 is a Thursday.
var tickTime = time.Date(2026, 10, 15, 9, 5, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func okDispatcher() *fakeDispatcher {
	return &fakeDispatcher{execute: func(context.Context, *domain.Automation) (action.Outcome, error) {
		return action.Outcome{OK: true, Message: "done"}, nil
	}}
}

func newRunner(store *fakeStore, d scheduler.Dispatcher, opts ...scheduler.Option) *scheduler.Runner {
	opts = append([]scheduler.Option{scheduler.WithClock(fixedClock(tickTime))}, opts...)
	return scheduler.NewRunner(store, d, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

func daily(id, clock string) *domain.Automation {
	due := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	return &domain.Automation{
		ID:              id,
		Name:            "automation " + id,
		Type:            domain.ActionEmailReminder,
		Schedule:        domain.Schedule{Type: domain.ScheduleDaily, Time: clock},
		IsActive:        true,
		NextExecutionAt: &due,
	}
}

func dueList(as ...*domain.Automation) func(context.Context, time.Time) ([]*domain.Automation, error) {
	return func(context.Context, time.Time) ([]*domain.Automation, error) { return as, nil }
}

// ---- RunTick ----

func TestRunTick_NothingDue_IsNoop(t *testing.T) {
	store := &fakeStore{findDue: dueList()}
	res, err := newRunner(store, okDispatcher()).RunTick(context.Background(), tickTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExecutedCount != 0 || len(res.Results) != 0 || len(store.runs) != 0 {
		t.Fatalf("res=%+v runs=%d, want empty", res, len(store.runs))
	}
}

func TestRunTick_PassesNowToFindDue(t *testing.T) {
	var got time.Time
	store := &fakeStore{findDue: func(_ context.Context, now time.Time) ([]*domain.Automation, error) {
		got = now
		return nil, nil
	}}
	if _, err := newRunner(store, okDispatcher()).RunTick(context.Background(), tickTime); err != nil {
		t.Fatal(err)
	}
	if !got.Equal(tickTime) {
		t.Errorf("FindDue now = %v, want %v", got, tickTime)
	}
}

func TestRunTick_DailyRunIsRescheduledToTomorrow(t *testing.T) {
	store := &fakeStore{findDue: dueList(daily("a1", "09:00"))}

	res, err := newRunner(store, okDispatcher()).RunTick(context.Background(), tickTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	r := res.Results[0]
	if r.Status != domain.ExecutionSuccess || r.NextExecution == nil || !r.NextExecution.Equal(want) {
		t.Fatalf("result = %+v, want SUCCESS next %v", r, want)
	}

	rec, ok := store.run("a1")
	if !ok {
		t.Fatal("no execution recorded")
	}
	if rec.exec.Status != domain.ExecutionSuccess || rec.exec.CompletedAt == nil || *rec.exec.Message != "done" {
		t.Errorf("execution = %+v", rec.exec)
	}
	if !rec.next.Equal(want) {
		t.Errorf("persisted next = %v, want %v", rec.next, want)
	}
}

func TestRunTick_FailuresAreIsolated(t *testing.T) {
	store := &fakeStore{findDue: dueList(
		daily("ok", "09:00"),
		daily("failed", "09:00"),
		daily("errored", "09:00"),
		daily("panicked", "09:00"),
	)}
	d := &fakeDispatcher{execute: func(_ context.Context, a *domain.Automation) (action.Outcome, error) {
		switch a.ID {
		case "failed":
			return action.Outcome{Error: "no recipients"}, nil
		case "errored":
			return action.Outcome{}, errors.New("db down")
		case "panicked":
			panic("nil map")
		}
		return action.Outcome{OK: true}, nil
	}}

	res, err := newRunner(store, d).RunTick(context.Background(), tickTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExecutedCount != 4 {
		t.Fatalf("ExecutedCount = %d, want 4", res.ExecutedCount)
	}

	want := map[string]struct {
		status domain.ExecutionStatus
		err    string
	}{
		"ok":       {domain.ExecutionSuccess, ""},
		"failed":   {domain.ExecutionFailed, "no recipients"},
		"errored":  {domain.ExecutionCriticalError, "db down"},
		"panicked": {domain.ExecutionCriticalError, "panic: nil map"},
	}
	for _, r := range res.Results {
		w := want[r.AutomationID]
		if r.Status != w.status || r.Error != w.err {
			t.Errorf("%s: status=%s error=%q, want %s %q", r.AutomationID, r.Status, r.Error, w.status, w.err)
		}
		if r.NextExecution == nil {
			t.Errorf("%s: every recurring automation must be rescheduled", r.AutomationID)
		}
		if _, ok := store.run(r.AutomationID); !ok {
			t.Errorf("%s: no execution recorded", r.AutomationID)
		}
	}
}

func TestRunTick_OnceIsExhausted(t *testing.T) {
	a := daily("once", "09:00")
	a.Schedule.Type = domain.ScheduleOnce
	store := &fakeStore{findDue: dueList(a)}

	res, err := newRunner(store, okDispatcher()).RunTick(context.Background(), tickTime)
	if err != nil {
		t.Fatal(err)
	}
	if res.Results[0].NextExecution != nil {
		t.Errorf("next = %v, want nil", res.Results[0].NextExecution)
	}
	if rec, _ := store.run("once"); rec.next != nil {
		t.Errorf("persisted next = %v, want nil", rec.next)
	}
}

func TestRunTick_IntervalCountsFromCompletion(t *testing.T) {
	a := daily("every15", "")
	a.Schedule = domain.Schedule{Type: domain.ScheduleInterval, IntervalMinutes: intPtr(15)}
	store := &fakeStore{findDue: dueList(a)}

	res, err := newRunner(store, okDispatcher()).RunTick(context.Background(), tickTime)
	if err != nil {
		t.Fatal(err)
	}
	if want := tickTime.Add(15 * time.Minute); !res.Results[0].NextExecution.Equal(want) {
		t.Errorf("next = %v, want %v", res.Results[0].NextExecution, want)
	}
}

func TestRunTick_FindDueError_FailsTick(t *testing.T) {
	store := &fakeStore{findDue: func(context.Context, time.Time) ([]*domain.Automation, error) {
		return nil, errors.New("connection refused")
	}}
	res, err := newRunner(store, okDispatcher()).RunTick(context.Background(), tickTime)
	if err == nil {
		t.Fatal("expected tick-level error")
	}
	if len(res.Results) != 0 {
		t.Errorf("got %d partial results, want none", len(res.Results))
	}
}

func TestRunTick_LockHeld(t *testing.T) {
	store := &fakeStore{findDue: func(context.Context, time.Time) ([]*domain.Automation, error) {
		t.Fatal("FindDue must not run without the lock")
		return nil, nil
	}}
	_, err := newRunner(store, okDispatcher(), scheduler.WithLocker(busyLocker{})).RunTick(context.Background(), tickTime)
	if !errors.Is(err, scheduler.ErrTickInProgress) {
		t.Fatalf("want ErrTickInProgress, got %v", err)
	}
}

func TestRunTick_ConcurrentTicksAreSingleFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	store := &fakeStore{findDue: dueList(daily("slow", "09:00"))}
	d := &fakeDispatcher{execute: func(context.Context, *domain.Automation) (action.Outcome, error) {
		close(started)
		<-release
		return action.Outcome{OK: true}, nil
	}}
	r := newRunner(store, d)

	done := make(chan error)
	go func() {
		_, err := r.RunTick(context.Background(), tickTime)
		done <- err
	}()
	<-started

	if _, err := r.RunTick(context.Background(), tickTime); !errors.Is(err, scheduler.ErrTickInProgress) {
		t.Errorf("second tick: want ErrTickInProgress, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first tick: %v", err)
	}
}

func TestRunTick_RecordFailure_FallsBackToNextOnly(t *testing.T) {
	store := &fakeStore{
		findDue: dueList(daily("a1", "09:00")),
		recordRun: func(context.Context, *domain.AutomationExecution, *time.Time) error {
			return errors.New("tx aborted")
		},
	}

	res, err := newRunner(store, okDispatcher()).RunTick(context.Background(), tickTime)
	if err != nil {
		t.Fatal(err)
	}
	r := res.Results[0]
	if r.Status != domain.ExecutionCriticalError {
		t.Errorf("status = %s, want CRITICAL_ERROR", r.Status)
	}
	next, ok := store.nextOnly["a1"]
	if !ok || next == nil || !next.Equal(time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("fallback next = %v (called=%v)", next, ok)
	}
}

func TestRunTick_ResultsKeepOrderUnderConcurrency(t *testing.T) {
	var due []*domain.Automation
	for i := range 20 {
		due = append(due, daily(fmt.Sprintf("a%02d", i), "09:00"))
	}
	store := &fakeStore{findDue: dueList(due...)}
	d := &fakeDispatcher{execute: func(_ context.Context, a *domain.Automation) (action.Outcome, error) {
		// later automations finish first
		var n int
		_, _ = fmt.Sscanf(a.ID, "a%d", &n)
		time.Sleep(time.Duration(20-n) * time.Millisecond)
		return action.Outcome{OK: true}, nil
	}}

	res, err := newRunner(store, d, scheduler.WithConcurrency(8)).RunTick(context.Background(), tickTime)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range res.Results {
		if r.AutomationID != due[i].ID {
			t.Fatalf("result %d = %s, want %s", i, r.AutomationID, due[i].ID)
		}
	}
}

// ---- RunNow ----

func TestRunNow_KeepsSchedule(t *testing.T) {
	a := daily("a1", "09:00")
	store := &fakeStore{}

	res := newRunner(store, okDispatcher()).RunNow(context.Background(), a)
	if res.Status != domain.ExecutionSuccess {
		t.Fatalf("status = %s", res.Status)
	}
	rec, _ := store.run("a1")
	if rec.next == nil || !rec.next.Equal(*a.NextExecutionAt) {
		t.Errorf("persisted next = %v, want unchanged %v", rec.next, a.NextExecutionAt)
	}
}

func intPtr(v int) *int { return &v }

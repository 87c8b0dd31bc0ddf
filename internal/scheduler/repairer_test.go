package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
	"github.com/ErlanBelekov/automation-scheduler/internal/scheduler"
)

type fakeRepairStore struct {
	findActiveWithoutNext func(ctx context.Context, limit int) ([]*domain.Automation, error)
	updated               map[string]*time.Time
}

func (s *fakeRepairStore) FindActiveWithoutNext(ctx context.Context, limit int) ([]*domain.Automation, error) {
	return s.findActiveWithoutNext(ctx, limit)
}

func (s *fakeRepairStore) UpdateNextExecution(_ context.Context, id string, next *time.Time) error {
	if s.updated == nil {
		s.updated = map[string]*time.Time{}
	}
	s.updated[id] = next
	return nil
}

func TestRepair_RecomputesMissingNextRuns(t *testing.T) {
	store := &fakeRepairStore{findActiveWithoutNext: func(context.Context, int) ([]*domain.Automation, error) {
		return []*domain.Automation{
			{ID: "daily", IsActive: true, Schedule: domain.Schedule{Type: domain.ScheduleDaily, Time: "10:00"}},
			{ID: "once", IsActive: true, Schedule: domain.Schedule{Type: domain.ScheduleOnce, Time: "10:00"}},
			{ID: "yearly", IsActive: true, Schedule: domain.Schedule{Type: domain.ScheduleYearly, Time: "10:00"}},
		}, nil
	}}
	r := scheduler.NewRepairer(store, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Minute, fixedClock(tickTime))

	if n := r.Repair(context.Background()); n != 1 {
		t.Fatalf("repaired %d, want 1", n)
	}
	want := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	if got := store.updated["daily"]; got == nil || !got.Equal(want) {
		t.Errorf("daily next = %v, want %v", got, want)
	}
	if _, ok := store.updated["once"]; ok {
		t.Error("exhausted ONCE automation must not be revived")
	}
	if _, ok := store.updated["yearly"]; ok {
		t.Error("YEARLY has no computable next run")
	}
}

func TestRepair_StoreError(t *testing.T) {
	store := &fakeRepairStore{findActiveWithoutNext: func(context.Context, int) ([]*domain.Automation, error) {
		return nil, errors.New("timeout")
	}}
	r := scheduler.NewRepairer(store, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Minute, fixedClock(tickTime))

	if n := r.Repair(context.Background()); n != 0 {
		t.Fatalf("repaired %d, want 0", n)
	}
}

package schedule_test

import (
	"testing"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
	"github.com/ErlanBelekov/automation-scheduler/internal/schedule"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

// 2026-10-15 is a Thursday.
var thursday10am = at(2026, time.October, 15, 10, 0)

func assertNext(t *testing.T, got *time.Time, want time.Time) {
	t.Helper()
	if got == nil {
		t.Fatalf("next = nil, want %v", want)
	}
	if !got.Equal(want) {
		t.Fatalf("next = %v, want %v", *got, want)
	}
}

func assertNil(t *testing.T, got *time.Time) {
	t.Helper()
	if got != nil {
		t.Fatalf("next = %v, want nil", *got)
	}
}

func TestNextExecution_InactiveAlwaysNil(t *testing.T) {
	schedules := []domain.Schedule{
		{Type: domain.ScheduleOnce, Time: "11:00"},
		{Type: domain.ScheduleDaily, Time: "11:00"},
		{Type: domain.ScheduleWeekly, Time: "11:00", DayOfWeek: intPtr(5)},
		{Type: domain.ScheduleMonthly, Time: "11:00", DayOfMonth: intPtr(20)},
		{Type: domain.ScheduleInterval, IntervalMinutes: intPtr(15)},
		{Type: domain.ScheduleCustomCron, CronExpression: strPtr("*/5 * * * *")},
		{Type: domain.ScheduleYearly, Time: "11:00"},
	}
	for _, s := range schedules {
		t.Run(string(s.Type), func(t *testing.T) {
			assertNil(t, schedule.NextExecution(s, false, thursday10am))
		})
	}
}

func TestNextExecution_Once(t *testing.T) {
	tests := []struct {
		name  string
		clock string
		want  time.Time
	}{
		{name: "future today", clock: "10:30", want: at(2026, time.October, 15, 10, 30)},
		{name: "3 minutes late fires now", clock: "09:57", want: thursday10am},
		{name: "exactly at grace edge fires now", clock: "09:55", want: thursday10am},
		{name: "10 minutes late rolls to tomorrow", clock: "09:50", want: at(2026, time.October, 16, 9, 50)},
		{name: "due this minute fires now", clock: "10:00", want: thursday10am},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := domain.Schedule{Type: domain.ScheduleOnce, Time: tt.clock}
			assertNext(t, schedule.NextExecution(s, true, thursday10am), tt.want)
		})
	}
}

func TestNextExecution_OnceGraceUsesSubMinuteNow(t *testing.T) {
	now := thursday10am.Add(2*time.Minute + 17*time.Second)
	s := domain.Schedule{Type: domain.ScheduleOnce, Time: "10:00"}

	assertNext(t, schedule.NextExecution(s, true, now), now)
}

func TestNextExecution_Daily(t *testing.T) {
	s := domain.Schedule{Type: domain.ScheduleDaily, Time: "09:00"}

	// Tick at 09:05: already passed, so tomorrow at the same time.
	assertNext(t, schedule.NextExecution(s, true, at(2026, time.October, 15, 9, 5)), at(2026, time.October, 16, 9, 0))

	// Still ahead today.
	assertNext(t, schedule.NextExecution(s, true, at(2026, time.October, 15, 8, 59)), at(2026, time.October, 15, 9, 0))

	// Exactly at the target counts as passed.
	assertNext(t, schedule.NextExecution(s, true, at(2026, time.October, 15, 9, 0)), at(2026, time.October, 16, 9, 0))

	// Month and year boundaries.
	assertNext(t, schedule.NextExecution(s, true, at(2026, time.December, 31, 23, 0)), at(2027, time.January, 1, 9, 0))
}

func TestNextExecution_Weekly(t *testing.T) {
	tests := []struct {
		name string
		dow  int
		time string
		want time.Time
	}{
		{name: "today, time passed", dow: 4, time: "09:00", want: at(2026, time.October, 22, 9, 0)},
		{name: "today, time ahead is still next week", dow: 4, time: "11:00", want: at(2026, time.October, 22, 11, 0)},
		{name: "later this week", dow: 6, time: "08:00", want: at(2026, time.October, 17, 8, 0)},
		{name: "earlier weekday wraps", dow: 1, time: "08:00", want: at(2026, time.October, 19, 8, 0)},
		{name: "sunday", dow: 0, time: "18:30", want: at(2026, time.October, 18, 18, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := domain.Schedule{Type: domain.ScheduleWeekly, Time: tt.time, DayOfWeek: intPtr(tt.dow)}
			assertNext(t, schedule.NextExecution(s, true, thursday10am), tt.want)
		})
	}
}

func TestNextExecution_Monthly(t *testing.T) {
	tests := []struct {
		name string
		day  int
		now  time.Time
		want time.Time
	}{
		{name: "later this month", day: 20, now: thursday10am, want: at(2026, time.October, 20, 9, 0)},
		{name: "today passed rolls to next month", day: 15, now: thursday10am, want: at(2026, time.November, 15, 9, 0)},
		{name: "december rolls into january", day: 5, now: at(2026, time.December, 20, 12, 0), want: at(2027, time.January, 5, 9, 0)},
		{name: "31st clamps to end of february", day: 31, now: at(2027, time.February, 10, 12, 0), want: at(2027, time.February, 28, 9, 0)},
		{name: "31st clamps in leap february", day: 31, now: at(2028, time.January, 31, 23, 0), want: at(2028, time.February, 29, 9, 0)},
		{name: "31st clamps to april 30", day: 31, now: at(2027, time.March, 31, 10, 0), want: at(2027, time.April, 30, 9, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := domain.Schedule{Type: domain.ScheduleMonthly, Time: "09:00", DayOfMonth: intPtr(tt.day)}
			assertNext(t, schedule.NextExecution(s, true, tt.now), tt.want)
		})
	}
}

func TestNextExecution_IntervalDriftsFromNow(t *testing.T) {
	s := domain.Schedule{Type: domain.ScheduleInterval, IntervalMinutes: intPtr(90)}

	for _, now := range []time.Time{
		thursday10am,
		thursday10am.Add(37 * time.Second),
		at(2026, time.October, 15, 23, 59),
	} {
		assertNext(t, schedule.NextExecution(s, true, now), now.Add(90*time.Minute))
	}
}

func TestNextExecution_IntervalAtCap(t *testing.T) {
	s := domain.Schedule{Type: domain.ScheduleInterval, IntervalMinutes: intPtr(schedule.MaxIntervalMinutes)}
	want := thursday10am.Add(time.Duration(schedule.MaxIntervalMinutes) * time.Minute)

	assertNext(t, schedule.NextExecution(s, true, thursday10am), want)
	if !want.After(thursday10am) {
		t.Fatalf("interval at cap wrapped to %v", want)
	}
}

func TestNextExecution_CustomCron(t *testing.T) {
	s := domain.Schedule{Type: domain.ScheduleCustomCron, CronExpression: strPtr("0 9 * * 1")}
	assertNext(t, schedule.NextExecution(s, true, thursday10am), at(2026, time.October, 19, 9, 0))
}

func TestNextExecution_FailsSafe(t *testing.T) {
	schedules := map[string]domain.Schedule{
		"yearly":               {Type: domain.ScheduleYearly, Time: "09:00"},
		"unknown type":         {Type: "FORTNIGHTLY", Time: "09:00"},
		"malformed time":       {Type: domain.ScheduleDaily, Time: "9am"},
		"empty time":           {Type: domain.ScheduleOnce},
		"weekday out of range": {Type: domain.ScheduleWeekly, Time: "09:00", DayOfWeek: intPtr(7)},
		"missing weekday":      {Type: domain.ScheduleWeekly, Time: "09:00"},
		"day of month zero":    {Type: domain.ScheduleMonthly, Time: "09:00", DayOfMonth: intPtr(0)},
		"zero interval":        {Type: domain.ScheduleInterval, IntervalMinutes: intPtr(0)},
		"interval past cap":    {Type: domain.ScheduleInterval, IntervalMinutes: intPtr(200_000_000)},
		"bad cron":             {Type: domain.ScheduleCustomCron, CronExpression: strPtr("every tuesday")},
		"missing cron":         {Type: domain.ScheduleCustomCron},
	}
	for name, s := range schedules {
		t.Run(name, func(t *testing.T) {
			assertNil(t, schedule.NextExecution(s, true, thursday10am))
		})
	}
}

func TestNextExecution_UsesNowLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	now := time.Date(2026, time.October, 15, 10, 0, 0, 0, loc)
	s := domain.Schedule{Type: domain.ScheduleDaily, Time: "11:00"}

	assertNext(t, schedule.NextExecution(s, true, now), time.Date(2026, time.October, 15, 11, 0, 0, 0, loc))
}

func TestNextExecution_SpringForwardGapMovesLater(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2026-03-08 02:00 EST jumps to 03:00 EDT
	now := time.Date(2026, time.March, 8, 0, 0, 0, 0, loc)
	want := time.Date(2026, time.March, 8, 7, 30, 0, 0, time.UTC)

	daily := domain.Schedule{Type: domain.ScheduleDaily, Time: "02:30"}
	assertNext(t, schedule.NextExecution(daily, true, now), want)

	monthly := domain.Schedule{Type: domain.ScheduleMonthly, Time: "02:30", DayOfMonth: intPtr(8)}
	assertNext(t, schedule.NextExecution(monthly, true, now), want)

	// clocks outside the gap are untouched
	plain := domain.Schedule{Type: domain.ScheduleDaily, Time: "01:30"}
	assertNext(t, schedule.NextExecution(plain, true, now), time.Date(2026, time.March, 8, 6, 30, 0, 0, time.UTC))
}

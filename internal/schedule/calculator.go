// Package schedule turns an automation's schedule descriptor into its next
// execution time. Everything here is pure: no I/O, no clock reads.
package schedule

import (
	"time"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
	"github.com/robfig/cron/v3"
)

// OnceGraceWindow is how late a ONCE schedule may be observed and still fire
// immediately instead of rolling over to the next day. The scheduler is
// polled, so a target can fall between two polls.
const OnceGraceWindow = 5 * time.Minute

// MaxIntervalMinutes caps INTERVAL schedules at ten years.
const MaxIntervalMinutes = 10 * 365 * 24 * 60

// NextExecution returns the next time the schedule should fire, evaluated in
// now's location, or nil when there is none. Inactive automations never have
// a next execution. Malformed descriptors yield nil rather than an error;
// they are rejected by Validate at creation time.
func NextExecution(s domain.Schedule, active bool, now time.Time) *time.Time {
	if !active {
		return nil
	}

	switch s.Type {
	case domain.ScheduleOnce:
		return nextOnce(s, now)
	case domain.ScheduleDaily:
		return nextDaily(s, now)
	case domain.ScheduleWeekly:
		return nextWeekly(s, now)
	case domain.ScheduleMonthly:
		return nextMonthly(s, now)
	case domain.ScheduleInterval:
		return nextInterval(s, now)
	case domain.ScheduleCustomCron:
		return nextCron(s, now)
	default:
		// YEARLY has no rule yet; unknown kinds fail safe.
		return nil
	}
}

func nextOnce(s domain.Schedule, now time.Time) *time.Time {
	target, ok := atClock(now, s.Time)
	if !ok {
		return nil
	}
	if target.After(now) {
		return &target
	}
	if now.Sub(target) <= OnceGraceWindow {
		fire := now
		return &fire
	}
	target = target.AddDate(0, 0, 1)
	return &target
}

func nextDaily(s domain.Schedule, now time.Time) *time.Time {
	target, ok := atClock(now, s.Time)
	if !ok {
		return nil
	}
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return &target
}

// nextWeekly never returns the current day: a zero offset means "a week from
// today", whether or not today's time has passed.
func nextWeekly(s domain.Schedule, now time.Time) *time.Time {
	if s.DayOfWeek == nil || *s.DayOfWeek < 0 || *s.DayOfWeek > 6 {
		return nil
	}
	target, ok := atClock(now, s.Time)
	if !ok {
		return nil
	}
	delta := (*s.DayOfWeek - int(now.Weekday())) % 7
	if delta <= 0 {
		delta += 7
	}
	target = target.AddDate(0, 0, delta)
	return &target
}

// nextMonthly clamps DayOfMonth to the length of the month, so 31 fires on
// the last day of February instead of spilling into March.
func nextMonthly(s domain.Schedule, now time.Time) *time.Time {
	if s.DayOfMonth == nil || *s.DayOfMonth < 1 || *s.DayOfMonth > 31 {
		return nil
	}
	hour, minute, err := ParseClock(s.Time)
	if err != nil {
		return nil
	}

	target := monthDay(now.Year(), now.Month(), *s.DayOfMonth, hour, minute, now.Location())
	if !target.After(now) {
		target = monthDay(now.Year(), now.Month()+1, *s.DayOfMonth, hour, minute, now.Location())
	}
	return &target
}

func nextInterval(s domain.Schedule, now time.Time) *time.Time {
	if s.IntervalMinutes == nil || *s.IntervalMinutes < 1 || *s.IntervalMinutes > MaxIntervalMinutes {
		return nil
	}
	next := now.Add(time.Duration(*s.IntervalMinutes) * time.Minute)
	return &next
}

func nextCron(s domain.Schedule, now time.Time) *time.Time {
	if s.CronExpression == nil {
		return nil
	}
	sched, err := cron.ParseStandard(*s.CronExpression)
	if err != nil {
		return nil
	}
	next := sched.Next(now)
	if next.IsZero() {
		return nil
	}
	return &next
}

// atClock returns today's date (in now's location) at the given HH:MM.
func atClock(now time.Time, clock string) (time.Time, bool) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := now.Date()
	return wallTime(y, m, d, hour, minute, now.Location()), true
}

// monthDay builds the given day of month, clamped to the month's last day.
// month may overflow (13 = January of the next year).
func monthDay(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1).Day()
	day = min(day, last)
	return wallTime(first.Year(), first.Month(), day, hour, minute, loc)
}

// wallTime builds the given local date and clock. A clock that falls in a
// DST gap does not exist that day; it is moved forward by the length of the
// gap, so 02:30 on a spring-forward night becomes 03:30.
func wallTime(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	t := time.Date(year, month, day, hour, minute, 0, 0, loc)
	gotHour, gotMinute, _ := t.Clock()
	if gotHour == hour && gotMinute == minute {
		return t
	}
	// time.Date resolves a gap with the pre-transition offset, which lands
	// behind the requested clock
	diff := ((hour*60+minute)-(gotHour*60+gotMinute) + 1440) % 1440
	return t.Add(time.Duration(diff) * time.Minute)
}

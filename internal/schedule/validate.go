package schedule

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
	"github.com/robfig/cron/v3"
)

// ParseClock parses "HH:MM" (24h; a single-digit hour is accepted).
func ParseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return 0, 0, fmt.Errorf("time %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("time %q: hour out of range", s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q: minute out of range", s)
	}
	return hour, minute, nil
}

// Validate checks that the descriptor carries every field its type needs.
// Errors wrap domain.ErrInvalidSchedule.
func Validate(s domain.Schedule) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", domain.ErrInvalidSchedule, fmt.Sprintf(format, args...))
	}

	needsClock := func() error {
		if _, _, err := ParseClock(s.Time); err != nil {
			return invalid("scheduleTime: %v", err)
		}
		return nil
	}

	switch s.Type {
	case domain.ScheduleOnce, domain.ScheduleDaily:
		return needsClock()
	case domain.ScheduleWeekly:
		if s.DayOfWeek == nil || *s.DayOfWeek < 0 || *s.DayOfWeek > 6 {
			return invalid("scheduleDayOfWeek must be between 0 and 6")
		}
		return needsClock()
	case domain.ScheduleMonthly:
		if s.DayOfMonth == nil || *s.DayOfMonth < 1 || *s.DayOfMonth > 31 {
			return invalid("scheduleDayOfMonth must be between 1 and 31")
		}
		return needsClock()
	case domain.ScheduleInterval:
		if s.IntervalMinutes == nil || *s.IntervalMinutes < 1 {
			return invalid("scheduleInterval must be at least 1 minute")
		}
		if *s.IntervalMinutes > MaxIntervalMinutes {
			return invalid("scheduleInterval must be at most %d minutes", MaxIntervalMinutes)
		}
		return nil
	case domain.ScheduleCustomCron:
		if s.CronExpression == nil || strings.TrimSpace(*s.CronExpression) == "" {
			return invalid("customCronExpression is required")
		}
		if _, err := cron.ParseStandard(*s.CronExpression); err != nil {
			return invalid("customCronExpression: %v", err)
		}
		return nil
	case domain.ScheduleYearly:
		// Accepted for storage; no next execution is computed for it yet.
		return nil
	default:
		return invalid("unknown scheduleType %q", s.Type)
	}
}

// Package action implements the side effects an automation performs when it
// fires. Each action type has its own config struct and Execute method.
package action

import (
	"context"
	"fmt"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
	"github.com/ErlanBelekov/automation-scheduler/internal/email"
	"github.com/ErlanBelekov/automation-scheduler/internal/notify"
	"github.com/ErlanBelekov/automation-scheduler/internal/repository"
)

// Outcome is the business result of one dispatch. OK=false is an expected
// failure (no recipients, bad reference); infrastructure failures are
// returned as errors instead.
type Outcome struct {
	OK      bool
	Error   string
	Message string
}

func succeeded(format string, args ...any) Outcome {
	return Outcome{OK: true, Message: fmt.Sprintf(format, args...)}
}

func failed(format string, args ...any) Outcome {
	return Outcome{Error: fmt.Sprintf(format, args...)}
}

// skipped is returned when a condition suppresses the run.
var skipped = Outcome{OK: true, Message: "skipped"}

type Action interface {
	Kind() domain.ActionType
	Execute(ctx context.Context, env Env, a *domain.Automation) (Outcome, error)
}

type WebhookPoster interface {
	Post(ctx context.Context, url string, n notify.Notification) error
}

// Env carries the services actions may use. It is copied per dispatch so
// Conditions can be set for the automation being run.
type Env struct {
	Email     email.Sender
	Notifier  notify.Notifier
	Webhook   WebhookPoster
	Workspace repository.WorkspaceRepository
	Users     repository.UserRepository
	BackupDir string
	Clock     func() time.Time

	Conditions Conditions
}

func (e Env) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock()
}

// belowMinimum reports whether a query-driven action matched too few rows to run.
func (e Env) belowMinimum(matched int) bool {
	return e.Conditions.MinMatches > 0 && matched < e.Conditions.MinMatches
}

func daysAgo(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, -days)
}

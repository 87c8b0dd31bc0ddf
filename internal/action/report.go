package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
)

type ReportKind string

const (
	ReportRevenue  ReportKind = "revenue"
	ReportProjects ReportKind = "projects"
	ReportTime     ReportKind = "time"
)

type ReportGeneration struct {
	Report     ReportKind `json:"report" validate:"required,oneof=revenue projects time"`
	PeriodDays int        `json:"periodDays" validate:"gte=1,lte=366"`
}

func (*ReportGeneration) Kind() domain.ActionType { return domain.ActionReportGeneration }

func (r *ReportGeneration) normalize() error {
	if r.Report == "" {
		r.Report = ReportRevenue
	}
	if r.PeriodDays == 0 {
		r.PeriodDays = 30
	}
	return nil
}

func (r *ReportGeneration) Execute(ctx context.Context, env Env, a *domain.Automation) (Outcome, error) {
	view := reportView{
		Title:    fmt.Sprintf("%s report: last %d days", titles[r.Report], r.PeriodDays),
		Revenue:  r.Report == ReportRevenue,
		Projects: r.Report == ReportProjects,
		Time:     r.Report == ReportTime,
	}
	return mailReport(ctx, env, a, r.PeriodDays, view)
}

var titles = map[ReportKind]string{
	ReportRevenue:  "Revenue",
	ReportProjects: "Projects",
	ReportTime:     "Time",
}

type WeeklySummary struct{}

func (*WeeklySummary) Kind() domain.ActionType { return domain.ActionWeeklySummary }

func (*WeeklySummary) Execute(ctx context.Context, env Env, a *domain.Automation) (Outcome, error) {
	view := reportView{Title: "Your week in review", Revenue: true, Projects: true, Time: true}
	return mailReport(ctx, env, a, 7, view)
}

type reportView struct {
	Title    string
	Summary  *domain.WorkspaceSummary
	Revenue  bool
	Projects bool
	Time     bool
}

func mailReport(ctx context.Context, env Env, a *domain.Automation, days int, view reportView) (Outcome, error) {
	msg, err := addressees(ctx, env, a)
	if errors.Is(err, errNoRecipients) {
		return failed("no recipients configured and owner has no email"), nil
	}
	if err != nil {
		return Outcome{}, err
	}

	now := env.now()
	view.Summary, err = env.Workspace.Summary(ctx, a.UserID, daysAgo(now, days), now)
	if err != nil {
		return Outcome{}, fmt.Errorf("build summary: %w", err)
	}

	msg.Subject = view.Title
	if msg.HTML, err = render("report", view); err != nil {
		return Outcome{}, err
	}
	if err := env.Email.Send(ctx, msg); err != nil {
		return failed("send report: %v", err), nil
	}
	return succeeded("sent report to %d recipient(s)", recipientCount(msg)), nil
}

type DeadlineAlert struct {
	DaysAhead int `json:"daysAhead" validate:"gte=1,lte=90"`
}

func (*DeadlineAlert) Kind() domain.ActionType { return domain.ActionDeadlineAlert }

func (d *DeadlineAlert) normalize() error {
	if d.DaysAhead == 0 {
		d.DaysAhead = 3
	}
	return nil
}

func (d *DeadlineAlert) Execute(ctx context.Context, env Env, a *domain.Automation) (Outcome, error) {
	now := env.now()
	tasks, err := env.Workspace.TasksDueBetween(ctx, a.UserID, now, now.AddDate(0, 0, d.DaysAhead))
	if err != nil {
		return Outcome{}, fmt.Errorf("find upcoming tasks: %w", err)
	}
	if env.belowMinimum(len(tasks)) {
		return skipped, nil
	}
	if len(tasks) == 0 {
		return succeeded("no upcoming deadlines"), nil
	}

	msg, err := addressees(ctx, env, a)
	if errors.Is(err, errNoRecipients) {
		return failed("no recipients configured and owner has no email"), nil
	}
	if err != nil {
		return Outcome{}, err
	}

	msg.Subject = fmt.Sprintf("%d deadline(s) in the next %d day(s)", len(tasks), d.DaysAhead)
	msg.HTML, err = render("deadlines", struct {
		Tasks []*domain.Task
		Days  int
	}{tasks, d.DaysAhead})
	if err != nil {
		return Outcome{}, err
	}
	if err := env.Email.Send(ctx, msg); err != nil {
		return failed("send deadline alert: %v", err), nil
	}
	return succeeded("alerted %d recipient(s) about %d task(s)", recipientCount(msg), len(tasks)), nil
}

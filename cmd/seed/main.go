// seed inserts a demo user, one automation per schedule kind and some
// execution history into the local dev database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
	"github.com/ErlanBelekov/automation-scheduler/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/automation-scheduler/internal/schedule"
)

const (
	seedUserID = "user_seed"
	seedEmail  = "seed@test.local"
)

type automationSpec struct {
	name     string
	action   domain.ActionType
	config   string
	schedule domain.Schedule
}

func intp(n int) *int       { return &n }
func strp(s string) *string { return &s }

var automations = []automationSpec{
	{"Launch announcement", domain.ActionEmailReminder,
		`{"subject":"We are live","message":"The new site is up."}`,
		domain.Schedule{Type: domain.ScheduleOnce, Time: "10:00"}},
	{"Morning deadlines", domain.ActionDeadlineAlert,
		`{"daysAhead":2}`,
		domain.Schedule{Type: domain.ScheduleDaily, Time: "08:30"}},
	{"Monday summary", domain.ActionWeeklySummary,
		`{}`,
		domain.Schedule{Type: domain.ScheduleWeekly, Time: "09:00", DayOfWeek: intp(1)}},
	{"Month-end revenue", domain.ActionReportGeneration,
		`{"report":"revenue","periodDays":31}`,
		domain.Schedule{Type: domain.ScheduleMonthly, Time: "18:00", DayOfMonth: intp(31)}},
	{"Annual check-in", domain.ActionClientCheckIn,
		`{"subject":"Happy new year","message":"Thanks for working with me this year."}`,
		domain.Schedule{Type: domain.ScheduleYearly, Time: "09:00"}},
	{"Overdue invoices", domain.ActionInvoiceReminder,
		`{"daysOverdue":7,"subject":"Payment reminder","message":"A friendly reminder that this invoice is past due."}`,
		domain.Schedule{Type: domain.ScheduleInterval, IntervalMinutes: intp(240)}},
	{"Weekday backup", domain.ActionBackupData,
		`{}`,
		domain.Schedule{Type: domain.ScheduleCustomCron, CronExpression: strp("0 2 * * 1-5")}},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set, run: direnv allow")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	_, err = pool.Exec(ctx, `
		INSERT INTO users (id, email, name)
		VALUES ($1, $2, 'Seed User')
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email`,
		seedUserID, seedEmail,
	)
	if err != nil {
		log.Fatalf("upsert user: %v", err)
	}

	repo := postgres.NewAutomationRepository(pool, slog.Default())
	now := time.Now().UTC()

	var inserted, skipped int
	for _, spec := range automations {
		a, err := repo.Create(ctx, &domain.Automation{
			UserID:          seedUserID,
			Name:            spec.name,
			Type:            spec.action,
			Config:          json.RawMessage(spec.config),
			Recipients:      []domain.Recipient{{Email: seedEmail, Type: domain.RecipientTo}},
			Schedule:        spec.schedule,
			IsActive:        true,
			NextExecutionAt: schedule.NextExecution(spec.schedule, true, now),
		})
		if errors.Is(err, domain.ErrAutomationNameConflict) {
			skipped++
			continue
		}
		if err != nil {
			log.Fatalf("insert %q: %v", spec.name, err)
		}
		inserted++

		if err := seedHistory(ctx, repo, a.ID, now); err != nil {
			log.Fatalf("history for %q: %v", spec.name, err)
		}
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  User ID:     %s (%s)\n", seedUserID, seedEmail)
	fmt.Printf("  Automations: %d created (skipped %d already existing)\n", inserted, skipped)
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Printf("  export JWT=$(a HS256 token with sub=%s signed with JWT_SECRET)\n", seedUserID)
	fmt.Println("  curl -s http://localhost:8080/automations -H \"Authorization: Bearer $JWT\"")
	fmt.Println("  curl -s http://localhost:8080/scheduler/run -H \"Authorization: Bearer $SCHEDULER_SECRET\"")
}

// seedHistory appends three past runs: two successes around one failure.
func seedHistory(ctx context.Context, repo *postgres.AutomationRepository, automationID string, now time.Time) error {
	history := []struct {
		status  domain.ExecutionStatus
		message *string
		err     *string
	}{
		{domain.ExecutionSuccess, strp("sent 1 email"), nil},
		{domain.ExecutionFailed, nil, strp("smtp: connection refused")},
		{domain.ExecutionSuccess, strp("sent 1 email"), nil},
	}

	for i, h := range history {
		started := now.Add(-time.Duration(len(history)-i) * 24 * time.Hour)
		completed := started.Add(350 * time.Millisecond)
		err := repo.AppendExecution(ctx, &domain.AutomationExecution{
			AutomationID: automationID,
			Status:       h.status,
			StartedAt:    started,
			CompletedAt:  &completed,
			Message:      h.message,
			Error:        h.err,
			DurationMS:   completed.Sub(started).Milliseconds(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

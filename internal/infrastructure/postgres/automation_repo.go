package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
	"github.com/ErlanBelekov/automation-scheduler/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const automationColumns = `
	id, user_id, name, description, type, config, conditions, recipients,
	schedule_type, schedule_time, schedule_day_of_month, schedule_day_of_week,
	schedule_interval, custom_cron_expression, is_active,
	next_execution_at, last_execution_at, created_at, updated_at`

type AutomationRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewAutomationRepository(pool *pgxpool.Pool, logger *slog.Logger) *AutomationRepository {
	return &AutomationRepository{pool: pool, logger: logger.With("component", "automation_repo")}
}

func (r *AutomationRepository) Create(ctx context.Context, a *domain.Automation) (*domain.Automation, error) {
	query := `
		INSERT INTO automations (
			user_id, name, description, type, config, conditions, recipients,
			schedule_type, schedule_time, schedule_day_of_month, schedule_day_of_week,
			schedule_interval, custom_cron_expression, is_active, next_execution_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING` + automationColumns

	row := r.pool.QueryRow(ctx, query,
		a.UserID, a.Name, a.Description, a.Type, a.Config, a.Conditions, a.Recipients,
		a.Schedule.Type, a.Schedule.Time, a.Schedule.DayOfMonth, a.Schedule.DayOfWeek,
		a.Schedule.IntervalMinutes, a.Schedule.CronExpression, a.IsActive, a.NextExecutionAt,
	)

	created, err := scanAutomation(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrAutomationNameConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *AutomationRepository) GetByID(ctx context.Context, id, userID string) (*domain.Automation, error) {
	query := `SELECT` + automationColumns + `
		FROM automations
		WHERE id = $1 AND user_id = $2`

	return scanAutomation(r.pool.QueryRow(ctx, query, id, userID))
}

func (r *AutomationRepository) List(ctx context.Context, input repository.ListAutomationsInput) ([]*domain.Automation, error) {
	args := []any{input.UserID}
	where := []string{"user_id = $1"}

	if input.CursorTime != nil {
		args = append(args, *input.CursorTime, input.CursorID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, input.Limit)

	query := fmt.Sprintf(`SELECT`+automationColumns+`
		FROM automations
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`,
		strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list automations: %w", err)
	}
	return collectAutomations(rows)
}

func (r *AutomationRepository) Update(ctx context.Context, a *domain.Automation) (*domain.Automation, error) {
	query := `
		UPDATE automations
		SET name                   = $3,
		    description            = $4,
		    type                   = $5,
		    config                 = $6,
		    conditions             = $7,
		    recipients             = $8,
		    schedule_type          = $9,
		    schedule_time          = $10,
		    schedule_day_of_month  = $11,
		    schedule_day_of_week   = $12,
		    schedule_interval      = $13,
		    custom_cron_expression = $14,
		    next_execution_at      = CASE WHEN is_active THEN $15::timestamptz ELSE NULL END,
		    updated_at             = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING` + automationColumns

	row := r.pool.QueryRow(ctx, query,
		a.ID, a.UserID, a.Name, a.Description, a.Type, a.Config, a.Conditions, a.Recipients,
		a.Schedule.Type, a.Schedule.Time, a.Schedule.DayOfMonth, a.Schedule.DayOfWeek,
		a.Schedule.IntervalMinutes, a.Schedule.CronExpression, a.NextExecutionAt,
	)

	updated, err := scanAutomation(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrAutomationNameConflict
		}
		return nil, err
	}
	return updated, nil
}

func (r *AutomationRepository) SetActive(ctx context.Context, id, userID string, active bool, next *time.Time) error {
	if !active {
		next = nil
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE automations
		 SET is_active = $3, next_execution_at = $4, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND is_active = $5`,
		id, userID, active, next, !active)
	if isMissingReference(err) {
		return domain.ErrAutomationNotFound
	}
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish not-found vs already-in-desired-state
		if _, err := r.GetByID(ctx, id, userID); err != nil {
			return err
		}
		if active {
			return domain.ErrAutomationNotPaused
		}
		return domain.ErrAutomationAlreadyPaused
	}
	return nil
}

func (r *AutomationRepository) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM automations WHERE id = $1 AND user_id = $2`,
		id, userID)
	if isMissingReference(err) {
		return domain.ErrAutomationNotFound
	}
	if err != nil {
		return fmt.Errorf("delete automation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAutomationNotFound
	}
	return nil
}

func (r *AutomationRepository) FindDue(ctx context.Context, now time.Time) ([]*domain.Automation, error) {
	query := `SELECT` + automationColumns + `
		FROM automations
		WHERE is_active
		  AND next_execution_at IS NOT NULL
		  AND next_execution_at <= $1
		ORDER BY next_execution_at ASC`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("find due automations: %w", err)
	}
	return collectAutomations(rows)
}

func (r *AutomationRepository) FindActiveWithoutNext(ctx context.Context, limit int) ([]*domain.Automation, error) {
	query := `SELECT` + automationColumns + `
		FROM automations
		WHERE is_active
		  AND next_execution_at IS NULL
		  AND schedule_type <> 'ONCE'
		ORDER BY updated_at ASC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("find automations without next run: %w", err)
	}
	return collectAutomations(rows)
}

func (r *AutomationRepository) UpdateNextExecution(ctx context.Context, id string, next *time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE automations
		 SET next_execution_at = CASE WHEN is_active THEN $2::timestamptz ELSE NULL END,
		     updated_at        = NOW()
		 WHERE id = $1`, id, next)
	if err != nil {
		return fmt.Errorf("update next execution: %w", err)
	}
	return nil
}

func (r *AutomationRepository) AppendExecution(ctx context.Context, exec *domain.AutomationExecution) error {
	return insertExecution(ctx, r.pool, exec)
}

// RecordRun appends the sealed execution and advances the automation in a
// single transaction, so history and next_execution_at never disagree.
func (r *AutomationRepository) RecordRun(ctx context.Context, exec *domain.AutomationExecution, next *time.Time) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertExecution(ctx, tx, exec); err != nil {
			return err
		}

		// A pause that lands mid-tick wins: inactive rows keep a NULL next run.
		tag, err := tx.Exec(ctx,
			`UPDATE automations
			 SET next_execution_at = CASE WHEN is_active THEN $2::timestamptz ELSE NULL END,
			     last_execution_at = $3,
			     updated_at        = NOW()
			 WHERE id = $1`,
			exec.AutomationID, next, exec.StartedAt)
		if err != nil {
			return fmt.Errorf("advance automation %s: %w", exec.AutomationID, err)
		}
		if tag.RowsAffected() == 0 {
			r.logger.WarnContext(ctx, "automation deleted during run", "automation_id", exec.AutomationID)
		}
		return nil
	})
}

func collectAutomations(rows pgx.Rows) ([]*domain.Automation, error) {
	defer rows.Close()

	var automations []*domain.Automation
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, err
		}
		automations = append(automations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate automations: %w", err)
	}
	return automations, nil
}

func scanAutomation(row rowScanner) (*domain.Automation, error) {
	var a domain.Automation
	err := row.Scan(
		&a.ID, &a.UserID, &a.Name, &a.Description, &a.Type, &a.Config, &a.Conditions, &a.Recipients,
		&a.Schedule.Type, &a.Schedule.Time, &a.Schedule.DayOfMonth, &a.Schedule.DayOfWeek,
		&a.Schedule.IntervalMinutes, &a.Schedule.CronExpression, &a.IsActive,
		&a.NextExecutionAt, &a.LastExecutionAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isMissingReference(err) {
			return nil, domain.ErrAutomationNotFound
		}
		return nil, fmt.Errorf("scan automation: %w", err)
	}
	return &a, nil
}

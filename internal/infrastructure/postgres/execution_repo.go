package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
	"github.com/ErlanBelekov/automation-scheduler/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ExecutionRepository struct {
	pool *pgxpool.Pool
}

func NewExecutionRepository(pool *pgxpool.Pool) *ExecutionRepository {
	return &ExecutionRepository{pool: pool}
}

func (r *ExecutionRepository) ListByAutomationID(ctx context.Context, input repository.ListExecutionsInput) ([]*domain.AutomationExecution, error) {
	args := []any{input.AutomationID}
	where := []string{"automation_id = $1"}

	if input.CursorTime != nil {
		args = append(args, *input.CursorTime, input.CursorID)
		where = append(where, fmt.Sprintf("(started_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, input.Limit)

	query := fmt.Sprintf(`
		SELECT id, automation_id, status, started_at, completed_at,
		       error, message, duration_ms
		FROM automation_executions
		WHERE %s
		ORDER BY started_at DESC, id DESC
		LIMIT $%d`,
		strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var executions []*domain.AutomationExecution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return executions, nil
}

// execer is satisfied by *pgxpool.Pool and pgx.Tx.
type execer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// insertExecution writes a sealed execution and fills in its generated ID.
func insertExecution(ctx context.Context, db execer, e *domain.AutomationExecution) error {
	err := db.QueryRow(ctx, `
		INSERT INTO automation_executions (
			automation_id, status, started_at, completed_at, error, message, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		e.AutomationID, e.Status, e.StartedAt, e.CompletedAt, e.Error, e.Message, e.DurationMS,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert execution for automation %s: %w", e.AutomationID, err)
	}
	return nil
}

func scanExecution(row rowScanner) (*domain.AutomationExecution, error) {
	var e domain.AutomationExecution
	err := row.Scan(
		&e.ID, &e.AutomationID, &e.Status, &e.StartedAt, &e.CompletedAt,
		&e.Error, &e.Message, &e.DurationMS,
	)
	if err != nil {
		return nil, fmt.Errorf("scan execution: %w", err)
	}
	return &e, nil
}

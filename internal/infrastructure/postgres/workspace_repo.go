package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WorkspaceRepository reads and writes the CRUD tables (clients, projects,
// tasks, invoices, time entries) on behalf of automation actions. Those
// tables are owned by the main application; this repo only issues the
// narrow queries actions need.
type WorkspaceRepository struct {
	pool *pgxpool.Pool
}

func NewWorkspaceRepository(pool *pgxpool.Pool) *WorkspaceRepository {
	return &WorkspaceRepository{pool: pool}
}

// CreateTask inserts a task for t.UserID. A ProjectID that is malformed or
// names another user's project yields domain.ErrEntityNotFound.
func (r *WorkspaceRepository) CreateTask(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	var created domain.Task
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tasks (user_id, project_id, title, description, status, priority, due_date)
		SELECT $1, $2::uuid, $3, $4, $5, $6, $7
		WHERE $2::uuid IS NULL
		   OR EXISTS (SELECT 1 FROM projects WHERE id = $2::uuid AND user_id = $1)
		RETURNING id, user_id, project_id, title, description, status, priority, due_date, created_at`,
		t.UserID, t.ProjectID, t.Title, t.Description, t.Status, t.Priority, t.DueDate,
	).Scan(
		&created.ID, &created.UserID, &created.ProjectID, &created.Title, &created.Description,
		&created.Status, &created.Priority, &created.DueDate, &created.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) || isMissingReference(err) {
		return nil, domain.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &created, nil
}

func (r *WorkspaceRepository) UpdateStatus(ctx context.Context, userID string, kind domain.EntityKind, id, status string) error {
	var table string
	switch kind {
	case domain.EntityProject:
		table = "projects"
	case domain.EntityTask:
		table = "tasks"
	case domain.EntityInvoice:
		table = "invoices"
	default:
		return fmt.Errorf("update status: unsupported entity %q", kind)
	}

	tag, err := r.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET status = $3, updated_at = NOW() WHERE id = $1 AND user_id = $2`, table),
		id, userID, status)
	if isMissingReference(err) {
		return domain.ErrEntityNotFound
	}
	if err != nil {
		return fmt.Errorf("update %s status: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

func (r *WorkspaceRepository) ArchiveProjects(ctx context.Context, userID string, idleSince time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE projects
		SET    status = 'ARCHIVED', updated_at = NOW()
		WHERE  user_id = $1
		  AND  status = 'COMPLETED'
		  AND  updated_at < $2`, userID, idleSince)
	if err != nil {
		return 0, fmt.Errorf("archive projects: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *WorkspaceRepository) ActiveClients(ctx context.Context, userID string) ([]*domain.Client, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, name, email, company, last_contact_at, created_at
		FROM clients
		WHERE user_id = $1 AND is_active AND email <> ''
		ORDER BY name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("active clients: %w", err)
	}
	return collectClients(rows)
}

func (r *WorkspaceRepository) ClientsNotContactedSince(ctx context.Context, userID string, cutoff time.Time) ([]*domain.Client, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, name, email, company, last_contact_at, created_at
		FROM clients
		WHERE user_id = $1 AND is_active AND email <> ''
		  AND COALESCE(last_contact_at, created_at) < $2
		ORDER BY COALESCE(last_contact_at, created_at) ASC`, userID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("clients not contacted: %w", err)
	}
	return collectClients(rows)
}

func (r *WorkspaceRepository) TouchClientContact(ctx context.Context, clientID string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE clients SET last_contact_at = $2, updated_at = NOW() WHERE id = $1`, clientID, at)
	if err != nil {
		return fmt.Errorf("touch client contact: %w", err)
	}
	return nil
}

func (r *WorkspaceRepository) OverdueInvoices(ctx context.Context, userID string, dueBefore time.Time) ([]*domain.Invoice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.id, i.user_id, i.client_id, i.number, i.status, i.total_cents, i.currency,
		       i.due_date, c.name, c.email
		FROM invoices i
		JOIN clients c ON c.id = i.client_id
		WHERE i.user_id = $1
		  AND i.status IN ('SENT', 'OVERDUE')
		  AND i.due_date < $2
		ORDER BY i.due_date ASC`, userID, dueBefore)
	if err != nil {
		return nil, fmt.Errorf("overdue invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*domain.Invoice
	for rows.Next() {
		var i domain.Invoice
		if err := rows.Scan(
			&i.ID, &i.UserID, &i.ClientID, &i.Number, &i.Status, &i.TotalCents, &i.Currency,
			&i.DueDate, &i.ClientName, &i.ClientEmail,
		); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, &i)
	}
	return invoices, rows.Err()
}

func (r *WorkspaceRepository) TasksDueBetween(ctx context.Context, userID string, from, to time.Time) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, project_id, title, description, status, priority, due_date, created_at
		FROM tasks
		WHERE user_id = $1
		  AND status <> 'DONE'
		  AND due_date >= $2 AND due_date < $3
		ORDER BY due_date ASC`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("tasks due: %w", err)
	}
	return collectTasks(rows)
}

func (r *WorkspaceRepository) Summary(ctx context.Context, userID string, from, to time.Time) (*domain.WorkspaceSummary, error) {
	s := domain.WorkspaceSummary{From: from, To: to}

	err := r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(total_cents) FILTER (WHERE status = 'PAID' AND paid_at >= $2 AND paid_at < $3), 0),
			COUNT(*) FILTER (WHERE status = 'PAID' AND paid_at >= $2 AND paid_at < $3),
			COUNT(*) FILTER (WHERE status IN ('SENT', 'OVERDUE') AND due_date < $3),
			COALESCE(SUM(total_cents) FILTER (WHERE status IN ('SENT', 'OVERDUE')), 0),
			COALESCE(MAX(currency), 'USD')
		FROM invoices
		WHERE user_id = $1`, userID, from, to,
	).Scan(&s.RevenueCents, &s.InvoicesPaid, &s.InvoicesOverdue, &s.OutstandingCents, &s.Currency)
	if err != nil {
		return nil, fmt.Errorf("summary invoices: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'ACTIVE'),
			COUNT(*) FILTER (WHERE status = 'COMPLETED' AND updated_at >= $2 AND updated_at < $3)
		FROM projects
		WHERE user_id = $1`, userID, from, to,
	).Scan(&s.ProjectsActive, &s.ProjectsCompleted)
	if err != nil {
		return nil, fmt.Errorf("summary projects: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'DONE' AND updated_at >= $2 AND updated_at < $3),
			COUNT(*) FILTER (WHERE status <> 'DONE')
		FROM tasks
		WHERE user_id = $1`, userID, from, to,
	).Scan(&s.TasksCompleted, &s.TasksOpen)
	if err != nil {
		return nil, fmt.Errorf("summary tasks: %w", err)
	}

	var minutes int64
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(duration_minutes), 0)
		FROM time_entries
		WHERE user_id = $1 AND started_at >= $2 AND started_at < $3`, userID, from, to,
	).Scan(&minutes)
	if err != nil {
		return nil, fmt.Errorf("summary time entries: %w", err)
	}
	s.HoursTracked = float64(minutes) / 60

	return &s, nil
}

func (r *WorkspaceRepository) Snapshot(ctx context.Context, userID string) (*domain.WorkspaceSnapshot, error) {
	snap := &domain.WorkspaceSnapshot{UserID: userID, ExportedAt: time.Now().UTC()}

	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, name, email, company, last_contact_at, created_at
		FROM clients WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("snapshot clients: %w", err)
	}
	if snap.Clients, err = collectClients(rows); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `
		SELECT id, user_id, client_id, name, status, deadline, updated_at
		FROM projects WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("snapshot projects: %w", err)
	}
	snap.Projects, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Project, error) {
		var p domain.Project
		err := row.Scan(&p.ID, &p.UserID, &p.ClientID, &p.Name, &p.Status, &p.Deadline, &p.UpdatedAt)
		return &p, err
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot projects: %w", err)
	}

	rows, err = r.pool.Query(ctx, `
		SELECT id, user_id, project_id, title, description, status, priority, due_date, created_at
		FROM tasks WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("snapshot tasks: %w", err)
	}
	if snap.Tasks, err = collectTasks(rows); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `
		SELECT i.id, i.user_id, i.client_id, i.number, i.status, i.total_cents, i.currency,
		       i.due_date, c.name, c.email
		FROM invoices i
		JOIN clients c ON c.id = i.client_id
		WHERE i.user_id = $1
		ORDER BY i.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("snapshot invoices: %w", err)
	}
	snap.Invoices, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Invoice, error) {
		var i domain.Invoice
		err := row.Scan(
			&i.ID, &i.UserID, &i.ClientID, &i.Number, &i.Status, &i.TotalCents, &i.Currency,
			&i.DueDate, &i.ClientName, &i.ClientEmail,
		)
		return &i, err
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot invoices: %w", err)
	}

	return snap, nil
}

func collectClients(rows pgx.Rows) ([]*domain.Client, error) {
	clients, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Client, error) {
		var c domain.Client
		err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Company, &c.LastContactAt, &c.CreatedAt)
		return &c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan clients: %w", err)
	}
	return clients, nil
}

func collectTasks(rows pgx.Rows) ([]*domain.Task, error) {
	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Task, error) {
		var t domain.Task
		err := row.Scan(
			&t.ID, &t.UserID, &t.ProjectID, &t.Title, &t.Description,
			&t.Status, &t.Priority, &t.DueDate, &t.CreatedAt,
		)
		return &t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}
	return tasks, nil
}

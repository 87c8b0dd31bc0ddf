package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
)

// WorkspaceRepository is the narrow slice of the CRUD data layer that
// automation actions read from and write to. All methods are scoped to one user.
type WorkspaceRepository interface {
	CreateTask(ctx context.Context, t *domain.Task) (*domain.Task, error)
	UpdateStatus(ctx context.Context, userID string, kind domain.EntityKind, id, status string) error
	ArchiveProjects(ctx context.Context, userID string, idleSince time.Time) (int, error)

	ActiveClients(ctx context.Context, userID string) ([]*domain.Client, error)
	ClientsNotContactedSince(ctx context.Context, userID string, cutoff time.Time) ([]*domain.Client, error)
	TouchClientContact(ctx context.Context, clientID string, at time.Time) error

	OverdueInvoices(ctx context.Context, userID string, dueBefore time.Time) ([]*domain.Invoice, error)
	TasksDueBetween(ctx context.Context, userID string, from, to time.Time) ([]*domain.Task, error)

	Summary(ctx context.Context, userID string, from, to time.Time) (*domain.WorkspaceSummary, error)
	Snapshot(ctx context.Context, userID string) (*domain.WorkspaceSnapshot, error)
}

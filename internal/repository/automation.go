package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
)

type ListAutomationsInput struct {
	UserID     string
	CursorTime *time.Time // cursor on (created_at DESC, id DESC)
	CursorID   string
	Limit      int
}

// AutomationStore is everything the scheduler runner needs from persistence.
type AutomationStore interface {
	// FindDue returns active automations whose next execution is at or before now.
	FindDue(ctx context.Context, now time.Time) ([]*domain.Automation, error)

	// UpdateNextExecution sets next_execution_at. Inactive rows always keep NULL.
	UpdateNextExecution(ctx context.Context, id string, next *time.Time) error

	// AppendExecution writes a sealed execution record.
	AppendExecution(ctx context.Context, exec *domain.AutomationExecution) error

	// RecordRun appends the execution and advances next_execution_at in one transaction.
	RecordRun(ctx context.Context, exec *domain.AutomationExecution, next *time.Time) error
}

type AutomationRepository interface {
	AutomationStore

	Create(ctx context.Context, a *domain.Automation) (*domain.Automation, error)
	GetByID(ctx context.Context, id, userID string) (*domain.Automation, error)
	List(ctx context.Context, input ListAutomationsInput) ([]*domain.Automation, error)
	Update(ctx context.Context, a *domain.Automation) (*domain.Automation, error)
	// SetActive flips is_active and stores next alongside it. Returns
	// ErrAutomationAlreadyPaused / ErrAutomationNotPaused when already in that state.
	SetActive(ctx context.Context, id, userID string, active bool, next *time.Time) error
	Delete(ctx context.Context, id, userID string) error

	// FindActiveWithoutNext returns active, recurring automations that have no
	// next execution stored. Used by the repairer.
	FindActiveWithoutNext(ctx context.Context, limit int) ([]*domain.Automation, error)
}

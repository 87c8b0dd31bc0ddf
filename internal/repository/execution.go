package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
)

type ListExecutionsInput struct {
	AutomationID string
	CursorTime   *time.Time // cursor on (started_at DESC, id DESC)
	CursorID     string
	Limit        int
}

type ExecutionRepository interface {
	// ListByAutomationID returns executions newest first. Ownership is
	// assumed to have been verified by the caller.
	ListByAutomationID(ctx context.Context, input ListExecutionsInput) ([]*domain.AutomationExecution, error)
}

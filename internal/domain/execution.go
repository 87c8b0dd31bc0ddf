package domain

import "time"

type ExecutionStatus string

const (
	ExecutionSuccess       ExecutionStatus = "SUCCESS"
	ExecutionFailed        ExecutionStatus = "FAILED"
	ExecutionCriticalError ExecutionStatus = "CRITICAL_ERROR"
)

// AutomationExecution is one sealed entry of the execution ledger. Rows are
// appended once and never updated.
type AutomationExecution struct {
	ID           string
	AutomationID string
	Status       ExecutionStatus
	StartedAt    time.Time
	CompletedAt  *time.Time
	Error        *string
	Message      *string
	DurationMS   int64
}

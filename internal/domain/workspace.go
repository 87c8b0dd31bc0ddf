package domain

import (
	"errors"
	"time"
)

// Workspace entities are owned by the CRUD side of the product. The
// automation engine only reads them and performs a few targeted writes.

var ErrEntityNotFound = errors.New("entity not found")

type EntityKind string

const (
	EntityProject EntityKind = "project"
	EntityTask    EntityKind = "task"
	EntityInvoice EntityKind = "invoice"
)

const (
	ProjectActive    = "ACTIVE"
	ProjectOnHold    = "ON_HOLD"
	ProjectCompleted = "COMPLETED"
	ProjectArchived  = "ARCHIVED"

	TaskTodo       = "TODO"
	TaskInProgress = "IN_PROGRESS"
	TaskDone       = "DONE"

	InvoiceDraft     = "DRAFT"
	InvoiceSent      = "SENT"
	InvoicePaid      = "PAID"
	InvoiceOverdue   = "OVERDUE"
	InvoiceCancelled = "CANCELLED"
)

// EntityStatuses lists the statuses each entity kind accepts.
var EntityStatuses = map[EntityKind][]string{
	EntityProject: {ProjectActive, ProjectOnHold, ProjectCompleted, ProjectArchived},
	EntityTask:    {TaskTodo, TaskInProgress, TaskDone},
	EntityInvoice: {InvoiceDraft, InvoiceSent, InvoicePaid, InvoiceOverdue, InvoiceCancelled},
}

type Client struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Company       *string    `json:"company,omitempty"`
	LastContactAt *time.Time `json:"lastContactAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type Project struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	ClientID  *string    `json:"clientId,omitempty"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	ProjectID   *string    `json:"projectId,omitempty"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type Invoice struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	ClientID    string    `json:"clientId"`
	Number      string    `json:"number"`
	Status      string    `json:"status"`
	TotalCents  int64     `json:"totalCents"`
	Currency    string    `json:"currency"`
	DueDate     time.Time `json:"dueDate"`
	ClientName  string    `json:"clientName"`
	ClientEmail string    `json:"clientEmail"`
}

// WorkspaceSummary aggregates one user's activity over [From, To).
type WorkspaceSummary struct {
	From time.Time
	To   time.Time

	RevenueCents      int64
	Currency          string
	InvoicesPaid      int
	InvoicesOverdue   int
	OutstandingCents  int64
	ProjectsActive    int
	ProjectsCompleted int
	TasksCompleted    int
	TasksOpen         int
	HoursTracked      float64
}

// WorkspaceSnapshot is the payload written by BACKUP_DATA.
type WorkspaceSnapshot struct {
	UserID     string     `json:"userId"`
	ExportedAt time.Time  `json:"exportedAt"`
	Clients    []*Client  `json:"clients"`
	Projects   []*Project `json:"projects"`
	Tasks      []*Task    `json:"tasks"`
	Invoices   []*Invoice `json:"invoices"`
}

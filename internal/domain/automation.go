package domain

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrAutomationNotFound      = errors.New("automation not found")
	ErrAutomationNameConflict  = errors.New("automation with this name already exists")
	ErrAutomationAlreadyPaused = errors.New("automation is already paused")
	ErrAutomationNotPaused     = errors.New("automation is not paused")
	ErrInvalidSchedule         = errors.New("invalid schedule")
	ErrInvalidActionConfig     = errors.New("invalid action config")
	ErrUnknownActionType       = errors.New("unknown action type")
	ErrInvalidCursor           = errors.New("invalid cursor")
)

type ScheduleType string

const (
	ScheduleOnce       ScheduleType = "ONCE"
	ScheduleDaily      ScheduleType = "DAILY"
	ScheduleWeekly     ScheduleType = "WEEKLY"
	ScheduleMonthly    ScheduleType = "MONTHLY"
	ScheduleYearly     ScheduleType = "YEARLY"
	ScheduleInterval   ScheduleType = "INTERVAL"
	ScheduleCustomCron ScheduleType = "CUSTOM_CRON"
)

type ActionType string

const (
	ActionEmailReminder    ActionType = "EMAIL_REMINDER"
	ActionTaskCreation     ActionType = "TASK_CREATION"
	ActionStatusUpdate     ActionType = "STATUS_UPDATE"
	ActionReportGeneration ActionType = "REPORT_GENERATION"
	ActionClientFollowUp   ActionType = "CLIENT_FOLLOW_UP"
	ActionInvoiceReminder  ActionType = "INVOICE_REMINDER"
	ActionBackupData       ActionType = "BACKUP_DATA"
	ActionNotificationSend ActionType = "NOTIFICATION_SEND"
	ActionProjectArchive   ActionType = "PROJECT_ARCHIVE"
	ActionClientCheckIn    ActionType = "CLIENT_CHECK_IN"
	ActionDeadlineAlert    ActionType = "DEADLINE_ALERT"
	ActionWeeklySummary    ActionType = "WEEKLY_SUMMARY"
)

type RecipientType string

const (
	RecipientTo  RecipientType = "TO"
	RecipientCC  RecipientType = "CC"
	RecipientBCC RecipientType = "BCC"
)

type Recipient struct {
	Email string        `json:"email"`
	Name  string        `json:"name,omitempty"`
	Type  RecipientType `json:"recipientType"`
}

// Schedule describes when an automation fires. Which optional fields are
// required depends on Type.
type Schedule struct {
	Type            ScheduleType
	Time            string // "HH:MM", scheduler timezone
	DayOfMonth      *int   // 1-31, MONTHLY
	DayOfWeek       *int   // 0-6 (Sunday = 0), WEEKLY
	IntervalMinutes *int   // >= 1, INTERVAL
	CronExpression  *string
}

type Automation struct {
	ID          string
	UserID      string
	Name        string
	Description *string

	Type       ActionType
	Config     json.RawMessage
	Conditions json.RawMessage // nil means no conditions
	Recipients []Recipient

	Schedule        Schedule
	IsActive        bool
	NextExecutionAt *time.Time // nil: inactive or schedule exhausted
	LastExecutionAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

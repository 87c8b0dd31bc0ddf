package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
	"github.com/ErlanBelekov/automation-scheduler/internal/scheduler"
	"github.com/ErlanBelekov/automation-scheduler/internal/usecase"
	"github.com/gin-gonic/gin"
)

// automationUsecaser is the subset of AutomationUsecase the handler needs.
type automationUsecaser interface {
	CreateAutomation(ctx context.Context, userID string, in usecase.AutomationInput, active bool) (*domain.Automation, error)
	GetAutomation(ctx context.Context, id, userID string) (*domain.Automation, error)
	UpdateAutomation(ctx context.Context, id, userID string, in usecase.AutomationInput) (*domain.Automation, error)
	ListAutomations(ctx context.Context, input usecase.ListAutomationsInput) (usecase.ListAutomationsResult, error)
	PauseAutomation(ctx context.Context, id, userID string) error
	ResumeAutomation(ctx context.Context, id, userID string) (*time.Time, error)
	DeleteAutomation(ctx context.Context, id, userID string) error
	RunAutomation(ctx context.Context, id, userID string) (scheduler.Result, error)
	ListExecutions(ctx context.Context, input usecase.ListExecutionsInput) (usecase.ListExecutionsResult, error)
}

type AutomationHandler struct {
	uc     automationUsecaser
	logger *slog.Logger
}

func NewAutomationHandler(uc automationUsecaser, logger *slog.Logger) *AutomationHandler {
	return &AutomationHandler{uc: uc, logger: logger.With("component", "automation_handler")}
}

type scheduleJSON struct {
	Type            domain.ScheduleType `json:"type"`
	Time            string              `json:"time,omitempty"`
	DayOfMonth      *int                `json:"dayOfMonth,omitempty"`
	DayOfWeek       *int                `json:"dayOfWeek,omitempty"`
	IntervalMinutes *int                `json:"intervalMinutes,omitempty"`
	CronExpression  *string             `json:"cronExpression,omitempty"`
}

type recipientJSON struct {
	Email string               `json:"email"         binding:"required,email,max=320"`
	Name  string               `json:"name"          binding:"max=200"`
	Type  domain.RecipientType `json:"recipientType" binding:"omitempty,oneof=TO CC BCC"`
}

type automationRequest struct {
	Name        string            `json:"name"        binding:"required,max=256"`
	Description *string           `json:"description" binding:"omitempty,max=2000"`
	Type        domain.ActionType `json:"type"        binding:"required"`
	Config      json.RawMessage   `json:"config"`
	Conditions  json.RawMessage   `json:"conditions"`
	Recipients  []recipientJSON   `json:"recipients"  binding:"max=50,dive"`
	Schedule    scheduleJSON      `json:"schedule"`
	IsActive    *bool             `json:"isActive"`
}

func (r automationRequest) input() usecase.AutomationInput {
	recipients := make([]domain.Recipient, len(r.Recipients))
	for i, rc := range r.Recipients {
		t := rc.Type
		if t == "" {
			t = domain.RecipientTo
		}
		recipients[i] = domain.Recipient{Email: rc.Email, Name: rc.Name, Type: t}
	}
	return usecase.AutomationInput{
		Name:        r.Name,
		Description: r.Description,
		Type:        r.Type,
		Config:      r.Config,
		Conditions:  r.Conditions,
		Recipients:  recipients,
		Schedule: domain.Schedule{
			Type:            r.Schedule.Type,
			Time:            r.Schedule.Time,
			DayOfMonth:      r.Schedule.DayOfMonth,
			DayOfWeek:       r.Schedule.DayOfWeek,
			IntervalMinutes: r.Schedule.IntervalMinutes,
			CronExpression:  r.Schedule.CronExpression,
		},
	}
}

type automationResponse struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Description     *string           `json:"description,omitempty"`
	Type            domain.ActionType `json:"type"`
	Config          json.RawMessage   `json:"config,omitempty"`
	Conditions      json.RawMessage   `json:"conditions,omitempty"`
	Recipients      []recipientJSON   `json:"recipients"`
	Schedule        scheduleJSON      `json:"schedule"`
	IsActive        bool              `json:"isActive"`
	NextExecutionAt *time.Time        `json:"nextExecutionAt"`
	LastExecutionAt *time.Time        `json:"lastExecutionAt,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func toAutomationResponse(a *domain.Automation) automationResponse {
	recipients := make([]recipientJSON, len(a.Recipients))
	for i, r := range a.Recipients {
		recipients[i] = recipientJSON{Email: r.Email, Name: r.Name, Type: r.Type}
	}
	return automationResponse{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		Type:        a.Type,
		Config:      a.Config,
		Conditions:  a.Conditions,
		Recipients:  recipients,
		Schedule: scheduleJSON{
			Type:            a.Schedule.Type,
			Time:            a.Schedule.Time,
			DayOfMonth:      a.Schedule.DayOfMonth,
			DayOfWeek:       a.Schedule.DayOfWeek,
			IntervalMinutes: a.Schedule.IntervalMinutes,
			CronExpression:  a.Schedule.CronExpression,
		},
		IsActive:        a.IsActive,
		NextExecutionAt: a.NextExecutionAt,
		LastExecutionAt: a.LastExecutionAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

type executionResponse struct {
	ID          string                 `json:"id"`
	Status      domain.ExecutionStatus `json:"status"`
	StartedAt   time.Time              `json:"startedAt"`
	CompletedAt *time.Time             `json:"completedAt,omitempty"`
	DurationMS  int64                  `json:"durationMs"`
	Error       *string                `json:"error,omitempty"`
	Message     *string                `json:"message,omitempty"`
}

// runResultResponse is one automation's outcome, shared by the tick trigger
// and run-now.
type runResultResponse struct {
	AutomationID  string                 `json:"automationId"`
	Name          string                 `json:"name"`
	Status        domain.ExecutionStatus `json:"status"`
	NextExecution *time.Time             `json:"nextExecution,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Message       string                 `json:"message,omitempty"`
}

func toRunResultResponse(r scheduler.Result) runResultResponse {
	return runResultResponse{
		AutomationID:  r.AutomationID,
		Name:          r.Name,
		Status:        r.Status,
		NextExecution: r.NextExecution,
		Error:         r.Error,
		Message:       r.Message,
	}
}

func (h *AutomationHandler) fail(c *gin.Context, op string, err error) {
	status, msg, ok := statusFor(err)
	if !ok {
		h.logger.ErrorContext(c.Request.Context(), op, "automation_id", c.Param("id"), "error", err)
	}
	c.JSON(status, gin.H{"error": msg})
}

// POST /automations
func (h *AutomationHandler) Create(c *gin.Context) {
	var req automationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	active := req.IsActive == nil || *req.IsActive
	a, err := h.uc.CreateAutomation(c.Request.Context(), c.GetString("userID"), req.input(), active)
	if err != nil {
		h.fail(c, "create automation", err)
		return
	}

	c.JSON(http.StatusCreated, toAutomationResponse(a))
}

// GET /automations
func (h *AutomationHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.uc.ListAutomations(c.Request.Context(), usecase.ListAutomationsInput{
		UserID: c.GetString("userID"),
		Cursor: c.Query("cursor"),
		Limit:  limit,
	})
	if err != nil {
		h.fail(c, "list automations", err)
		return
	}

	items := make([]automationResponse, len(result.Automations))
	for i, a := range result.Automations {
		items[i] = toAutomationResponse(a)
	}
	c.JSON(http.StatusOK, gin.H{
		"automations": items,
		"nextCursor":  result.NextCursor,
	})
}

// GET /automations/:id
func (h *AutomationHandler) GetByID(c *gin.Context) {
	a, err := h.uc.GetAutomation(c.Request.Context(), c.Param("id"), c.GetString("userID"))
	if err != nil {
		h.fail(c, "get automation", err)
		return
	}
	c.JSON(http.StatusOK, toAutomationResponse(a))
}

// PUT /automations/:id
func (h *AutomationHandler) Update(c *gin.Context) {
	var req automationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a, err := h.uc.UpdateAutomation(c.Request.Context(), c.Param("id"), c.GetString("userID"), req.input())
	if err != nil {
		h.fail(c, "update automation", err)
		return
	}
	c.JSON(http.StatusOK, toAutomationResponse(a))
}

// POST /automations/:id/pause
func (h *AutomationHandler) Pause(c *gin.Context) {
	if err := h.uc.PauseAutomation(c.Request.Context(), c.Param("id"), c.GetString("userID")); err != nil {
		h.fail(c, "pause automation", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /automations/:id/resume
func (h *AutomationHandler) Resume(c *gin.Context) {
	next, err := h.uc.ResumeAutomation(c.Request.Context(), c.Param("id"), c.GetString("userID"))
	if err != nil {
		h.fail(c, "resume automation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nextExecutionAt": next})
}

// DELETE /automations/:id
func (h *AutomationHandler) Delete(c *gin.Context) {
	if err := h.uc.DeleteAutomation(c.Request.Context(), c.Param("id"), c.GetString("userID")); err != nil {
		h.fail(c, "delete automation", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /automations/:id/run
func (h *AutomationHandler) Run(c *gin.Context) {
	// the run is recorded even if the caller goes away
	ctx := context.WithoutCancel(c.Request.Context())

	res, err := h.uc.RunAutomation(ctx, c.Param("id"), c.GetString("userID"))
	if err != nil {
		h.fail(c, "run automation", err)
		return
	}
	c.JSON(http.StatusOK, toRunResultResponse(res))
}

// GET /automations/:id/executions
func (h *AutomationHandler) ListExecutions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.uc.ListExecutions(c.Request.Context(), usecase.ListExecutionsInput{
		AutomationID: c.Param("id"),
		UserID:       c.GetString("userID"),
		Cursor:       c.Query("cursor"),
		Limit:        limit,
	})
	if err != nil {
		h.fail(c, "list executions", err)
		return
	}

	items := make([]executionResponse, len(result.Executions))
	for i, e := range result.Executions {
		items[i] = executionResponse{
			ID:          e.ID,
			Status:      e.Status,
			StartedAt:   e.StartedAt,
			CompletedAt: e.CompletedAt,
			DurationMS:  e.DurationMS,
			Error:       e.Error,
			Message:     e.Message,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"executions": items,
		"nextCursor": result.NextCursor,
	})
}

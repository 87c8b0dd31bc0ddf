package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/internal/action"
	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
	"github.com/ErlanBelekov/automation-scheduler/internal/repository"
	"github.com/ErlanBelekov/automation-scheduler/internal/schedule"
	"github.com/ErlanBelekov/automation-scheduler/internal/scheduler"
)

type runNower interface {
	RunNow(ctx context.Context, a *domain.Automation) scheduler.Result
}

type AutomationUsecase struct {
	repo       repository.AutomationRepository
	executions repository.ExecutionRepository
	runner     runNower
	clock      func() time.Time
}

func NewAutomationUsecase(
	repo repository.AutomationRepository,
	executions repository.ExecutionRepository,
	runner runNower,
	clock func() time.Time,
) *AutomationUsecase {
	return &AutomationUsecase{repo: repo, executions: executions, runner: runner, clock: clock}
}

// AutomationInput is the user-editable part of an automation.
type AutomationInput struct {
	Name        string
	Description *string
	Type        domain.ActionType
	Config      json.RawMessage
	Conditions  json.RawMessage
	Recipients  []domain.Recipient
	Schedule    domain.Schedule
}

func (in AutomationInput) validate() error {
	if err := schedule.Validate(in.Schedule); err != nil {
		return err
	}
	if _, err := action.Decode(in.Type, in.Config); err != nil {
		return err
	}
	if _, err := action.DecodeConditions(in.Conditions); err != nil {
		return err
	}
	return nil
}

func (u *AutomationUsecase) CreateAutomation(ctx context.Context, userID string, in AutomationInput, active bool) (*domain.Automation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	a := &domain.Automation{
		UserID:          userID,
		Name:            in.Name,
		Description:     in.Description,
		Type:            in.Type,
		Config:          in.Config,
		Conditions:      in.Conditions,
		Recipients:      in.Recipients,
		Schedule:        in.Schedule,
		IsActive:        active,
		NextExecutionAt: schedule.NextExecution(in.Schedule, active, u.clock()),
	}

	created, err := u.repo.Create(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("create automation: %w", err)
	}
	return created, nil
}

func (u *AutomationUsecase) GetAutomation(ctx context.Context, id, userID string) (*domain.Automation, error) {
	a, err := u.repo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("get automation: %w", err)
	}
	return a, nil
}

// UpdateAutomation replaces the editable fields and recomputes the next run
// from the new schedule.
func (u *AutomationUsecase) UpdateAutomation(ctx context.Context, id, userID string, in AutomationInput) (*domain.Automation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	current, err := u.repo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("get automation: %w", err)
	}

	current.Name = in.Name
	current.Description = in.Description
	current.Type = in.Type
	current.Config = in.Config
	current.Conditions = in.Conditions
	current.Recipients = in.Recipients
	current.Schedule = in.Schedule
	current.NextExecutionAt = schedule.NextExecution(in.Schedule, current.IsActive, u.clock())

	updated, err := u.repo.Update(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("update automation: %w", err)
	}
	return updated, nil
}

type ListAutomationsInput struct {
	UserID string
	Cursor string
	Limit  int
}

type ListAutomationsResult struct {
	Automations []*domain.Automation
	NextCursor  *string
}

func (u *AutomationUsecase) ListAutomations(ctx context.Context, input ListAutomationsInput) (ListAutomationsResult, error) {
	limit := clampLimit(input.Limit)

	repoInput := repository.ListAutomationsInput{
		UserID: input.UserID,
		Limit:  limit + 1,
	}
	if input.Cursor != "" {
		cursorTime, cursorID, err := decodeCursor(input.Cursor)
		if err != nil {
			return ListAutomationsResult{}, domain.ErrInvalidCursor
		}
		repoInput.CursorTime = cursorTime
		repoInput.CursorID = cursorID
	}

	automations, err := u.repo.List(ctx, repoInput)
	if err != nil {
		return ListAutomationsResult{}, fmt.Errorf("list automations: %w", err)
	}

	var nextCursor *string
	if len(automations) == limit+1 {
		last := automations[limit-1]
		s := encodeCursor(last.CreatedAt, last.ID)
		nextCursor = &s
		automations = automations[:limit]
	}

	return ListAutomationsResult{Automations: automations, NextCursor: nextCursor}, nil
}

func (u *AutomationUsecase) PauseAutomation(ctx context.Context, id, userID string) error {
	if err := u.repo.SetActive(ctx, id, userID, false, nil); err != nil {
		return fmt.Errorf("pause automation: %w", err)
	}
	return nil
}

// ResumeAutomation reactivates the automation with a next run computed from
// now, so runs missed while paused are not replayed.
func (u *AutomationUsecase) ResumeAutomation(ctx context.Context, id, userID string) (*time.Time, error) {
	a, err := u.repo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("get automation: %w", err)
	}
	if a.IsActive {
		return nil, domain.ErrAutomationNotPaused
	}

	next := schedule.NextExecution(a.Schedule, true, u.clock())
	if err := u.repo.SetActive(ctx, id, userID, true, next); err != nil {
		return nil, fmt.Errorf("resume automation: %w", err)
	}
	return next, nil
}

func (u *AutomationUsecase) DeleteAutomation(ctx context.Context, id, userID string) error {
	if err := u.repo.Delete(ctx, id, userID); err != nil {
		return fmt.Errorf("delete automation: %w", err)
	}
	return nil
}

// RunAutomation executes the automation immediately and records the run.
func (u *AutomationUsecase) RunAutomation(ctx context.Context, id, userID string) (scheduler.Result, error) {
	a, err := u.repo.GetByID(ctx, id, userID)
	if err != nil {
		return scheduler.Result{}, fmt.Errorf("get automation: %w", err)
	}
	return u.runner.RunNow(ctx, a), nil
}

type ListExecutionsInput struct {
	AutomationID string
	UserID       string
	Cursor       string
	Limit        int
}

type ListExecutionsResult struct {
	Executions []*domain.AutomationExecution
	NextCursor *string
}

func (u *AutomationUsecase) ListExecutions(ctx context.Context, input ListExecutionsInput) (ListExecutionsResult, error) {
	// Verify ownership
	if _, err := u.repo.GetByID(ctx, input.AutomationID, input.UserID); err != nil {
		return ListExecutionsResult{}, fmt.Errorf("get automation: %w", err)
	}

	limit := clampLimit(input.Limit)
	repoInput := repository.ListExecutionsInput{
		AutomationID: input.AutomationID,
		Limit:        limit + 1,
	}
	if input.Cursor != "" {
		cursorTime, cursorID, err := decodeCursor(input.Cursor)
		if err != nil {
			return ListExecutionsResult{}, domain.ErrInvalidCursor
		}
		repoInput.CursorTime = cursorTime
		repoInput.CursorID = cursorID
	}

	executions, err := u.executions.ListByAutomationID(ctx, repoInput)
	if err != nil {
		return ListExecutionsResult{}, fmt.Errorf("list executions: %w", err)
	}

	var nextCursor *string
	if len(executions) == limit+1 {
		last := executions[limit-1]
		s := encodeCursor(last.StartedAt, last.ID)
		nextCursor = &s
		executions = executions[:limit]
	}

	return ListExecutionsResult{Executions: executions, NextCursor: nextCursor}, nil
}

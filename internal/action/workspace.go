package action

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
)

type TaskCreation struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=5000"`
	ProjectID   *string `json:"projectId" validate:"omitempty,min=1"`
	Priority    string  `json:"priority" validate:"oneof=LOW MEDIUM HIGH URGENT"`
	DueInDays   int     `json:"dueInDays" validate:"gte=0,lte=365"`
}

func (*TaskCreation) Kind() domain.ActionType { return domain.ActionTaskCreation }

func (t *TaskCreation) normalize() error {
	if t.Priority == "" {
		t.Priority = "MEDIUM"
	}
	return nil
}

func (t *TaskCreation) Execute(ctx context.Context, env Env, a *domain.Automation) (Outcome, error) {
	task := &domain.Task{
		UserID:    a.UserID,
		ProjectID: t.ProjectID,
		Title:     t.Title,
		Status:    domain.TaskTodo,
		Priority:  t.Priority,
	}
	if t.Description != "" {
		task.Description = &t.Description
	}
	if t.DueInDays > 0 {
		due := env.now().AddDate(0, 0, t.DueInDays)
		task.DueDate = &due
	}

	created, err := env.Workspace.CreateTask(ctx, task)
	if errors.Is(err, domain.ErrEntityNotFound) {
		if t.ProjectID == nil {
			return failed("task rejected: referenced entity not found"), nil
		}
		return failed("project %s not found", *t.ProjectID), nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("create task: %w", err)
	}
	return succeeded("created task %s", created.ID), nil
}

type StatusUpdate struct {
	Entity   domain.EntityKind `json:"entity" validate:"required,oneof=project task invoice"`
	EntityID string            `json:"entityId" validate:"required"`
	Status   string            `json:"status" validate:"required"`
}

func (*StatusUpdate) Kind() domain.ActionType { return domain.ActionStatusUpdate }

func (s *StatusUpdate) normalize() error {
	allowed, ok := domain.EntityStatuses[s.Entity]
	if ok && !slices.Contains(allowed, s.Status) {
		return fmt.Errorf("status %q is not valid for %s", s.Status, s.Entity)
	}
	return nil
}

func (s *StatusUpdate) Execute(ctx context.Context, env Env, a *domain.Automation) (Outcome, error) {
	err := env.Workspace.UpdateStatus(ctx, a.UserID, s.Entity, s.EntityID, s.Status)
	if errors.Is(err, domain.ErrEntityNotFound) {
		return failed("%s %s not found", s.Entity, s.EntityID), nil
	}
	if err != nil {
		return Outcome{}, err
	}
	return succeeded("set %s %s to %s", s.Entity, s.EntityID, s.Status), nil
}

type ProjectArchive struct {
	InactiveDays int `json:"inactiveDays" validate:"gte=1,lte=3650"`
}

func (*ProjectArchive) Kind() domain.ActionType { return domain.ActionProjectArchive }

func (p *ProjectArchive) normalize() error {
	if p.InactiveDays == 0 {
		p.InactiveDays = 30
	}
	return nil
}

func (p *ProjectArchive) Execute(ctx context.Context, env Env, a *domain.Automation) (Outcome, error) {
	n, err := env.Workspace.ArchiveProjects(ctx, a.UserID, daysAgo(env.now(), p.InactiveDays))
	if err != nil {
		return Outcome{}, fmt.Errorf("archive projects: %w", err)
	}
	return succeeded("archived %d project(s)", n), nil
}

type BackupData struct{}

func (*BackupData) Kind() domain.ActionType { return domain.ActionBackupData }

// Execute writes the owner's workspace as gzipped JSON to
// <BackupDir>/<userID>/<automationID>-<timestamp>.json.gz.
func (*BackupData) Execute(ctx context.Context, env Env, a *domain.Automation) (Outcome, error) {
	if env.BackupDir == "" {
		return failed("backup directory is not configured"), nil
	}

	snap, err := env.Workspace.Snapshot(ctx, a.UserID)
	if err != nil {
		return Outcome{}, fmt.Errorf("snapshot workspace: %w", err)
	}
	now := env.now()
	snap.ExportedAt = now

	dir := filepath.Join(env.BackupDir, a.UserID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return Outcome{}, fmt.Errorf("create backup dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.json.gz", a.ID, now.UTC().Format("20060102T150405Z")))

	size, err := writeGzipJSON(path, snap)
	if err != nil {
		return Outcome{}, err
	}
	return succeeded("backup written to %s (%d bytes, %d clients, %d projects, %d tasks, %d invoices)",
		path, size, len(snap.Clients), len(snap.Projects), len(snap.Tasks), len(snap.Invoices)), nil
}

// writeGzipJSON writes v to a temp file next to path and renames it into
// place so a crash never leaves a truncated backup behind.
func writeGzipJSON(path string, v any) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".backup-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	zw := gzip.NewWriter(tmp)
	if err := json.NewEncoder(zw).Encode(v); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("encode backup: %w", err)
	}
	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("flush backup: %w", err)
	}
	info, err := tmp.Stat()
	if err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("stat backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close backup: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("move backup into place: %w", err)
	}
	return info.Size(), nil
}

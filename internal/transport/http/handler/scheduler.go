package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/internal/scheduler"
	"github.com/gin-gonic/gin"
)

type tickRunner interface {
	Now() time.Time
	RunTick(ctx context.Context, now time.Time) (scheduler.TickResult, error)
}

type SchedulerHandler struct {
	runner tickRunner
	logger *slog.Logger
}

func NewSchedulerHandler(runner tickRunner, logger *slog.Logger) *SchedulerHandler {
	return &SchedulerHandler{runner: runner, logger: logger.With("component", "scheduler_handler")}
}

type tickResponse struct {
	ExecutedCount int                 `json:"executedCount"`
	Results       []runResultResponse `json:"results"`
}

// GET /scheduler/run
// Runs one tick synchronously. Polled by an external cron or cmd/invoker.
func (h *SchedulerHandler) Run(c *gin.Context) {
	// a tick runs to completion even if the caller disconnects
	ctx := context.WithoutCancel(c.Request.Context())

	res, err := h.runner.RunTick(ctx, h.runner.Now())
	if err != nil {
		status, msg, ok := statusFor(err)
		if !ok {
			h.logger.ErrorContext(ctx, "scheduler tick", "error", err)
			msg = errTickFailed
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	items := make([]runResultResponse, len(res.Results))
	for i, r := range res.Results {
		items[i] = toRunResultResponse(r)
	}
	c.JSON(http.StatusOK, tickResponse{ExecutedCount: res.ExecutedCount, Results: items})
}

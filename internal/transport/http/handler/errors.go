package handler

import (
	"errors"
	"net/http"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
	"github.com/ErlanBelekov/automation-scheduler/internal/scheduler"
)

const (
	errInternalServer = "Internal server error"
	errInvalidCursor  = "Invalid cursor"

	errAutomationNotFound      = "Automation not found"
	errAutomationNameConflict  = "Automation with this name already exists"
	errAutomationAlreadyPaused = "Automation is already paused"
	errAutomationNotPaused     = "Automation is not paused"
	errUnknownActionType       = "Unknown automation type"

	errTickInProgress = "A scheduler tick is already in progress"
	errTickFailed     = "Scheduler tick failed"
)

// statusFor maps domain errors to an HTTP status and a public message. ok
// is false for unexpected errors, which callers log and answer with 500.
// Validation errors carry the offending field, so their text is returned as is.
func statusFor(err error) (status int, msg string, ok bool) {
	switch {
	case errors.Is(err, domain.ErrAutomationNotFound):
		return http.StatusNotFound, errAutomationNotFound, true
	case errors.Is(err, domain.ErrAutomationNameConflict):
		return http.StatusConflict, errAutomationNameConflict, true
	case errors.Is(err, domain.ErrAutomationAlreadyPaused):
		return http.StatusConflict, errAutomationAlreadyPaused, true
	case errors.Is(err, domain.ErrAutomationNotPaused):
		return http.StatusConflict, errAutomationNotPaused, true
	case errors.Is(err, domain.ErrUnknownActionType):
		return http.StatusBadRequest, errUnknownActionType, true
	case errors.Is(err, domain.ErrInvalidSchedule), errors.Is(err, domain.ErrInvalidActionConfig):
		return http.StatusBadRequest, err.Error(), true
	case errors.Is(err, domain.ErrInvalidCursor):
		return http.StatusBadRequest, errInvalidCursor, true
	case errors.Is(err, scheduler.ErrTickInProgress):
		return http.StatusConflict, errTickInProgress, true
	}
	return http.StatusInternalServerError, errInternalServer, false
}

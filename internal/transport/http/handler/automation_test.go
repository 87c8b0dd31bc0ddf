package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
	"github.com/ErlanBelekov/automation-scheduler/internal/scheduler"
	"github.com/ErlanBelekov/automation-scheduler/internal/transport/http/handler"
	"github.com/ErlanBelekov/automation-scheduler/internal/usecase"
	"github.com/gin-gonic/gin"
)

const testUser = "user-1"

// fakeAutomationUsecase implements the unexported automationUsecaser
// interface. Unset functions panic when called.
type fakeAutomationUsecase struct {
	create         func(ctx context.Context, userID string, in usecase.AutomationInput, active bool) (*domain.Automation, error)
	get            func(ctx context.Context, id, userID string) (*domain.Automation, error)
	update         func(ctx context.Context, id, userID string, in usecase.AutomationInput) (*domain.Automation, error)
	list           func(ctx context.Context, in usecase.ListAutomationsInput) (usecase.ListAutomationsResult, error)
	pause          func(ctx context.Context, id, userID string) error
	resume         func(ctx context.Context, id, userID string) (*time.Time, error)
	del            func(ctx context.Context, id, userID string) error
	run            func(ctx context.Context, id, userID string) (scheduler.Result, error)
	listExecutions func(ctx context.Context, in usecase.ListExecutionsInput) (usecase.ListExecutionsResult, error)
}

func (f *fakeAutomationUsecase) CreateAutomation(ctx context.Context, userID string, in usecase.AutomationInput, active bool) (*domain.Automation, error) {
	return f.create(ctx, userID, in, active)
}

func (f *fakeAutomationUsecase) GetAutomation(ctx context.Context, id, userID string) (*domain.Automation, error) {
	return f.get(ctx, id, userID)
}

func (f *fakeAutomationUsecase) UpdateAutomation(ctx context.Context, id, userID string, in usecase.AutomationInput) (*domain.Automation, error) {
	return f.update(ctx, id, userID, in)
}

func (f *fakeAutomationUsecase) ListAutomations(ctx context.Context, in usecase.ListAutomationsInput) (usecase.ListAutomationsResult, error) {
	return f.list(ctx, in)
}

func (f *fakeAutomationUsecase) PauseAutomation(ctx context.Context, id, userID string) error {
	return f.pause(ctx, id, userID)
}

func (f *fakeAutomationUsecase) ResumeAutomation(ctx context.Context, id, userID string) (*time.Time, error) {
	return f.resume(ctx, id, userID)
}

func (f *fakeAutomationUsecase) DeleteAutomation(ctx context.Context, id, userID string) error {
	return f.del(ctx, id, userID)
}

func (f *fakeAutomationUsecase) RunAutomation(ctx context.Context, id, userID string) (scheduler.Result, error) {
	return f.run(ctx, id, userID)
}

func (f *fakeAutomationUsecase) ListExecutions(ctx context.Context, in usecase.ListExecutionsInput) (usecase.ListExecutionsResult, error) {
	return f.listExecutions(ctx, in)
}

func automationEngine(uc *fakeAutomationUsecase) *gin.Engine {
	h := handler.NewAutomationHandler(uc, testLogger)

	r := gin.New()
	authed := r.Group("/automations", func(c *gin.Context) {
		c.Set("userID", testUser)
		c.Next()
	})
	authed.POST("", h.Create)
	authed.GET("", h.List)
	authed.GET("/:id", h.GetByID)
	authed.PUT("/:id", h.Update)
	authed.DELETE("/:id", h.Delete)
	authed.POST("/:id/pause", h.Pause)
	authed.POST("/:id/resume", h.Resume)
	authed.POST("/:id/run", h.Run)
	authed.GET("/:id/executions", h.ListExecutions)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	s, _ := body["error"].(string)
	return s
}

const validBody = `{
	"name": "Monday digest",
	"type": "EMAIL_REMINDER",
	"config": {"subject": "Hi", "message": "Weekly digest"},
	"recipients": [{"email": "client@example.com"}, {"email": "boss@example.com", "recipientType": "CC"}],
	"schedule": {"type": "WEEKLY", "time": "09:00", "dayOfWeek": 1}
}`

func TestCreate_PassesInputAndDefaultsActive(t *testing.T) {
	next := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	var gotIn usecase.AutomationInput
	var gotActive bool
	uc := &fakeAutomationUsecase{
		create: func(_ context.Context, userID string, in usecase.AutomationInput, active bool) (*domain.Automation, error) {
			if userID != testUser {
				t.Errorf("userID = %q", userID)
			}
			gotIn, gotActive = in, active
			return &domain.Automation{
				ID: "a1", UserID: userID, Name: in.Name, Type: in.Type,
				Recipients: in.Recipients, Schedule: in.Schedule,
				IsActive: active, NextExecutionAt: &next,
			}, nil
		},
	}

	w := do(automationEngine(uc), http.MethodPost, "/automations", validBody)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if !gotActive {
		t.Error("isActive should default to true")
	}
	if gotIn.Schedule.Type != domain.ScheduleWeekly || gotIn.Schedule.DayOfWeek == nil || *gotIn.Schedule.DayOfWeek != 1 {
		t.Errorf("schedule = %+v", gotIn.Schedule)
	}
	if len(gotIn.Recipients) != 2 || gotIn.Recipients[0].Type != domain.RecipientTo || gotIn.Recipients[1].Type != domain.RecipientCC {
		t.Errorf("recipients = %+v", gotIn.Recipients)
	}

	var body struct {
		ID              string     `json:"id"`
		IsActive        bool       `json:"isActive"`
		NextExecutionAt *time.Time `json:"nextExecutionAt"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.ID != "a1" || !body.IsActive || body.NextExecutionAt == nil || !body.NextExecutionAt.Equal(next) {
		t.Errorf("body = %+v", body)
	}
}

func TestCreate_InactiveFlag(t *testing.T) {
	var gotActive = true
	uc := &fakeAutomationUsecase{
		create: func(_ context.Context, _ string, in usecase.AutomationInput, active bool) (*domain.Automation, error) {
			gotActive = active
			return &domain.Automation{ID: "a1", Name: in.Name}, nil
		},
	}

	body := strings.Replace(validBody, `"name"`, `"isActive": false, "name"`, 1)
	w := do(automationEngine(uc), http.MethodPost, "/automations", body)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if gotActive {
		t.Error("want inactive automation")
	}
}

func TestCreate_BindingErrors_Return400(t *testing.T) {
	cases := map[string]string{
		"bad json":        `{bad json}`,
		"missing name":    `{"type":"EMAIL_REMINDER","schedule":{"type":"DAILY","time":"09:00"}}`,
		"bad recipient":   `{"name":"x","type":"EMAIL_REMINDER","recipients":[{"email":"nope"}]}`,
		"bad recipient t": `{"name":"x","type":"EMAIL_REMINDER","recipients":[{"email":"a@b.co","recipientType":"FROM"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(automationEngine(&fakeAutomationUsecase{}), http.MethodPost, "/automations", body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestCreate_UsecaseErrors(t *testing.T) {
	cases := map[string]struct {
		err     error
		status  int
		message string
	}{
		"invalid schedule": {
			err:    errors.Join(domain.ErrInvalidSchedule, errors.New("time must be HH:MM")),
			status: http.StatusBadRequest,
		},
		"unknown type": {
			err:     domain.ErrUnknownActionType,
			status:  http.StatusBadRequest,
			message: "Unknown automation type",
		},
		"name conflict": {
			err:     domain.ErrAutomationNameConflict,
			status:  http.StatusConflict,
			message: "Automation with this name already exists",
		},
		"internal": {
			err:     errors.New("pq: connection reset"),
			status:  http.StatusInternalServerError,
			message: "Internal server error",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			uc := &fakeAutomationUsecase{
				create: func(context.Context, string, usecase.AutomationInput, bool) (*domain.Automation, error) {
					return nil, tc.err
				},
			}
			w := do(automationEngine(uc), http.MethodPost, "/automations", validBody)

			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d", w.Code, tc.status)
			}
			msg := errorOf(t, w)
			if tc.message != "" && msg != tc.message {
				t.Errorf("error = %q, want %q", msg, tc.message)
			}
			if strings.Contains(msg, "pq:") {
				t.Errorf("internal error leaked: %q", msg)
			}
		})
	}
}

func TestGetByID_NotFound(t *testing.T) {
	uc := &fakeAutomationUsecase{
		get: func(_ context.Context, id, userID string) (*domain.Automation, error) {
			if id != "missing" || userID != testUser {
				t.Errorf("get(%q, %q)", id, userID)
			}
			return nil, domain.ErrAutomationNotFound
		},
	}

	w := do(automationEngine(uc), http.MethodGet, "/automations/missing", "")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestList_PassesCursorAndLimit(t *testing.T) {
	var got usecase.ListAutomationsInput
	next := "abc"
	uc := &fakeAutomationUsecase{
		list: func(_ context.Context, in usecase.ListAutomationsInput) (usecase.ListAutomationsResult, error) {
			got = in
			return usecase.ListAutomationsResult{
				Automations: []*domain.Automation{{ID: "a1"}, {ID: "a2"}},
				NextCursor:  &next,
			}, nil
		},
	}

	w := do(automationEngine(uc), http.MethodGet, "/automations?limit=2&cursor=xyz", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got.UserID != testUser || got.Limit != 2 || got.Cursor != "xyz" {
		t.Errorf("input = %+v", got)
	}
	var body struct {
		Automations []struct {
			ID string `json:"id"`
		} `json:"automations"`
		NextCursor string `json:"nextCursor"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if len(body.Automations) != 2 || body.NextCursor != "abc" {
		t.Errorf("body = %+v", body)
	}
}

func TestList_InvalidCursor_Returns400(t *testing.T) {
	uc := &fakeAutomationUsecase{
		list: func(context.Context, usecase.ListAutomationsInput) (usecase.ListAutomationsResult, error) {
			return usecase.ListAutomationsResult{}, domain.ErrInvalidCursor
		},
	}

	w := do(automationEngine(uc), http.MethodGet, "/automations?cursor=garbage", "")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestPauseResume(t *testing.T) {
	next := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	uc := &fakeAutomationUsecase{
		pause: func(_ context.Context, id, _ string) error {
			if id == "paused" {
				return domain.ErrAutomationAlreadyPaused
			}
			return nil
		},
		resume: func(_ context.Context, id, _ string) (*time.Time, error) {
			if id == "active" {
				return nil, domain.ErrAutomationNotPaused
			}
			return &next, nil
		},
	}
	r := automationEngine(uc)

	if w := do(r, http.MethodPost, "/automations/a1/pause", ""); w.Code != http.StatusNoContent {
		t.Errorf("pause status = %d, want 204", w.Code)
	}
	if w := do(r, http.MethodPost, "/automations/paused/pause", ""); w.Code != http.StatusConflict {
		t.Errorf("pause twice status = %d, want 409", w.Code)
	}
	if w := do(r, http.MethodPost, "/automations/active/resume", ""); w.Code != http.StatusConflict {
		t.Errorf("resume active status = %d, want 409", w.Code)
	}

	w := do(r, http.MethodPost, "/automations/a1/resume", "")
	if w.Code != http.StatusOK {
		t.Fatalf("resume status = %d, want 200", w.Code)
	}
	var body struct {
		NextExecutionAt time.Time `json:"nextExecutionAt"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if !body.NextExecutionAt.Equal(next) {
		t.Errorf("nextExecutionAt = %v, want %v", body.NextExecutionAt, next)
	}
}

func TestDelete(t *testing.T) {
	uc := &fakeAutomationUsecase{
		del: func(_ context.Context, id, _ string) error {
			if id == "missing" {
				return domain.ErrAutomationNotFound
			}
			return nil
		},
	}
	r := automationEngine(uc)

	if w := do(r, http.MethodDelete, "/automations/a1", ""); w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if w := do(r, http.MethodDelete, "/automations/missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRun_ReturnsResult(t *testing.T) {
	uc := &fakeAutomationUsecase{
		run: func(_ context.Context, id, _ string) (scheduler.Result, error) {
			return scheduler.Result{AutomationID: id, Name: "digest", Status: domain.ExecutionFailed, Error: "no recipients"}, nil
		},
	}

	w := do(automationEngine(uc), http.MethodPost, "/automations/a1/run", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		AutomationID string `json:"automationId"`
		Status       string `json:"status"`
		Error        string `json:"error"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.AutomationID != "a1" || body.Status != "FAILED" || body.Error != "no recipients" {
		t.Errorf("body = %+v", body)
	}
}

func TestListExecutions(t *testing.T) {
	started := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	msg := "sent 2 emails"
	var got usecase.ListExecutionsInput
	uc := &fakeAutomationUsecase{
		listExecutions: func(_ context.Context, in usecase.ListExecutionsInput) (usecase.ListExecutionsResult, error) {
			got = in
			return usecase.ListExecutionsResult{
				Executions: []*domain.AutomationExecution{
					{ID: "e1", AutomationID: in.AutomationID, Status: domain.ExecutionSuccess, StartedAt: started, Message: &msg, DurationMS: 42},
				},
			}, nil
		},
	}

	w := do(automationEngine(uc), http.MethodGet, "/automations/a1/executions", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got.AutomationID != "a1" || got.UserID != testUser {
		t.Errorf("input = %+v", got)
	}
	var body struct {
		Executions []struct {
			ID         string `json:"id"`
			Status     string `json:"status"`
			Message    string `json:"message"`
			DurationMS int64  `json:"durationMs"`
		} `json:"executions"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if len(body.Executions) != 1 || body.Executions[0].Message != msg || body.Executions[0].DurationMS != 42 {
		t.Errorf("body = %+v", body)
	}
}

func TestListExecutions_OtherUsersAutomation_Returns404(t *testing.T) {
	uc := &fakeAutomationUsecase{
		listExecutions: func(context.Context, usecase.ListExecutionsInput) (usecase.ListExecutionsResult, error) {
			return usecase.ListExecutionsResult{}, domain.ErrAutomationNotFound
		},
	}

	w := do(automationEngine(uc), http.MethodGet, "/automations/theirs/executions", "")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

package log

import (
	"context"
	"log/slog"

	"github.com/ErlanBelekov/automation-scheduler/internal/requestid"
)

type automationKey struct{}

// WithAutomationID scopes ctx to one automation run so every record logged
// during the run carries automation_id.
func WithAutomationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, automationKey{}, id)
}

// ContextHandler wraps an slog.Handler and copies request_id (the HTTP
// request or scheduler tick) and automation_id from the context onto each record.
type ContextHandler struct {
	inner slog.Handler
}

func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := requestid.FromContext(ctx); id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}
	if id, _ := ctx.Value(automationKey{}).(string); id != "" {
		r.AddAttrs(slog.String("automation_id", id))
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}

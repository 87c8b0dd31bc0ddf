// Package notify delivers short operational notifications (Slack, webhooks)
// on behalf of NOTIFICATION_SEND automations.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/slack-go/slack"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelAlert   Level = "alert"
)

type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

type Notification struct {
	Title   string  `json:"title"`
	Message string  `json:"message"`
	Level   Level   `json:"level"`
	Fields  []Field `json:"fields,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NewNotifier returns a SlackNotifier when a bot token is configured and a
// LogNotifier otherwise.
func NewNotifier(slackToken, channel string, logger *slog.Logger) Notifier {
	if slackToken == "" {
		return &LogNotifier{logger: logger.With("component", "notify")}
	}
	return NewSlackNotifier(slack.New(slackToken), channel)
}

type LogNotifier struct {
	logger *slog.Logger
}

func (n *LogNotifier) Notify(ctx context.Context, note Notification) error {
	n.logger.InfoContext(ctx, "notification (local dev)", "title", note.Title, "level", note.Level, "message", note.Message)
	return nil
}

// slackPoster is the part of *slack.Client we use.
type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

type SlackNotifier struct {
	client  slackPoster
	channel string
}

func NewSlackNotifier(client slackPoster, channel string) *SlackNotifier {
	return &SlackNotifier{client: client, channel: channel}
}

func (s *SlackNotifier) Notify(ctx context.Context, n Notification) error {
	fields := make([]slack.AttachmentField, len(n.Fields))
	for i, f := range n.Fields {
		fields[i] = slack.AttachmentField{Title: f.Title, Value: f.Value, Short: true}
	}

	attachment := slack.Attachment{
		Color:  levelColor(n.Level),
		Title:  n.Title,
		Text:   n.Message,
		Fields: fields,
		Footer: "Automations",
		Ts:     json.Number(strconv.FormatInt(time.Now().Unix(), 10)),
	}

	if _, _, err := s.client.PostMessageContext(ctx, s.channel, slack.MsgOptionAttachments(attachment)); err != nil {
		return fmt.Errorf("post slack message: %w", err)
	}
	return nil
}

func levelColor(l Level) string {
	switch l {
	case LevelAlert:
		return "#ff0000"
	case LevelWarning:
		return "#ffcc00"
	default:
		return "#36a64f"
	}
}

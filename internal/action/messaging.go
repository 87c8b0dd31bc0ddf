package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
	"github.com/ErlanBelekov/automation-scheduler/internal/email"
	"github.com/ErlanBelekov/automation-scheduler/internal/notify"
)

type EmailReminder struct {
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required"`
}

func (*EmailReminder) Kind() domain.ActionType { return domain.ActionEmailReminder }

func (r *EmailReminder) Execute(ctx context.Context, env Env, a *domain.Automation) (Outcome, error) {
	return sendToRecipients(ctx, env, a, r.Subject, r.Message)
}

// sendToRecipients mails subject/body to the automation's recipients.
func sendToRecipients(ctx context.Context, env Env, a *domain.Automation, subject, body string) (Outcome, error) {
	msg, err := addressees(ctx, env, a)
	if errors.Is(err, errNoRecipients) {
		return failed("no recipients configured and owner has no email"), nil
	}
	if err != nil {
		return Outcome{}, err
	}

	html, err := render("message", messageView{Body: body})
	if err != nil {
		return Outcome{}, err
	}
	msg.Subject, msg.HTML = subject, html

	if err := env.Email.Send(ctx, msg); err != nil {
		return failed("send email: %v", err), nil
	}
	return succeeded("sent email to %d recipient(s)", recipientCount(msg)), nil
}

type ClientFollowUp struct {
	DaysSinceContact int    `json:"daysSinceContact" validate:"gte=1,lte=365"`
	Subject          string `json:"subject" validate:"required,max=200"`
	Message          string `json:"message" validate:"required"`
}

func (*ClientFollowUp) Kind() domain.ActionType { return domain.ActionClientFollowUp }

func (f *ClientFollowUp) normalize() error {
	if f.DaysSinceContact == 0 {
		f.DaysSinceContact = 14
	}
	return nil
}

func (f *ClientFollowUp) Execute(ctx context.Context, env Env, a *domain.Automation) (Outcome, error) {
	now := env.now()
	clients, err := env.Workspace.ClientsNotContactedSince(ctx, a.UserID, daysAgo(now, f.DaysSinceContact))
	if err != nil {
		return Outcome{}, fmt.Errorf("find stale clients: %w", err)
	}
	if env.belowMinimum(len(clients)) {
		return skipped, nil
	}
	return mailClients(ctx, env, clients, f.Subject, f.Message)
}

type ClientCheckIn struct {
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required"`
}

func (*ClientCheckIn) Kind() domain.ActionType { return domain.ActionClientCheckIn }

func (c *ClientCheckIn) Execute(ctx context.Context, env Env, a *domain.Automation) (Outcome, error) {
	clients, err := env.Workspace.ActiveClients(ctx, a.UserID)
	if err != nil {
		return Outcome{}, fmt.Errorf("find active clients: %w", err)
	}
	if env.belowMinimum(len(clients)) {
		return skipped, nil
	}
	return mailClients(ctx, env, clients, c.Subject, c.Message)
}

// mailClients sends one message per client and stamps the contact time of
// each client reached. The run fails only when every send failed.
func mailClients(ctx context.Context, env Env, clients []*domain.Client, subject, body string) (Outcome, error) {
	if len(clients) == 0 {
		return succeeded("no clients matched"), nil
	}

	var sent int
	var lastErr error
	for _, c := range clients {
		html, err := render("message", messageView{Name: c.Name, Body: body})
		if err != nil {
			return Outcome{}, err
		}
		msg := email.Message{
			To:      []email.Address{{Email: c.Email, Name: c.Name}},
			Subject: subject,
			HTML:    html,
		}
		if err := env.Email.Send(ctx, msg); err != nil {
			lastErr = err
			continue
		}
		sent++
		if err := env.Workspace.TouchClientContact(ctx, c.ID, env.now()); err != nil {
			return Outcome{}, fmt.Errorf("record client contact: %w", err)
		}
	}

	if sent == 0 {
		return failed("all %d emails failed: %v", len(clients), lastErr), nil
	}
	return succeeded("emailed %d of %d clients", sent, len(clients)), nil
}

type InvoiceReminder struct {
	DaysOverdue int    `json:"daysOverdue" validate:"gte=0,lte=365"`
	Subject     string `json:"subject" validate:"required,max=200"`
	Message     string `json:"message" validate:"required"`
}

func (*InvoiceReminder) Kind() domain.ActionType { return domain.ActionInvoiceReminder }

func (r *InvoiceReminder) Execute(ctx context.Context, env Env, a *domain.Automation) (Outcome, error) {
	invoices, err := env.Workspace.OverdueInvoices(ctx, a.UserID, daysAgo(env.now(), r.DaysOverdue))
	if err != nil {
		return Outcome{}, fmt.Errorf("find overdue invoices: %w", err)
	}
	if env.belowMinimum(len(invoices)) {
		return skipped, nil
	}
	if len(invoices) == 0 {
		return succeeded("no overdue invoices"), nil
	}

	var sent int
	var lastErr error
	for _, inv := range invoices {
		if inv.ClientEmail == "" {
			continue
		}
		html, err := render("message", messageView{
			Name:   inv.ClientName,
			Body:   r.Message,
			Footer: fmt.Sprintf("Invoice %s: %s, due %s", inv.Number, formatMoney(inv.TotalCents, inv.Currency), inv.DueDate.Format("Jan 2, 2006")),
		})
		if err != nil {
			return Outcome{}, err
		}
		msg := email.Message{
			To:      []email.Address{{Email: inv.ClientEmail, Name: inv.ClientName}},
			Subject: r.Subject,
			HTML:    html,
		}
		if err := env.Email.Send(ctx, msg); err != nil {
			lastErr = err
			continue
		}
		sent++
	}

	if sent == 0 {
		if lastErr == nil {
			return failed("none of the %d overdue invoices has a client email", len(invoices)), nil
		}
		return failed("all reminders failed: %v", lastErr), nil
	}
	return succeeded("sent %d of %d invoice reminders", sent, len(invoices)), nil
}

type NotificationChannel string

const (
	ChannelEmail   NotificationChannel = "email"
	ChannelSlack   NotificationChannel = "slack"
	ChannelWebhook NotificationChannel = "webhook"
)

type NotificationSend struct {
	Channel    NotificationChannel `json:"channel" validate:"required,oneof=email slack webhook"`
	Title      string              `json:"title" validate:"required,max=200"`
	Message    string              `json:"message" validate:"required"`
	Level      notify.Level        `json:"level" validate:"omitempty,oneof=info warning alert"`
	WebhookURL string              `json:"webhookUrl" validate:"omitempty,url"`
}

func (*NotificationSend) Kind() domain.ActionType { return domain.ActionNotificationSend }

func (n *NotificationSend) normalize() error {
	if n.Channel == "" {
		n.Channel = ChannelEmail
	}
	if n.Level == "" {
		n.Level = notify.LevelInfo
	}
	if n.Channel == ChannelWebhook && n.WebhookURL == "" {
		return errors.New("webhookUrl is required for the webhook channel")
	}
	return nil
}

func (n *NotificationSend) Execute(ctx context.Context, env Env, a *domain.Automation) (Outcome, error) {
	note := notify.Notification{
		Title:   n.Title,
		Message: n.Message,
		Level:   n.Level,
		Fields: []notify.Field{
			{Title: "Automation", Value: a.Name},
			{Title: "Automation ID", Value: a.ID},
		},
	}

	switch n.Channel {
	case ChannelSlack:
		if err := env.Notifier.Notify(ctx, note); err != nil {
			return failed("slack: %v", err), nil
		}
		return succeeded("posted to slack"), nil
	case ChannelWebhook:
		if err := env.Webhook.Post(ctx, n.WebhookURL, note); err != nil {
			return failed("webhook: %v", err), nil
		}
		return succeeded("posted to webhook"), nil
	default:
		return sendToRecipients(ctx, env, a, n.Title, n.Message)
	}
}

package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
	"github.com/ErlanBelekov/automation-scheduler/internal/email"
)

var errNoRecipients = errors.New("no recipients")

// addressees builds the envelope for an automation's own recipients. An
// automation without recipients mails its owner.
func addressees(ctx context.Context, env Env, a *domain.Automation) (email.Message, error) {
	var msg email.Message
	for _, r := range a.Recipients {
		addr := email.Address{Email: r.Email, Name: r.Name}
		switch r.Type {
		case domain.RecipientCC:
			msg.CC = append(msg.CC, addr)
		case domain.RecipientBCC:
			msg.BCC = append(msg.BCC, addr)
		default:
			msg.To = append(msg.To, addr)
		}
	}
	if len(msg.To)+len(msg.CC)+len(msg.BCC) > 0 {
		if len(msg.To) == 0 {
			// providers reject messages with an empty To
			msg.To, msg.CC = msg.CC, nil
			if len(msg.To) == 0 {
				msg.To, msg.BCC = msg.BCC, nil
			}
		}
		return msg, nil
	}

	owner, err := env.Users.FindByID(ctx, a.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return msg, errNoRecipients
	}
	if err != nil {
		return msg, fmt.Errorf("find owner: %w", err)
	}
	if owner.Email == "" {
		return msg, errNoRecipients
	}
	msg.To = []email.Address{{Email: owner.Email, Name: owner.Name}}
	return msg, nil
}

func recipientCount(msg email.Message) int {
	return len(msg.To) + len(msg.CC) + len(msg.BCC)
}

var templates = template.Must(template.New("mail").Funcs(template.FuncMap{
	"lines": splitLines,
	"money": formatMoney,
	"date":  func(t interface{ Format(string) string }) string { return t.Format("Jan 2, 2006") },
	"hours": func(h float64) string { return fmt.Sprintf("%.1f", h) },
}).Parse(`
{{define "message"}}<p>Hello{{if .Name}} {{.Name}}{{end}},</p>
{{range lines .Body}}<p>{{.}}</p>
{{end}}{{if .Footer}}<p style="color:#666">{{.Footer}}</p>{{end}}{{end}}

{{define "report"}}<h2>{{.Title}}</h2>
<p>{{date .Summary.From}} to {{date .Summary.To}}</p>
<table cellpadding="6" style="border-collapse:collapse">
{{if .Revenue}}<tr><td>Revenue</td><td>{{money .Summary.RevenueCents .Summary.Currency}}</td></tr>
<tr><td>Invoices paid</td><td>{{.Summary.InvoicesPaid}}</td></tr>
<tr><td>Invoices overdue</td><td>{{.Summary.InvoicesOverdue}}</td></tr>
<tr><td>Outstanding</td><td>{{money .Summary.OutstandingCents .Summary.Currency}}</td></tr>
{{end}}{{if .Projects}}<tr><td>Active projects</td><td>{{.Summary.ProjectsActive}}</td></tr>
<tr><td>Completed projects</td><td>{{.Summary.ProjectsCompleted}}</td></tr>
<tr><td>Tasks completed</td><td>{{.Summary.TasksCompleted}}</td></tr>
<tr><td>Open tasks</td><td>{{.Summary.TasksOpen}}</td></tr>
{{end}}{{if .Time}}<tr><td>Hours tracked</td><td>{{hours .Summary.HoursTracked}}</td></tr>
{{end}}</table>{{end}}

{{define "deadlines"}}<p>{{len .Tasks}} task(s) due in the next {{.Days}} day(s):</p>
<ul>{{range .Tasks}}<li>{{.Title}}{{if .DueDate}} ({{date .DueDate}}){{end}}</li>{{end}}</ul>{{end}}
`))

type messageView struct {
	Name   string
	Body   string
	Footer string
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func splitLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func formatMoney(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, currency)
}

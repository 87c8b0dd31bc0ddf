package email

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/resend/resend-go/v2"
	"golang.org/x/time/rate"
	"gopkg.in/gomail.v2"
)

type Address struct {
	Email string
	Name  string
}

func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

type Message struct {
	To      []Address
	CC      []Address
	BCC     []Address
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	Provider     string // log | resend | smtp
	From         string
	ResendAPIKey string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	RatePerSec   float64 // 0 disables throttling
}

// NewSender picks the provider from cfg and wraps it with a rate limiter
// when RatePerSec is set.
func NewSender(cfg Config, logger *slog.Logger) Sender {
	var s Sender
	switch cfg.Provider {
	case "resend":
		s = &ResendSender{client: resend.NewClient(cfg.ResendAPIKey), from: cfg.From}
	case "smtp":
		s = &SMTPSender{
			dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
			from:   cfg.From,
		}
	default:
		s = NewLogSender(logger.With("component", "email"))
	}

	if cfg.RatePerSec > 0 {
		s = NewRateLimited(s, cfg.RatePerSec)
	}
	return s
}

// LogSender logs emails instead of sending them. Used in ENV=local.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email (local dev)",
		"to", joinAddresses(msg.To),
		"cc", joinAddresses(msg.CC),
		"subject", msg.Subject,
		"bytes", len(msg.HTML),
	)
	return nil
}

// ResendSender sends emails via the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      addressStrings(msg.To),
		Cc:      addressStrings(msg.CC),
		Bcc:     addressStrings(msg.BCC),
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// SMTPSender sends emails through a plain SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", formatted(m, msg.To)...)
	if len(msg.CC) > 0 {
		m.SetHeader("Cc", formatted(m, msg.CC)...)
	}
	if len(msg.BCC) > 0 {
		m.SetHeader("Bcc", formatted(m, msg.BCC)...)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// RateLimited throttles an underlying sender so bulk actions (check-ins,
// follow-ups) stay under the provider's rate limit.
type RateLimited struct {
	next    Sender
	limiter *rate.Limiter
}

func NewRateLimited(next Sender, perSec float64) *RateLimited {
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(perSec), 1)}
}

func (s *RateLimited) Send(ctx context.Context, msg Message) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for send slot: %w", err)
	}
	return s.next.Send(ctx, msg)
}

func formatted(m *gomail.Message, addrs []Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = m.FormatAddress(a.Email, a.Name)
	}
	return out
}

func addressStrings(addrs []Address) []string {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

func joinAddresses(addrs []Address) string {
	return strings.Join(addressStrings(addrs), ", ")
}

// Package invoker calls the scheduler trigger endpoint, once or on an
// interval, for hosts without an external cron.
package invoker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrTickInProgress is returned when the server answered 409.
var ErrTickInProgress = errors.New("tick already in progress")

// Result mirrors one entry of the trigger response.
type Result struct {
	Name          string     `json:"name"`
	Status        string     `json:"status"`
	NextExecution *time.Time `json:"nextExecution,omitempty"`
	Error         string     `json:"error,omitempty"`
}

type Summary struct {
	ExecutedCount int      `json:"executedCount"`
	Results       []Result `json:"results"`
}

type Client struct {
	url    string
	secret string
	http   *http.Client
	logger *slog.Logger
}

func New(url, secret string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		url:    url,
		secret: secret,
		http:   &http.Client{Timeout: timeout},
		logger: logger.With("component", "invoker"),
	}
}

// Trigger runs one tick on the server and returns its summary. Any non-2xx
// answer is an error.
func (c *Client) Trigger(ctx context.Context) (Summary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Summary{}, fmt.Errorf("build request: %w", err)
	}
	if c.secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Summary{}, fmt.Errorf("call trigger: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Summary{}, ErrTickInProgress
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Summary{}, fmt.Errorf("trigger returned %d: %s", resp.StatusCode, body)
	}

	var s Summary
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return Summary{}, fmt.Errorf("decode response: %w", err)
	}
	return s, nil
}

// Once triggers a single tick and logs the outcome.
func (c *Client) Once(ctx context.Context) error {
	s, err := c.Trigger(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "tick failed", "error", err)
		return err
	}
	c.report(ctx, s)
	return nil
}

// Poll triggers a tick immediately and then every interval until ctx is
// done. Failed ticks are logged and polling continues.
func (c *Client) Poll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("polling trigger", "url", c.url, "interval", interval)

	for {
		s, err := c.Trigger(ctx)
		switch {
		case ctx.Err() != nil:
		case errors.Is(err, ErrTickInProgress):
			c.logger.Debug("previous tick still running")
		case err != nil:
			c.logger.ErrorContext(ctx, "tick failed", "error", err)
		default:
			c.report(ctx, s)
		}

		select {
		case <-ctx.Done():
			c.logger.Info("invoker shut down")
			return
		case <-ticker.C:
		}
	}
}

func (c *Client) report(ctx context.Context, s Summary) {
	if s.ExecutedCount == 0 {
		c.logger.DebugContext(ctx, "nothing due")
		return
	}
	for _, r := range s.Results {
		attrs := []any{"automation", r.Name, "status", r.Status}
		if r.NextExecution != nil {
			attrs = append(attrs, "next", r.NextExecution.Format(time.RFC3339))
		}
		if r.Error != "" {
			attrs = append(attrs, "error", r.Error)
		}
		c.logger.InfoContext(ctx, "executed", attrs...)
	}
}

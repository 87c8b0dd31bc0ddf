// invoker calls GET /scheduler/run once or on an interval.
//
//	invoker run --url http://localhost:8080/scheduler/run --once
//	INVOKER_SECRET=... invoker run --url ... --interval 30s
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/internal/invoker"
	ctxlog "github.com/ErlanBelekov/automation-scheduler/internal/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "invoker:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("INVOKER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "invoker",
		Short:         "Trigger scheduler ticks over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("env", "local", "log format: local (text) or anything else (JSON)")
	root.PersistentFlags().String("log-level", "info", "debug, info, warn or error")
	_ = v.BindPFlags(root.PersistentFlags())

	root.AddCommand(newRunCmd(v))
	return root
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Call the trigger once or keep polling it",
		RunE: func(_ *cobra.Command, _ []string) error {
			url := v.GetString("url")
			if url == "" {
				return errors.New("--url or INVOKER_URL is required")
			}

			var level slog.Level
			if err := level.UnmarshalText([]byte(strings.ToUpper(v.GetString("log-level")))); err != nil {
				return fmt.Errorf("log level: %w", err)
			}
			logger := ctxlog.New(os.Stderr, v.GetString("env"), level)

			client := invoker.New(url, v.GetString("secret"), v.GetDuration("timeout"), logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if v.GetBool("once") {
				return client.Once(ctx)
			}

			interval := v.GetDuration("interval")
			if interval <= 0 {
				return fmt.Errorf("interval must be positive, got %s", interval)
			}
			client.Poll(ctx, interval)
			return nil
		},
	}

	cmd.Flags().String("url", "", "trigger URL, e.g. http://localhost:8080/scheduler/run")
	cmd.Flags().String("secret", "", "bearer secret (SCHEDULER_SECRET on the server)")
	cmd.Flags().Bool("once", false, "trigger a single tick and exit")
	cmd.Flags().Duration("interval", 30*time.Second, "poll interval")
	cmd.Flags().Duration("timeout", 5*time.Minute, "per-request timeout")
	_ = v.BindPFlags(cmd.Flags())

	return cmd
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/automation-scheduler/config"
	"github.com/ErlanBelekov/automation-scheduler/internal/bootstrap"
	"github.com/ErlanBelekov/automation-scheduler/internal/health"
	ctxlog "github.com/ErlanBelekov/automation-scheduler/internal/log"
	"github.com/ErlanBelekov/automation-scheduler/internal/metrics"
	"github.com/ErlanBelekov/automation-scheduler/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := ctxlog.New(os.Stdout, cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	deps, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		stop()
		log.Fatalf("open: %v", err)
	}
	defer deps.Close()

	logger.Info("db connected", "redis_lock", deps.Redis != nil)

	metrics.Register()
	checker := health.NewChecker(logger, prometheus.DefaultRegisterer, deps.HealthDeps()...)

	runner, automationRepo := bootstrap.NewRunner(cfg, deps, logger)

	loop := scheduler.NewLoop(runner, logger, cfg.TickInterval())
	repairer := scheduler.NewRepairer(automationRepo, logger, cfg.RepairInterval(), bootstrap.Clock(cfg))

	done := make(chan struct{}, 2)
	go func() { loop.Start(ctx); done <- struct{}{} }()
	go func() { repairer.Start(ctx); done <- struct{}{} }()

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker.Handlers())
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	<-done
	<-done

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("scheduler shut down")
}

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
	"github.com/ErlanBelekov/automation-scheduler/internal/infrastructure/postgres"
	ctxlog "github.com/ErlanBelekov/automation-scheduler/internal/log"
	"github.com/ErlanBelekov/automation-scheduler/internal/metrics"
	httptransport "github.com/ErlanBelekov/automation-scheduler/internal/transport/http"
	"github.com/ErlanBelekov/automation-scheduler/internal/transport/http/handler"
	"github.com/ErlanBelekov/automation-scheduler/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := ctxlog.New(os.Stdout, cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	deps, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		stop()
		log.Fatalf("open: %v", err)
	}
	defer deps.Close()

	runner, automationRepo := bootstrap.NewRunner(cfg, deps, logger)

	// Automations
	automationUsecase := usecase.NewAutomationUsecase(
		automationRepo,
		postgres.NewExecutionRepository(deps.Pool),
		runner,
		bootstrap.Clock(cfg),
	)

	router := httptransport.NewRouter(logger, httptransport.RouterConfig{
		JWTSecret:    []byte(cfg.JWTSecret),
		CronSecret:   cfg.SchedulerSecret,
		UserRepo:     postgres.NewUserRepository(deps.Pool),
		Automations:  handler.NewAutomationHandler(automationUsecase, logger),
		SchedulerRun: handler.NewSchedulerHandler(runner, logger),
	})

	metrics.Register()
	checker := health.NewChecker(logger, prometheus.DefaultRegisterer, deps.HealthDeps()...)

	srv := http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker.Handlers())

	go func() {
		logger.Info("server started", "port", cfg.Port, "timezone", cfg.SchedulerTimezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	// a tick started over HTTP may still be dispatching; give it time to record
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

package httptransport

import (
	"log/slog"

	"github.com/ErlanBelekov/automation-scheduler/internal/repository"
	"github.com/ErlanBelekov/automation-scheduler/internal/transport/http/handler"
	"github.com/ErlanBelekov/automation-scheduler/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

type RouterConfig struct {
	JWTSecret    []byte
	CronSecret   string
	UserRepo     repository.UserRepository
	Automations  *handler.AutomationHandler
	SchedulerRun *handler.SchedulerHandler
}

func NewRouter(logger *slog.Logger, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	// Tick trigger, polled by an external cron
	r.GET("/scheduler/run", middleware.SharedSecret(cfg.CronSecret), cfg.SchedulerRun.Run)

	authMW := middleware.Auth(cfg.JWTSecret)
	ensureUser := middleware.EnsureUser(cfg.UserRepo, logger)

	automations := r.Group("/automations", authMW, ensureUser)
	automations.POST("", cfg.Automations.Create)
	automations.GET("", cfg.Automations.List)
	automations.GET("/:id", cfg.Automations.GetByID)
	automations.PUT("/:id", cfg.Automations.Update)
	automations.DELETE("/:id", cfg.Automations.Delete)
	automations.POST("/:id/pause", cfg.Automations.Pause)
	automations.POST("/:id/resume", cfg.Automations.Resume)
	automations.POST("/:id/run", cfg.Automations.Run)
	automations.GET("/:id/executions", cfg.Automations.ListExecutions)

	return r
}

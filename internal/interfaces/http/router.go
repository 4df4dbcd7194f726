// Package http assembles the REST surface: synthesis runs, theme review, and
// alert queries, plus health and metrics endpoints.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/internal/interfaces/http/handlers"
	"github.com/signalweave/signalweave/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and infrastructure the route tree
// needs.  Nil handlers leave their routes unregistered so partial deployments
// (worker-only, read-only) reuse the same router.
type RouterConfig struct {
	Synthesis *handlers.SynthesisHandler
	Themes    *handlers.ThemeHandler
	Alerts    *handlers.AlertHandler
	Health    *handlers.HealthHandler

	MetricsHandler http.Handler
	Mode           string // gin mode: "debug" | "release" | "test"
	Logger         logging.Logger
}

// NewRouter builds the HTTP route tree.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))

	if cfg.Health != nil {
		r.GET("/healthz", cfg.Health.Liveness)
		r.GET("/readyz", cfg.Health.Readiness)
	}
	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	api := r.Group("/api/v1")
	{
		if cfg.Synthesis != nil {
			api.POST("/synthesis/runs", cfg.Synthesis.StartRun)
			api.GET("/synthesis/runs", cfg.Synthesis.ListRuns)
			api.GET("/synthesis/runs/:batch_id", cfg.Synthesis.GetRun)
		}
		if cfg.Themes != nil {
			api.GET("/themes", cfg.Themes.List)
			api.GET("/themes/:id", cfg.Themes.Get)
			api.POST("/themes/:id/review", cfg.Themes.Review)
		}
		if cfg.Alerts != nil {
			api.GET("/alerts", cfg.Alerts.List)
			api.GET("/alerts/:id", cfg.Alerts.Get)
		}
	}

	return r
}

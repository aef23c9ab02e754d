// Package server configures the HTTP server and routes.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/crm-service/internal/config"
	"github.com/fleveque/crm-service/internal/handler"
	"github.com/fleveque/crm-service/internal/middleware"
)

// Deps holds everything the routes need. Optional parts are nil when the
// corresponding feature is disabled in config.
type Deps struct {
	Reports       handler.ReportBuilder
	Detector      handler.DeviceDetector
	MaterialCount int
	// Usage is nil when call accounting is disabled.
	Usage handler.UsageStore
	// Metrics serves the Prometheus exposition; nil disables /metrics.
	Metrics http.Handler
}

// RegisterRoutes sets up all HTTP routes on the Gin engine.
// Dependencies are passed explicitly; each handler gets exactly what it needs.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps, logger *zap.Logger) {
	healthHandler := handler.NewHealthHandler(deps.MaterialCount)
	materialHandler := handler.NewMaterialHandler(deps.Reports, deps.Detector, logger)
	usageHandler := handler.NewUsageHandler(deps.Usage, logger)

	// CORS and request ids apply to every route, including preflights.
	r.Use(middleware.RequestID(logger))
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	// Operational endpoints are not rate limited.
	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/usage", usageHandler.Usage)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	api := r.Group("")
	api.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	api.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))
	{
		api.GET("/materialApi", materialHandler.GetMaterials)
		api.POST("/detectorApi", materialHandler.DetectMaterials)
	}
}

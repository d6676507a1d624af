// Package httpapi is the sagacore admin API: read-only Job/Step/Chunk
// inspection plus a manual requeue endpoint, split across
// router.go/server.go/handlers/middleware.
package httpapi

import (
	"github.com/gin-gonic/gin"
	otelgin "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/sagacore/internal/httpapi/handlers"
	"github.com/yungbote/sagacore/internal/httpapi/middleware"
	"github.com/yungbote/sagacore/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Auth           *middleware.AuthMiddleware
	CORSOrigins    string
	HealthHandler  *handlers.HealthHandler
	JobHandler     *handlers.JobHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("sagacore-admin-api"))
	r.Use(middleware.AttachTraceContext())
	r.Use(middleware.RequestLogger(cfg.Log))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	if cfg.Auth != nil {
		api.Use(cfg.Auth.RequireAuth())
	}
	{
		if cfg.JobHandler != nil {
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
			api.GET("/jobs/:id/steps/:step_id/chunks", cfg.JobHandler.ListStepChunks)
			api.POST("/jobs/:id/requeue", cfg.JobHandler.RequeueJob)
		}
	}

	return r
}

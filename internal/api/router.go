package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/crudgate/internal/api/handler"
	"github.com/timmy/crudgate/internal/api/middleware"
	"github.com/timmy/crudgate/internal/correlation"
	"github.com/timmy/crudgate/internal/httpclient"
	"github.com/timmy/crudgate/internal/metrics"
	"github.com/timmy/crudgate/internal/service"
)

// Dependencies are the services the router wires into handlers.
type Dependencies struct {
	Factory  *correlation.Factory
	Logs     *service.LogService
	Query    *service.LogQueryService
	Upstream *httpclient.Client
	Metrics  *metrics.Metrics
	DB       handler.Pinger // optional, reported by /health
}

// RouterConfig holds HTTP-level settings.
type RouterConfig struct {
	Mode         string
	MaxBodyBytes int
	CORS         middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps *Dependencies, cfg *RouterConfig) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Recovery wraps everything so panics in later middleware still get an id
	r.Use(middleware.Recovery(deps.Logs))
	r.Use(middleware.Correlation(deps.Factory))
	r.Use(middleware.Actor())
	r.Use(middleware.RequestLogger(deps.Logs, cfg.MaxBodyBytes, "/health", "/metrics"))
	r.Use(middleware.CORS(cfg.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler(deps.DB)
	logHandler := handler.NewLogHandler(deps.Query, deps.Logs)

	r.GET("/health", healthHandler.Health)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Persisted log records
		v1.GET("/logs", logHandler.ListLogs)
		v1.GET("/logs/:correlation_id", logHandler.GetTrace)

		// Internal Server API
		if deps.Upstream != nil {
			upstreamHandler := handler.NewUpstreamHandler(deps.Upstream)
			v1.Any("/upstream/*path", upstreamHandler.Forward)
		}
	}

	return r
}

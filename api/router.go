package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/catalog/api/handler"
	"github.com/use-agent/catalog/api/middleware"
	"github.com/use-agent/catalog/cache"
	"github.com/use-agent/catalog/config"
	"github.com/use-agent/catalog/metrics"
	"github.com/use-agent/catalog/models"
	"github.com/use-agent/catalog/pipeline"
)

// Deps are the services the router exposes. Runner and Pool are nil when the
// service runs without a browser.
type Deps struct {
	Pipeline     *pipeline.Pipeline
	Runner       handler.Runner
	Pool         handler.PoolStatser
	Runs         *handler.RunStore
	ExtractCache *cache.Cache[*models.ExtractResponse]
	Metrics      *metrics.Metrics
	StartTime    time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and /metrics sit outside auth so probes and scrapers always work.
func NewRouter(deps Deps, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(deps.Pool, deps.Runs, deps.StartTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Extract (pipeline over posted JSON, no browser)
	protected.POST("/extract", handler.Extract(deps.Pipeline, deps.ExtractCache))

	// Runs
	protected.POST("/runs", handler.PostRun(deps.Runner, deps.Runs, runDefaults(cfg.Crawl)))
	protected.GET("/runs/:id", handler.GetRun(deps.Runs))
	protected.GET("/runs/:id/products", handler.GetRunProducts(deps.Runs))

	return r
}

// runDefaults fills run fields the caller left unset from the service
// configuration.
func runDefaults(c config.CrawlConfig) func(*models.RunRequest) {
	return func(req *models.RunRequest) {
		if req.TargetCount == 0 {
			req.TargetCount = c.TargetCount
		}
		if req.MaxPages == 0 {
			req.MaxPages = c.MaxPages
		}
	}
}

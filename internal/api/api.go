// Package api implements the HTTP surface of the leak scanner: scan
// submission, job lifecycle control, credential listing/export, and the
// dashboard aggregates.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/north-cloud/leakscan/internal/api/middleware"
	"github.com/north-cloud/leakscan/internal/config"
	"github.com/north-cloud/leakscan/internal/logger"
)

const readHeaderTimeout = 10 * time.Second

// Handlers bundles the route handlers wired into the router.
type Handlers struct {
	Jobs        *JobsHandler
	Scans       *ScanHandler
	Credentials *CredentialsHandler
	Dashboard   *DashboardHandler
	Schedules   *SchedulesHandler
	Metrics     http.Handler
}

// SetupRouter creates and configures the Gin router with all routes.
func SetupRouter(log logger.Interface, cfg *config.Config, h Handlers) (*gin.Engine, *middleware.SecurityMiddleware) {
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(log))

	security := middleware.NewSecurityMiddleware(&cfg.Server, log)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if h.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.Metrics))
	}

	v1 := router.Group("/api/v1")
	v1.Use(security.Middleware())

	jobs := v1.Group("/jobs")
	jobs.GET("", h.Jobs.ListJobs)
	jobs.GET("/:id", h.Jobs.GetJob)
	jobs.DELETE("/:id", h.Jobs.DeleteJob)
	jobs.POST("/:id/cancel", h.Jobs.CancelJob)
	jobs.POST("/:id/pause", h.Jobs.PauseJob)
	jobs.POST("/:id/resume", h.Jobs.ResumeJob)
	jobs.GET("/:id/credentials", h.Jobs.GetJobCredentials)
	jobs.GET("/:id/export", h.Jobs.ExportJobCredentials)

	scan := v1.Group("/scan")
	scan.POST("/single", h.Scans.CreateSingleScan)
	scan.POST("/multi", h.Scans.CreateMultiScan)
	scan.POST("/file", h.Scans.CreateFileScan)

	creds := v1.Group("/credentials")
	creds.GET("", h.Credentials.ListCredentials)
	creds.GET("/export", h.Credentials.ExportCredentials)
	creds.GET("/:id", h.Credentials.GetCredential)
	creds.DELETE("/:id", h.Credentials.DeleteCredential)

	if h.Schedules != nil {
		schedules := v1.Group("/schedules")
		schedules.POST("", h.Schedules.CreateSchedule)
		schedules.GET("", h.Schedules.ListSchedules)
		schedules.GET("/:id", h.Schedules.GetSchedule)
		schedules.POST("/:id/enable", h.Schedules.EnableSchedule)
		schedules.POST("/:id/disable", h.Schedules.DisableSchedule)
		schedules.DELETE("/:id", h.Schedules.DeleteSchedule)
	}

	dashboard := v1.Group("/dashboard")
	dashboard.GET("/stats", h.Dashboard.GetStats)
	dashboard.GET("/top-domains", h.Dashboard.GetTopDomains)
	dashboard.GET("/top-passwords", h.Dashboard.GetTopPasswords)
	dashboard.GET("/timeline", h.Dashboard.GetTimeline)
	dashboard.GET("/domain/:domain", h.Dashboard.GetDomainDetails)

	return router, security
}

// loggingMiddleware creates a middleware that logs HTTP requests.
func loggingMiddleware(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		log.Info("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// StartHTTPServer builds the HTTP server with the configured router.
func StartHTTPServer(log logger.Interface, cfg *config.Config, h Handlers) (*http.Server, *middleware.SecurityMiddleware) {
	router, security := SetupRouter(log, cfg, h)

	srv := &http.Server{
		Addr:              cfg.GetAddress(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv, security
}

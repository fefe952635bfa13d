package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/north-cloud/leakscan/internal/analytics"
	"github.com/north-cloud/leakscan/internal/database"
	"github.com/north-cloud/leakscan/internal/logger"
)

const (
	defaultTopPasswordsLimit = 50
	maxTimelineDays          = 365
)

// AnalyticsService is the slice of the analytics layer the dashboard exposes.
type AnalyticsService interface {
	Dashboard(ctx context.Context) (*analytics.DashboardStats, error)
	TopRootDomains(ctx context.Context, limit int) ([]analytics.RootDomain, error)
	TopPasswords(ctx context.Context, limit int) ([]database.PasswordCount, error)
	Timeline(ctx context.Context, days int) ([]database.TimelinePoint, error)
	RootDomainDetails(ctx context.Context, root string, limit, offset int) (*analytics.RootDomainDetails, error)
}

// DashboardHandler serves the aggregate dashboard endpoints.
type DashboardHandler struct {
	analytics AnalyticsService
	logger    logger.Interface
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(svc AnalyticsService, log logger.Interface) *DashboardHandler {
	return &DashboardHandler{
		analytics: svc,
		logger:    log.WithComponent("api"),
	}
}

// GetStats handles GET /api/v1/dashboard/stats
func (h *DashboardHandler) GetStats(c *gin.Context) {
	stats, err := h.analytics.Dashboard(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to compute dashboard stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute dashboard stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetTopDomains handles GET /api/v1/dashboard/top-domains
func (h *DashboardHandler) GetTopDomains(c *gin.Context) {
	limit := intQuery(c, "limit", analytics.DefaultTopLimit)

	domains, err := h.analytics.TopRootDomains(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to aggregate top domains", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate top domains"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"domains": domains,
		"count":   len(domains),
	})
}

// GetTopPasswords handles GET /api/v1/dashboard/top-passwords
func (h *DashboardHandler) GetTopPasswords(c *gin.Context) {
	limit := intQuery(c, "limit", defaultTopPasswordsLimit)

	passwords, err := h.analytics.TopPasswords(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to aggregate top passwords", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate top passwords"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"passwords": passwords,
		"count":     len(passwords),
	})
}

// GetTimeline handles GET /api/v1/dashboard/timeline
func (h *DashboardHandler) GetTimeline(c *gin.Context) {
	days := intQuery(c, "days", analytics.DefaultTimelineDays)
	if days > maxTimelineDays {
		days = maxTimelineDays
	}

	points, err := h.analytics.Timeline(c.Request.Context(), days)
	if err != nil {
		h.logger.Error("Failed to build timeline", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build timeline"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"timeline": points,
		"days":     days,
	})
}

// GetDomainDetails handles GET /api/v1/dashboard/domain/:domain
func (h *DashboardHandler) GetDomainDetails(c *gin.Context) {
	root := c.Param("domain")
	limit, offset := paging(c)

	details, err := h.analytics.RootDomainDetails(c.Request.Context(), root, limit, offset)
	if err != nil {
		if errors.Is(err, analytics.ErrInvalidDomain) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid domain"})
			return
		}
		h.logger.Error("Failed to load domain details", "domain", root, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load domain details"})
		return
	}

	c.JSON(http.StatusOK, details)
}

// intQuery parses a positive integer query parameter, falling back to def.
func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/north-cloud/leakscan/internal/database"
	"github.com/north-cloud/leakscan/internal/domain"
	"github.com/north-cloud/leakscan/internal/logger"
)

// ScheduleStore is the slice of the schedule repository the handlers use.
type ScheduleStore interface {
	Create(ctx context.Context, schedule *domain.ScanSchedule) error
	GetByID(ctx context.Context, id string) (*domain.ScanSchedule, error)
	List(ctx context.Context) ([]*domain.ScanSchedule, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
	Delete(ctx context.Context, id string) error
}

// CronValidator rejects malformed cron expressions before they are stored.
type CronValidator interface {
	ValidateExpr(expr string) error
}

// ScheduleRequest creates a recurring scan.
type ScheduleRequest struct {
	Name       string `json:"name"`
	JobType    string `json:"job_type"  binding:"required"`
	Query      string `json:"query"     binding:"required"`
	TimeFilter string `json:"time_filter"`
	CronExpr   string `json:"cron_expr" binding:"required"`
}

// SchedulesHandler manages recurring scan schedules.
type SchedulesHandler struct {
	schedules ScheduleStore
	validator CronValidator
	logger    logger.Interface
}

// NewSchedulesHandler creates a new schedules handler.
func NewSchedulesHandler(schedules ScheduleStore, validator CronValidator, log logger.Interface) *SchedulesHandler {
	return &SchedulesHandler{
		schedules: schedules,
		validator: validator,
		logger:    log.WithComponent("api"),
	}
}

// CreateSchedule handles POST /api/v1/schedules
func (h *SchedulesHandler) CreateSchedule(c *gin.Context) {
	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if req.JobType != domain.JobTypeSingle && req.JobType != domain.JobTypeMulti {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_type must be single or multi"})
		return
	}

	if err := h.validator.ValidateExpr(req.CronExpr); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cron expression"})
		return
	}

	schedule := &domain.ScanSchedule{
		ID:         uuid.New().String(),
		Name:       req.Name,
		JobType:    req.JobType,
		Query:      req.Query,
		TimeFilter: req.TimeFilter,
		CronExpr:   req.CronExpr,
		Enabled:    true,
	}

	if err := h.schedules.Create(c.Request.Context(), schedule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create schedule"})
		return
	}

	c.JSON(http.StatusCreated, schedule)
}

// ListSchedules handles GET /api/v1/schedules
func (h *SchedulesHandler) ListSchedules(c *gin.Context) {
	schedules, err := h.schedules.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve schedules"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"schedules": schedules,
		"count":     len(schedules),
	})
}

// GetSchedule handles GET /api/v1/schedules/:id
func (h *SchedulesHandler) GetSchedule(c *gin.Context) {
	schedule, err := h.schedules.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrScheduleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Schedule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve schedule"})
		return
	}

	c.JSON(http.StatusOK, schedule)
}

// EnableSchedule handles POST /api/v1/schedules/:id/enable
func (h *SchedulesHandler) EnableSchedule(c *gin.Context) {
	h.setEnabled(c, true)
}

// DisableSchedule handles POST /api/v1/schedules/:id/disable
func (h *SchedulesHandler) DisableSchedule(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *SchedulesHandler) setEnabled(c *gin.Context, enabled bool) {
	id := c.Param("id")
	if err := h.schedules.SetEnabled(c.Request.Context(), id, enabled); err != nil {
		if errors.Is(err, database.ErrScheduleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Schedule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update schedule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"schedule_id": id,
		"enabled":     enabled,
	})
}

// DeleteSchedule handles DELETE /api/v1/schedules/:id
func (h *SchedulesHandler) DeleteSchedule(c *gin.Context) {
	id := c.Param("id")
	if err := h.schedules.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrScheduleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Schedule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete schedule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Schedule deleted successfully",
		"schedule_id": id,
	})
}

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/north-cloud/leakscan/internal/database"
	"github.com/north-cloud/leakscan/internal/domain"
	"github.com/north-cloud/leakscan/internal/logger"
)

const (
	defaultLimit  = 50
	defaultOffset = 0
)

// JobStore is the slice of the job repository the handlers use.
type JobStore interface {
	Create(ctx context.Context, job *domain.ScanJob) error
	GetByID(ctx context.Context, id string) (*domain.ScanJob, error)
	List(ctx context.Context, status string, limit, offset int) ([]*domain.ScanJob, error)
	Count(ctx context.Context, status string) (int, error)
	UpdateStatus(ctx context.Context, id, status string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	RequestCancel(ctx context.Context, id string) error
	RequestPause(ctx context.Context, id string) error
	ClearFlags(ctx context.Context, id string) error
	SetQueueMessageID(ctx context.Context, id, msgID string) error
	Delete(ctx context.Context, id string) error
}

// Enqueuer pushes scan jobs onto the work queue and removes queued ones.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID, jobType string) (string, error)
	Remove(ctx context.Context, group, messageID string) error
}

// JobsHandler handles scan job lifecycle HTTP requests.
type JobsHandler struct {
	jobs   JobStore
	creds  CredentialStore
	queue  Enqueuer
	group  string
	logger logger.Interface
}

// NewJobsHandler creates a new jobs handler. group is the queue consumer
// group used when removing still-queued messages.
func NewJobsHandler(jobs JobStore, creds CredentialStore, queue Enqueuer, group string, log logger.Interface) *JobsHandler {
	return &JobsHandler{
		jobs:   jobs,
		creds:  creds,
		queue:  queue,
		group:  group,
		logger: log.WithComponent("api"),
	}
}

// ListJobs handles GET /api/v1/jobs
func (h *JobsHandler) ListJobs(c *gin.Context) {
	status := c.Query("status")
	limit, offset := paging(c)

	jobs, err := h.jobs.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve jobs"})
		return
	}

	total, err := h.jobs.Count(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get total count"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": total,
	})
}

// GetJob handles GET /api/v1/jobs/:id
func (h *JobsHandler) GetJob(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, job)
}

// CancelJob handles POST /api/v1/jobs/:id/cancel
//
// Policy: queued jobs are removed from the work queue and cancelled
// immediately; collecting jobs get a cooperative cancel request; jobs in
// parsing/upserting are rejected; finished jobs are a no-op.
func (h *JobsHandler) CancelJob(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	if domain.NonInterruptibleStatuses[job.Status] {
		c.JSON(http.StatusConflict, gin.H{
			"error": fmt.Sprintf("Job in non-cancellable phase: %s", job.Status),
		})
		return
	}

	if job.IsTerminal() {
		c.JSON(http.StatusOK, gin.H{
			"message": "Job already finished",
			"job_id":  job.ID,
			"status":  job.Status,
		})
		return
	}

	if job.Status == domain.StatusQueued {
		removed := false
		if job.QueueMessageID != "" {
			if err := h.queue.Remove(c.Request.Context(), h.group, job.QueueMessageID); err != nil {
				h.logger.Warn("Failed to remove queued message", "job_id", job.ID, "error", err)
			} else {
				removed = true
			}
		}

		if err := h.jobs.UpdateStatus(c.Request.Context(), job.ID, domain.StatusCancelled); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel job"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":            "Job cancelled",
			"job_id":             job.ID,
			"removed_from_queue": removed,
		})
		return
	}

	// Collecting (or a legacy in-flight status): request cooperative cancel.
	if err := h.jobs.RequestCancel(c.Request.Context(), job.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to request cancellation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cancellation requested",
		"job_id":  job.ID,
		"status":  domain.StatusCancelling,
	})
}

// PauseJob handles POST /api/v1/jobs/:id/pause
//
// Only collecting jobs can be paused; parsing/upserting/queued are rejected.
func (h *JobsHandler) PauseJob(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	if job.IsTerminal() {
		c.JSON(http.StatusOK, gin.H{
			"message": "Job already finished",
			"job_id":  job.ID,
			"status":  job.Status,
		})
		return
	}

	if job.Status == domain.StatusPaused {
		c.JSON(http.StatusOK, gin.H{
			"message": "Job already paused",
			"job_id":  job.ID,
			"status":  job.Status,
		})
		return
	}

	if job.Status != domain.StatusCollecting {
		c.JSON(http.StatusConflict, gin.H{
			"error": fmt.Sprintf("Cannot pause job in status: %s", job.Status),
		})
		return
	}

	if err := h.jobs.RequestPause(c.Request.Context(), job.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to request pause"})
		return
	}
	if err := h.jobs.UpdateStatus(c.Request.Context(), job.ID, domain.StatusPaused); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to pause job"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Job paused",
		"job_id":  job.ID,
		"status":  domain.StatusPaused,
	})
}

// ResumeJob handles POST /api/v1/jobs/:id/resume
//
// Clears the pause flag and re-enqueues the job with its stored query and
// time filter.
func (h *JobsHandler) ResumeJob(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	if job.Status != domain.StatusPaused {
		c.JSON(http.StatusConflict, gin.H{
			"error": fmt.Sprintf("Job is not paused (current status: %s)", job.Status),
		})
		return
	}

	if job.JobType == domain.JobTypeFile && !job.FilePath.Valid {
		c.JSON(http.StatusConflict, gin.H{"error": "File scan has no stored file path to resume from"})
		return
	}

	ctx := c.Request.Context()
	if err := h.jobs.ClearFlags(ctx, job.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear pause flag"})
		return
	}
	if err := h.jobs.UpdateStatus(ctx, job.ID, domain.StatusQueued); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to requeue job"})
		return
	}

	msgID, err := h.queue.Enqueue(ctx, job.ID, job.JobType)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Job queue unavailable"})
		return
	}
	if err := h.jobs.SetQueueMessageID(ctx, job.ID, msgID); err != nil {
		h.logger.Warn("Failed to persist queue message ID", "job_id", job.ID, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Job resumed",
		"job_id":  job.ID,
		"status":  domain.StatusQueued,
	})
}

// DeleteJob handles DELETE /api/v1/jobs/:id
func (h *JobsHandler) DeleteJob(c *gin.Context) {
	id := c.Param("id")

	if err := h.jobs.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete job"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Job deleted successfully",
		"job_id":  id,
	})
}

// GetJobCredentials handles GET /api/v1/jobs/:id/credentials
func (h *JobsHandler) GetJobCredentials(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}
	limit, offset := paging(c)

	creds, err := h.creds.ListByJob(c.Request.Context(), job.ID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":      job.ID,
		"credentials": creds,
		"limit":       limit,
		"offset":      offset,
	})
}

// ExportJobCredentials handles GET /api/v1/jobs/:id/export
func (h *JobsHandler) ExportJobCredentials(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	creds, err := h.creds.ListByJob(c.Request.Context(), job.ID, exportBatchLimit, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve credentials"})
		return
	}

	writeCredentialsCSV(c, fmt.Sprintf("job-%s.csv", job.ID), creds)
}

// loadJob fetches the job from the path parameter, writing the error
// response itself when the lookup fails.
func (h *JobsHandler) loadJob(c *gin.Context) (*domain.ScanJob, bool) {
	id := c.Param("id")
	if id == "" || id == "undefined" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return nil, false
	}

	job, err := h.jobs.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve job"})
		}
		return nil, false
	}
	return job, true
}

// paging reads limit/offset query parameters with defaults.
func paging(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}

	offset, err = strconv.Atoi(c.DefaultQuery("offset", strconv.Itoa(defaultOffset)))
	if err != nil || offset < 0 {
		offset = defaultOffset
	}

	return limit, offset
}

package api

import (
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/north-cloud/leakscan/internal/domain"
	"github.com/north-cloud/leakscan/internal/logger"
)

// ScanHandler handles scan submission HTTP requests.
type ScanHandler struct {
	jobs      JobStore
	queue     Enqueuer
	uploadDir string
	logger    logger.Interface
}

// NewScanHandler creates a new scan submission handler. Uploaded files are
// stored under uploadDir so a worker process can read them later.
func NewScanHandler(jobs JobStore, queue Enqueuer, uploadDir string, log logger.Interface) *ScanHandler {
	return &ScanHandler{
		jobs:      jobs,
		queue:     queue,
		uploadDir: uploadDir,
		logger:    log.WithComponent("api"),
	}
}

// CreateSingleScan handles POST /api/v1/scan/single
func (h *ScanHandler) CreateSingleScan(c *gin.Context) {
	var req SingleScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	job := &domain.ScanJob{
		ID:         uuid.New().String(),
		JobType:    domain.JobTypeSingle,
		Name:       req.Name,
		Query:      strings.TrimSpace(req.Query),
		TimeFilter: req.TimeFilter,
		Status:     domain.StatusQueued,
	}

	h.createAndEnqueue(c, job, fmt.Sprintf("Scan job created for query: %s", job.Query))
}

// CreateMultiScan handles POST /api/v1/scan/multi
func (h *ScanHandler) CreateMultiScan(c *gin.Context) {
	var req MultiScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	domainList := make([]string, 0, len(req.Domains))
	for _, d := range req.Domains {
		if d = strings.TrimSpace(d); d != "" {
			domainList = append(domainList, d)
		}
	}
	if len(domainList) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No domains provided"})
		return
	}

	job := &domain.ScanJob{
		ID:         uuid.New().String(),
		JobType:    domain.JobTypeMulti,
		Name:       req.Name,
		Query:      strings.Join(domainList, ","),
		TimeFilter: req.TimeFilter,
		Status:     domain.StatusQueued,
	}

	h.createAndEnqueue(c, job, fmt.Sprintf("Multi-domain scan job created for %d domains", len(domainList)))
}

// CreateFileScan handles POST /api/v1/scan/file (multipart upload).
// The optional query form field filters extracted lines by substring.
func (h *ScanHandler) CreateFileScan(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file upload"})
		return
	}

	name := c.PostForm("name")
	query := c.PostForm("query")

	if mkErr := os.MkdirAll(h.uploadDir, 0o755); mkErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare upload directory"})
		return
	}

	jobID := uuid.New().String()
	dest := filepath.Join(h.uploadDir, jobID+filepath.Ext(fileHeader.Filename))
	if saveErr := c.SaveUploadedFile(fileHeader, dest); saveErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store uploaded file"})
		return
	}

	if query == "" {
		query = fileHeader.Filename
	}

	job := &domain.ScanJob{
		ID:       jobID,
		JobType:  domain.JobTypeFile,
		Name:     name,
		Query:    query,
		Status:   domain.StatusQueued,
		FilePath: sql.NullString{String: dest, Valid: true},
	}

	h.createAndEnqueue(c, job, fmt.Sprintf("File scan job created for: %s", fileHeader.Filename))
}

// createAndEnqueue persists the job row, enqueues it, and writes the
// creation response. The queue message ID is persisted so a still-queued job
// can be cancelled by removing its message.
func (h *ScanHandler) createAndEnqueue(c *gin.Context, job *domain.ScanJob, message string) {
	ctx := c.Request.Context()

	if err := h.jobs.Create(ctx, job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create scan job"})
		return
	}

	msgID, err := h.queue.Enqueue(ctx, job.ID, job.JobType)
	if err != nil {
		h.logger.Error("Failed to enqueue scan job", "job_id", job.ID, "error", err)
		if markErr := h.jobs.MarkFailed(ctx, job.ID, "failed to enqueue job"); markErr != nil {
			h.logger.Warn("Failed to mark unenqueued job", "job_id", job.ID, "error", markErr)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Job queue unavailable"})
		return
	}

	if err := h.jobs.SetQueueMessageID(ctx, job.ID, msgID); err != nil {
		h.logger.Warn("Failed to persist queue message ID", "job_id", job.ID, "error", err)
	}

	c.JSON(http.StatusCreated, JobCreateResponse{
		JobID:   job.ID,
		Status:  domain.StatusQueued,
		Message: message,
	})
}

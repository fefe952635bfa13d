package api_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/north-cloud/leakscan/internal/api"
	"github.com/north-cloud/leakscan/internal/database"
	"github.com/north-cloud/leakscan/internal/domain"
	"github.com/north-cloud/leakscan/internal/logger"
)

// mockJobStore implements api.JobStore for testing. Calls that mutate state
// are recorded so tests can assert on the sequence of repository writes.
type mockJobStore struct {
	job *domain.ScanJob

	createErr     error
	enqueuedJobs  []*domain.ScanJob
	statusWrites  []string
	failedWrites  []string
	cancelFlagged []string
	pauseFlagged  []string
	flagsCleared  []string
	messageIDs    map[string]string
	deleted       []string
}

func (m *mockJobStore) Create(ctx context.Context, job *domain.ScanJob) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.enqueuedJobs = append(m.enqueuedJobs, job)
	return nil
}

func (m *mockJobStore) GetByID(ctx context.Context, id string) (*domain.ScanJob, error) {
	if m.job == nil || m.job.ID != id {
		return nil, database.ErrJobNotFound
	}
	return m.job, nil
}

func (m *mockJobStore) List(ctx context.Context, status string, limit, offset int) ([]*domain.ScanJob, error) {
	if m.job == nil {
		return []*domain.ScanJob{}, nil
	}
	return []*domain.ScanJob{m.job}, nil
}

func (m *mockJobStore) Count(ctx context.Context, status string) (int, error) {
	if m.job == nil {
		return 0, nil
	}
	return 1, nil
}

func (m *mockJobStore) UpdateStatus(ctx context.Context, id, status string) error {
	m.statusWrites = append(m.statusWrites, id+":"+status)
	return nil
}

func (m *mockJobStore) MarkFailed(ctx context.Context, id, errMsg string) error {
	m.failedWrites = append(m.failedWrites, id)
	return nil
}

func (m *mockJobStore) RequestCancel(ctx context.Context, id string) error {
	m.cancelFlagged = append(m.cancelFlagged, id)
	return nil
}

func (m *mockJobStore) RequestPause(ctx context.Context, id string) error {
	m.pauseFlagged = append(m.pauseFlagged, id)
	return nil
}

func (m *mockJobStore) ClearFlags(ctx context.Context, id string) error {
	m.flagsCleared = append(m.flagsCleared, id)
	return nil
}

func (m *mockJobStore) SetQueueMessageID(ctx context.Context, id, msgID string) error {
	if m.messageIDs == nil {
		m.messageIDs = make(map[string]string)
	}
	m.messageIDs[id] = msgID
	return nil
}

func (m *mockJobStore) Delete(ctx context.Context, id string) error {
	if m.job == nil || m.job.ID != id {
		return database.ErrJobNotFound
	}
	m.deleted = append(m.deleted, id)
	return nil
}

// mockEnqueuer implements api.Enqueuer for testing.
type mockEnqueuer struct {
	enqueueErr error
	enqueued   []string
	removed    []string
	removeErr  error
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, jobID, jobType string) (string, error) {
	if m.enqueueErr != nil {
		return "", m.enqueueErr
	}
	m.enqueued = append(m.enqueued, jobID)
	return "1700000000000-0", nil
}

func (m *mockEnqueuer) Remove(ctx context.Context, group, messageID string) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	m.removed = append(m.removed, messageID)
	return nil
}

// mockCredentialStore implements api.CredentialStore for testing.
type mockCredentialStore struct {
	creds []*domain.Credential
}

func (m *mockCredentialStore) List(ctx context.Context, filter database.CredentialFilter) ([]*domain.Credential, error) {
	return m.creds, nil
}

func (m *mockCredentialStore) Count(ctx context.Context, filter database.CredentialFilter) (int, error) {
	return len(m.creds), nil
}

func (m *mockCredentialStore) GetByID(ctx context.Context, id int64) (*domain.Credential, error) {
	for _, cred := range m.creds {
		if cred.ID == id {
			return cred, nil
		}
	}
	return nil, database.ErrCredentialNotFound
}

func (m *mockCredentialStore) Delete(ctx context.Context, id int64) error {
	for _, cred := range m.creds {
		if cred.ID == id {
			return nil
		}
	}
	return database.ErrCredentialNotFound
}

func (m *mockCredentialStore) ListByJob(ctx context.Context, jobID string, limit, offset int) ([]*domain.Credential, error) {
	return m.creds, nil
}

func newJobsRouter(jobs *mockJobStore, queue *mockEnqueuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	handler := api.NewJobsHandler(jobs, &mockCredentialStore{}, queue, "leakscan-workers", logger.NewNoOp())
	group := router.Group("/api/v1/jobs")
	{
		group.GET("", handler.ListJobs)
		group.GET("/:id", handler.GetJob)
		group.DELETE("/:id", handler.DeleteJob)
		group.POST("/:id/cancel", handler.CancelJob)
		group.POST("/:id/pause", handler.PauseJob)
		group.POST("/:id/resume", handler.ResumeJob)
	}
	return router
}

func doRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCancelJob_QueuedRemovesMessage(t *testing.T) {
	jobs := &mockJobStore{job: &domain.ScanJob{
		ID:             "job-1",
		JobType:        domain.JobTypeSingle,
		Status:         domain.StatusQueued,
		QueueMessageID: "1700000000000-0",
	}}
	queue := &mockEnqueuer{}
	router := newJobsRouter(jobs, queue)

	w := doRequest(router, http.MethodPost, "/api/v1/jobs/job-1/cancel")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(queue.removed) != 1 || queue.removed[0] != "1700000000000-0" {
		t.Errorf("expected queue message removal, got %v", queue.removed)
	}
	if len(jobs.statusWrites) != 1 || jobs.statusWrites[0] != "job-1:cancelled" {
		t.Errorf("expected cancelled status write, got %v", jobs.statusWrites)
	}
	if !strings.Contains(w.Body.String(), `"removed_from_queue":true`) {
		t.Errorf("expected removed_from_queue true, got %s", w.Body.String())
	}
}

func TestCancelJob_QueuedRemoveFailureStillCancels(t *testing.T) {
	jobs := &mockJobStore{job: &domain.ScanJob{
		ID:             "job-1",
		Status:         domain.StatusQueued,
		QueueMessageID: "1700000000000-0",
	}}
	queue := &mockEnqueuer{removeErr: errors.New("redis down")}
	router := newJobsRouter(jobs, queue)

	w := doRequest(router, http.MethodPost, "/api/v1/jobs/job-1/cancel")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(jobs.statusWrites) != 1 || jobs.statusWrites[0] != "job-1:cancelled" {
		t.Errorf("expected cancelled status write, got %v", jobs.statusWrites)
	}
	if !strings.Contains(w.Body.String(), `"removed_from_queue":false`) {
		t.Errorf("expected removed_from_queue false, got %s", w.Body.String())
	}
}

func TestCancelJob_CollectingRequestsCooperativeCancel(t *testing.T) {
	jobs := &mockJobStore{job: &domain.ScanJob{ID: "job-1", Status: domain.StatusCollecting}}
	queue := &mockEnqueuer{}
	router := newJobsRouter(jobs, queue)

	w := doRequest(router, http.MethodPost, "/api/v1/jobs/job-1/cancel")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(jobs.cancelFlagged) != 1 || jobs.cancelFlagged[0] != "job-1" {
		t.Errorf("expected cancel flag request, got %v", jobs.cancelFlagged)
	}
	if len(queue.removed) != 0 {
		t.Errorf("collecting job must not touch the queue, got %v", queue.removed)
	}
	if !strings.Contains(w.Body.String(), domain.StatusCancelling) {
		t.Errorf("expected cancelling status in response, got %s", w.Body.String())
	}
}

func TestCancelJob_ParsingRejected(t *testing.T) {
	for _, status := range []string{domain.StatusParsing, domain.StatusUpserting} {
		jobs := &mockJobStore{job: &domain.ScanJob{ID: "job-1", Status: status}}
		router := newJobsRouter(jobs, &mockEnqueuer{})

		w := doRequest(router, http.MethodPost, "/api/v1/jobs/job-1/cancel")

		if w.Code != http.StatusConflict {
			t.Errorf("status %s: expected 409, got %d", status, w.Code)
		}
		if len(jobs.statusWrites) != 0 || len(jobs.cancelFlagged) != 0 {
			t.Errorf("status %s: expected no writes, got %v %v", status, jobs.statusWrites, jobs.cancelFlagged)
		}
	}
}

func TestCancelJob_TerminalIsNoOp(t *testing.T) {
	jobs := &mockJobStore{job: &domain.ScanJob{ID: "job-1", Status: domain.StatusCompleted}}
	router := newJobsRouter(jobs, &mockEnqueuer{})

	w := doRequest(router, http.MethodPost, "/api/v1/jobs/job-1/cancel")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(jobs.statusWrites) != 0 {
		t.Errorf("expected no status writes for finished job, got %v", jobs.statusWrites)
	}
}

func TestPauseJob_CollectingPauses(t *testing.T) {
	jobs := &mockJobStore{job: &domain.ScanJob{ID: "job-1", Status: domain.StatusCollecting}}
	router := newJobsRouter(jobs, &mockEnqueuer{})

	w := doRequest(router, http.MethodPost, "/api/v1/jobs/job-1/pause")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(jobs.pauseFlagged) != 1 {
		t.Errorf("expected pause flag request, got %v", jobs.pauseFlagged)
	}
	if len(jobs.statusWrites) != 1 || jobs.statusWrites[0] != "job-1:paused" {
		t.Errorf("expected paused status write, got %v", jobs.statusWrites)
	}
}

func TestPauseJob_QueuedRejected(t *testing.T) {
	for _, status := range []string{domain.StatusQueued, domain.StatusParsing, domain.StatusUpserting} {
		jobs := &mockJobStore{job: &domain.ScanJob{ID: "job-1", Status: status}}
		router := newJobsRouter(jobs, &mockEnqueuer{})

		w := doRequest(router, http.MethodPost, "/api/v1/jobs/job-1/pause")

		if w.Code != http.StatusConflict {
			t.Errorf("status %s: expected 409, got %d", status, w.Code)
		}
	}
}

func TestPauseJob_AlreadyPaused(t *testing.T) {
	jobs := &mockJobStore{job: &domain.ScanJob{ID: "job-1", Status: domain.StatusPaused}}
	router := newJobsRouter(jobs, &mockEnqueuer{})

	w := doRequest(router, http.MethodPost, "/api/v1/jobs/job-1/pause")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(jobs.pauseFlagged) != 0 || len(jobs.statusWrites) != 0 {
		t.Errorf("expected no writes for already-paused job")
	}
}

func TestResumeJob_PausedRequeues(t *testing.T) {
	jobs := &mockJobStore{job: &domain.ScanJob{
		ID:      "job-1",
		JobType: domain.JobTypeSingle,
		Status:  domain.StatusPaused,
	}}
	queue := &mockEnqueuer{}
	router := newJobsRouter(jobs, queue)

	w := doRequest(router, http.MethodPost, "/api/v1/jobs/job-1/resume")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(jobs.flagsCleared) != 1 {
		t.Errorf("expected flags cleared, got %v", jobs.flagsCleared)
	}
	if len(jobs.statusWrites) != 1 || jobs.statusWrites[0] != "job-1:queued" {
		t.Errorf("expected queued status write, got %v", jobs.statusWrites)
	}
	if len(queue.enqueued) != 1 || queue.enqueued[0] != "job-1" {
		t.Errorf("expected re-enqueue, got %v", queue.enqueued)
	}
	if jobs.messageIDs["job-1"] == "" {
		t.Errorf("expected persisted queue message ID")
	}
}

func TestResumeJob_NotPausedRejected(t *testing.T) {
	jobs := &mockJobStore{job: &domain.ScanJob{ID: "job-1", Status: domain.StatusCollecting}}
	router := newJobsRouter(jobs, &mockEnqueuer{})

	w := doRequest(router, http.MethodPost, "/api/v1/jobs/job-1/resume")

	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestResumeJob_FileWithoutStoredPathRejected(t *testing.T) {
	jobs := &mockJobStore{job: &domain.ScanJob{
		ID:      "job-1",
		JobType: domain.JobTypeFile,
		Status:  domain.StatusPaused,
	}}
	router := newJobsRouter(jobs, &mockEnqueuer{})

	w := doRequest(router, http.MethodPost, "/api/v1/jobs/job-1/resume")

	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestResumeJob_FileWithStoredPathRequeues(t *testing.T) {
	jobs := &mockJobStore{job: &domain.ScanJob{
		ID:       "job-1",
		JobType:  domain.JobTypeFile,
		Status:   domain.StatusPaused,
		FilePath: sql.NullString{String: "/data/uploads/job-1.zip", Valid: true},
	}}
	queue := &mockEnqueuer{}
	router := newJobsRouter(jobs, queue)

	w := doRequest(router, http.MethodPost, "/api/v1/jobs/job-1/resume")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(queue.enqueued) != 1 {
		t.Errorf("expected re-enqueue, got %v", queue.enqueued)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	router := newJobsRouter(&mockJobStore{}, &mockEnqueuer{})

	w := doRequest(router, http.MethodGet, "/api/v1/jobs/missing")

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestGetJob_UndefinedID(t *testing.T) {
	router := newJobsRouter(&mockJobStore{}, &mockEnqueuer{})

	w := doRequest(router, http.MethodGet, "/api/v1/jobs/undefined")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestDeleteJob(t *testing.T) {
	jobs := &mockJobStore{job: &domain.ScanJob{ID: "job-1", Status: domain.StatusCompleted}}
	router := newJobsRouter(jobs, &mockEnqueuer{})

	w := doRequest(router, http.MethodDelete, "/api/v1/jobs/job-1")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(jobs.deleted) != 1 {
		t.Errorf("expected delete call, got %v", jobs.deleted)
	}

	w = doRequest(router, http.MethodDelete, "/api/v1/jobs/missing")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for unknown job, got %d", w.Code)
	}
}

func TestListJobs(t *testing.T) {
	jobs := &mockJobStore{job: &domain.ScanJob{ID: "job-1", Status: domain.StatusQueued}}
	router := newJobsRouter(jobs, &mockEnqueuer{})

	w := doRequest(router, http.MethodGet, "/api/v1/jobs?status=queued")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Jobs  []json.RawMessage `json:"jobs"`
		Total int               `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 1 || len(resp.Jobs) != 1 {
		t.Errorf("expected one job, got total=%d len=%d", resp.Total, len(resp.Jobs))
	}
}

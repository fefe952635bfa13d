package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/north-cloud/leakscan/internal/domain"
)

// ErrJobNotFound is returned when a scan job does not exist.
var ErrJobNotFound = errors.New("scan job not found")

// scanJobColumns are the columns selected for every job read.
const scanJobColumns = `id, job_type, name, query, time_filter, status, queue_message_id,
	       cancel_requested, pause_requested, total_raw, total_parsed, total_new,
	       total_duplicates, file_path, started_at, completed_at, created_at, error_message`

// ScanJobRepository handles database operations for scan jobs.
type ScanJobRepository struct {
	db *sqlx.DB
}

// NewScanJobRepository creates a new scan job repository.
func NewScanJobRepository(db *sqlx.DB) *ScanJobRepository {
	return &ScanJobRepository{db: db}
}

// Create inserts a new scan job into the database.
func (r *ScanJobRepository) Create(ctx context.Context, job *domain.ScanJob) error {
	query := `
		INSERT INTO scan_jobs (id, job_type, name, query, time_filter, status, file_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		job.ID,
		job.JobType,
		job.Name,
		job.Query,
		job.TimeFilter,
		job.Status,
		job.FilePath,
	).Scan(&job.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create scan job: %w", err)
	}

	return nil
}

// GetByID retrieves a scan job by its ID.
func (r *ScanJobRepository) GetByID(ctx context.Context, id string) (*domain.ScanJob, error) {
	var job domain.ScanJob
	query := `SELECT ` + scanJobColumns + ` FROM scan_jobs WHERE id = $1`

	err := r.db.GetContext(ctx, &job, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("failed to get scan job: %w", err)
	}

	return &job, nil
}

// List retrieves scan jobs with optional status filtering, newest first.
func (r *ScanJobRepository) List(ctx context.Context, status string, limit, offset int) ([]*domain.ScanJob, error) {
	var jobs []*domain.ScanJob
	var query string
	var args []any

	if status != "" {
		query = `SELECT ` + scanJobColumns + `
			FROM scan_jobs
			WHERE status = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3`
		args = []any{status, limit, offset}
	} else {
		query = `SELECT ` + scanJobColumns + `
			FROM scan_jobs
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2`
		args = []any{limit, offset}
	}

	err := r.db.SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan jobs: %w", err)
	}

	if jobs == nil {
		jobs = []*domain.ScanJob{}
	}

	return jobs, nil
}

// Count returns the total number of scan jobs, optionally filtered by status.
func (r *ScanJobRepository) Count(ctx context.Context, status string) (int, error) {
	var count int
	var query string
	var args []any

	if status != "" {
		query = `SELECT COUNT(*) FROM scan_jobs WHERE status = $1`
		args = []any{status}
	} else {
		query = `SELECT COUNT(*) FROM scan_jobs`
		args = []any{}
	}

	err := r.db.GetContext(ctx, &count, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count scan jobs: %w", err)
	}

	return count, nil
}

// UpdateStatus transitions a job to the given status. Started and completed
// timestamps are maintained here so every transition records them the same way.
func (r *ScanJobRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `
		UPDATE scan_jobs
		SET status = $1,
		    started_at = CASE WHEN $1 = 'collecting' AND started_at IS NULL THEN NOW() ELSE started_at END,
		    completed_at = CASE WHEN $1 IN ('completed', 'failed', 'cancelled') THEN NOW() ELSE completed_at END
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update scan job status: %w", err)
	}

	return requireRow(result, id)
}

// MarkFailed transitions a job to failed and records the error message.
func (r *ScanJobRepository) MarkFailed(ctx context.Context, id, errMsg string) error {
	query := `
		UPDATE scan_jobs
		SET status = 'failed', error_message = $1, completed_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to mark scan job failed: %w", err)
	}

	return requireRow(result, id)
}

// UpdateCounters records the raw/parsed/new/duplicate totals for a job.
func (r *ScanJobRepository) UpdateCounters(ctx context.Context, id string, raw, parsed, newCount, dupes int) error {
	query := `
		UPDATE scan_jobs
		SET total_raw = $1, total_parsed = $2, total_new = $3, total_duplicates = $4
		WHERE id = $5
	`

	result, err := r.db.ExecContext(ctx, query, raw, parsed, newCount, dupes, id)
	if err != nil {
		return fmt.Errorf("failed to update scan job counters: %w", err)
	}

	return requireRow(result, id)
}

// SetQueueMessageID records the queue message id assigned to a queued job.
func (r *ScanJobRepository) SetQueueMessageID(ctx context.Context, id, msgID string) error {
	query := `UPDATE scan_jobs SET queue_message_id = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, msgID, id)
	if err != nil {
		return fmt.Errorf("failed to set queue message id: %w", err)
	}

	return requireRow(result, id)
}

// RequestCancel sets the cooperative cancel flag and moves the job to
// cancelling. The worker observes the flag at its next checkpoint.
func (r *ScanJobRepository) RequestCancel(ctx context.Context, id string) error {
	query := `UPDATE scan_jobs SET cancel_requested = TRUE, status = 'cancelling' WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to request cancel: %w", err)
	}

	return requireRow(result, id)
}

// RequestPause sets the cooperative pause flag. The job keeps its current
// status until the worker observes the flag.
func (r *ScanJobRepository) RequestPause(ctx context.Context, id string) error {
	query := `UPDATE scan_jobs SET pause_requested = TRUE WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to request pause: %w", err)
	}

	return requireRow(result, id)
}

// ClearFlags resets both cooperative request flags, used when resuming a
// paused job.
func (r *ScanJobRepository) ClearFlags(ctx context.Context, id string) error {
	query := `UPDATE scan_jobs SET cancel_requested = FALSE, pause_requested = FALSE WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to clear request flags: %w", err)
	}

	return requireRow(result, id)
}

// StopFlags is the pair of cooperative request flags read by the worker.
type StopFlags struct {
	CancelRequested bool `db:"cancel_requested"`
	PauseRequested  bool `db:"pause_requested"`
}

// ReadFlags fetches only the cooperative request flags for a job. The worker
// polls this during collection, so it stays a two-column read.
func (r *ScanJobRepository) ReadFlags(ctx context.Context, id string) (StopFlags, error) {
	var flags StopFlags
	query := `SELECT cancel_requested, pause_requested FROM scan_jobs WHERE id = $1`

	err := r.db.GetContext(ctx, &flags, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return flags, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return flags, fmt.Errorf("failed to read request flags: %w", err)
	}

	return flags, nil
}

// Delete removes a scan job from the database.
func (r *ScanJobRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM scan_jobs WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete scan job: %w", err)
	}

	return requireRow(result, id)
}

// requireRow converts a zero-row update into ErrJobNotFound.
func requireRow(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	return nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/north-cloud/leakscan/internal/domain"
)

// ErrScheduleNotFound is returned when a scan schedule does not exist.
var ErrScheduleNotFound = errors.New("scan schedule not found")

const scheduleColumns = `id, name, job_type, query, time_filter, cron_expr, enabled, last_run_at, created_at`

// ScheduleRepository handles database operations for recurring scan schedules.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Create inserts a new scan schedule.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *domain.ScanSchedule) error {
	query := `
		INSERT INTO scan_schedules (id, name, job_type, query, time_filter, cron_expr, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		schedule.ID,
		schedule.Name,
		schedule.JobType,
		schedule.Query,
		schedule.TimeFilter,
		schedule.CronExpr,
		schedule.Enabled,
	).Scan(&schedule.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create scan schedule: %w", err)
	}

	return nil
}

// GetByID retrieves a scan schedule by its ID.
func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*domain.ScanSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM scan_schedules WHERE id = $1`

	var schedule domain.ScanSchedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
		}
		return nil, fmt.Errorf("failed to get scan schedule: %w", err)
	}

	return &schedule, nil
}

// List retrieves all scan schedules, newest first.
func (r *ScheduleRepository) List(ctx context.Context) ([]*domain.ScanSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM scan_schedules ORDER BY created_at DESC`

	schedules := []*domain.ScanSchedule{}
	if err := r.db.SelectContext(ctx, &schedules, query); err != nil {
		return nil, fmt.Errorf("failed to list scan schedules: %w", err)
	}

	return schedules, nil
}

// ListEnabled retrieves all enabled scan schedules.
func (r *ScheduleRepository) ListEnabled(ctx context.Context) ([]*domain.ScanSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM scan_schedules WHERE enabled ORDER BY created_at DESC`

	schedules := []*domain.ScanSchedule{}
	if err := r.db.SelectContext(ctx, &schedules, query); err != nil {
		return nil, fmt.Errorf("failed to list enabled scan schedules: %w", err)
	}

	return schedules, nil
}

// SetEnabled toggles a schedule on or off.
func (r *ScheduleRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	query := `UPDATE scan_schedules SET enabled = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, enabled)
	if err != nil {
		return fmt.Errorf("failed to update scan schedule: %w", err)
	}
	return execRequireRows(result, nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, id))
}

// TouchLastRun records the time of the latest triggered run.
func (r *ScheduleRepository) TouchLastRun(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE scan_schedules SET last_run_at = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to record schedule run: %w", err)
	}
	return execRequireRows(result, nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, id))
}

// Delete removes a scan schedule.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM scan_schedules WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete scan schedule: %w", err)
	}
	return execRequireRows(result, nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, id))
}

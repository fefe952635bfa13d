package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/north-cloud/leakscan/internal/domain"
)

// DomainCount is the per-domain aggregate used by the analytics layer. The
// domain column holds normalized hostnames; root-level grouping happens in
// the analytics service.
type DomainCount struct {
	Domain    string    `db:"domain"`
	Count     int       `db:"count"`
	Admins    int       `db:"admins"`
	FirstSeen time.Time `db:"first_seen"`
	LastSeen  time.Time `db:"last_seen"`
}

// PasswordCount is a password with its occurrence count.
type PasswordCount struct {
	Password string `db:"password" json:"password"`
	Count    int    `db:"count"    json:"count"`
}

// TimelinePoint is one day of newly discovered credentials.
type TimelinePoint struct {
	Day   time.Time `db:"day"   json:"day"`
	Count int       `db:"count" json:"count"`
}

// AnalyticsRepository runs the aggregate queries behind the dashboard.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository creates a new analytics repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Totals returns the overall credential and admin-credential counts.
func (r *AnalyticsRepository) Totals(ctx context.Context) (total, admins int, err error) {
	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_admin) FROM credentials`

	if err = r.db.QueryRowContext(ctx, query).Scan(&total, &admins); err != nil {
		return 0, 0, fmt.Errorf("failed to count credentials: %w", err)
	}

	return total, admins, nil
}

// DomainCounts returns per-domain aggregates for every stored domain.
func (r *AnalyticsRepository) DomainCounts(ctx context.Context) ([]DomainCount, error) {
	var counts []DomainCount
	query := `
		SELECT domain,
		       COUNT(*) AS count,
		       COUNT(*) FILTER (WHERE is_admin) AS admins,
		       MIN(first_seen) AS first_seen,
		       MAX(last_seen) AS last_seen
		FROM credentials
		GROUP BY domain
	`

	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("failed to aggregate domains: %w", err)
	}

	return counts, nil
}

// TopPasswords returns the most frequently seen passwords.
func (r *AnalyticsRepository) TopPasswords(ctx context.Context, limit int) ([]PasswordCount, error) {
	var passwords []PasswordCount
	query := `
		SELECT password, COUNT(*) AS count
		FROM credentials
		GROUP BY password
		ORDER BY count DESC, password ASC
		LIMIT $1
	`

	if err := r.db.SelectContext(ctx, &passwords, query, limit); err != nil {
		return nil, fmt.Errorf("failed to aggregate passwords: %w", err)
	}

	if passwords == nil {
		passwords = []PasswordCount{}
	}

	return passwords, nil
}

// Timeline returns daily counts of newly discovered credentials for the last
// N days.
func (r *AnalyticsRepository) Timeline(ctx context.Context, days int) ([]TimelinePoint, error) {
	var points []TimelinePoint
	query := `
		SELECT DATE_TRUNC('day', first_seen) AS day, COUNT(*) AS count
		FROM credentials
		WHERE first_seen >= NOW() - ($1 * INTERVAL '1 day')
		GROUP BY day
		ORDER BY day ASC
	`

	if err := r.db.SelectContext(ctx, &points, query, days); err != nil {
		return nil, fmt.Errorf("failed to build timeline: %w", err)
	}

	if points == nil {
		points = []TimelinePoint{}
	}

	return points, nil
}

// ListByDomains retrieves credentials whose domain is any of the given
// hostnames, most recently seen first.
func (r *AnalyticsRepository) ListByDomains(ctx context.Context, hostnames []string, limit, offset int) ([]*domain.Credential, error) {
	if len(hostnames) == 0 {
		return []*domain.Credential{}, nil
	}

	query, args, err := sqlx.In(`SELECT `+credentialColumns+`
		FROM credentials
		WHERE domain IN (?)
		ORDER BY last_seen DESC
		LIMIT ? OFFSET ?`, hostnames, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to build domain query: %w", err)
	}
	query = r.db.Rebind(query)

	var creds []*domain.Credential
	if err := r.db.SelectContext(ctx, &creds, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list domain credentials: %w", err)
	}

	if creds == nil {
		creds = []*domain.Credential{}
	}

	return creds, nil
}

// JobsCreatedSince returns how many scan jobs were created at or after the
// given time.
func (r *AnalyticsRepository) JobsCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM scan_jobs WHERE created_at >= $1`

	if err := r.db.QueryRowContext(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent jobs: %w", err)
	}

	return count, nil
}

// JobStatusCounts returns how many scan jobs are in each status.
func (r *AnalyticsRepository) JobStatusCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM scan_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if scanErr := rows.Scan(&status, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan job status count: %w", scanErr)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read job status counts: %w", err)
	}

	return counts, nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/north-cloud/leakscan/internal/domain"
)

// ErrCredentialNotFound is returned when a credential does not exist.
var ErrCredentialNotFound = errors.New("credential not found")

const credentialColumns = `id, url, username, password, domain, is_admin,
	       first_seen, last_seen, seen_count, created_at`

// CredentialFilter narrows credential listings and exports.
type CredentialFilter struct {
	Domain    string
	Query     string
	AdminOnly bool
	Limit     int
	Offset    int
}

// CredentialRepository handles database operations for credentials.
type CredentialRepository struct {
	db *sqlx.DB
}

// NewCredentialRepository creates a new credential repository.
func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Upsert inserts the credential or, when the (url, username, password) triple
// already exists, bumps last_seen and seen_count. The returned credential
// carries the stored row; inserted reports whether a new row was created.
func (r *CredentialRepository) Upsert(ctx context.Context, cred *domain.Credential) (inserted bool, err error) {
	query := `
		INSERT INTO credentials (url, username, password, domain, is_admin)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ON CONSTRAINT credentials_triple_unique
		DO UPDATE SET last_seen = NOW(), seen_count = credentials.seen_count + 1
		RETURNING id, first_seen, last_seen, seen_count, created_at, (xmax = 0) AS inserted
	`

	err = r.db.QueryRowContext(
		ctx,
		query,
		cred.URL,
		cred.Username,
		cred.Password,
		cred.Domain,
		cred.IsAdmin,
	).Scan(&cred.ID, &cred.FirstSeen, &cred.LastSeen, &cred.SeenCount, &cred.CreatedAt, &inserted)

	if err != nil {
		return false, fmt.Errorf("failed to upsert credential: %w", err)
	}

	return inserted, nil
}

// GetByTriple retrieves a credential by its unique (url, username, password)
// triple.
func (r *CredentialRepository) GetByTriple(ctx context.Context, url, username, password string) (*domain.Credential, error) {
	var cred domain.Credential
	query := `SELECT ` + credentialColumns + `
		FROM credentials
		WHERE url = $1 AND username = $2 AND password = $3`

	err := r.db.GetContext(ctx, &cred, query, url, username, password)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return &cred, nil
}

// GetByID retrieves a credential by its ID.
func (r *CredentialRepository) GetByID(ctx context.Context, id int64) (*domain.Credential, error) {
	var cred domain.Credential
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = $1`

	err := r.db.GetContext(ctx, &cred, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return &cred, nil
}

// List retrieves credentials matching the filter, most recently seen first.
func (r *CredentialRepository) List(ctx context.Context, filter CredentialFilter) ([]*domain.Credential, error) {
	where, args := filter.clauses()

	query := `SELECT ` + credentialColumns + `
		FROM credentials` + where +
		fmt.Sprintf(` ORDER BY last_seen DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	var creds []*domain.Credential
	if err := r.db.SelectContext(ctx, &creds, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	if creds == nil {
		creds = []*domain.Credential{}
	}

	return creds, nil
}

// Count returns the number of credentials matching the filter.
func (r *CredentialRepository) Count(ctx context.Context, filter CredentialFilter) (int, error) {
	where, args := filter.clauses()

	var count int
	query := `SELECT COUNT(*) FROM credentials` + where
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count credentials: %w", err)
	}

	return count, nil
}

// LinkToJob records that a job observed a credential. Conflicts are ignored:
// a job observing the same credential twice keeps its first is_new value.
func (r *CredentialRepository) LinkToJob(ctx context.Context, jobID string, credentialID int64, isNew bool) error {
	query := `
		INSERT INTO job_credentials (job_id, credential_id, is_new)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id, credential_id) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, jobID, credentialID, isNew); err != nil {
		return fmt.Errorf("failed to link credential to job: %w", err)
	}

	return nil
}

// ListByJob retrieves the credentials observed by a job, most recently seen
// first.
func (r *CredentialRepository) ListByJob(ctx context.Context, jobID string, limit, offset int) ([]*domain.Credential, error) {
	var creds []*domain.Credential
	query := `
		SELECT c.id, c.url, c.username, c.password, c.domain, c.is_admin,
		       c.first_seen, c.last_seen, c.seen_count, c.created_at
		FROM credentials c
		JOIN job_credentials jc ON jc.credential_id = c.id
		WHERE jc.job_id = $1
		ORDER BY c.last_seen DESC
		LIMIT $2 OFFSET $3
	`

	if err := r.db.SelectContext(ctx, &creds, query, jobID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list job credentials: %w", err)
	}

	if creds == nil {
		creds = []*domain.Credential{}
	}

	return creds, nil
}

// Delete removes a credential and its job associations.
func (r *CredentialRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM job_credentials WHERE credential_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete credential links: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return ErrCredentialNotFound
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// clauses builds the WHERE clause and its arguments for the filter.
func (f CredentialFilter) clauses() (string, []any) {
	var conds []string
	var args []any

	if f.Domain != "" {
		args = append(args, f.Domain)
		conds = append(conds, fmt.Sprintf("domain = $%d", len(args)))
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(url ILIKE $%d OR username ILIKE $%d)", n, n))
	}
	if f.AdminOnly {
		conds = append(conds, "is_admin")
	}

	if len(conds) == 0 {
		return "", args
	}

	where := " WHERE " + conds[0]
	for _, c := range conds[1:] {
		where += " AND " + c
	}
	return where, args
}

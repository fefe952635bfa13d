package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/north-cloud/leakscan/internal/database"
	"github.com/north-cloud/leakscan/internal/domain"
)

func TestCredentialRepository_Upsert_Insert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewCredentialRepository(db)
	ctx := context.Background()

	now := time.Now()

	mock.ExpectQuery("INSERT INTO credentials").
		WithArgs("https://mail.acme.co.id/login", "alice@acme.co.id", "hunter2", "mail.acme.co.id", false).
		WillReturnRows(
			sqlmock.NewRows([]string{"id", "first_seen", "last_seen", "seen_count", "created_at", "inserted"}).
				AddRow(int64(41), now, now, 1, now, true),
		)

	cred := &domain.Credential{
		URL:      "https://mail.acme.co.id/login",
		Username: "alice@acme.co.id",
		Password: "hunter2",
		Domain:   "mail.acme.co.id",
	}

	inserted, err := repo.Upsert(ctx, cred)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !inserted {
		t.Error("expected inserted=true for new credential")
	}
	if cred.ID != 41 || cred.SeenCount != 1 {
		t.Errorf("expected stored row to be reflected, got id=%d seen=%d", cred.ID, cred.SeenCount)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCredentialRepository_Upsert_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewCredentialRepository(db)
	ctx := context.Background()

	firstSeen := time.Now().Add(-48 * time.Hour)
	lastSeen := time.Now()

	mock.ExpectQuery("INSERT INTO credentials").
		WithArgs("https://acme.com", "bob", "pw", "acme.com", true).
		WillReturnRows(
			sqlmock.NewRows([]string{"id", "first_seen", "last_seen", "seen_count", "created_at", "inserted"}).
				AddRow(int64(7), firstSeen, lastSeen, 3, firstSeen, false),
		)

	cred := &domain.Credential{
		URL:      "https://acme.com",
		Username: "bob",
		Password: "pw",
		Domain:   "acme.com",
		IsAdmin:  true,
	}

	inserted, err := repo.Upsert(ctx, cred)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if inserted {
		t.Error("expected inserted=false for existing credential")
	}
	if cred.SeenCount != 3 {
		t.Errorf("expected seen_count=3 from stored row, got %d", cred.SeenCount)
	}
	if !cred.FirstSeen.Equal(firstSeen) {
		t.Error("first_seen must keep the original observation time")
	}
}

func TestCredentialRepository_GetByTriple_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewCredentialRepository(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT (.+) FROM credentials").
		WithArgs("https://x.com", "u", "p").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByTriple(ctx, "https://x.com", "u", "p")
	if !errors.Is(err, database.ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}

func TestCredentialRepository_List_Filtered(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewCredentialRepository(db)
	ctx := context.Background()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "url", "username", "password", "domain", "is_admin",
		"first_seen", "last_seen", "seen_count", "created_at",
	}).AddRow(int64(1), "https://acme.com", "admin", "pw", "acme.com", true, now, now, 1, now)

	mock.ExpectQuery("SELECT (.+) FROM credentials WHERE domain").
		WithArgs("acme.com", 50, 0).
		WillReturnRows(rows)

	creds, err := repo.List(ctx, database.CredentialFilter{
		Domain:    "acme.com",
		AdminOnly: true,
		Limit:     50,
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(creds) != 1 || creds[0].Username != "admin" {
		t.Errorf("unexpected result %+v", creds)
	}
}

func TestCredentialRepository_LinkToJob(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewCredentialRepository(db)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO job_credentials").
		WithArgs("job-1", int64(41), true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.LinkToJob(ctx, "job-1", 41, true); err != nil {
		t.Fatalf("LinkToJob() error = %v", err)
	}
}

func TestCredentialRepository_Count_NoFilter(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewCredentialRepository(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1234))

	count, err := repo.Count(ctx, database.CredentialFilter{})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1234 {
		t.Errorf("expected 1234, got %d", count)
	}
}

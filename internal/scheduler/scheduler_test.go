package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/north-cloud/leakscan/internal/domain"
	"github.com/north-cloud/leakscan/internal/logger"
	"github.com/north-cloud/leakscan/internal/scheduler"
)

type fakeStore struct {
	mu        sync.Mutex
	schedules []*domain.ScanSchedule
	touched   []string
}

func (f *fakeStore) ListEnabled(ctx context.Context) ([]*domain.ScanSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schedules, nil
}

func (f *fakeStore) TouchLastRun(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, id)
	return nil
}

type fakeSubmitter struct {
	mu   sync.Mutex
	jobs []*domain.ScanJob
}

func (f *fakeSubmitter) Submit(ctx context.Context, job *domain.ScanJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

func TestValidateExpr(t *testing.T) {
	s := scheduler.New(&fakeStore{}, &fakeSubmitter{}, logger.NewNoOp())

	if err := s.ValidateExpr("0 3 * * *"); err != nil {
		t.Errorf("expected valid expression, got %v", err)
	}
	if err := s.ValidateExpr("*/15 * * * *"); err != nil {
		t.Errorf("expected valid expression, got %v", err)
	}
	if err := s.ValidateExpr("not a cron"); err == nil {
		t.Error("expected error for malformed expression")
	}
	if err := s.ValidateExpr("0 3 * * * *"); err == nil {
		t.Error("expected error for 6-field expression")
	}
}

func TestReloadRegistersEnabledSchedules(t *testing.T) {
	store := &fakeStore{schedules: []*domain.ScanSchedule{
		{ID: "sched-1", JobType: domain.JobTypeSingle, Query: "acme.co.id", CronExpr: "0 3 * * *", Enabled: true},
		{ID: "sched-2", JobType: domain.JobTypeMulti, Query: "a.com,b.com", CronExpr: "30 4 * * 1", Enabled: true},
	}}
	s := scheduler.New(store, &fakeSubmitter{}, logger.NewNoOp())

	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got := s.EntryCount(); got != 2 {
		t.Errorf("expected 2 registered schedules, got %d", got)
	}

	// A reload after removal drops the stale entry.
	store.mu.Lock()
	store.schedules = store.schedules[:1]
	store.mu.Unlock()

	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got := s.EntryCount(); got != 1 {
		t.Errorf("expected 1 registered schedule after removal, got %d", got)
	}
}

func TestReloadSkipsBadCronExpr(t *testing.T) {
	store := &fakeStore{schedules: []*domain.ScanSchedule{
		{ID: "sched-1", JobType: domain.JobTypeSingle, Query: "acme.co.id", CronExpr: "bogus", Enabled: true},
		{ID: "sched-2", JobType: domain.JobTypeSingle, Query: "other.com", CronExpr: "0 3 * * *", Enabled: true},
	}}
	s := scheduler.New(store, &fakeSubmitter{}, logger.NewNoOp())

	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got := s.EntryCount(); got != 1 {
		t.Errorf("expected bad expression skipped, got %d entries", got)
	}
}

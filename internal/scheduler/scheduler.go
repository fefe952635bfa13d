// Package scheduler runs recurring scans. Schedules live in the database;
// each cron trigger submits a fresh scan job through the Submitter. The
// schedule table is reloaded periodically so API-created schedules take
// effect without a restart.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/north-cloud/leakscan/internal/domain"
	"github.com/north-cloud/leakscan/internal/logger"
)

const (
	// reloadInterval is how often schedules are reloaded from the database.
	reloadInterval = 5 * time.Minute
)

// ScheduleStore is the slice of the schedule repository the scheduler uses.
type ScheduleStore interface {
	ListEnabled(ctx context.Context) ([]*domain.ScanSchedule, error)
	TouchLastRun(ctx context.Context, id string, at time.Time) error
}

// Submitter creates and enqueues one scan job per trigger.
type Submitter interface {
	Submit(ctx context.Context, job *domain.ScanJob) error
}

// Scheduler registers enabled schedules with a cron runner.
type Scheduler struct {
	store     ScheduleStore
	submitter Submitter
	logger    logger.Interface

	cron       *cron.Cron
	cronParser cron.Parser

	entriesMu sync.Mutex
	entries   map[string]cron.EntryID

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. Cron expressions use the standard 5-field format
// (minute hour day month weekday).
func New(store ScheduleStore, submitter Submitter, log logger.Interface) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Scheduler{
		store:      store,
		submitter:  submitter,
		logger:     log.WithComponent("scheduler"),
		cron:       cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		cronParser: parser,
		entries:    make(map[string]cron.EntryID),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// ValidateExpr checks a cron expression without registering it.
func (s *Scheduler) ValidateExpr(expr string) error {
	if _, err := s.cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// Start loads schedules, starts the cron runner, and begins periodic reloads.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron.Start()

	if err := s.Reload(ctx); err != nil {
		s.logger.Error("Failed to load initial schedules", "error", err)
	}

	s.wg.Add(1)
	go s.periodicReload()

	return nil
}

// Stop cancels the reload loop and waits for running cron callbacks.
func (s *Scheduler) Stop() {
	s.cancel()
	cronCtx := s.cron.Stop()
	<-cronCtx.Done()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// Reload replaces the registered cron entries with the enabled schedules
// currently in the database.
func (s *Scheduler) Reload(ctx context.Context) error {
	schedules, err := s.store.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("failed to list schedules: %w", err)
	}

	s.entriesMu.Lock()
	for id, entryID := range s.entries {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
	s.entriesMu.Unlock()

	registered := 0
	for _, schedule := range schedules {
		if regErr := s.register(schedule); regErr != nil {
			s.logger.Error("Failed to register schedule",
				"schedule_id", schedule.ID, "cron", schedule.CronExpr, "error", regErr)
			continue
		}
		registered++
	}

	s.logger.Info("Schedules loaded", "count", registered)
	return nil
}

// EntryCount reports how many schedules are currently registered.
func (s *Scheduler) EntryCount() int {
	s.entriesMu.Lock()
	defer s.entriesMu.Unlock()
	return len(s.entries)
}

// register adds one schedule to the cron runner.
func (s *Scheduler) register(schedule *domain.ScanSchedule) error {
	// Copy what the callback needs; the schedule row may be reloaded later.
	scheduleID := schedule.ID
	name := schedule.Name
	jobType := schedule.JobType
	query := schedule.Query
	timeFilter := schedule.TimeFilter

	entryID, err := s.cron.AddFunc(schedule.CronExpr, func() {
		s.trigger(scheduleID, name, jobType, query, timeFilter)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron entry: %w", err)
	}

	s.entriesMu.Lock()
	s.entries[scheduleID] = entryID
	s.entriesMu.Unlock()

	next := s.nextRun(schedule.CronExpr)
	s.logger.Info("Schedule registered",
		"schedule_id", scheduleID,
		"cron", schedule.CronExpr,
		"next_run", next.Format("2006-01-02 15:04:05"))
	return nil
}

// trigger submits one scan job for a fired schedule.
func (s *Scheduler) trigger(scheduleID, name, jobType, query, timeFilter string) {
	now := time.Now()
	job := &domain.ScanJob{
		ID:         uuid.New().String(),
		JobType:    jobType,
		Name:       name,
		Query:      query,
		TimeFilter: timeFilter,
		Status:     domain.StatusQueued,
	}

	s.logger.Info("Schedule triggered",
		"schedule_id", scheduleID, "job_id", job.ID, "query", query)

	if err := s.submitter.Submit(s.ctx, job); err != nil {
		s.logger.Error("Failed to submit scheduled scan",
			"schedule_id", scheduleID, "job_id", job.ID, "error", err)
		return
	}

	if err := s.store.TouchLastRun(s.ctx, scheduleID, now); err != nil {
		s.logger.Warn("Failed to record schedule run",
			"schedule_id", scheduleID, "error", err)
	}
}

// nextRun computes the next fire time for logging; zero on parse failure.
func (s *Scheduler) nextRun(expr string) time.Time {
	parsed, err := s.cronParser.Parse(expr)
	if err != nil {
		return time.Time{}
	}
	return parsed.Next(time.Now())
}

// periodicReload refreshes schedule registrations until Stop.
func (s *Scheduler) periodicReload() {
	defer s.wg.Done()

	ticker := time.NewTicker(reloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.Reload(s.ctx); err != nil {
				s.logger.Error("Failed to reload schedules", "error", err)
			}
		}
	}
}

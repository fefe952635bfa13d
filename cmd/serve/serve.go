// Package serve implements the leakscan API server command.
package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	cmdcommon "github.com/north-cloud/leakscan/cmd/common"
	"github.com/north-cloud/leakscan/internal/analytics"
	"github.com/north-cloud/leakscan/internal/api"
	"github.com/north-cloud/leakscan/internal/database"
	"github.com/north-cloud/leakscan/internal/domain"
	"github.com/north-cloud/leakscan/internal/metrics"
	"github.com/north-cloud/leakscan/internal/queue"
	"github.com/north-cloud/leakscan/internal/scheduler"
)

const (
	shutdownTimeout    = 15 * time.Second
	queueDepthInterval = 30 * time.Second
)

// scanSubmitter adapts the job repository plus queue producer to the
// scheduler's Submitter interface.
type scanSubmitter struct {
	jobs     *database.ScanJobRepository
	producer *queue.Producer
}

func (s *scanSubmitter) Submit(ctx context.Context, job *domain.ScanJob) error {
	if err := s.jobs.Create(ctx, job); err != nil {
		return err
	}
	msgID, err := s.producer.Enqueue(ctx, job.ID, job.JobType)
	if err != nil {
		return err
	}
	return s.jobs.SetQueueMessageID(ctx, job.ID, msgID)
}

// Command returns the serve command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the leakscan API server",
		Long:  `Starts the HTTP API for scan submission, job control, and dashboards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := cmdcommon.NewCommandDeps()
	if err != nil {
		return err
	}
	log := deps.Logger
	cfg := deps.Config

	db, err := cmdcommon.OpenDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	streams, err := cmdcommon.OpenQueue(ctx, cfg)
	if err != nil {
		return err
	}
	defer streams.Close()

	jobRepo := database.NewScanJobRepository(db)
	credRepo := database.NewCredentialRepository(db)
	analyticsRepo := database.NewAnalyticsRepository(db)
	scheduleRepo := database.NewScheduleRepository(db)
	producer := queue.NewProducer(streams, queue.ProducerConfig{})

	m := metrics.New("leakscan")
	analyticsService := analytics.NewService(analyticsRepo, log)

	sched := scheduler.New(scheduleRepo, &scanSubmitter{jobs: jobRepo, producer: producer}, log)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	handlers := api.Handlers{
		Jobs:        api.NewJobsHandler(jobRepo, credRepo, producer, cfg.Redis.Group, log),
		Scans:       api.NewScanHandler(jobRepo, producer, cfg.Worker.UploadDir, log),
		Credentials: api.NewCredentialsHandler(credRepo, log),
		Dashboard:   api.NewDashboardHandler(analyticsService, log),
		Schedules:   api.NewSchedulesHandler(scheduleRepo, sched, log),
		Metrics:     m.Handler(),
	}

	srv, security := api.StartHTTPServer(log, cfg, handlers)
	go security.Cleanup(ctx)
	go trackQueueDepth(ctx, producer, m)

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server listening", "address", srv.Addr)
		if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}

// trackQueueDepth periodically exports the stream length.
func trackQueueDepth(ctx context.Context, producer *queue.Producer, m *metrics.Metrics) {
	ticker := time.NewTicker(queueDepthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if depth, err := producer.QueueDepth(ctx); err == nil {
				m.SetQueueDepth(depth)
			}
		}
	}
}

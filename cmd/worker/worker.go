// Package worker implements the leakscan queue worker command.
package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	cmdcommon "github.com/north-cloud/leakscan/cmd/common"
	"github.com/north-cloud/leakscan/internal/database"
	"github.com/north-cloud/leakscan/internal/dedup"
	"github.com/north-cloud/leakscan/internal/ingest"
	"github.com/north-cloud/leakscan/internal/logger"
	"github.com/north-cloud/leakscan/internal/metrics"
	"github.com/north-cloud/leakscan/internal/queue"
	"github.com/north-cloud/leakscan/internal/scanjob"
	"github.com/north-cloud/leakscan/internal/search"
)

// Command returns the worker command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a scan job worker",
		Long:  `Consumes scan jobs from the queue and executes them to completion.`,
		RunE: func(c *cobra.Command, args []string) error {
			return run(c.Context())
		},
	}
	return cmd
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := cmdcommon.NewCommandDeps()
	if err != nil {
		return err
	}
	log := deps.Logger.WithComponent("worker")
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

	hostname, _ := os.Hostname()
	consumerID := fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])

	consumer, err := queue.NewConsumer(streams, queue.ConsumerConfig{
		ConsumerGroup: cfg.Redis.Group,
		ConsumerID:    consumerID,
	})
	if err != nil {
		return err
	}
	if err := consumer.Initialize(ctx); err != nil {
		return err
	}

	jobRepo := database.NewScanJobRepository(db)
	credRepo := database.NewCredentialRepository(db)

	m := metrics.New("leakscan")

	provider := search.NewIntelXClient(cfg.Search.APIKey, deps.Logger,
		search.WithBaseURL(cfg.Search.BaseURL),
		search.WithRateLimit(cfg.Search.RateLimit),
		search.WithRecorder(m),
	)
	multi := search.NewMultiScanner(provider, cfg.Worker.MultiScanWorkers, cfg.Worker.MultiScanDelay, deps.Logger)
	files := ingest.NewReader(deps.Logger)
	upserter := dedup.NewService(credRepo, deps.Logger)

	runner := scanjob.NewRunner(jobRepo, upserter, provider, multi, files, m, scanjob.Config{
		MaxResults:        cfg.Search.MaxResults,
		InspectLimit:      cfg.Search.MaxResults,
		StopCheckInterval: cfg.Worker.StopCheckInterval,
	}, deps.Logger)

	log.Info("Worker started", "consumer_id", consumerID, "group", cfg.Redis.Group)

	for {
		select {
		case <-ctx.Done():
			log.Info("Worker stopping")
			return nil
		default:
		}

		consumed, err := consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("Failed to read from queue", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, job := range consumed {
			processJob(ctx, runner, jobRepo, consumer, m, log, job)
		}
	}
}

// processJob runs one consumed job and acknowledges its queue message.
// The message is acknowledged even when the run fails: job-level state lives
// in the database, and redelivery would only re-fail.
func processJob(
	ctx context.Context,
	runner *scanjob.Runner,
	jobRepo *database.ScanJobRepository,
	consumer *queue.Consumer,
	m *metrics.Metrics,
	log logger.Interface,
	job *queue.ConsumedJob,
) {
	jobLog := log.WithJobID(job.JobID)
	jobLog.Info("Picked up scan job", "job_type", job.JobType, "message_id", job.MessageID)

	m.RecordJobStart()
	start := time.Now()

	runErr := runner.Run(ctx, job.JobID)
	if runErr != nil {
		jobLog.Error("Scan job run failed", "error", runErr)
	}

	status := "unknown"
	if final, getErr := jobRepo.GetByID(ctx, job.JobID); getErr == nil {
		status = final.Status
	}
	m.RecordJobEnd(status, job.JobType, time.Since(start))

	if ackErr := consumer.Acknowledge(ctx, job); ackErr != nil {
		jobLog.Warn("Failed to acknowledge queue message", "error", ackErr)
	}

	jobLog.Info("Scan job finished", "status", status, "duration", time.Since(start))
}

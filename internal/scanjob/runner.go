package scanjob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/north-cloud/leakscan/internal/database"
	"github.com/north-cloud/leakscan/internal/dedup"
	"github.com/north-cloud/leakscan/internal/domain"
	"github.com/north-cloud/leakscan/internal/logger"
	"github.com/north-cloud/leakscan/internal/parser"
	"github.com/north-cloud/leakscan/internal/search"
)

// JobStore is the job repository surface the runner needs.
type JobStore interface {
	GetByID(ctx context.Context, id string) (*domain.ScanJob, error)
	UpdateStatus(ctx context.Context, id, status string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	UpdateCounters(ctx context.Context, id string, raw, parsed, newCount, dupes int) error
	ReadFlags(ctx context.Context, id string) (database.StopFlags, error)
}

// Upserter persists parsed credentials.
type Upserter interface {
	BulkUpsert(ctx context.Context, jobID string, parsed []domain.ParsedCredential) (dedup.Result, error)
}

// FileReader extracts raw lines from an uploaded file or archive.
type FileReader interface {
	ReadLines(filePath, query string) ([]string, error)
}

// Recorder receives pipeline telemetry after each phase. A nil Recorder
// disables recording.
type Recorder interface {
	RecordPatternHits(hits map[int]int)
	RecordLines(parsed, unparsed, duplicates int)
	RecordUpserts(newCount, duplicates, skipped, failed int)
}

type nopRecorder struct{}

func (nopRecorder) RecordPatternHits(map[int]int)    {}
func (nopRecorder) RecordLines(int, int, int)        {}
func (nopRecorder) RecordUpserts(int, int, int, int) {}

// MultiSearcher fans a search over multiple domains.
type MultiSearcher interface {
	Search(ctx context.Context, domains []string, opts search.Options, stop search.StopFunc) (search.MultiResult, error)
}

// Config bounds a runner's searches.
type Config struct {
	MaxResults        int
	InspectLimit      int
	StopCheckInterval time.Duration
}

// Runner executes scan jobs through their phases.
type Runner struct {
	jobs     JobStore
	upserter Upserter
	provider search.Provider
	multi    MultiSearcher
	files    FileReader
	recorder Recorder
	config   Config
	logger   logger.Interface
}

// NewRunner creates a new scan job runner.
func NewRunner(
	jobs JobStore,
	upserter Upserter,
	provider search.Provider,
	multi MultiSearcher,
	files FileReader,
	rec Recorder,
	cfg Config,
	log logger.Interface,
) *Runner {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Runner{
		jobs:     jobs,
		upserter: upserter,
		provider: provider,
		multi:    multi,
		files:    files,
		recorder: rec,
		config:   cfg,
		logger:   log.WithComponent("scanjob"),
	}
}

// Run executes one job to a terminal or paused state. The returned error
// covers infrastructure failures around the job itself; job-level failures
// are recorded on the job row and return nil.
func (r *Runner) Run(ctx context.Context, jobID string) error {
	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	log := r.logger.WithJobID(job.ID)

	if err := r.jobs.UpdateStatus(ctx, job.ID, domain.StatusCollecting); err != nil {
		return err
	}

	// Entry boundary: a request that arrived while the job sat queued takes
	// effect before any collection work starts.
	if handled, err := r.checkBoundary(ctx, job.ID, log, "before collecting"); handled || err != nil {
		return err
	}

	stop := NewStopChecker(ctx, r.jobs, job.ID, r.config.StopCheckInterval).Check

	lines, err := r.collect(ctx, job, stop)
	if err != nil {
		return r.settleCollectError(ctx, job.ID, log, err)
	}
	log.Info("collection finished", "raw_lines", len(lines))

	// Exit boundary: last chance to cancel or pause. Parsing and upserting
	// run to completion once entered.
	if handled, err := r.checkBoundary(ctx, job.ID, log, "before parsing"); handled || err != nil {
		return err
	}

	if err := r.jobs.UpdateStatus(ctx, job.ID, domain.StatusParsing); err != nil {
		return err
	}

	session := parser.NewSession()
	if err := session.ParseLines(lines, nil); err != nil {
		return r.fail(ctx, job.ID, log, err)
	}
	parsed := session.Parsed()
	r.recorder.RecordPatternHits(session.PatternHits())
	r.recorder.RecordLines(len(parsed), len(session.Unparsed()), session.DuplicatesSkipped())
	log.Info("parsing finished",
		"parsed", len(parsed),
		"unparsed", len(session.Unparsed()),
	)

	if err := r.jobs.UpdateStatus(ctx, job.ID, domain.StatusUpserting); err != nil {
		return err
	}

	result, err := r.upserter.BulkUpsert(ctx, job.ID, parsed)
	if err != nil {
		return r.fail(ctx, job.ID, log, err)
	}
	r.recorder.RecordUpserts(result.New, result.Duplicates, result.Skipped, result.Failed)

	if err := r.jobs.UpdateCounters(ctx, job.ID, len(lines), len(parsed), result.New, result.Duplicates); err != nil {
		return err
	}
	if err := r.jobs.UpdateStatus(ctx, job.ID, domain.StatusCompleted); err != nil {
		return err
	}

	log.Info("job completed",
		"raw", len(lines),
		"parsed", len(parsed),
		"new", result.New,
		"duplicates", result.Duplicates,
	)
	return nil
}

// collect gathers raw lines for the job according to its type.
func (r *Runner) collect(ctx context.Context, job *domain.ScanJob, stop search.StopFunc) ([]string, error) {
	opts := search.Options{
		MaxResults: r.config.MaxResults,
		TimeFilter: job.TimeFilter,
		Limit:      r.config.InspectLimit,
	}

	switch job.JobType {
	case domain.JobTypeSingle:
		hits, err := r.provider.Search(ctx, job.Query, opts, stop)
		if err != nil {
			return nil, err
		}
		return search.Lines(hits), nil

	case domain.JobTypeMulti:
		res, err := r.multi.Search(ctx, SplitDomains(job.Query), opts, stop)
		if err != nil {
			return nil, err
		}
		return search.Lines(res.Hits), nil

	case domain.JobTypeFile:
		if !job.FilePath.Valid || job.FilePath.String == "" {
			return nil, errors.New("file job has no file path")
		}
		return r.files.ReadLines(job.FilePath.String, job.Query)

	default:
		return nil, fmt.Errorf("unknown job type %q", job.JobType)
	}
}

// checkBoundary reads the request flags fresh and settles the job if a stop
// was requested. handled is true when the job reached cancelled or paused.
func (r *Runner) checkBoundary(ctx context.Context, jobID string, log logger.Interface, where string) (handled bool, err error) {
	flags, err := r.jobs.ReadFlags(ctx, jobID)
	if err != nil {
		return false, err
	}

	switch {
	case flags.CancelRequested:
		log.Info("cancellation requested " + where)
		return true, r.jobs.UpdateStatus(ctx, jobID, domain.StatusCancelled)
	case flags.PauseRequested:
		log.Info("pause requested " + where)
		return true, r.jobs.UpdateStatus(ctx, jobID, domain.StatusPaused)
	}
	return false, nil
}

// settleCollectError maps a collection failure to the job's next state:
// cooperative stops become cancelled/paused, everything else fails the job.
func (r *Runner) settleCollectError(ctx context.Context, jobID string, log logger.Interface, err error) error {
	switch {
	case errors.Is(err, ErrCancelRequested):
		log.Info("cooperative cancel during collecting")
		return r.jobs.UpdateStatus(ctx, jobID, domain.StatusCancelled)
	case errors.Is(err, ErrPauseRequested):
		log.Info("cooperative pause during collecting")
		return r.jobs.UpdateStatus(ctx, jobID, domain.StatusPaused)
	default:
		return r.fail(ctx, jobID, log, err)
	}
}

// fail records the error on the job row. The original error is not returned:
// the job absorbed it.
func (r *Runner) fail(ctx context.Context, jobID string, log logger.Interface, cause error) error {
	log.Error("job failed", "error", cause)
	return r.jobs.MarkFailed(ctx, jobID, cause.Error())
}

// SplitDomains splits a multi-scan query into individual domains. Commas and
// newlines both separate entries; blanks are dropped.
func SplitDomains(query string) []string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})

	domains := make([]string, 0, len(fields))
	for _, f := range fields {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			domains = append(domains, trimmed)
		}
	}
	return domains
}

package scanjob

import (
	"context"
	"sync"
	"time"

	"github.com/north-cloud/leakscan/internal/database"
)

// DefaultStopCheckInterval throttles flag polling to at most twice a second.
const DefaultStopCheckInterval = 500 * time.Millisecond

// FlagReader reads the cooperative request flags for a job.
type FlagReader interface {
	ReadFlags(ctx context.Context, id string) (database.StopFlags, error)
}

// StopChecker polls a job's cancel/pause flags with throttling. Safe for use
// from multiple goroutines; once a stop is observed it stays observed, so a
// throttled call never hides an already-requested stop.
type StopChecker struct {
	ctx      context.Context
	flags    FlagReader
	jobID    string
	interval time.Duration

	mu        sync.Mutex
	lastCheck time.Time
	stopped   error
}

// NewStopChecker creates a stop checker for one job run. interval <= 0
// selects the default.
func NewStopChecker(ctx context.Context, flags FlagReader, jobID string, interval time.Duration) *StopChecker {
	if interval <= 0 {
		interval = DefaultStopCheckInterval
	}
	return &StopChecker{
		ctx:      ctx,
		flags:    flags,
		jobID:    jobID,
		interval: interval,
	}
}

// Check returns ErrCancelRequested or ErrPauseRequested when the respective
// flag is set, nil otherwise. Flag reads are throttled; read errors are
// swallowed so a transient database hiccup cannot kill a healthy scan.
func (c *StopChecker) Check(_ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped != nil {
		return c.stopped
	}

	now := time.Now()
	if now.Sub(c.lastCheck) < c.interval {
		return nil
	}
	c.lastCheck = now

	flags, err := c.flags.ReadFlags(c.ctx, c.jobID)
	if err != nil {
		return nil
	}

	switch {
	case flags.CancelRequested:
		c.stopped = ErrCancelRequested
	case flags.PauseRequested:
		c.stopped = ErrPauseRequested
	}
	return c.stopped
}

package scanjob_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/north-cloud/leakscan/internal/database"
	"github.com/north-cloud/leakscan/internal/scanjob"
)

// fakeFlags is a FlagReader backed by in-memory flags.
type fakeFlags struct {
	mu    sync.Mutex
	flags database.StopFlags
	reads int
	err   error
}

func (f *fakeFlags) ReadFlags(context.Context, string) (database.StopFlags, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.flags, f.err
}

func (f *fakeFlags) set(cancel, pause bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags = database.StopFlags{CancelRequested: cancel, PauseRequested: pause}
}

func (f *fakeFlags) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func TestStopChecker_ObservesCancel(t *testing.T) {
	t.Parallel()

	flags := &fakeFlags{}
	flags.set(true, false)

	checker := scanjob.NewStopChecker(context.Background(), flags, "job-1", time.Millisecond)
	if err := checker.Check("collecting"); !errors.Is(err, scanjob.ErrCancelRequested) {
		t.Fatalf("expected ErrCancelRequested, got %v", err)
	}
}

func TestStopChecker_CancelBeatsPause(t *testing.T) {
	t.Parallel()

	flags := &fakeFlags{}
	flags.set(true, true)

	checker := scanjob.NewStopChecker(context.Background(), flags, "job-1", time.Millisecond)
	if err := checker.Check("collecting"); !errors.Is(err, scanjob.ErrCancelRequested) {
		t.Fatalf("expected cancel to win over pause, got %v", err)
	}
}

func TestStopChecker_Throttles(t *testing.T) {
	t.Parallel()

	flags := &fakeFlags{}
	checker := scanjob.NewStopChecker(context.Background(), flags, "job-1", time.Hour)

	for range 100 {
		if err := checker.Check("collecting"); err != nil {
			t.Fatalf("unexpected stop: %v", err)
		}
	}

	if got := flags.readCount(); got != 1 {
		t.Errorf("expected exactly one flag read under throttle, got %d", got)
	}
}

func TestStopChecker_Sticky(t *testing.T) {
	t.Parallel()

	flags := &fakeFlags{}
	flags.set(false, true)

	checker := scanjob.NewStopChecker(context.Background(), flags, "job-1", time.Hour)
	if err := checker.Check("collecting"); !errors.Is(err, scanjob.ErrPauseRequested) {
		t.Fatalf("expected ErrPauseRequested, got %v", err)
	}

	// Within the throttle window the observed stop must still be reported.
	if err := checker.Check("collecting"); !errors.Is(err, scanjob.ErrPauseRequested) {
		t.Fatalf("expected sticky pause, got %v", err)
	}
}

func TestStopChecker_ReadErrorIsSwallowed(t *testing.T) {
	t.Parallel()

	flags := &fakeFlags{err: errors.New("connection refused")}
	checker := scanjob.NewStopChecker(context.Background(), flags, "job-1", time.Millisecond)

	if err := checker.Check("collecting"); err != nil {
		t.Fatalf("transient read failure must not stop the scan, got %v", err)
	}
}

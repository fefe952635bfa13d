package queue

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestParseMessage(t *testing.T) {
	msg := redis.XMessage{
		ID: "1693000000000-0",
		Values: map[string]any{
			JobIDField:      "9f0c2a1e-83c4-4f6a-9d1b-0a8f3e2d5c7b",
			JobTypeField:    "single",
			EnqueuedAtField: "2026-08-28T10:30:00Z",
		},
	}

	job, err := parseMessage(msg)
	if err != nil {
		t.Fatalf("parseMessage() error = %v", err)
	}
	if job.MessageID != "1693000000000-0" {
		t.Errorf("MessageID = %q, want %q", job.MessageID, "1693000000000-0")
	}
	if job.JobID != "9f0c2a1e-83c4-4f6a-9d1b-0a8f3e2d5c7b" {
		t.Errorf("JobID = %q", job.JobID)
	}
	if job.JobType != "single" {
		t.Errorf("JobType = %q, want %q", job.JobType, "single")
	}
	want := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	if !job.EnqueuedAt.Equal(want) {
		t.Errorf("EnqueuedAt = %v, want %v", job.EnqueuedAt, want)
	}
}

func TestParseMessageMissingJobID(t *testing.T) {
	msg := redis.XMessage{
		ID:     "1693000000000-1",
		Values: map[string]any{JobTypeField: "multi"},
	}

	if _, err := parseMessage(msg); err == nil {
		t.Error("parseMessage() expected error for missing job ID")
	}
}

func TestParseMessageBadTimestampIgnored(t *testing.T) {
	msg := redis.XMessage{
		ID: "1693000000000-2",
		Values: map[string]any{
			JobIDField:      "abc",
			EnqueuedAtField: "not-a-time",
		},
	}

	job, err := parseMessage(msg)
	if err != nil {
		t.Fatalf("parseMessage() error = %v", err)
	}
	if !job.EnqueuedAt.IsZero() {
		t.Errorf("EnqueuedAt = %v, want zero", job.EnqueuedAt)
	}
}

package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// JobIDField is the field name for the scan job identifier.
	JobIDField = "job_id"

	// JobTypeField is the field name for the scan job type.
	JobTypeField = "job_type"

	// EnqueuedAtField is the field name for enqueue timestamp.
	EnqueuedAtField = "enqueued_at"

	// Default max stream length to prevent unbounded growth.
	defaultMaxStreamLen = 10000
)

// Producer handles enqueueing scan jobs to the Redis stream.
type Producer struct {
	client       *StreamsClient
	maxStreamLen int64
}

// ProducerConfig holds configuration for the Producer.
type ProducerConfig struct {
	MaxStreamLen int64 // Maximum stream length (0 = default)
}

// NewProducer creates a new scan job producer.
func NewProducer(client *StreamsClient, cfg ProducerConfig) *Producer {
	maxLen := cfg.MaxStreamLen
	if maxLen <= 0 {
		maxLen = defaultMaxStreamLen
	}

	return &Producer{
		client:       client,
		maxStreamLen: maxLen,
	}
}

// Enqueue adds a scan job reference to the stream and returns the stream
// message ID. The message carries only the job ID and type; workers load the
// full job record from Postgres, which stays the source of truth.
func (p *Producer) Enqueue(ctx context.Context, jobID, jobType string) (string, error) {
	if jobID == "" {
		return "", errors.New("job ID cannot be empty")
	}

	values := map[string]any{
		JobIDField:      jobID,
		JobTypeField:    jobType,
		EnqueuedAtField: time.Now().UTC().Format(time.RFC3339),
	}

	messageID, addErr := p.client.XAdd(ctx, values)
	if addErr != nil {
		return "", fmt.Errorf("failed to enqueue job to stream %s: %w", p.client.Stream(), addErr)
	}

	return messageID, nil
}

// EnqueueWithTimeout adds a scan job with a context timeout.
func (p *Producer) EnqueueWithTimeout(ctx context.Context, jobID, jobType string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return p.Enqueue(ctx, jobID, jobType)
}

// Remove drops a queued message from the stream. Used when a job is
// cancelled before any worker has picked it up, so the worker never sees it.
func (p *Producer) Remove(ctx context.Context, group, messageID string) error {
	if messageID == "" {
		return errors.New("message ID cannot be empty")
	}

	// Ack first so the entry does not linger in the group's PEL after XDEL.
	if err := p.client.XAck(ctx, group, messageID); err != nil {
		return fmt.Errorf("failed to ack queued message %s: %w", messageID, err)
	}
	if _, err := p.client.XDel(ctx, messageID); err != nil {
		return fmt.Errorf("failed to delete queued message %s: %w", messageID, err)
	}
	return nil
}

// TrimStream trims the stream to the maximum length.
func (p *Producer) TrimStream(ctx context.Context) error {
	return p.client.XTrimMaxLen(ctx, p.maxStreamLen)
}

// QueueDepth returns the current number of messages in the stream.
func (p *Producer) QueueDepth(ctx context.Context) (int64, error) {
	return p.client.XLen(ctx)
}

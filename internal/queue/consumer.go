package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Default consumer group name.
	defaultConsumerGroup = "leakscan-workers"

	// Default block timeout for reading from the stream.
	defaultBlockTimeout = 5 * time.Second

	// Default count of messages to read per batch.
	defaultBatchSize = 10

	// Default minimum idle time before claiming pending messages.
	defaultClaimMinIdle = 5 * time.Minute

	// Maximum pending messages to check at once.
	maxPendingCheck = 100
)

// Consumer handles reading scan jobs from the Redis stream.
type Consumer struct {
	client        *StreamsClient
	consumerGroup string
	consumerID    string
	blockTimeout  time.Duration
	batchSize     int64
	claimMinIdle  time.Duration
}

// ConsumerConfig holds configuration for the Consumer.
type ConsumerConfig struct {
	ConsumerGroup string        // Consumer group name
	ConsumerID    string        // Unique consumer identifier
	BlockTimeout  time.Duration // Block timeout for reads (0 = default)
	BatchSize     int64         // Number of messages per read (0 = default)
	ClaimMinIdle  time.Duration // Min idle time before claiming (0 = default)
}

// ConsumedJob represents a scan job reference read from the queue.
type ConsumedJob struct {
	MessageID  string
	JobID      string
	JobType    string
	EnqueuedAt time.Time
}

// NewConsumer creates a new scan job consumer.
func NewConsumer(client *StreamsClient, cfg ConsumerConfig) (*Consumer, error) {
	if cfg.ConsumerID == "" {
		return nil, errors.New("consumer ID is required")
	}

	group := cfg.ConsumerGroup
	if group == "" {
		group = defaultConsumerGroup
	}

	blockTimeout := cfg.BlockTimeout
	if blockTimeout <= 0 {
		blockTimeout = defaultBlockTimeout
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	claimMinIdle := cfg.ClaimMinIdle
	if claimMinIdle <= 0 {
		claimMinIdle = defaultClaimMinIdle
	}

	return &Consumer{
		client:        client,
		consumerGroup: group,
		consumerID:    cfg.ConsumerID,
		blockTimeout:  blockTimeout,
		batchSize:     batchSize,
		claimMinIdle:  claimMinIdle,
	}, nil
}

// Initialize creates the consumer group for the stream.
func (c *Consumer) Initialize(ctx context.Context) error {
	if err := c.client.CreateConsumerGroup(ctx, c.consumerGroup); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", c.client.Stream(), err)
	}
	return nil
}

// Read reads scan jobs from the stream. Pending messages abandoned by dead
// workers are reclaimed before new messages are read.
func (c *Consumer) Read(ctx context.Context) ([]*ConsumedJob, error) {
	reclaimedJobs := c.reclaimPending(ctx)

	if len(reclaimedJobs) > 0 {
		return reclaimedJobs, nil
	}

	return c.readNewMessages(ctx)
}

// Acknowledge acknowledges successful processing of a job.
func (c *Consumer) Acknowledge(ctx context.Context, job *ConsumedJob) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}

	return c.client.XAck(ctx, c.consumerGroup, job.MessageID)
}

// AcknowledgeBatch acknowledges multiple jobs at once.
func (c *Consumer) AcknowledgeBatch(ctx context.Context, jobs []*ConsumedJob) error {
	if len(jobs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.MessageID)
	}

	if err := c.client.XAck(ctx, c.consumerGroup, ids...); err != nil {
		return fmt.Errorf("failed to acknowledge messages: %w", err)
	}

	return nil
}

// GetPendingCount returns the count of pending messages for the group.
func (c *Consumer) GetPendingCount(ctx context.Context) (int64, error) {
	pending, err := c.client.XPending(ctx, c.consumerGroup)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get pending count: %w", err)
	}
	return pending.Count, nil
}

// readNewMessages reads new messages from the stream.
func (c *Consumer) readNewMessages(ctx context.Context) ([]*ConsumedJob, error) {
	messages, err := c.client.XReadGroup(ctx, c.consumerGroup, c.consumerID, c.batchSize, c.blockTimeout)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // No messages available
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	return c.parseMessages(messages)
}

// reclaimPending attempts to reclaim pending messages that have exceeded the idle threshold.
func (c *Consumer) reclaimPending(ctx context.Context) []*ConsumedJob {
	pending, err := c.client.XPendingExt(ctx, c.consumerGroup, "-", "+", maxPendingCheck)
	if err != nil {
		return nil
	}

	var idsToReclaim []string
	for _, entry := range pending {
		if entry.Idle >= c.claimMinIdle {
			idsToReclaim = append(idsToReclaim, entry.ID)
		}
	}

	if len(idsToReclaim) == 0 {
		return nil
	}

	claimedMessages, claimErr := c.client.XClaim(
		ctx, c.consumerGroup, c.consumerID, c.claimMinIdle, idsToReclaim...,
	)
	if claimErr != nil {
		return nil
	}

	var reclaimedJobs []*ConsumedJob
	for _, msg := range claimedMessages {
		parsedJob, parseErr := parseMessage(msg)
		if parseErr != nil {
			continue // Skip malformed messages
		}
		reclaimedJobs = append(reclaimedJobs, parsedJob)
	}

	return reclaimedJobs
}

// parseMessages parses messages from the stream.
func (c *Consumer) parseMessages(streams []redis.XStream) ([]*ConsumedJob, error) {
	var jobs []*ConsumedJob

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			job, err := parseMessage(msg)
			if err != nil {
				// Skip malformed messages
				continue
			}
			jobs = append(jobs, job)
		}
	}

	return jobs, nil
}

// parseMessage parses a single stream message into a ConsumedJob.
func parseMessage(msg redis.XMessage) (*ConsumedJob, error) {
	jobID, ok := msg.Values[JobIDField].(string)
	if !ok || jobID == "" {
		return nil, errors.New("missing or invalid job ID")
	}

	consumedJob := &ConsumedJob{
		MessageID: msg.ID,
		JobID:     jobID,
	}

	if jobType, hasType := msg.Values[JobTypeField].(string); hasType {
		consumedJob.JobType = jobType
	}

	if enqueuedStr, hasEnqueued := msg.Values[EnqueuedAtField].(string); hasEnqueued {
		if t, parseErr := time.Parse(time.RFC3339, enqueuedStr); parseErr == nil {
			consumedJob.EnqueuedAt = t
		}
	}

	return consumedJob, nil
}

// ConsumerGroup returns the consumer group name.
func (c *Consumer) ConsumerGroup() string {
	return c.consumerGroup
}

// ConsumerID returns the consumer ID.
func (c *Consumer) ConsumerID() string {
	return c.consumerID
}

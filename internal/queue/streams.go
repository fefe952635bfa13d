// Package queue provides the Redis Streams job queue linking the API to
// scan workers. The API enqueues scan job references; workers consume them
// through a consumer group so each job is processed exactly once, with
// pending-entry reclaim covering worker crashes.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Default connection timeout for Redis operations.
	defaultConnectionTimeout = 2 * time.Second

	// Default stream name for scan jobs.
	defaultStream = "leakscan:jobs"
)

// StreamsClient wraps a Redis client with streams-specific operations.
type StreamsClient struct {
	client *redis.Client
	stream string
}

// StreamsConfig holds configuration for the Redis Streams client.
type StreamsConfig struct {
	Addr     string
	Password string `json:"-"`
	DB       int
	Stream   string // Stream key (e.g., "leakscan:jobs")
}

// NewStreamsClient creates a new Redis Streams client.
func NewStreamsClient(cfg StreamsConfig) (*StreamsClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	stream := cfg.Stream
	if stream == "" {
		stream = defaultStream
	}

	return &StreamsClient{
		client: client,
		stream: stream,
	}, nil
}

// NewStreamsClientFromRedis creates a StreamsClient from an existing Redis client.
func NewStreamsClientFromRedis(client *redis.Client, stream string) *StreamsClient {
	if stream == "" {
		stream = defaultStream
	}
	return &StreamsClient{
		client: client,
		stream: stream,
	}
}

// Stream returns the stream key used for scan jobs.
func (c *StreamsClient) Stream() string {
	return c.stream
}

// Close closes the underlying Redis client.
func (c *StreamsClient) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable.
func (c *StreamsClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Client returns the underlying Redis client for advanced operations.
func (c *StreamsClient) Client() *redis.Client {
	return c.client
}

// CreateConsumerGroup creates a consumer group for the stream if it doesn't exist.
func (c *StreamsClient) CreateConsumerGroup(ctx context.Context, group string) error {
	// Try to create the group starting from the beginning of the stream
	err := c.client.XGroupCreateMkStream(ctx, c.stream, group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// XAdd adds a message to the stream.
func (c *StreamsClient) XAdd(ctx context.Context, values map[string]any) (string, error) {
	result := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream,
		Values: values,
	})
	return result.Result()
}

// XReadGroup reads new messages from the stream using a consumer group.
func (c *StreamsClient) XReadGroup(
	ctx context.Context, group, consumer string, count int64, block time.Duration,
) ([]redis.XStream, error) {
	result := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{c.stream, ">"},
		Count:    count,
		Block:    block,
	})
	return result.Result()
}

// XAck acknowledges messages in the stream.
func (c *StreamsClient) XAck(ctx context.Context, group string, ids ...string) error {
	return c.client.XAck(ctx, c.stream, group, ids...).Err()
}

// XDel removes messages from the stream.
func (c *StreamsClient) XDel(ctx context.Context, ids ...string) (int64, error) {
	return c.client.XDel(ctx, c.stream, ids...).Result()
}

// XPending returns the pending entries summary for the stream.
func (c *StreamsClient) XPending(ctx context.Context, group string) (*redis.XPending, error) {
	return c.client.XPending(ctx, c.stream, group).Result()
}

// XPendingExt returns detailed pending entries for the stream.
func (c *StreamsClient) XPendingExt(
	ctx context.Context, group, start, end string, count int64,
) ([]redis.XPendingExt, error) {
	return c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream,
		Group:  group,
		Start:  start,
		End:    end,
		Count:  count,
	}).Result()
}

// XClaim claims pending messages for a consumer.
func (c *StreamsClient) XClaim(
	ctx context.Context, group, consumer string, minIdle time.Duration, ids ...string,
) ([]redis.XMessage, error) {
	return c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
}

// XLen returns the length of the stream.
func (c *StreamsClient) XLen(ctx context.Context) (int64, error) {
	return c.client.XLen(ctx, c.stream).Result()
}

// XInfoGroups returns information about consumer groups for the stream.
func (c *StreamsClient) XInfoGroups(ctx context.Context) ([]redis.XInfoGroup, error) {
	return c.client.XInfoGroups(ctx, c.stream).Result()
}

// XTrimMaxLen trims the stream to a maximum length.
func (c *StreamsClient) XTrimMaxLen(ctx context.Context, maxLen int64) error {
	return c.client.XTrimMaxLen(ctx, c.stream, maxLen).Err()
}

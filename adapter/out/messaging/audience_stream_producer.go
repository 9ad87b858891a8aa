// Package messaging provides message queue adapters.
package messaging

import (
	"context"
	"fmt"

	"audience_server/core/port/out"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Stream names
const (
	StreamSegmentationRefresh = "segmentation:refresh"
	StreamSegmentationEvents  = "segmentation:events"
)

// Events are trimmed approximately to this many entries.
const eventsMaxLen = 10000

// RedisProducer publishes refresh jobs and segmentation events on Redis Streams.
type RedisProducer struct {
	client *redis.Client
}

var (
	_ out.EventPublisher  = (*RedisProducer)(nil)
	_ out.RefreshJobQueue = (*RedisProducer)(nil)
)

// NewRedisProducer creates a new RedisProducer.
func NewRedisProducer(client *redis.Client) *RedisProducer {
	return &RedisProducer{client: client}
}

// EnqueueRefresh publishes a refresh job for the worker group.
func (p *RedisProducer) EnqueueRefresh(ctx context.Context, job *out.RefreshJob) error {
	return p.publish(ctx, StreamSegmentationRefresh, job, 0)
}

// PublishSegmentation publishes a segmentation event.
func (p *RedisProducer) PublishSegmentation(ctx context.Context, event *out.SegmentationEvent) error {
	return p.publish(ctx, StreamSegmentationEvents, event, eventsMaxLen)
}

func (p *RedisProducer) publish(ctx context.Context, stream string, payload any, maxLen int64) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]any{"data": string(data)},
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}
	return nil
}

package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// WebhookMessage points the worker at a stored webhook event. The payload
// itself stays in Postgres.
type WebhookMessage struct {
	TraceID        *string
	Kind           string
	WebhookEventID int64
	Attempt        int
}

type Producer interface {
	Enqueue(ctx context.Context, msg WebhookMessage) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	logger *slog.Logger
	stream string
}

// NewRedisProducer publishes to stream. Close closes client.
func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{client: client, stream: stream, logger: logger}
}

func (p *redisProducer) Enqueue(ctx context.Context, msg WebhookMessage) error {
	var traceID string
	if msg.TraceID != nil {
		traceID = *msg.TraceID
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: entryFields(msg.WebhookEventID, msg.Kind, traceID, msg.Attempt),
	}).Result()
	if err != nil {
		return fmt.Errorf("enqueue webhook event %d: %w", msg.WebhookEventID, err)
	}

	p.logger.InfoContext(ctx, "webhook event published",
		"webhook_event_id", msg.WebhookEventID,
		"kind", msg.Kind,
		"stream_id", id)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}

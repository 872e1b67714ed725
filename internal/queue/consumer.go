package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"cadence.app/outreach/common/logger"
)

type ConsumerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	DLQStream string
	BatchSize int64
	// Block is how long one read waits for new entries.
	Block time.Duration
	// RequeueDelay spaces out redeliveries of a failing webhook.
	RequeueDelay time.Duration
}

// Message is one parsed stream entry.
type Message struct {
	Raw            redis.XMessage
	ID             string
	TaskType       TaskType
	Kind           string
	TraceID        string
	WebhookEventID int64
	Attempt        int
}

// MessageProcessor settles one message.
type MessageProcessor func(ctx context.Context, msg Message) error

// RedisConsumer reads the webhook stream through a consumer group.
type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

// NewRedisConsumer creates the consumer group if it does not exist yet.
// The group starts at "0" so entries published while no worker ran are
// still delivered.
func NewRedisConsumer(ctx context.Context, client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.DLQStream == "" {
		cfg.DLQStream = cfg.Stream + "_dlq"
	}

	err := client.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("creating consumer group %s on %s: %w", cfg.Group, cfg.Stream, err)
	}
	return &RedisConsumer{client: client, cfg: cfg}, nil
}

func (c *RedisConsumer) Config() ConsumerConfig {
	return c.cfg
}

// Read returns new entries for this consumer. Entries that cannot be parsed
// are dead-lettered here and never returned.
func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "outreach.queue.consumer"})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		// ">" only yields never-delivered entries; stale pending ones
		// belong to the reclaimer.
		Streams: []string{c.cfg.Stream, ">"},
		Count:   c.cfg.BatchSize,
		Block:   c.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup %s: %w", c.cfg.Stream, err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, raw := range stream.Messages {
			msg, err := ParseMessage(raw)
			if err != nil {
				slog.ErrorContext(ctx, "malformed stream entry", "error", err, "stream_id", raw.ID)
				if dlqErr := c.SendDLQ(ctx, Message{ID: raw.ID, Raw: raw}, err.Error()); dlqErr != nil {
					slog.ErrorContext(ctx, "failed to dead-letter malformed entry", "error", dlqErr, "stream_id", raw.ID)
				}
				continue
			}
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack %s %s: %w", c.cfg.Stream, msg.ID, err)
	}
	return nil
}

// Requeue publishes the message again with the attempt counter bumped and
// acknowledges the original in the same MULTI block.
func (c *RedisConsumer) Requeue(ctx context.Context, msg Message, errMsg string) error {
	if c.cfg.RequeueDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.RequeueDelay):
		}
	}

	fields := entryFields(msg.WebhookEventID, msg.Kind, msg.TraceID, msg.Attempt+1)
	if errMsg != "" {
		fields[fieldLastError] = errMsg
	}
	if err := c.moveTo(ctx, c.cfg.Stream, msg, fields); err != nil {
		return fmt.Errorf("requeue: %w", err)
	}

	slog.InfoContext(ctx, "webhook message requeued",
		"webhook_event_id", msg.WebhookEventID,
		"next_attempt", msg.Attempt+1,
		"reason", errMsg)
	return nil
}

// SendDLQ moves the message to the dead-letter stream. Malformed entries
// keep their original fields.
func (c *RedisConsumer) SendDLQ(ctx context.Context, msg Message, errMsg string) error {
	var fields map[string]any
	if msg.WebhookEventID != 0 {
		fields = entryFields(msg.WebhookEventID, msg.Kind, msg.TraceID, msg.Attempt)
	} else {
		fields = make(map[string]any, len(msg.Raw.Values)+2)
		for k, v := range msg.Raw.Values {
			fields[k] = v
		}
	}
	fields[fieldError] = errMsg
	fields[fieldSourceID] = msg.ID

	if err := c.moveTo(ctx, c.cfg.DLQStream, msg, fields); err != nil {
		return fmt.Errorf("dead-letter: %w", err)
	}

	slog.ErrorContext(ctx, "webhook message dead-lettered",
		"webhook_event_id", msg.WebhookEventID,
		"attempt", msg.Attempt,
		"error", errMsg,
		"dlq_stream", c.cfg.DLQStream)
	return nil
}

func (c *RedisConsumer) moveTo(ctx context.Context, stream string, msg Message, fields map[string]any) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: fields})
		pipe.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID)
		return nil
	})
	return err
}

// ParseMessage decodes a stream entry. Entries written before task_type
// existed are treated as webhook tasks.
func ParseMessage(raw redis.XMessage) (Message, error) {
	msg := Message{ID: raw.ID, Raw: raw, Attempt: 1, TaskType: TaskTypeWebhookEvent}

	if v, ok := stringField(raw.Values, fieldTaskType); ok && v != "" {
		msg.TaskType = TaskType(v)
	}
	if msg.TaskType != TaskTypeWebhookEvent {
		return Message{}, fmt.Errorf("unknown task_type %q", msg.TaskType)
	}

	v, ok := stringField(raw.Values, fieldWebhookEventID)
	if !ok {
		return Message{}, errors.New("missing webhook_event_id")
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return Message{}, fmt.Errorf("parsing webhook_event_id: %w", err)
	}
	msg.WebhookEventID = id

	if v, ok := stringField(raw.Values, fieldAttempt); ok {
		attempt, err := strconv.Atoi(v)
		if err != nil {
			return Message{}, fmt.Errorf("parsing attempt: %w", err)
		}
		if attempt > 0 {
			msg.Attempt = attempt
		}
	}

	msg.Kind, _ = stringField(raw.Values, fieldKind)
	msg.TraceID, _ = stringField(raw.Values, fieldTraceID)
	return msg, nil
}

func stringField(values map[string]any, key string) (string, bool) {
	raw, ok := values[key]
	if !ok {
		return "", false
	}
	if s, ok := raw.(string); ok {
		return s, true
	}
	return fmt.Sprint(raw), true
}

package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"cadence.app/outreach/common/logger"
	"cadence.app/outreach/internal/queue"
)

type RedisReclaimerConfig struct {
	Stream   string
	Group    string
	Consumer string
	// MinIdle is how long an entry must sit unacknowledged before it is
	// considered abandoned.
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64
}

// RedisReclaimer takes over webhook messages that another worker read but
// never settled, for example because it crashed mid-processing.
type RedisReclaimer struct {
	client    *redis.Client
	cfg       RedisReclaimerConfig
	consumer  Consumer
	processor queue.MessageProcessor

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewRedisReclaimer(client *redis.Client, cfg RedisReclaimerConfig, consumer Consumer, processor queue.MessageProcessor) *RedisReclaimer {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.MinIdle <= 0 {
		cfg.MinIdle = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &RedisReclaimer{
		client:    client,
		cfg:       cfg,
		consumer:  consumer,
		processor: processor,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run sweeps the pending list every Interval until Stop or ctx ends.
func (r *RedisReclaimer) Run(ctx context.Context) {
	defer close(r.stoppedCh)
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "outreach.worker.reclaimer"})

	slog.InfoContext(ctx, "reclaimer started",
		"stream", r.cfg.Stream,
		"group", r.cfg.Group,
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "reclaimer stopping")
			return
		case <-ticker.C:
		}

		claimed, err := r.Sweep(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "reclaim sweep failed", "error", err)
			continue
		}
		if claimed > 0 {
			slog.InfoContext(ctx, "reclaim sweep finished", "claimed", claimed)
		}
	}
}

func (r *RedisReclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

// Sweep walks the whole pending list once with XAUTOCLAIM and hands every
// claimed entry to the processor. It returns how many entries it claimed.
func (r *RedisReclaimer) Sweep(ctx context.Context) (int, error) {
	claimed := 0
	cursor := "0-0"
	for {
		messages, next, err := r.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   r.cfg.Stream,
			Group:    r.cfg.Group,
			Consumer: r.cfg.Consumer,
			MinIdle:  r.cfg.MinIdle,
			Start:    cursor,
			Count:    r.cfg.BatchSize,
		}).Result()
		if err != nil {
			return claimed, fmt.Errorf("xautoclaim: %w", err)
		}

		for _, raw := range messages {
			claimed++
			r.handle(ctx, raw)
		}

		if next == "0-0" || next == "" {
			return claimed, nil
		}
		cursor = next

		select {
		case <-ctx.Done():
			return claimed, ctx.Err()
		case <-r.stopCh:
			return claimed, nil
		default:
		}
	}
}

func (r *RedisReclaimer) handle(ctx context.Context, raw redis.XMessage) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{MessageID: logger.Ptr(raw.ID)})

	msg, err := queue.ParseMessage(raw)
	if err != nil {
		// Unparseable entries would be claimed forever.
		slog.ErrorContext(ctx, "reclaimed message is malformed, dead-lettering", "error", err)
		if dlqErr := r.consumer.SendDLQ(ctx, queue.Message{ID: raw.ID, Raw: raw}, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to dead-letter malformed message", "error", dlqErr)
		}
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{WebhookEventID: logger.Ptr(msg.WebhookEventID)})
	slog.InfoContext(ctx, "reclaimed stale webhook message", "attempt", msg.Attempt)

	start := time.Now()
	if err := r.processor(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "reclaimed message failed", "error", err)
		return
	}
	slog.DebugContext(ctx, "reclaimed message settled", "duration_ms", time.Since(start).Milliseconds())
}

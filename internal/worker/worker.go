package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"cadence.app/outreach/common/logger"
	"cadence.app/outreach/internal/queue"
)

type Config struct {
	MaxAttempts int
	// ErrorBackoff is the first pause after a failed stream read. Repeated
	// failures double it up to MaxErrorBackoff.
	ErrorBackoff    time.Duration
	MaxErrorBackoff time.Duration
}

type Worker struct {
	consumer  Consumer
	processor WebhookProcessor
	cfg       Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, processor WebhookProcessor, cfg Config) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	if cfg.MaxErrorBackoff < cfg.ErrorBackoff {
		cfg.MaxErrorBackoff = 30 * cfg.ErrorBackoff
	}
	return &Worker{
		consumer:  consumer,
		processor: processor,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "outreach.worker"})
	slog.InfoContext(ctx, "worker started")

	pause := backoff.NewExponentialBackOff()
	pause.InitialInterval = w.cfg.ErrorBackoff
	pause.MaxInterval = w.cfg.MaxErrorBackoff

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
		}

		if err := w.processOneBatch(ctx); err != nil {
			wait := pause.NextBackOff()
			slog.ErrorContext(ctx, "batch processing error", "error", err, "retry_in", wait)
			select {
			case <-ctx.Done():
			case <-w.stopCh:
			case <-time.After(wait):
			}
			continue
		}
		pause.Reset()
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	var unsettled []error
	for _, msg := range messages {
		if err := w.Handle(ctx, msg); err != nil {
			unsettled = append(unsettled, err)
		}
	}
	if len(unsettled) > 0 {
		return fmt.Errorf("%d of %d messages left unsettled: %w", len(unsettled), len(messages), errors.Join(unsettled...))
	}
	return nil
}

// Handle processes one message and settles it: ack on success, requeue on
// failure, dead-letter once attempts are exhausted. A processing failure
// that was requeued or dead-lettered is settled and returns nil. The error
// reports a message left pending in the stream, which the reclaimer picks
// up later. The reclaimer also uses Handle for stale entries.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID:      logger.Ptr(msg.ID),
		WebhookEventID: logger.Ptr(msg.WebhookEventID),
	})

	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.webhook_event")
	defer sc.End()
	ctx = sc.Context()

	if err := w.processMessageSafe(ctx, msg); err != nil {
		sc.RecordError(err)
		slog.ErrorContext(ctx, "message processing failed",
			"error", err,
			"attempt", msg.Attempt)
		return w.handleFailedMessage(ctx, msg, err)
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// The reclaimer redelivers it; processing is idempotent.
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
		return fmt.Errorf("acking message %s: %w", msg.ID, err)
	}
	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	slog.InfoContext(ctx, "processing webhook event",
		"kind", msg.Kind,
		"attempt", msg.Attempt)
	return w.processor.Process(ctx, msg.WebhookEventID)
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) error {
	if msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ", "attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
			return fmt.Errorf("dead-lettering message %s: %w", msg.ID, dlqErr)
		}
		return nil
	}

	slog.WarnContext(ctx, "requeuing failed message", "attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
		return fmt.Errorf("requeuing message %s: %w", msg.ID, requeueErr)
	}
	return nil
}

package worker

import (
	"context"

	"cadence.app/outreach/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// WebhookProcessor resolves a stored webhook event. Mirrors
// service.WebhookProcessor.
type WebhookProcessor interface {
	Process(ctx context.Context, webhookEventID int64) error
}

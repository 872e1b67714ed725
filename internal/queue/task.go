package queue

import "strconv"

type TaskType string

const (
	// TaskTypeWebhookEvent resolves one row of the webhook inbox.
	TaskTypeWebhookEvent TaskType = "webhook_event"
)

// Stream entry field names shared by the producer and the consumer.
const (
	fieldTaskType       = "task_type"
	fieldWebhookEventID = "webhook_event_id"
	fieldKind           = "kind"
	fieldAttempt        = "attempt"
	fieldTraceID        = "trace_id"
	fieldLastError      = "last_error"
	fieldError          = "error"
	fieldSourceID       = "source_id"
)

func entryFields(webhookEventID int64, kind, traceID string, attempt int) map[string]any {
	if attempt <= 0 {
		attempt = 1
	}
	fields := map[string]any{
		fieldTaskType:       string(TaskTypeWebhookEvent),
		fieldWebhookEventID: strconv.FormatInt(webhookEventID, 10),
		fieldAttempt:        strconv.Itoa(attempt),
	}
	if kind != "" {
		fields[fieldKind] = kind
	}
	if traceID != "" {
		fields[fieldTraceID] = traceID
	}
	return fields
}

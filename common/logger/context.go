package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are attached to every log record written with a context that
// carries them. Set them once where a lead, account or webhook message
// enters scope and every downstream log line is tagged.
type LogFields struct {
	LeadID         *int64
	AccountID      *int64
	CampaignID     *int64
	WebhookEventID *int64
	MessageID      *string // Redis stream message ID
	EventType      *string // e.g. "message_received", "new_relation"
	Component      string  // e.g. "outreach.scheduler", "outreach.sequence.executor"
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, newer non-nil/non-empty values win.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields returns the fields stored in ctx, or the zero value.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.LeadID != nil {
		result.LeadID = next.LeadID
	}
	if next.AccountID != nil {
		result.AccountID = next.AccountID
	}
	if next.CampaignID != nil {
		result.CampaignID = next.CampaignID
	}
	if next.WebhookEventID != nil {
		result.WebhookEventID = next.WebhookEventID
	}
	if next.MessageID != nil {
		result.MessageID = next.MessageID
	}
	if next.EventType != nil {
		result.EventType = next.EventType
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// attrs renders the set fields in a stable order.
func (f LogFields) attrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, 7)
	if f.Component != "" {
		attrs = append(attrs, slog.String("component", f.Component))
	}
	if f.LeadID != nil {
		attrs = append(attrs, slog.Int64("lead_id", *f.LeadID))
	}
	if f.AccountID != nil {
		attrs = append(attrs, slog.Int64("account_id", *f.AccountID))
	}
	if f.CampaignID != nil {
		attrs = append(attrs, slog.Int64("campaign_id", *f.CampaignID))
	}
	if f.WebhookEventID != nil {
		attrs = append(attrs, slog.Int64("webhook_event_id", *f.WebhookEventID))
	}
	if f.MessageID != nil {
		attrs = append(attrs, slog.String("message_id", *f.MessageID))
	}
	if f.EventType != nil {
		attrs = append(attrs, slog.String("event_type", *f.EventType))
	}
	return attrs
}

// Ptr returns a pointer to v.
// logger.WithLogFields(ctx, logger.LogFields{LeadID: logger.Ptr(lead.ID)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate cuts s to maxLen bytes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

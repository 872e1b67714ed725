package store

import (
	"context"
	"errors"
	"time"

	"cadence.app/outreach/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// LeadStore defines the contract for lead data access. Every state change is
// a conditional update; the bool results report whether the row matched.
type LeadStore interface {
	GetByID(ctx context.Context, id int64) (*model.Lead, error)
	// ListDue returns non-halted leads of active campaigns that are not
	// backing off at now, ordered by id, starting after afterID.
	ListDue(ctx context.Context, now time.Time, afterID int64, limit int32) ([]model.Lead, error)
	FindByMemberID(ctx context.Context, accountID int64, memberID string) (*model.Lead, error)
	FindByPublicIdentifier(ctx context.Context, accountID int64, publicIdentifier string) (*model.Lead, error)
	FindByChatID(ctx context.Context, accountID int64, chatID string) (*model.Lead, error)

	// Advance moves the lead from step `from` to step `to` after a send,
	// stamping last_step_sent_at and clearing failure state.
	Advance(ctx context.Context, id int64, from, to int32, status model.LeadStatus, sentAt time.Time) (bool, error)
	// EnterAt moves the lead forward without a send (first-degree entry).
	EnterAt(ctx context.Context, id int64, from, to int32, status model.LeadStatus) (bool, error)
	MarkCompleted(ctx context.Context, id int64) (bool, error)
	MarkError(ctx context.Context, id int64, reason string) (bool, error)
	RecordFailure(ctx context.Context, id int64, failureCount int32, retryAfter time.Time, reason string) (bool, error)
	MarkConnected(ctx context.Context, id int64, at time.Time) (bool, error)
	MarkResponded(ctx context.Context, id int64, at time.Time) (bool, error)
	SetMemberID(ctx context.Context, id int64, memberID string) error
	SetChatID(ctx context.Context, id int64, chatID string) error
}

// EventStore defines the contract for the insert-only lead activity log.
type EventStore interface {
	// Append inserts the event unless one with the same dedupe key already
	// exists for the lead. created is false for the duplicate case.
	Append(ctx context.Context, event *model.Event) (stored *model.Event, created bool, err error)
	ListByLead(ctx context.Context, leadID int64) ([]model.Event, error)
}

// RateUsageStore defines the contract for per-day action counters.
type RateUsageStore interface {
	// Reserve increments the counter when it is below limit and returns the
	// new count. ok is false when the limit is already reached.
	Reserve(ctx context.Context, accountID int64, day time.Time, kind model.ActionKind, limit int32) (count int32, ok bool, err error)
	Ensure(ctx context.Context, accountID int64, day time.Time, kind model.ActionKind) error
	ListForDay(ctx context.Context, accountID int64, day time.Time) ([]model.RateUsage, error)
	PruneBefore(ctx context.Context, day time.Time) (int64, error)
}

// AccountStore defines the contract for sending account data access
type AccountStore interface {
	GetByID(ctx context.Context, id int64) (*model.Account, error)
	GetByProviderID(ctx context.Context, providerAccountID string) (*model.Account, error)
	ListConnected(ctx context.Context) ([]model.Account, error)
	UpdateStatus(ctx context.Context, providerAccountID string, status model.AccountStatus) (bool, error)
	// SetOwnMemberID records the account holder's own member id, used to
	// tell our outbound messages apart from replies.
	SetOwnMemberID(ctx context.Context, id int64, memberID string) error
}

// CampaignStore defines the contract for campaign data access
type CampaignStore interface {
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
}

// WebhookEventStore defines the contract for the inbound webhook inbox
type WebhookEventStore interface {
	CreateOrGet(ctx context.Context, event *model.WebhookEvent) (*model.WebhookEvent, bool, error)
	GetByID(ctx context.Context, id int64) (*model.WebhookEvent, error)
	MarkProcessed(ctx context.Context, id int64, resolution string) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
}

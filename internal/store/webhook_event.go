package store

import (
	"context"
	"encoding/json"
	"errors"

	"cadence.app/outreach/core/db/sqlc"
	"cadence.app/outreach/internal/model"
	"github.com/jackc/pgx/v5"
)

type webhookEventStore struct {
	queries *sqlc.Queries
}

func newWebhookEventStore(queries *sqlc.Queries) WebhookEventStore {
	return &webhookEventStore{queries: queries}
}

// CreateOrGet inserts the event or returns the row already stored under the
// same dedupe key. created reports which one happened.
func (s *webhookEventStore) CreateOrGet(ctx context.Context, event *model.WebhookEvent) (*model.WebhookEvent, bool, error) {
	row, err := s.queries.InsertWebhookEvent(ctx, sqlc.InsertWebhookEventParams{
		ID:                event.ID,
		Kind:              string(event.Kind),
		ProviderAccountID: event.ProviderAccountID,
		Payload:           []byte(event.Payload),
		DedupeKey:         event.DedupeKey,
	})
	if err != nil {
		return nil, false, err
	}
	created := row.ID == event.ID
	return toWebhookEventModel(row), created, nil
}

func (s *webhookEventStore) GetByID(ctx context.Context, id int64) (*model.WebhookEvent, error) {
	row, err := s.queries.GetWebhookEvent(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toWebhookEventModel(row), nil
}

func (s *webhookEventStore) MarkProcessed(ctx context.Context, id int64, resolution string) error {
	return s.queries.MarkWebhookEventProcessed(ctx, sqlc.MarkWebhookEventProcessedParams{
		ID:         id,
		Resolution: optionalString(resolution),
	})
}

func (s *webhookEventStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	return s.queries.MarkWebhookEventFailed(ctx, sqlc.MarkWebhookEventFailedParams{
		ID:              id,
		ProcessingError: &errMsg,
	})
}

func toWebhookEventModel(row sqlc.WebhookEvent) *model.WebhookEvent {
	return &model.WebhookEvent{
		ID:                row.ID,
		Kind:              model.WebhookKind(row.Kind),
		ProviderAccountID: row.ProviderAccountID,
		Payload:           json.RawMessage(row.Payload),
		DedupeKey:         row.DedupeKey,
		Resolution:        row.Resolution,
		ProcessedAt:       optionalTime(row.ProcessedAt),
		ProcessingError:   row.ProcessingError,
		CreatedAt:         row.CreatedAt.Time,
	}
}

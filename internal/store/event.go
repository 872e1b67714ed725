package store

import (
	"context"
	"errors"
	"fmt"

	"cadence.app/outreach/common/id"
	"cadence.app/outreach/core/db/sqlc"
	"cadence.app/outreach/internal/model"
	"github.com/jackc/pgx/v5"
)

type eventStore struct {
	queries *sqlc.Queries
}

func newEventStore(queries *sqlc.Queries) EventStore {
	return &eventStore{queries: queries}
}

func (s *eventStore) Append(ctx context.Context, event *model.Event) (*model.Event, bool, error) {
	meta, err := model.EncodeEventMeta(event.Meta)
	if err != nil {
		return nil, false, fmt.Errorf("encoding event metadata: %w", err)
	}
	if event.ID == 0 {
		event.ID = id.New()
	}

	row, err := s.queries.InsertEvent(ctx, sqlc.InsertEventParams{
		ID:         event.ID,
		LeadID:     event.LeadID,
		EventType:  string(event.Type()),
		OccurredAt: timestamptz(event.OccurredAt),
		Metadata:   meta,
		DedupeKey:  event.DedupeKey(),
	})
	if err != nil {
		// ON CONFLICT DO NOTHING returns no row for a duplicate.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	stored, err := toEventModel(row)
	if err != nil {
		return nil, false, err
	}
	return stored, true, nil
}

func (s *eventStore) ListByLead(ctx context.Context, leadID int64) ([]model.Event, error) {
	rows, err := s.queries.ListEventsByLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	events := make([]model.Event, 0, len(rows))
	for _, row := range rows {
		e, err := toEventModel(row)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, nil
}

func toEventModel(row sqlc.Event) (*model.Event, error) {
	meta, err := model.DecodeEventMeta(model.EventType(row.EventType), row.Metadata)
	if err != nil {
		return nil, err
	}
	return &model.Event{
		ID:         row.ID,
		LeadID:     row.LeadID,
		OccurredAt: row.OccurredAt.Time,
		Meta:       meta,
	}, nil
}

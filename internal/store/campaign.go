package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cadence.app/outreach/core/db/sqlc"
	"cadence.app/outreach/internal/model"
	"github.com/jackc/pgx/v5"
)

type campaignStore struct {
	queries *sqlc.Queries
}

func newCampaignStore(queries *sqlc.Queries) CampaignStore {
	return &campaignStore{queries: queries}
}

func (s *campaignStore) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	row, err := s.queries.GetCampaign(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toCampaignModel(row)
}

func toCampaignModel(row sqlc.Campaign) (*model.Campaign, error) {
	var steps []model.Step
	if len(row.Steps) > 0 {
		if err := json.Unmarshal(row.Steps, &steps); err != nil {
			return nil, fmt.Errorf("decoding steps of campaign %d: %w", row.ID, err)
		}
	}
	return &model.Campaign{
		ID:        row.ID,
		AccountID: row.AccountID,
		Name:      row.Name,
		Status:    model.CampaignStatus(row.Status),
		Steps:     steps,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}, nil
}

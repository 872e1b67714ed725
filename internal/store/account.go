package store

import (
	"context"
	"errors"

	"cadence.app/outreach/core/db/sqlc"
	"cadence.app/outreach/internal/model"
	"github.com/jackc/pgx/v5"
)

type accountStore struct {
	queries *sqlc.Queries
}

func newAccountStore(queries *sqlc.Queries) AccountStore {
	return &accountStore{queries: queries}
}

func (s *accountStore) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	row, err := s.queries.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toAccountModel(row), nil
}

func (s *accountStore) GetByProviderID(ctx context.Context, providerAccountID string) (*model.Account, error) {
	row, err := s.queries.GetAccountByProviderID(ctx, providerAccountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toAccountModel(row), nil
}

func (s *accountStore) ListConnected(ctx context.Context) ([]model.Account, error) {
	rows, err := s.queries.ListConnectedAccounts(ctx)
	if err != nil {
		return nil, err
	}
	accounts := make([]model.Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, *toAccountModel(row))
	}
	return accounts, nil
}

func (s *accountStore) UpdateStatus(ctx context.Context, providerAccountID string, status model.AccountStatus) (bool, error) {
	n, err := s.queries.UpdateAccountStatus(ctx, sqlc.UpdateAccountStatusParams{
		ProviderAccountID: providerAccountID,
		Status:            string(status),
	})
	return n > 0, err
}

func (s *accountStore) SetOwnMemberID(ctx context.Context, id int64, memberID string) error {
	return s.queries.SetAccountOwnMemberID(ctx, sqlc.SetAccountOwnMemberIDParams{ID: id, OwnMemberID: &memberID})
}

func toAccountModel(row sqlc.Account) *model.Account {
	return &model.Account{
		ID:                    row.ID,
		ProviderAccountID:     row.ProviderAccountID,
		OwnMemberID:           row.OwnMemberID,
		Timezone:              row.Timezone,
		WorkStartHour:         int(row.WorkStartHour),
		WorkEndHour:           int(row.WorkEndHour),
		DailyInviteLimit:      row.DailyInviteLimit,
		DailyMessageLimit:     row.DailyMessageLimit,
		DailyFirstDegreeLimit: row.DailyFirstDegreeLimit,
		Status:                model.AccountStatus(row.Status),
		CreatedAt:             row.CreatedAt.Time,
		UpdatedAt:             row.UpdatedAt.Time,
	}
}

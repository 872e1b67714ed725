package store

import (
	"context"
	"errors"
	"time"

	"cadence.app/outreach/common/id"
	"cadence.app/outreach/core/db/sqlc"
	"cadence.app/outreach/internal/model"
	"github.com/jackc/pgx/v5"
)

type rateUsageStore struct {
	queries *sqlc.Queries
}

func newRateUsageStore(queries *sqlc.Queries) RateUsageStore {
	return &rateUsageStore{queries: queries}
}

// Reserve is a single conditional upsert, so concurrent reservations for the
// same counter serialize on the row and never overshoot limit.
func (s *rateUsageStore) Reserve(ctx context.Context, accountID int64, day time.Time, kind model.ActionKind, limit int32) (int32, bool, error) {
	count, err := s.queries.ReserveRateUsage(ctx, sqlc.ReserveRateUsageParams{
		ID:         id.New(),
		AccountID:  accountID,
		UsageDate:  date(day),
		ActionKind: string(kind),
		DailyLimit: limit,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return count, true, nil
}

func (s *rateUsageStore) Ensure(ctx context.Context, accountID int64, day time.Time, kind model.ActionKind) error {
	return s.queries.EnsureRateUsage(ctx, sqlc.EnsureRateUsageParams{
		ID:         id.New(),
		AccountID:  accountID,
		UsageDate:  date(day),
		ActionKind: string(kind),
	})
}

func (s *rateUsageStore) ListForDay(ctx context.Context, accountID int64, day time.Time) ([]model.RateUsage, error) {
	rows, err := s.queries.ListRateUsageForDay(ctx, sqlc.ListRateUsageForDayParams{
		AccountID: accountID,
		UsageDate: date(day),
	})
	if err != nil {
		return nil, err
	}
	usage := make([]model.RateUsage, 0, len(rows))
	for _, row := range rows {
		usage = append(usage, model.RateUsage{
			ID:         row.ID,
			AccountID:  row.AccountID,
			Day:        row.UsageDate.Time,
			ActionKind: model.ActionKind(row.ActionKind),
			Count:      row.Count,
			UpdatedAt:  row.UpdatedAt.Time,
		})
	}
	return usage, nil
}

func (s *rateUsageStore) PruneBefore(ctx context.Context, day time.Time) (int64, error) {
	return s.queries.DeleteRateUsageBefore(ctx, date(day))
}

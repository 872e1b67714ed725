package store

import (
	"context"
	"errors"
	"time"

	"cadence.app/outreach/core/db/sqlc"
	"cadence.app/outreach/internal/model"
	"github.com/jackc/pgx/v5"
)

type leadStore struct {
	queries *sqlc.Queries
}

func newLeadStore(queries *sqlc.Queries) LeadStore {
	return &leadStore{queries: queries}
}

func (s *leadStore) GetByID(ctx context.Context, id int64) (*model.Lead, error) {
	return oneLead(s.queries.GetLead(ctx, id))
}

func (s *leadStore) ListDue(ctx context.Context, now time.Time, afterID int64, limit int32) ([]model.Lead, error) {
	rows, err := s.queries.ListDueLeads(ctx, sqlc.ListDueLeadsParams{
		Now:       timestamptz(now),
		AfterID:   afterID,
		BatchSize: limit,
	})
	if err != nil {
		return nil, err
	}
	leads := make([]model.Lead, 0, len(rows))
	for _, row := range rows {
		leads = append(leads, *toLeadModel(row))
	}
	return leads, nil
}

func (s *leadStore) FindByMemberID(ctx context.Context, accountID int64, memberID string) (*model.Lead, error) {
	return oneLead(s.queries.GetLeadByMemberID(ctx, sqlc.GetLeadByMemberIDParams{
		AccountID:        accountID,
		ProviderMemberID: &memberID,
	}))
}

func (s *leadStore) FindByPublicIdentifier(ctx context.Context, accountID int64, publicIdentifier string) (*model.Lead, error) {
	return oneLead(s.queries.GetLeadByPublicIdentifier(ctx, sqlc.GetLeadByPublicIdentifierParams{
		AccountID:        accountID,
		PublicIdentifier: publicIdentifier,
	}))
}

func (s *leadStore) FindByChatID(ctx context.Context, accountID int64, chatID string) (*model.Lead, error) {
	return oneLead(s.queries.GetLeadByChatID(ctx, sqlc.GetLeadByChatIDParams{
		AccountID: accountID,
		ChatID:    &chatID,
	}))
}

func (s *leadStore) Advance(ctx context.Context, id int64, from, to int32, status model.LeadStatus, sentAt time.Time) (bool, error) {
	n, err := s.queries.AdvanceLeadStep(ctx, sqlc.AdvanceLeadStepParams{
		NextStep:     to,
		Status:       string(status),
		SentAt:       timestamptz(sentAt),
		ID:           id,
		ExpectedStep: from,
	})
	return n == 1, err
}

func (s *leadStore) EnterAt(ctx context.Context, id int64, from, to int32, status model.LeadStatus) (bool, error) {
	n, err := s.queries.EnterLeadAtStep(ctx, sqlc.EnterLeadAtStepParams{
		NextStep:     to,
		Status:       string(status),
		ID:           id,
		ExpectedStep: from,
	})
	return n == 1, err
}

func (s *leadStore) MarkCompleted(ctx context.Context, id int64) (bool, error) {
	n, err := s.queries.MarkLeadCompleted(ctx, id)
	return n == 1, err
}

func (s *leadStore) MarkError(ctx context.Context, id int64, reason string) (bool, error) {
	n, err := s.queries.MarkLeadError(ctx, sqlc.MarkLeadErrorParams{
		ID:        id,
		LastError: &reason,
	})
	return n == 1, err
}

func (s *leadStore) RecordFailure(ctx context.Context, id int64, failureCount int32, retryAfter time.Time, reason string) (bool, error) {
	n, err := s.queries.RecordLeadFailure(ctx, sqlc.RecordLeadFailureParams{
		ID:           id,
		FailureCount: failureCount,
		RetryAfter:   timestamptz(retryAfter),
		LastError:    &reason,
	})
	return n == 1, err
}

func (s *leadStore) MarkConnected(ctx context.Context, id int64, at time.Time) (bool, error) {
	n, err := s.queries.MarkLeadConnected(ctx, sqlc.MarkLeadConnectedParams{
		ID:          id,
		ConnectedAt: timestamptz(at),
	})
	return n == 1, err
}

func (s *leadStore) MarkResponded(ctx context.Context, id int64, at time.Time) (bool, error) {
	n, err := s.queries.MarkLeadResponded(ctx, sqlc.MarkLeadRespondedParams{
		ID:          id,
		RespondedAt: timestamptz(at),
	})
	return n == 1, err
}

func (s *leadStore) SetMemberID(ctx context.Context, id int64, memberID string) error {
	return s.queries.SetLeadMemberID(ctx, sqlc.SetLeadMemberIDParams{
		ID:               id,
		ProviderMemberID: &memberID,
	})
}

func (s *leadStore) SetChatID(ctx context.Context, id int64, chatID string) error {
	return s.queries.SetLeadChatID(ctx, sqlc.SetLeadChatIDParams{
		ID:     id,
		ChatID: &chatID,
	})
}

func oneLead(row sqlc.Lead, err error) (*model.Lead, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toLeadModel(row), nil
}

func toLeadModel(row sqlc.Lead) *model.Lead {
	return &model.Lead{
		ID:               row.ID,
		CampaignID:       row.CampaignID,
		AccountID:        row.AccountID,
		FirstName:        row.FirstName,
		LastName:         row.LastName,
		CompanyName:      row.CompanyName,
		Title:            row.Title,
		Location:         row.Location,
		Industry:         row.Industry,
		PublicIdentifier: row.PublicIdentifier,
		ProviderMemberID: row.ProviderMemberID,
		ChatID:           row.ChatID,
		FirstDegree:      row.FirstDegree,
		Status:           model.LeadStatus(row.Status),
		CurrentStep:      row.CurrentStep,
		LastStepSentAt:   optionalTime(row.LastStepSentAt),
		ConnectedAt:      optionalTime(row.ConnectedAt),
		RespondedAt:      optionalTime(row.RespondedAt),
		FailureCount:     row.FailureCount,
		RetryAfter:       optionalTime(row.RetryAfter),
		LastError:        row.LastError,
		CreatedAt:        row.CreatedAt.Time,
		UpdatedAt:        row.UpdatedAt.Time,
	}
}

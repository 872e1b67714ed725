package store

import (
	"context"

	"cadence.app/outreach/core/db"
	"cadence.app/outreach/core/db/sqlc"
)

// Provider exposes the stores bound to one query scope, either the pool or
// a transaction.
type Provider interface {
	Leads() LeadStore
	Events() EventStore
	RateUsage() RateUsageStore
	Accounts() AccountStore
	Campaigns() CampaignStore
	WebhookEvents() WebhookEventStore
}

// TxRunner runs functions within a transaction and provides stores bound to that transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores Provider) error) error
}

type dbTxRunner struct {
	db *db.DB
}

// NewTxRunner builds a TxRunner backed by the core DB.
func NewTxRunner(db *db.DB) TxRunner {
	return &dbTxRunner{db: db}
}

func (r *dbTxRunner) WithTx(ctx context.Context, fn func(stores Provider) error) error {
	return r.db.WithTx(ctx, func(q *sqlc.Queries) error {
		return fn(NewStores(q))
	})
}

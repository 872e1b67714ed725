package store

import (
	"cadence.app/outreach/core/db/sqlc"
)

type Stores struct {
	queries *sqlc.Queries
}

func NewStores(queries *sqlc.Queries) *Stores {
	return &Stores{queries: queries}
}

func (s *Stores) Leads() LeadStore {
	return newLeadStore(s.queries)
}

func (s *Stores) Events() EventStore {
	return newEventStore(s.queries)
}

func (s *Stores) RateUsage() RateUsageStore {
	return newRateUsageStore(s.queries)
}

func (s *Stores) Accounts() AccountStore {
	return newAccountStore(s.queries)
}

func (s *Stores) Campaigns() CampaignStore {
	return newCampaignStore(s.queries)
}

func (s *Stores) WebhookEvents() WebhookEventStore {
	return newWebhookEventStore(s.queries)
}

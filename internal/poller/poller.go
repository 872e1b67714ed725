// Package poller reconciles what the webhook path missed: accepted
// invitations from each account's relations and sent-invitations lists, and
// chat ids from its conversation list.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"cadence.app/outreach/common/logger"
	"cadence.app/outreach/internal/gateway"
	"cadence.app/outreach/internal/model"
	"cadence.app/outreach/internal/store"
)

const defaultMaxPages = 10

// Summary counts what one poll did.
type Summary struct {
	Accounts  int `json:"accounts"`
	Pages     int `json:"pages"`
	Relations int `json:"relations"`
	Matched   int `json:"matched"`
	Connected int `json:"connected"`
	// Invitations counts sent invitations inspected.
	Invitations int `json:"invitations"`
	// Reconciled counts pending invitations recorded for leads whose send
	// was never recorded.
	Reconciled int `json:"reconciled"`
	// Failed counts accounts with a provider list that could not be read.
	Failed int `json:"failed"`
}

func (s *Summary) add(o Summary) {
	s.Accounts += o.Accounts
	s.Pages += o.Pages
	s.Relations += o.Relations
	s.Matched += o.Matched
	s.Connected += o.Connected
	s.Invitations += o.Invitations
	s.Reconciled += o.Reconciled
	s.Failed += o.Failed
}

type Poller struct {
	stores   store.Provider
	tx       store.TxRunner
	gateway  gateway.Gateway
	maxPages int
}

func New(stores store.Provider, tx store.TxRunner, gw gateway.Gateway, maxPages int) *Poller {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &Poller{stores: stores, tx: tx, gateway: gw, maxPages: maxPages}
}

// Poll checks every account in turn. A provider failure skips the account;
// a storage failure aborts the poll.
func (p *Poller) Poll(ctx context.Context, accounts []model.Account, now time.Time) (Summary, error) {
	var total Summary
	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		s, err := p.PollAccount(ctx, account, now)
		total.add(s)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (p *Poller) PollAccount(ctx context.Context, account model.Account, now time.Time) (Summary, error) {
	sc := logger.StartSpan(ctx, "poller.account")
	defer sc.End()

	summary, err := p.pollAccount(sc.Context(), account, now)
	sc.SetAttributes(
		attribute.Int("pages", summary.Pages),
		attribute.Int("matched", summary.Matched),
		attribute.Int("connected", summary.Connected),
	)
	sc.RecordError(err)
	return summary, err
}

func (p *Poller) pollAccount(ctx context.Context, account model.Account, now time.Time) (Summary, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		AccountID: logger.Ptr(account.ID),
		Component: "outreach.poller",
	})
	summary := Summary{Accounts: 1}

	relationsOK, err := p.pollRelations(ctx, account, now, &summary)
	if err != nil {
		return summary, err
	}
	invitationsOK, err := p.checkInvitations(ctx, account, now, &summary)
	if err != nil {
		return summary, err
	}
	if !relationsOK || !invitationsOK {
		summary.Failed++
	}

	slog.InfoContext(ctx, "relations poll complete",
		"pages", summary.Pages,
		"relations", summary.Relations,
		"invitations", summary.Invitations,
		"connected", summary.Connected,
		"reconciled", summary.Reconciled)
	return summary, nil
}

// pollRelations walks the relations list. It reports false when the provider
// could not list a page.
func (p *Poller) pollRelations(ctx context.Context, account model.Account, now time.Time, summary *Summary) (bool, error) {
	cursor, more := "", true
	for pages := 0; more && pages < p.maxPages; pages++ {
		page, err := p.gateway.ListRelations(ctx, account.ProviderAccountID, cursor)
		if err != nil {
			slog.WarnContext(ctx, "listing relations failed, skipping account",
				"page", pages,
				"error", err)
			return false, nil
		}
		summary.Pages++
		summary.Relations += len(page.Relations)

		for _, rel := range page.Relations {
			matched, connected, err := p.reconcile(ctx, account, rel, now)
			if err != nil {
				return true, err
			}
			if matched {
				summary.Matched++
			}
			if connected {
				summary.Connected++
			}
		}

		cursor = page.Cursor
		more = cursor != ""
	}
	if more {
		slog.InfoContext(ctx, "relations page limit reached", "max_pages", p.maxPages)
	}
	return true, nil
}

func (p *Poller) reconcile(ctx context.Context, account model.Account, rel gateway.Relation, now time.Time) (matched, connected bool, err error) {
	if rel.MemberID == "" && rel.PublicIdentifier == "" {
		return false, false, nil
	}

	lead, err := p.match(ctx, account.ID, rel.MemberID, rel.PublicIdentifier)
	if err != nil || lead == nil {
		return false, false, err
	}
	connected, err = p.connect(ctx, account, *lead, model.AcceptanceMethodPeriodicCheck, now)
	return true, connected, err
}

// connect moves an invited lead to connected and records how the acceptance
// was found. Leads past invite_sent are left alone.
func (p *Poller) connect(ctx context.Context, account model.Account, lead model.Lead, method model.AcceptanceMethod, now time.Time) (connected bool, err error) {
	if lead.Status != model.LeadStatusInviteSent {
		return false, nil
	}

	err = p.tx.WithTx(ctx, func(stores store.Provider) error {
		ok, err := stores.Leads().MarkConnected(ctx, lead.ID, now)
		if err != nil {
			return fmt.Errorf("marking lead %d connected: %w", lead.ID, err)
		}
		if !ok {
			return nil
		}
		connected = true
		_, _, err = stores.Events().Append(ctx, model.NewEvent(lead.ID, now, model.ConnectionAcceptedMeta{
			Method:     method,
			AccountID:  account.ID,
			Historical: method == model.AcceptanceMethodPeriodicCheck,
		}))
		return err
	})
	if err != nil {
		return false, err
	}
	if connected {
		slog.InfoContext(ctx, "connection accepted", "lead_id", lead.ID, "method", method)
	}
	return connected, nil
}

// match finds the lead by member id, then by public identifier. A match by
// public identifier backfills the member id.
func (p *Poller) match(ctx context.Context, accountID int64, memberID, publicIdentifier string) (*model.Lead, error) {
	leads := p.stores.Leads()
	if memberID != "" {
		lead, err := leads.FindByMemberID(ctx, accountID, memberID)
		if err == nil {
			return lead, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("finding lead by member id: %w", err)
		}
	}
	if publicIdentifier == "" {
		return nil, nil
	}

	lead, err := leads.FindByPublicIdentifier(ctx, accountID, publicIdentifier)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding lead by public identifier: %w", err)
	}
	if lead.MemberID() == "" && memberID != "" {
		if err := leads.SetMemberID(ctx, lead.ID, memberID); err != nil {
			return nil, fmt.Errorf("backfilling member id for lead %d: %w", lead.ID, err)
		}
		lead.ProviderMemberID = &memberID
	}
	return lead, nil
}

package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cadence.app/outreach/internal/gateway"
	"cadence.app/outreach/internal/model"
	"cadence.app/outreach/internal/store"
)

// checkInvitations walks the account's sent invitations. An accepted one
// connects its invited lead. A pending one for a lead still waiting on its
// connection request means the send went out but was never recorded, so the
// lead is advanced instead of inviting again. It reports false when the
// provider could not list a page.
func (p *Poller) checkInvitations(ctx context.Context, account model.Account, now time.Time, summary *Summary) (bool, error) {
	cursor, more := "", true
	for pages := 0; more && pages < p.maxPages; pages++ {
		page, err := p.gateway.ListSentInvitations(ctx, account.ProviderAccountID, cursor)
		if err != nil {
			slog.WarnContext(ctx, "listing sent invitations failed",
				"page", pages,
				"error", err)
			return false, nil
		}
		summary.Invitations += len(page.Invitations)

		for _, inv := range page.Invitations {
			if err := p.checkInvitation(ctx, account, inv, now, summary); err != nil {
				return true, err
			}
		}

		cursor = page.Cursor
		more = cursor != ""
	}
	if more {
		slog.InfoContext(ctx, "sent invitations page limit reached", "max_pages", p.maxPages)
	}
	return true, nil
}

func (p *Poller) checkInvitation(ctx context.Context, account model.Account, inv gateway.Invitation, now time.Time, summary *Summary) error {
	if inv.MemberID == "" && inv.PublicIdentifier == "" {
		return nil
	}
	lead, err := p.match(ctx, account.ID, inv.MemberID, inv.PublicIdentifier)
	if err != nil || lead == nil {
		return err
	}
	summary.Matched++

	switch inv.Status {
	case gateway.InvitationStatusAccepted:
		connected, err := p.connect(ctx, account, *lead, model.AcceptanceMethodInvitationCheck, now)
		if connected {
			summary.Connected++
		}
		return err
	case gateway.InvitationStatusPending:
		recorded, err := p.recordPendingInvite(ctx, *lead, inv, now)
		if recorded {
			summary.Reconciled++
		}
		return err
	}
	return nil
}

// recordPendingInvite advances a pending_invite lead whose current step is a
// connection request, as if the executor had recorded the send.
func (p *Poller) recordPendingInvite(ctx context.Context, lead model.Lead, inv gateway.Invitation, now time.Time) (bool, error) {
	if lead.Status != model.LeadStatusPendingInvite {
		return false, nil
	}
	campaign, err := p.stores.Campaigns().GetByID(ctx, lead.CampaignID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading campaign %d: %w", lead.CampaignID, err)
	}
	if int(lead.CurrentStep) >= len(campaign.Steps) || campaign.Steps[lead.CurrentStep].Action != model.StepActionConnectionRequest {
		return false, nil
	}

	var recorded bool
	err = p.tx.WithTx(ctx, func(stores store.Provider) error {
		ok, err := stores.Leads().Advance(ctx, lead.ID, lead.CurrentStep, lead.CurrentStep+1, model.LeadStatusInviteSent, now)
		if err != nil {
			return fmt.Errorf("advancing lead %d: %w", lead.ID, err)
		}
		if !ok {
			return nil
		}
		recorded = true
		_, _, err = stores.Events().Append(ctx, model.NewEvent(lead.ID, now, model.ConnectionRequestSentMeta{
			Step:         lead.CurrentStep,
			InvitationID: inv.ID,
			Reconciled:   true,
		}))
		return err
	})
	if err != nil {
		return false, err
	}
	if recorded {
		slog.InfoContext(ctx, "unrecorded connection request found pending",
			"lead_id", lead.ID,
			"step", lead.CurrentStep,
			"invitation_id", inv.ID)
	}
	return recorded, nil
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cadence.app/outreach/common/logger"
	"cadence.app/outreach/internal/gateway"
	"cadence.app/outreach/internal/model"
	"cadence.app/outreach/internal/store"
)

// WebhookProcessor resolves one stored webhook event against lead state.
// Processing an already processed event is a no-op.
type WebhookProcessor interface {
	Process(ctx context.Context, webhookEventID int64) error
}

// Resolution notes recorded on the inbox row.
const (
	ResolutionConnected       = "lead connected"
	ResolutionAlreadyHandled  = "lead already past invite"
	ResolutionResponded       = "lead responded"
	ResolutionDuplicate       = "duplicate message"
	ResolutionOutbound        = "outbound message ignored"
	ResolutionNoLead          = "no matching lead"
	ResolutionUnknownAccount  = "unknown account"
	ResolutionIgnored         = "ignored"
	ResolutionAccountUpdated  = "account status updated"
	ResolutionInvalidPayload  = "invalid payload"
	ResolutionMissingIdentity = "missing identifiers"
)

type webhookProcessor struct {
	stores  store.Provider
	tx      store.TxRunner
	gateway gateway.Gateway
	now     func() time.Time
}

func NewWebhookProcessor(stores store.Provider, tx store.TxRunner, gw gateway.Gateway) WebhookProcessor {
	return &webhookProcessor{stores: stores, tx: tx, gateway: gw, now: time.Now}
}

func (p *webhookProcessor) Process(ctx context.Context, webhookEventID int64) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		WebhookEventID: logger.Ptr(webhookEventID),
		Component:      "outreach.service.webhook_processor",
	})

	event, err := p.stores.WebhookEvents().GetByID(ctx, webhookEventID)
	if err != nil {
		return fmt.Errorf("loading webhook event: %w", err)
	}
	if event.ProcessedAt != nil {
		slog.InfoContext(ctx, "webhook event already processed")
		return nil
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{EventType: logger.Ptr(string(event.Kind))})

	var resolution string
	switch event.Kind {
	case model.WebhookKindRelationAccepted:
		resolution, err = p.relationAccepted(ctx, event)
	case model.WebhookKindMessageReceived:
		resolution, err = p.messageReceived(ctx, event)
	case model.WebhookKindAccountStatus:
		resolution, err = p.accountStatus(ctx, event)
	default:
		resolution = ResolutionIgnored
	}
	if err != nil {
		if markErr := p.stores.WebhookEvents().MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
			slog.ErrorContext(ctx, "recording webhook failure", "error", markErr)
		}
		return err
	}

	if err := p.stores.WebhookEvents().MarkProcessed(ctx, event.ID, resolution); err != nil {
		return fmt.Errorf("marking webhook event processed: %w", err)
	}
	slog.InfoContext(ctx, "webhook event processed", "resolution", resolution)
	return nil
}

func (p *webhookProcessor) account(ctx context.Context, providerAccountID string) (*model.Account, error) {
	account, err := p.stores.Accounts().GetByProviderID(ctx, providerAccountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading account: %w", err)
	}
	return account, nil
}

func (p *webhookProcessor) relationAccepted(ctx context.Context, event *model.WebhookEvent) (string, error) {
	var payload model.RelationAcceptedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return ResolutionInvalidPayload, nil
	}
	if payload.MemberID == "" && payload.PublicIdentifier == "" {
		return ResolutionMissingIdentity, nil
	}

	account, err := p.account(ctx, payload.AccountID)
	if err != nil || account == nil {
		return ResolutionUnknownAccount, err
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{AccountID: logger.Ptr(account.ID)})

	lead, err := p.matchRelation(ctx, *account, payload)
	if err != nil || lead == nil {
		return ResolutionNoLead, err
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{LeadID: logger.Ptr(lead.ID)})

	if lead.Status != model.LeadStatusInviteSent {
		slog.InfoContext(ctx, "relation for lead not awaiting acceptance", "status", lead.Status)
		return ResolutionAlreadyHandled, nil
	}

	now := p.now()
	connected := false
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
			Method:    model.AcceptanceMethodWebhook,
			AccountID: account.ID,
		}))
		return err
	})
	if err != nil {
		return "", err
	}
	if !connected {
		return ResolutionAlreadyHandled, nil
	}
	slog.InfoContext(ctx, "connection accepted (webhook)")
	return ResolutionConnected, nil
}

// matchRelation finds the lead by member id, then by the member id the
// provider resolves for the public identifier, then by public identifier.
func (p *webhookProcessor) matchRelation(ctx context.Context, account model.Account, payload model.RelationAcceptedPayload) (*model.Lead, error) {
	leads := p.stores.Leads()
	memberID := payload.MemberID

	if memberID == "" && payload.PublicIdentifier != "" {
		profile, err := p.gateway.ResolveProfile(ctx, account.ProviderAccountID, payload.PublicIdentifier)
		switch {
		case err == nil:
			memberID = profile.MemberID
		case gateway.IsTransient(err):
			return nil, err
		default:
			slog.InfoContext(ctx, "could not resolve public identifier", "error", err)
		}
	}

	if memberID != "" {
		lead, err := leads.FindByMemberID(ctx, account.ID, memberID)
		if err == nil {
			return lead, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("finding lead by member id: %w", err)
		}
	}
	if payload.PublicIdentifier == "" {
		return nil, nil
	}

	lead, err := leads.FindByPublicIdentifier(ctx, account.ID, payload.PublicIdentifier)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding lead by public identifier: %w", err)
	}
	if lead.MemberID() == "" && memberID != "" {
		if err := leads.SetMemberID(ctx, lead.ID, memberID); err != nil {
			return nil, fmt.Errorf("backfilling member id: %w", err)
		}
	}
	return lead, nil
}

func (p *webhookProcessor) messageReceived(ctx context.Context, event *model.WebhookEvent) (string, error) {
	var payload model.MessageReceivedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil || payload.MessageID == "" {
		return ResolutionInvalidPayload, nil
	}

	account, err := p.account(ctx, payload.AccountID)
	if err != nil || account == nil {
		return ResolutionUnknownAccount, err
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{AccountID: logger.Ptr(account.ID)})

	if payload.IsSender {
		return ResolutionOutbound, nil
	}
	ownKnown, err := p.ensureOwnMember(ctx, account)
	if err != nil {
		return "", err
	}
	if account.IsOwnMember(payload.SenderID) {
		return ResolutionOutbound, nil
	}

	lead, err := p.matchMessage(ctx, account.ID, payload, ownKnown)
	if err != nil || lead == nil {
		return ResolutionNoLead, err
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{LeadID: logger.Ptr(lead.ID)})

	now := p.now()
	created := false
	err = p.tx.WithTx(ctx, func(stores store.Provider) error {
		var err error
		_, created, err = stores.Events().Append(ctx, model.NewEvent(lead.ID, now, model.MessageReceivedMeta{
			ProviderMessageID: payload.MessageID,
			ChatID:            payload.ChatID,
			Text:              payload.Text,
			AccountID:         account.ID,
		}))
		if err != nil {
			return fmt.Errorf("appending message_received event: %w", err)
		}
		if _, err := stores.Leads().MarkResponded(ctx, lead.ID, now); err != nil {
			return fmt.Errorf("marking lead %d responded: %w", lead.ID, err)
		}
		if payload.ChatID != "" && lead.Chat() == "" {
			if err := stores.Leads().SetChatID(ctx, lead.ID, payload.ChatID); err != nil {
				return fmt.Errorf("saving chat id: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if !created {
		return ResolutionDuplicate, nil
	}
	slog.InfoContext(ctx, "lead responded", "previous_status", lead.Status)
	return ResolutionResponded, nil
}

// ensureOwnMember fills in the account holder's member id from the provider
// when it is not known yet. It reports whether the id is known afterwards.
// A transient provider failure is returned so the webhook is retried.
func (p *webhookProcessor) ensureOwnMember(ctx context.Context, account *model.Account) (bool, error) {
	if account.OwnMemberID != nil && *account.OwnMemberID != "" {
		return true, nil
	}
	profile, err := p.gateway.OwnProfile(ctx, account.ProviderAccountID)
	if err != nil {
		if gateway.IsTransient(err) {
			return false, err
		}
		slog.WarnContext(ctx, "could not resolve own member id", "error", err)
		return false, nil
	}
	if err := p.stores.Accounts().SetOwnMemberID(ctx, account.ID, profile.MemberID); err != nil {
		return false, fmt.Errorf("saving own member id: %w", err)
	}
	account.OwnMemberID = &profile.MemberID
	slog.InfoContext(ctx, "own member id resolved", "member_id", profile.MemberID)
	return true, nil
}

// matchMessage finds the lead by sender, then by chat. A sender that matches
// no lead may still be us, so the chat match is only trusted when our own
// id is known and the chat's lead has no member id the sender could have
// matched.
func (p *webhookProcessor) matchMessage(ctx context.Context, accountID int64, payload model.MessageReceivedPayload, ownKnown bool) (*model.Lead, error) {
	leads := p.stores.Leads()
	if payload.SenderID != "" {
		lead, err := leads.FindByMemberID(ctx, accountID, payload.SenderID)
		if err == nil {
			return lead, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("finding lead by sender: %w", err)
		}
	}
	if payload.ChatID == "" {
		return nil, nil
	}
	lead, err := leads.FindByChatID(ctx, accountID, payload.ChatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding lead by chat: %w", err)
	}
	if payload.SenderID != "" && (!ownKnown || lead.MemberID() != "") {
		slog.InfoContext(ctx, "sender is not the lead in this chat, not treating as a reply",
			"lead_id", lead.ID,
			"own_member_known", ownKnown)
		return nil, nil
	}
	return lead, nil
}

func (p *webhookProcessor) accountStatus(ctx context.Context, event *model.WebhookEvent) (string, error) {
	var payload model.AccountStatusPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil || payload.AccountID == "" {
		return ResolutionInvalidPayload, nil
	}
	switch payload.Status {
	case model.AccountStatusConnected, model.AccountStatusDisconnected, model.AccountStatusCredentials:
	default:
		return ResolutionIgnored, nil
	}

	ok, err := p.stores.Accounts().UpdateStatus(ctx, payload.AccountID, payload.Status)
	if err != nil {
		return "", fmt.Errorf("updating account status: %w", err)
	}
	if !ok {
		return ResolutionUnknownAccount, nil
	}
	slog.InfoContext(ctx, "account status changed", "provider_account_id", payload.AccountID, "status", payload.Status)
	return ResolutionAccountUpdated, nil
}

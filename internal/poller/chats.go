package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cadence.app/outreach/common/logger"
	"cadence.app/outreach/internal/model"
	"cadence.app/outreach/internal/store"
)

// BackfillSummary counts what one chat id backfill did.
type BackfillSummary struct {
	Accounts      int `json:"accounts"`
	Pages         int `json:"pages"`
	Conversations int `json:"conversations"`
	Backfilled    int `json:"backfilled"`
	Failed        int `json:"failed"`
}

// BackfillChats stores the chat id of every conversation whose attendee is a
// lead without one, so replies match by chat and messages reuse the thread.
// A provider failure skips the account; a storage failure aborts.
func (p *Poller) BackfillChats(ctx context.Context, accounts []model.Account) (BackfillSummary, error) {
	sc := logger.StartSpan(ctx, "poller.backfill_chats")
	defer sc.End()
	ctx = sc.Context()

	var total BackfillSummary
	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if err := p.backfillAccount(ctx, account, &total); err != nil {
			sc.RecordError(err)
			return total, err
		}
	}
	slog.InfoContext(ctx, "chat id backfill complete",
		"accounts", total.Accounts,
		"conversations", total.Conversations,
		"backfilled", total.Backfilled)
	return total, nil
}

func (p *Poller) backfillAccount(ctx context.Context, account model.Account, total *BackfillSummary) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		AccountID: logger.Ptr(account.ID),
		Component: "outreach.poller",
	})
	total.Accounts++

	leads := p.stores.Leads()
	cursor, more := "", true
	for pages := 0; more && pages < p.maxPages; pages++ {
		page, err := p.gateway.ListConversations(ctx, account.ProviderAccountID, cursor)
		if err != nil {
			slog.WarnContext(ctx, "listing conversations failed, skipping account", "page", pages, "error", err)
			total.Failed++
			return nil
		}
		total.Pages++
		total.Conversations += len(page.Conversations)

		for _, conv := range page.Conversations {
			if conv.ChatID == "" || conv.MemberID == "" {
				continue
			}
			lead, err := leads.FindByMemberID(ctx, account.ID, conv.MemberID)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("finding lead by member id: %w", err)
			}
			if lead.Chat() != "" {
				continue
			}
			if err := leads.SetChatID(ctx, lead.ID, conv.ChatID); err != nil {
				return fmt.Errorf("backfilling chat id for lead %d: %w", lead.ID, err)
			}
			total.Backfilled++
		}

		cursor = page.Cursor
		more = cursor != ""
	}
	return nil
}

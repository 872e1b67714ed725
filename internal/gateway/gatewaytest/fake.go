// Package gatewaytest provides a function-field gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"

	"cadence.app/outreach/internal/gateway"
)

// Call records one gateway invocation.
type Call struct {
	Op        string
	AccountID string
	MemberID  string
	ChatID    string
	Text      string
}

// Fake answers with the configured functions. Unset send functions succeed
// with a generated id; unset list functions return an empty last page.
type Fake struct {
	SendConnectionRequestFn func(ctx context.Context, accountID, memberID, note string) (*gateway.Ack, error)
	SendMessageFn           func(ctx context.Context, accountID string, target gateway.Target, text string) (*gateway.Ack, error)
	ListRelationsFn         func(ctx context.Context, accountID, cursor string) (*gateway.RelationsPage, error)
	ResolveProfileFn        func(ctx context.Context, accountID, identifier string) (*gateway.Profile, error)
	ListConversationsFn     func(ctx context.Context, accountID, cursor string) (*gateway.ConversationsPage, error)
	OwnProfileFn            func(ctx context.Context, accountID string) (*gateway.Profile, error)
	ListSentInvitationsFn   func(ctx context.Context, accountID, cursor string) (*gateway.InvitationsPage, error)

	mu    sync.Mutex
	calls []Call
}

var _ gateway.Gateway = (*Fake)(nil)

func (f *Fake) record(c Call) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return len(f.calls)
}

// Calls returns the recorded invocations, optionally filtered by op.
func (f *Fake) Calls(op ...string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(op) == 0 {
		return append([]Call(nil), f.calls...)
	}
	var out []Call
	for _, c := range f.calls {
		if c.Op == op[0] {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) SendConnectionRequest(ctx context.Context, accountID, memberID, note string) (*gateway.Ack, error) {
	n := f.record(Call{Op: "send_connection_request", AccountID: accountID, MemberID: memberID, Text: note})
	if f.SendConnectionRequestFn != nil {
		return f.SendConnectionRequestFn(ctx, accountID, memberID, note)
	}
	return &gateway.Ack{ID: fmt.Sprintf("inv-%d", n)}, nil
}

func (f *Fake) SendMessage(ctx context.Context, accountID string, target gateway.Target, text string) (*gateway.Ack, error) {
	n := f.record(Call{Op: "send_message", AccountID: accountID, MemberID: target.MemberID, ChatID: target.ChatID, Text: text})
	if f.SendMessageFn != nil {
		return f.SendMessageFn(ctx, accountID, target, text)
	}
	chatID := target.ChatID
	if chatID == "" {
		chatID = "chat-" + target.MemberID
	}
	return &gateway.Ack{ID: fmt.Sprintf("msg-%d", n), ChatID: chatID}, nil
}

func (f *Fake) ListRelations(ctx context.Context, accountID, cursor string) (*gateway.RelationsPage, error) {
	f.record(Call{Op: "list_relations", AccountID: accountID, Text: cursor})
	if f.ListRelationsFn != nil {
		return f.ListRelationsFn(ctx, accountID, cursor)
	}
	return &gateway.RelationsPage{}, nil
}

func (f *Fake) ResolveProfile(ctx context.Context, accountID, identifier string) (*gateway.Profile, error) {
	f.record(Call{Op: "resolve_profile", AccountID: accountID, Text: identifier})
	if f.ResolveProfileFn != nil {
		return f.ResolveProfileFn(ctx, accountID, identifier)
	}
	return &gateway.Profile{MemberID: "member-" + identifier, PublicIdentifier: identifier}, nil
}

func (f *Fake) ListConversations(ctx context.Context, accountID, cursor string) (*gateway.ConversationsPage, error) {
	f.record(Call{Op: "list_conversations", AccountID: accountID, Text: cursor})
	if f.ListConversationsFn != nil {
		return f.ListConversationsFn(ctx, accountID, cursor)
	}
	return &gateway.ConversationsPage{}, nil
}

func (f *Fake) OwnProfile(ctx context.Context, accountID string) (*gateway.Profile, error) {
	f.record(Call{Op: "own_profile", AccountID: accountID})
	if f.OwnProfileFn != nil {
		return f.OwnProfileFn(ctx, accountID)
	}
	return &gateway.Profile{MemberID: "own-" + accountID}, nil
}

func (f *Fake) ListSentInvitations(ctx context.Context, accountID, cursor string) (*gateway.InvitationsPage, error) {
	f.record(Call{Op: "list_sent_invitations", AccountID: accountID, Text: cursor})
	if f.ListSentInvitationsFn != nil {
		return f.ListSentInvitationsFn(ctx, accountID, cursor)
	}
	return &gateway.InvitationsPage{}, nil
}

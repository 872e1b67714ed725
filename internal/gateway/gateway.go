// Package gateway talks to the messaging provider that owns the sending
// accounts. Every failure it returns is an *Error classified as transient or
// permanent.
package gateway

import (
	"context"
)

// Gateway is the provider surface the sequence executor, the poller and the
// webhook processor depend on.
type Gateway interface {
	SendConnectionRequest(ctx context.Context, accountID, memberID, note string) (*Ack, error)
	// SendMessage posts into an existing conversation when target.ChatID is
	// set, otherwise it starts one with target.MemberID.
	SendMessage(ctx context.Context, accountID string, target Target, text string) (*Ack, error)
	ListRelations(ctx context.Context, accountID, cursor string) (*RelationsPage, error)
	ResolveProfile(ctx context.Context, accountID, identifier string) (*Profile, error)
	ListConversations(ctx context.Context, accountID, cursor string) (*ConversationsPage, error)
	// OwnProfile returns the profile of the account holder.
	OwnProfile(ctx context.Context, accountID string) (*Profile, error)
	ListSentInvitations(ctx context.Context, accountID, cursor string) (*InvitationsPage, error)
}

type Target struct {
	ChatID   string
	MemberID string
}

// Ack acknowledges a send. ChatID is set when the send created or used a
// conversation.
type Ack struct {
	ID     string
	ChatID string
}

type Relation struct {
	MemberID         string `json:"member_id"`
	PublicIdentifier string `json:"public_identifier"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
}

type RelationsPage struct {
	Relations []Relation
	// Cursor is empty on the last page.
	Cursor string
}

const NetworkDistanceFirstDegree = "FIRST_DEGREE"

type Profile struct {
	MemberID         string `json:"provider_id"`
	PublicIdentifier string `json:"public_identifier"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	NetworkDistance  string `json:"network_distance,omitempty"`
}

func (p Profile) FirstDegree() bool {
	return p.NetworkDistance == NetworkDistanceFirstDegree
}

type Conversation struct {
	ChatID   string `json:"id"`
	MemberID string `json:"attendee_provider_id"`
}

type ConversationsPage struct {
	Conversations []Conversation
	Cursor        string
}

type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
)

// Invitation is a connection request the account has sent.
type Invitation struct {
	ID               string
	MemberID         string
	PublicIdentifier string
	Status           InvitationStatus
}

type InvitationsPage struct {
	Invitations []Invitation
	Cursor      string
}

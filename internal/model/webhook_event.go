package model

import (
	"encoding/json"
	"time"
)

type WebhookKind string

const (
	WebhookKindRelationAccepted WebhookKind = "new_relation"
	WebhookKindMessageReceived  WebhookKind = "message_received"
	WebhookKindMessageRead      WebhookKind = "message_read"
	WebhookKindAccountStatus    WebhookKind = "account_status"
)

// WebhookEvent is an inbound provider callback kept in the inbox table
// until the worker resolves it.
type WebhookEvent struct {
	CreatedAt         time.Time       `json:"created_at"`
	ProcessedAt       *time.Time      `json:"processed_at,omitempty"`
	ProviderAccountID *string         `json:"provider_account_id,omitempty"`
	Resolution        *string         `json:"resolution,omitempty"`
	ProcessingError   *string         `json:"processing_error,omitempty"`
	Payload           json.RawMessage `json:"payload"`
	Kind              WebhookKind     `json:"kind"`
	DedupeKey         string          `json:"dedupe_key"`
	ID                int64           `json:"id"`
}

// RelationAcceptedPayload is the normalized new_relation payload.
type RelationAcceptedPayload struct {
	AccountID        string `json:"account_id"`
	MemberID         string `json:"member_id,omitempty"`
	PublicIdentifier string `json:"public_identifier,omitempty"`
}

// MessageReceivedPayload is the normalized message_received payload.
type MessageReceivedPayload struct {
	AccountID string `json:"account_id"`
	ChatID    string `json:"chat_id,omitempty"`
	SenderID  string `json:"sender_id,omitempty"`
	MessageID string `json:"message_id"`
	Text      string `json:"text,omitempty"`
	IsSender  bool   `json:"is_sender,omitempty"`
}

// AccountStatusPayload is the normalized account_status payload.
type AccountStatusPayload struct {
	AccountID string        `json:"account_id"`
	Status    AccountStatus `json:"status"`
}

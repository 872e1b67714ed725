package dto

import (
	"strings"

	"cadence.app/outreach/internal/model"
)

// WebhookEnvelope is the provider callback body. The provider has shipped
// several field names for the same value over time; the accessors below
// pick whichever is present.
type WebhookEnvelope struct {
	Sender               *WebhookSender `json:"sender,omitempty"`
	Data                 *WebhookData   `json:"data,omitempty"`
	IsSender             *bool          `json:"is_sender,omitempty"`
	Event                string         `json:"event,omitempty"`
	Type                 string         `json:"type,omitempty"`
	AccountID            string         `json:"account_id"`
	MemberID             string         `json:"member_id,omitempty"`
	UserProviderID       string         `json:"user_provider_id,omitempty"`
	PublicIdentifier     string         `json:"public_identifier,omitempty"`
	UserPublicIdentifier string         `json:"user_public_identifier,omitempty"`
	ChatID               string         `json:"chat_id,omitempty"`
	MessageID            string         `json:"message_id,omitempty"`
	SenderID             string         `json:"sender_id,omitempty"`
	Text                 string         `json:"text,omitempty"`
	Message              string         `json:"message,omitempty"`
	Status               string         `json:"status,omitempty"`
}

type WebhookSender struct {
	AttendeeProviderID string `json:"attendee_provider_id,omitempty"`
	AttendeeName       string `json:"attendee_name,omitempty"`
}

type WebhookData struct {
	EventType string `json:"event_type,omitempty"`
}

type WebhookResponse struct {
	Status         string `json:"status"`
	Kind           string `json:"kind,omitempty"`
	WebhookEventID int64  `json:"webhook_event_id,omitempty"`
	Duplicated     bool   `json:"duplicated,omitempty"`
}

// Kind maps the envelope's event name onto a known webhook kind. ok is
// false for events nobody consumes.
func (e WebhookEnvelope) Kind() (model.WebhookKind, bool) {
	name := e.Event
	if name == "" {
		name = e.Type
	}
	if name == "" && e.Data != nil {
		name = e.Data.EventType
	}

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "new_relation", "relation_accepted":
		return model.WebhookKindRelationAccepted, true
	case "message_received", "message", "message_new":
		return model.WebhookKindMessageReceived, true
	case "message_read":
		return model.WebhookKindMessageRead, true
	case "account_status":
		return model.WebhookKindAccountStatus, true
	}
	return "", false
}

func (e WebhookEnvelope) RelationAccepted() model.RelationAcceptedPayload {
	return model.RelationAcceptedPayload{
		AccountID:        e.AccountID,
		MemberID:         firstNonEmpty(e.MemberID, e.UserProviderID),
		PublicIdentifier: firstNonEmpty(e.PublicIdentifier, e.UserPublicIdentifier),
	}
}

func (e WebhookEnvelope) MessageReceived() model.MessageReceivedPayload {
	sender := e.SenderID
	if sender == "" && e.Sender != nil {
		sender = e.Sender.AttendeeProviderID
	}
	return model.MessageReceivedPayload{
		AccountID: e.AccountID,
		ChatID:    e.ChatID,
		SenderID:  sender,
		MessageID: e.MessageID,
		Text:      firstNonEmpty(e.Text, e.Message),
		IsSender:  e.IsSender != nil && *e.IsSender,
	}
}

func (e WebhookEnvelope) AccountStatus() model.AccountStatusPayload {
	return model.AccountStatusPayload{
		AccountID: e.AccountID,
		Status:    normalizeAccountStatus(e.Status),
	}
}

func normalizeAccountStatus(raw string) model.AccountStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "OK", "CONNECTED", "RECONNECTED", "CREATION_SUCCESS", "SYNC_SUCCESS":
		return model.AccountStatusConnected
	case "CREDENTIALS", "CREDENTIALS_REQUIRED":
		return model.AccountStatusCredentials
	case "ERROR", "STOPPED", "DELETED", "DISCONNECTED":
		return model.AccountStatusDisconnected
	}
	return model.AccountStatus(strings.ToLower(raw))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

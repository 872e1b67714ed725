package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type EventType string

const (
	EventTypeConnectionRequestSent        EventType = "connection_request_sent"
	EventTypeMessageSent                  EventType = "message_sent"
	EventTypeMessageReceived              EventType = "message_received"
	EventTypeConnectionAccepted           EventType = "connection_accepted"
	EventTypeConnectionAcceptedHistorical EventType = "connection_accepted_historical"
	EventTypeStepFailed                   EventType = "step_failed"
	EventTypeSequenceCompleted            EventType = "sequence_completed"
)

type AcceptanceMethod string

const (
	AcceptanceMethodWebhook       AcceptanceMethod = "webhook"
	AcceptanceMethodPeriodicCheck AcceptanceMethod = "periodic_check"
	// AcceptanceMethodInvitationCheck is set when the sent-invitations list
	// reported the invite accepted.
	AcceptanceMethodInvitationCheck AcceptanceMethod = "invitation_check"
)

// EventMeta is the typed payload of an Event. The set of implementations is
// closed; each one determines the event type and its dedupe key.
type EventMeta interface {
	eventType() EventType
	// dedupeKey returns "" when the event may repeat for a lead.
	dedupeKey() string
}

type ConnectionRequestSentMeta struct {
	InvitationID string `json:"invitation_id,omitempty"`
	Message      string `json:"message,omitempty"`
	// Reconciled is true when the invite was found on the provider's sent
	// list rather than recorded at send time.
	Reconciled bool  `json:"reconciled,omitempty"`
	Step       int32 `json:"step"`
}

type MessageSentMeta struct {
	ChatID            string `json:"chat_id,omitempty"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	Text              string `json:"text"`
	Step              int32  `json:"step"`
	FirstDegree       bool   `json:"first_degree,omitempty"`
}

type MessageReceivedMeta struct {
	ProviderMessageID string `json:"provider_message_id"`
	ChatID            string `json:"chat_id,omitempty"`
	Text              string `json:"text,omitempty"`
	AccountID         int64  `json:"account_id"`
}

type ConnectionAcceptedMeta struct {
	Method     AcceptanceMethod `json:"method"`
	AccountID  int64            `json:"account_id"`
	Historical bool             `json:"historical,omitempty"`
}

type StepFailedMeta struct {
	Reason    string `json:"reason"`
	Step      int32  `json:"step"`
	Attempt   int32  `json:"attempt"`
	Transient bool   `json:"transient"`
}

type SequenceCompletedMeta struct {
	Steps int32 `json:"steps"`
}

func (ConnectionRequestSentMeta) eventType() EventType { return EventTypeConnectionRequestSent }
func (MessageSentMeta) eventType() EventType           { return EventTypeMessageSent }
func (MessageReceivedMeta) eventType() EventType       { return EventTypeMessageReceived }
func (StepFailedMeta) eventType() EventType            { return EventTypeStepFailed }
func (SequenceCompletedMeta) eventType() EventType     { return EventTypeSequenceCompleted }

func (m ConnectionAcceptedMeta) eventType() EventType {
	if m.Historical {
		return EventTypeConnectionAcceptedHistorical
	}
	return EventTypeConnectionAccepted
}

func (m ConnectionRequestSentMeta) dedupeKey() string {
	return "connection_request_sent:" + strconv.Itoa(int(m.Step))
}

func (m MessageSentMeta) dedupeKey() string {
	return "message_sent:" + strconv.Itoa(int(m.Step))
}

func (m MessageReceivedMeta) dedupeKey() string {
	return "message_received:" + m.ProviderMessageID
}

// Webhook and poller acceptances share one key so a lead records at most
// one acceptance regardless of which path saw it first.
func (ConnectionAcceptedMeta) dedupeKey() string { return "connection_accepted" }

func (StepFailedMeta) dedupeKey() string { return "" }

func (SequenceCompletedMeta) dedupeKey() string { return "sequence_completed" }

// Event is an immutable entry in a lead's activity log.
type Event struct {
	OccurredAt time.Time `json:"occurred_at"`
	Meta       EventMeta `json:"metadata"`
	ID         int64     `json:"id"`
	LeadID     int64     `json:"lead_id"`
}

func NewEvent(leadID int64, at time.Time, meta EventMeta) *Event {
	return &Event{LeadID: leadID, OccurredAt: at, Meta: meta}
}

func (e Event) Type() EventType {
	return e.Meta.eventType()
}

// DedupeKey returns nil for events that may occur more than once per lead.
func (e Event) DedupeKey() *string {
	if k := e.Meta.dedupeKey(); k != "" {
		return &k
	}
	return nil
}

func EncodeEventMeta(meta EventMeta) ([]byte, error) {
	return json.Marshal(meta)
}

func DecodeEventMeta(t EventType, raw []byte) (EventMeta, error) {
	var (
		meta EventMeta
		err  error
	)
	switch t {
	case EventTypeConnectionRequestSent:
		var m ConnectionRequestSentMeta
		err = json.Unmarshal(raw, &m)
		meta = m
	case EventTypeMessageSent:
		var m MessageSentMeta
		err = json.Unmarshal(raw, &m)
		meta = m
	case EventTypeMessageReceived:
		var m MessageReceivedMeta
		err = json.Unmarshal(raw, &m)
		meta = m
	case EventTypeConnectionAccepted, EventTypeConnectionAcceptedHistorical:
		var m ConnectionAcceptedMeta
		err = json.Unmarshal(raw, &m)
		m.Historical = t == EventTypeConnectionAcceptedHistorical
		meta = m
	case EventTypeStepFailed:
		var m StepFailedMeta
		err = json.Unmarshal(raw, &m)
		meta = m
	case EventTypeSequenceCompleted:
		var m SequenceCompletedMeta
		err = json.Unmarshal(raw, &m)
		meta = m
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s metadata: %w", t, err)
	}
	return meta, nil
}

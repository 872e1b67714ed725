package model

import "time"

// ActionKind is a rate-limited provider action.
type ActionKind string

const (
	ActionKindInvite             ActionKind = "invite"
	ActionKindMessage            ActionKind = "message"
	ActionKindFirstDegreeMessage ActionKind = "first_degree_message"
)

var ActionKinds = []ActionKind{ActionKindInvite, ActionKindMessage, ActionKindFirstDegreeMessage}

// RateUsage counts actions of one kind for an account on one local day.
type RateUsage struct {
	Day        time.Time  `json:"day"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ActionKind ActionKind `json:"action_kind"`
	ID         int64      `json:"id"`
	AccountID  int64      `json:"account_id"`
	Count      int32      `json:"count"`
}

package model

import (
	"strings"
	"time"
)

type LeadStatus string

const (
	LeadStatusPendingInvite LeadStatus = "pending_invite"
	LeadStatusInviteSent    LeadStatus = "invite_sent"
	LeadStatusConnected     LeadStatus = "connected"
	LeadStatusMessaged      LeadStatus = "messaged"
	LeadStatusResponded     LeadStatus = "responded"
	LeadStatusCompleted     LeadStatus = "completed"
	LeadStatusError         LeadStatus = "error"
)

// Halted reports whether the lead left the automated sequence for good.
func (s LeadStatus) Halted() bool {
	switch s {
	case LeadStatusResponded, LeadStatusCompleted, LeadStatusError:
		return true
	}
	return false
}

// Connected reports whether the lead can receive direct messages.
func (s LeadStatus) Connected() bool {
	return s == LeadStatusConnected || s == LeadStatusMessaged
}

func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusPendingInvite, LeadStatusInviteSent, LeadStatusConnected, LeadStatusMessaged,
		LeadStatusResponded, LeadStatusCompleted, LeadStatusError:
		return true
	}
	return false
}

type Lead struct {
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	LastStepSentAt   *time.Time `json:"last_step_sent_at,omitempty"`
	ConnectedAt      *time.Time `json:"connected_at,omitempty"`
	RespondedAt      *time.Time `json:"responded_at,omitempty"`
	RetryAfter       *time.Time `json:"retry_after,omitempty"`
	ProviderMemberID *string    `json:"provider_member_id,omitempty"`
	ChatID           *string    `json:"chat_id,omitempty"`
	LastError        *string    `json:"last_error,omitempty"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	CompanyName      string     `json:"company_name"`
	Title            string     `json:"title"`
	Location         string     `json:"location"`
	Industry         string     `json:"industry"`
	PublicIdentifier string     `json:"public_identifier"`
	Status           LeadStatus `json:"status"`
	ID               int64      `json:"id"`
	CampaignID       int64      `json:"campaign_id"`
	AccountID        int64      `json:"account_id"`
	CurrentStep      int32      `json:"current_step"`
	FailureCount     int32      `json:"failure_count"`
	FirstDegree      bool       `json:"first_degree"`
}

func (l Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// MemberID returns the provider member id, or "" while it is undiscovered.
func (l Lead) MemberID() string {
	if l.ProviderMemberID == nil {
		return ""
	}
	return *l.ProviderMemberID
}

func (l Lead) Chat() string {
	if l.ChatID == nil {
		return ""
	}
	return *l.ChatID
}

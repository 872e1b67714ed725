package model

import (
	"time"
)

type AccountStatus string

const (
	AccountStatusConnected    AccountStatus = "connected"
	AccountStatusDisconnected AccountStatus = "disconnected"
	AccountStatusCredentials  AccountStatus = "credentials_required"
)

// Account is a sending identity on the messaging provider.
type Account struct {
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
	OwnMemberID           *string       `json:"own_member_id,omitempty"`
	DailyInviteLimit      *int32        `json:"daily_invite_limit,omitempty"`
	DailyMessageLimit     *int32        `json:"daily_message_limit,omitempty"`
	DailyFirstDegreeLimit *int32        `json:"daily_first_degree_limit,omitempty"`
	ProviderAccountID     string        `json:"provider_account_id"`
	Timezone              string        `json:"timezone"`
	Status                AccountStatus `json:"status"`
	ID                    int64         `json:"id"`
	WorkStartHour         int           `json:"work_start_hour"`
	WorkEndHour           int           `json:"work_end_hour"`
}

// Location resolves the account timezone. An empty or unknown zone yields
// UTC and ok=false.
func (a Account) Location() (loc *time.Location, ok bool) {
	if a.Timezone == "" {
		return time.UTC, false
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC, false
	}
	return loc, true
}

// IsOwnMember reports whether memberID is the account holder.
func (a Account) IsOwnMember(memberID string) bool {
	return a.OwnMemberID != nil && memberID != "" && *a.OwnMemberID == memberID
}

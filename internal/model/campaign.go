package model

import "time"

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
)

type StepAction string

const (
	StepActionConnectionRequest StepAction = "connection_request"
	StepActionMessage           StepAction = "message"
)

// Step is one action in a campaign sequence. A step waits either
// DelayWorkingDays working days or DelayMinutes minutes after the previous
// step was sent; both zero means no wait.
type Step struct {
	Name             string     `json:"name,omitempty"`
	Action           StepAction `json:"action"`
	Template         string     `json:"template"`
	DelayWorkingDays int        `json:"delay_working_days,omitempty"`
	DelayMinutes     int        `json:"delay_minutes,omitempty"`
}

type Campaign struct {
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Name      string         `json:"name"`
	Status    CampaignStatus `json:"status"`
	Steps     []Step         `json:"steps"`
	ID        int64          `json:"id"`
	AccountID int64          `json:"account_id"`
}

// FirstMessageStep returns the index of the first message step, or -1.
func (c Campaign) FirstMessageStep() int {
	for i, s := range c.Steps {
		if s.Action == StepActionMessage {
			return i
		}
	}
	return -1
}

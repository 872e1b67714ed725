package dto

import (
	"time"

	"cadence.app/outreach/internal/scheduler"
)

type SchedulerControlResponse struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
}

type SchedulerStatusResponse struct {
	NextTickAt *time.Time               `json:"next_tick_at,omitempty"`
	LastTick   *scheduler.TickSummary   `json:"last_tick,omitempty"`
	NextTickIn *int64                   `json:"next_tick_eta_seconds,omitempty"`
	Accounts   []scheduler.AccountUsage `json:"accounts"`
	Running    bool                     `json:"running"`
}

// NewSchedulerStatusResponse renders status with the ETA measured from now.
func NewSchedulerStatusResponse(status scheduler.Status, now time.Time) SchedulerStatusResponse {
	resp := SchedulerStatusResponse{
		Running:    status.Running,
		NextTickAt: status.NextTickAt,
		LastTick:   status.LastTick,
		Accounts:   status.Accounts,
	}
	if resp.Accounts == nil {
		resp.Accounts = []scheduler.AccountUsage{}
	}
	if status.NextTickAt != nil {
		eta := int64(status.NextTickAt.Sub(now).Round(time.Second) / time.Second)
		if eta < 0 {
			eta = 0
		}
		resp.NextTickIn = &eta
	}
	return resp
}

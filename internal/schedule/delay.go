package schedule

import (
	"time"

	"cadence.app/outreach/internal/model"
)

// Anchor is the instant a step's delay counts from: when the previous step
// was sent, else when the lead was created.
func Anchor(lead model.Lead) time.Time {
	if lead.LastStepSentAt != nil {
		return *lead.LastStepSentAt
	}
	return lead.CreatedAt
}

// NextEligibleTime returns when step may run for lead. The result is a
// working instant in w and never earlier than the anchor.
//
// Working-day delays land on the window start of the target day. Minute
// delays are added to the anchor and then clamped forward.
func NextEligibleTime(lead model.Lead, step model.Step, w Window) time.Time {
	anchor := Anchor(lead)
	switch {
	case step.DelayWorkingDays > 0:
		return w.Clamp(w.AddWorkingDays(anchor, step.DelayWorkingDays))
	case step.DelayMinutes > 0:
		return w.Clamp(anchor.Add(time.Duration(step.DelayMinutes) * time.Minute))
	default:
		return w.Clamp(anchor)
	}
}

// Due reports whether step may run for lead at now: the eligible time has
// passed and now itself is inside working hours.
func Due(lead model.Lead, step model.Step, w Window, now time.Time) (bool, time.Time) {
	eligible := NextEligibleTime(lead, step, w)
	if now.Before(eligible) {
		return false, eligible
	}
	if !w.Contains(now) {
		return false, w.Clamp(now)
	}
	return true, eligible
}

// Package schedule computes when a sequence step may run, honoring each
// account's working hours and weekends in its own timezone.
package schedule

import (
	"fmt"
	"time"

	"cadence.app/outreach/internal/model"
)

const (
	DefaultStartHour = 9
	DefaultEndHour   = 17
)

// Window is the working-hour range [StartHour, EndHour) on Monday to Friday
// in Location.
type Window struct {
	Location  *time.Location
	StartHour int
	EndHour   int
}

func NewWindow(loc *time.Location, startHour, endHour int) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	if startHour < 0 || endHour > 24 || startHour >= endHour {
		return Window{}, fmt.Errorf("invalid working window %d-%d", startHour, endHour)
	}
	return Window{Location: loc, StartHour: startHour, EndHour: endHour}, nil
}

// WindowFor builds the window of an account. An unknown zone falls back to
// UTC and an invalid hour range falls back to fallback; ok reports whether
// the account's own settings were usable.
func WindowFor(account model.Account, fallback Window) (w Window, ok bool) {
	loc, locOK := account.Location()
	w, err := NewWindow(loc, account.WorkStartHour, account.WorkEndHour)
	if err != nil {
		w = Window{Location: loc, StartHour: fallback.StartHour, EndHour: fallback.EndHour}
		return w, false
	}
	return w, locOK
}

func IsWorkingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// Contains reports whether t falls on a working day inside working hours.
func (w Window) Contains(t time.Time) bool {
	local := t.In(w.Location)
	if !IsWorkingDay(local) {
		return false
	}
	h := local.Hour()
	return h >= w.StartHour && h < w.EndHour
}

// Clamp returns the earliest working instant at or after t.
func (w Window) Clamp(t time.Time) time.Time {
	local := t.In(w.Location)
	for {
		if IsWorkingDay(local) {
			start := w.dayAt(local, 0, w.StartHour)
			end := w.dayAt(local, 0, w.EndHour)
			if local.Before(start) {
				return start
			}
			if local.Before(end) {
				return local
			}
		}
		local = w.dayAt(local, 1, w.StartHour)
	}
}

// AddWorkingDays moves n working days past t's local date and returns the
// window start on that date.
func (w Window) AddWorkingDays(t time.Time, n int) time.Time {
	local := t.In(w.Location)
	day := w.dayAt(local, 0, w.StartHour)
	for added := 0; added < n; {
		day = w.dayAt(day, 1, w.StartHour)
		if IsWorkingDay(day) {
			added++
		}
	}
	return day
}

// dayAt is the given hour on t's local date shifted by days. time.Date
// normalizes the date and resolves DST gaps in the zone.
func (w Window) dayAt(t time.Time, days, hour int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+days, hour, 0, 0, 0, w.Location)
}

// Package ledger enforces per-account daily action limits.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cadence.app/outreach/internal/model"
	"cadence.app/outreach/internal/store"
)

// Limits are the defaults used when an account leaves a limit unset.
type Limits struct {
	Invites             int32
	Messages            int32
	FirstDegreeMessages int32
}

type Ledger struct {
	usage     store.RateUsageStore
	defaults  Limits
	retention time.Duration
}

func New(usage store.RateUsageStore, defaults Limits, retentionDays int) *Ledger {
	return &Ledger{
		usage:     usage,
		defaults:  defaults,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// LimitFor returns the daily limit for kind on account. A limit <= 0
// disables the action.
func (l *Ledger) LimitFor(account model.Account, kind model.ActionKind) int32 {
	switch kind {
	case model.ActionKindInvite:
		if account.DailyInviteLimit != nil {
			return *account.DailyInviteLimit
		}
		return l.defaults.Invites
	case model.ActionKindMessage:
		if account.DailyMessageLimit != nil {
			return *account.DailyMessageLimit
		}
		return l.defaults.Messages
	case model.ActionKindFirstDegreeMessage:
		if account.DailyFirstDegreeLimit != nil {
			return *account.DailyFirstDegreeLimit
		}
		return l.defaults.FirstDegreeMessages
	}
	return 0
}

// LocalDay is the account-local calendar day containing now.
func LocalDay(account model.Account, now time.Time) time.Time {
	loc, _ := account.Location()
	local := now.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// TryReserve consumes one unit of kind for today. It returns false without
// side effects when the limit is reached. A successful reservation is never
// refunded, even if the send it guards fails.
func (l *Ledger) TryReserve(ctx context.Context, account model.Account, kind model.ActionKind, now time.Time) (bool, error) {
	limit := l.LimitFor(account, kind)
	if limit <= 0 {
		return false, nil
	}

	count, ok, err := l.usage.Reserve(ctx, account.ID, LocalDay(account, now), kind, limit)
	if err != nil {
		return false, fmt.Errorf("reserving %s for account %d: %w", kind, account.ID, err)
	}
	if ok {
		slog.DebugContext(ctx, "rate reserved",
			"kind", kind,
			"count", count,
			"limit", limit)
	}
	return ok, nil
}

// Usage is one action kind's consumption for the current local day.
type Usage struct {
	Kind  model.ActionKind `json:"kind"`
	Count int32            `json:"count"`
	Limit int32            `json:"limit"`
}

func (u Usage) Remaining() int32 {
	if u.Count >= u.Limit {
		return 0
	}
	return u.Limit - u.Count
}

// Usage returns today's counters for every action kind, including ones
// with no reservations yet.
func (l *Ledger) Usage(ctx context.Context, account model.Account, now time.Time) ([]Usage, error) {
	rows, err := l.usage.ListForDay(ctx, account.ID, LocalDay(account, now))
	if err != nil {
		return nil, fmt.Errorf("listing usage for account %d: %w", account.ID, err)
	}
	counts := make(map[model.ActionKind]int32, len(rows))
	for _, r := range rows {
		counts[r.ActionKind] = r.Count
	}

	out := make([]Usage, 0, len(model.ActionKinds))
	for _, kind := range model.ActionKinds {
		out = append(out, Usage{
			Kind:  kind,
			Count: counts[kind],
			Limit: l.LimitFor(account, kind),
		})
	}
	return out, nil
}

// Rollover materializes zeroed counters for each account's new local day
// and prunes counters older than the retention window. Counters are keyed
// by day, so a missed rollover never carries usage forward.
func (l *Ledger) Rollover(ctx context.Context, accounts []model.Account, now time.Time) error {
	for _, account := range accounts {
		day := LocalDay(account, now)
		for _, kind := range model.ActionKinds {
			if err := l.usage.Ensure(ctx, account.ID, day, kind); err != nil {
				return fmt.Errorf("rolling over account %d: %w", account.ID, err)
			}
		}
	}

	if l.retention <= 0 {
		return nil
	}
	pruned, err := l.usage.PruneBefore(ctx, now.Add(-l.retention))
	if err != nil {
		return fmt.Errorf("pruning rate usage: %w", err)
	}
	if pruned > 0 {
		slog.InfoContext(ctx, "pruned rate usage", "rows", pruned)
	}
	return nil
}

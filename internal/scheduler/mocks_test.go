package scheduler_test

import (
	"context"
	"sync"
	"time"

	"cadence.app/outreach/internal/ledger"
	"cadence.app/outreach/internal/model"
	"cadence.app/outreach/internal/poller"
	"cadence.app/outreach/internal/sequence"
)

type mockExecutor struct {
	executeFn func(ctx context.Context, lead model.Lead) (sequence.Result, error)

	mu    sync.Mutex
	leads []int64
}

func (m *mockExecutor) Execute(ctx context.Context, lead model.Lead, _ model.Campaign, _ model.Account, _ time.Time) (sequence.Result, error) {
	m.mu.Lock()
	m.leads = append(m.leads, lead.ID)
	m.mu.Unlock()
	if m.executeFn != nil {
		return m.executeFn(ctx, lead)
	}
	return sequence.Result{Outcome: sequence.OutcomeSent}, nil
}

func (m *mockExecutor) executed() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.leads...)
}

type mockPoller struct {
	mu        sync.Mutex
	calls     int
	backfills [][]int64
}

func (m *mockPoller) Poll(_ context.Context, accounts []model.Account, _ time.Time) (poller.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return poller.Summary{Accounts: len(accounts)}, nil
}

func (m *mockPoller) BackfillChats(_ context.Context, accounts []model.Account) (poller.BackfillSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	m.backfills = append(m.backfills, ids)
	return poller.BackfillSummary{Accounts: len(accounts)}, nil
}

func (m *mockPoller) backfilled() [][]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]int64(nil), m.backfills...)
}

func (m *mockPoller) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockLedger struct {
	mu        sync.Mutex
	rollovers [][]int64
}

func (m *mockLedger) Usage(_ context.Context, account model.Account, _ time.Time) ([]ledger.Usage, error) {
	return []ledger.Usage{{Kind: model.ActionKindInvite, Count: 1, Limit: 25}}, nil
}

func (m *mockLedger) Rollover(_ context.Context, accounts []model.Account, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	m.rollovers = append(m.rollovers, ids)
	return nil
}

type heldLock struct{}

func (heldLock) Acquire(context.Context, time.Duration) (func(context.Context), bool, error) {
	return func(context.Context) {}, false, nil
}

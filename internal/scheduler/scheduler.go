// Package scheduler drives the periodic tick that walks due leads through
// their sequences, rolls daily counters over and polls for accepted
// connections.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"cadence.app/outreach/common/logger"
	"cadence.app/outreach/internal/ledger"
	"cadence.app/outreach/internal/model"
	"cadence.app/outreach/internal/poller"
	"cadence.app/outreach/internal/sequence"
	"cadence.app/outreach/internal/store"
)

var (
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrNotRunning     = errors.New("scheduler not running")
)

type LeadExecutor interface {
	Execute(ctx context.Context, lead model.Lead, campaign model.Campaign, account model.Account, now time.Time) (sequence.Result, error)
}

type ConnectionPoller interface {
	Poll(ctx context.Context, accounts []model.Account, now time.Time) (poller.Summary, error)
	BackfillChats(ctx context.Context, accounts []model.Account) (poller.BackfillSummary, error)
}

type UsageLedger interface {
	Usage(ctx context.Context, account model.Account, now time.Time) ([]ledger.Usage, error)
	Rollover(ctx context.Context, accounts []model.Account, now time.Time) error
}

type Config struct {
	TickInterval time.Duration
	PoolSize     int
	BatchSize    int32
	PollInterval time.Duration
	LockTTL      time.Duration
}

// TickSummary reports one tick.
type TickSummary struct {
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
	Poll       *poller.Summary          `json:"poll,omitempty"`
	Backfill   *poller.BackfillSummary  `json:"backfill,omitempty"`
	Outcomes   map[sequence.Outcome]int `json:"outcomes"`
	Error      string                   `json:"error,omitempty"`
	Leads      int                      `json:"leads"`
	Skipped    int                      `json:"skipped"`
	Panics     int                      `json:"panics"`
	// LockHeld is true when another tick held the lock and this one did
	// nothing.
	LockHeld bool `json:"lock_held,omitempty"`
	Stopped  bool `json:"stopped,omitempty"`
}

type AccountUsage struct {
	Usage             []ledger.Usage `json:"usage"`
	ProviderAccountID string         `json:"provider_account_id"`
	AccountID         int64          `json:"account_id"`
}

type Status struct {
	NextTickAt *time.Time     `json:"next_tick_at,omitempty"`
	LastTick   *TickSummary   `json:"last_tick,omitempty"`
	Accounts   []AccountUsage `json:"accounts"`
	Running    bool           `json:"running"`
}

type Scheduler struct {
	stores   store.Provider
	executor LeadExecutor
	poller   ConnectionPoller
	ledger   UsageLedger
	lock     Locker
	cfg      Config
	now      func() time.Time

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
	nextTick  time.Time
	lastTick  *TickSummary
	lastPoll  time.Time
	lastDays  map[int64]string
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLock replaces the in-process tick lock.
func WithLock(l Locker) Option {
	return func(s *Scheduler) { s.lock = l }
}

func New(stores store.Provider, executor LeadExecutor, p ConnectionPoller, l UsageLedger, cfg Config, opts ...Option) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Minute
	}
	if cfg.PoolSize < 1 {
		cfg.PoolSize = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * cfg.TickInterval
	}
	s := &Scheduler{
		stores:   stores,
		executor: executor,
		poller:   p,
		ledger:   l,
		lock:     newLocalLock(),
		cfg:      cfg,
		now:      time.Now,
		lastDays: map[int64]string{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the tick loop. The loop outlives ctx's cancellation and
// runs until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.stoppedCh = make(chan struct{})
	s.nextTick = s.now()

	go s.run(context.WithoutCancel(ctx), s.stopCh, s.stoppedCh)
	slog.InfoContext(ctx, "scheduler started", "tick_interval", s.cfg.TickInterval, "pool_size", s.cfg.PoolSize)
	return nil
}

// Stop signals the loop and waits for the in-flight lead executions to
// finish, or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	close(s.stopCh)
	stopped := s.stoppedCh
	s.mu.Unlock()

	select {
	case <-stopped:
		slog.InfoContext(ctx, "scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for scheduler to stop: %w", ctx.Err())
	}
}

// Close stops the loop if it is running. Used on shutdown.
func (s *Scheduler) Close(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	return nil
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}, stoppedCh chan<- struct{}) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "outreach.scheduler"})
	defer close(stoppedCh)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil {
			slog.ErrorContext(ctx, "tick failed", "error", err)
		}

		s.mu.Lock()
		s.nextTick = s.now().Add(s.cfg.TickInterval)
		s.mu.Unlock()

		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) stopping() bool {
	s.mu.Lock()
	stopCh := s.stopCh
	s.mu.Unlock()
	if stopCh == nil {
		return false
	}
	select {
	case <-stopCh:
		return true
	default:
		return false
	}
}

// Tick runs one pass. A storage failure aborts the pass and is returned;
// per-lead provider failures are recorded on the lead and counted.
func (s *Scheduler) Tick(ctx context.Context) (*TickSummary, error) {
	sc := logger.StartSpan(ctx, "scheduler.tick")
	defer sc.End()

	summary, err := s.tick(sc.Context())
	sc.SetAttributes(
		attribute.Int("leads", summary.Leads),
		attribute.Bool("lock_held", summary.LockHeld),
	)
	sc.RecordError(err)
	return summary, err
}

func (s *Scheduler) tick(ctx context.Context) (*TickSummary, error) {
	now := s.now()
	summary := &TickSummary{StartedAt: now, Outcomes: map[sequence.Outcome]int{}}

	release, ok, err := s.lock.Acquire(ctx, s.cfg.LockTTL)
	if err != nil {
		return s.finish(summary, err)
	}
	if !ok {
		summary.LockHeld = true
		slog.InfoContext(ctx, "previous tick still running, skipping")
		return s.finish(summary, nil)
	}
	defer release(context.WithoutCancel(ctx))

	accounts, err := s.stores.Accounts().ListConnected(ctx)
	if err != nil {
		return s.finish(summary, fmt.Errorf("listing accounts: %w", err))
	}

	if err := s.rollover(ctx, accounts, now, summary); err != nil {
		return s.finish(summary, err)
	}

	if s.pollDue(now) && len(accounts) > 0 {
		ps, err := s.poller.Poll(ctx, accounts, now)
		summary.Poll = &ps
		if err != nil {
			return s.finish(summary, fmt.Errorf("polling connections: %w", err))
		}
		s.mu.Lock()
		s.lastPoll = now
		s.mu.Unlock()
	}

	byID := make(map[int64]model.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	campaigns := map[int64]*model.Campaign{}

	var afterID int64
	for {
		leads, err := s.stores.Leads().ListDue(ctx, now, afterID, s.cfg.BatchSize)
		if err != nil {
			return s.finish(summary, fmt.Errorf("listing due leads: %w", err))
		}
		if len(leads) == 0 {
			break
		}
		afterID = leads[len(leads)-1].ID

		if err := s.runBatch(ctx, leads, byID, campaigns, now, summary); err != nil {
			return s.finish(summary, err)
		}
		if summary.Stopped || int32(len(leads)) < s.cfg.BatchSize {
			break
		}
	}

	slog.InfoContext(ctx, "tick complete",
		"leads", summary.Leads,
		"skipped", summary.Skipped,
		"outcomes", summary.Outcomes,
		"duration", s.now().Sub(now))
	return s.finish(summary, nil)
}

func (s *Scheduler) finish(summary *TickSummary, err error) (*TickSummary, error) {
	summary.FinishedAt = s.now()
	if err != nil {
		summary.Error = err.Error()
	}
	s.mu.Lock()
	s.lastTick = summary
	s.mu.Unlock()
	return summary, err
}

func (s *Scheduler) pollDue(now time.Time) bool {
	if s.cfg.PollInterval <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPoll.IsZero() || now.Sub(s.lastPoll) >= s.cfg.PollInterval
}

// rollover runs the ledger rollover and the chat id backfill for accounts
// whose local day changed since the last tick that saw them.
func (s *Scheduler) rollover(ctx context.Context, accounts []model.Account, now time.Time, summary *TickSummary) error {
	var changed []model.Account
	days := map[int64]string{}
	s.mu.Lock()
	for _, a := range accounts {
		day := ledger.LocalDay(a, now).Format(time.DateOnly)
		if s.lastDays[a.ID] != day {
			changed = append(changed, a)
		}
		days[a.ID] = day
	}
	s.mu.Unlock()
	if len(changed) == 0 {
		return nil
	}

	if err := s.ledger.Rollover(ctx, changed, now); err != nil {
		return fmt.Errorf("rolling over usage: %w", err)
	}
	bs, err := s.poller.BackfillChats(ctx, changed)
	summary.Backfill = &bs
	if err != nil {
		return fmt.Errorf("backfilling chat ids: %w", err)
	}
	s.mu.Lock()
	for id, day := range days {
		s.lastDays[id] = day
	}
	s.mu.Unlock()
	slog.InfoContext(ctx, "daily usage rolled over", "accounts", len(changed))
	return nil
}

// runBatch executes one page of due leads on the bounded pool. Campaigns and
// accounts are resolved before fan-out so workers only read the caches.
func (s *Scheduler) runBatch(ctx context.Context, leads []model.Lead, accounts map[int64]model.Account, campaigns map[int64]*model.Campaign, now time.Time, summary *TickSummary) error {
	type job struct {
		lead     model.Lead
		campaign model.Campaign
		account  model.Account
	}
	jobs := make([]job, 0, len(leads))
	for _, lead := range leads {
		campaign, ok := campaigns[lead.CampaignID]
		if !ok {
			c, err := s.stores.Campaigns().GetByID(ctx, lead.CampaignID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("loading campaign %d: %w", lead.CampaignID, err)
			}
			campaigns[lead.CampaignID] = c
			campaign = c
		}
		account, ok := accounts[lead.AccountID]
		if campaign == nil || campaign.Status != model.CampaignStatusActive || !ok {
			summary.Skipped++
			continue
		}
		jobs = append(jobs, job{lead: lead, campaign: *campaign, account: account})
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.PoolSize)
	for _, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		if s.stopping() {
			mu.Lock()
			summary.Stopped = true
			mu.Unlock()
			break
		}
		g.Go(func() error {
			if s.stopping() {
				mu.Lock()
				summary.Stopped = true
				mu.Unlock()
				return nil
			}
			res, panicked, err := s.executeSafe(gctx, j.lead, j.campaign, j.account, now)
			mu.Lock()
			defer mu.Unlock()
			summary.Leads++
			if panicked {
				summary.Panics++
				return nil
			}
			if err != nil {
				return fmt.Errorf("executing lead %d: %w", j.lead.ID, err)
			}
			summary.Outcomes[res.Outcome]++
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) executeSafe(ctx context.Context, lead model.Lead, campaign model.Campaign, account model.Account, now time.Time) (res sequence.Result, panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in lead execution",
				"panic", r,
				"lead_id", lead.ID)
			panicked = true
		}
	}()
	res, err = s.executor.Execute(ctx, lead, campaign, account, now)
	return res, false, err
}

// Status reports the loop state and today's usage per connected account.
func (s *Scheduler) Status(ctx context.Context) (*Status, error) {
	s.mu.Lock()
	st := &Status{Running: s.running, LastTick: s.lastTick}
	if s.running {
		next := s.nextTick
		st.NextTickAt = &next
	}
	s.mu.Unlock()

	accounts, err := s.stores.Accounts().ListConnected(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	now := s.now()
	st.Accounts = make([]AccountUsage, 0, len(accounts))
	for _, a := range accounts {
		usage, err := s.ledger.Usage(ctx, a, now)
		if err != nil {
			return nil, err
		}
		st.Accounts = append(st.Accounts, AccountUsage{
			AccountID:         a.ID,
			ProviderAccountID: a.ProviderAccountID,
			Usage:             usage,
		})
	}
	return st, nil
}

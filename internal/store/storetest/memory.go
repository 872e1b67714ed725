// Package storetest provides an in-memory store.Provider with the same
// conditional-update and dedupe semantics as the Postgres stores.
package storetest

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"cadence.app/outreach/internal/model"
	"cadence.app/outreach/internal/store"
)

type usageKey struct {
	accountID int64
	day       string
	kind      model.ActionKind
}

type eventKey struct {
	leadID int64
	key    string
}

// Memory is safe for concurrent use. WithTx serializes transactions and
// restores the previous state when fn fails.
type Memory struct {
	// ListDueErr, when set, is returned by Leads().ListDue.
	ListDueErr error

	mu            sync.Mutex
	txMu          sync.Mutex
	nextID        atomic.Int64
	leads         map[int64]model.Lead
	campaigns     map[int64]model.Campaign
	accounts      map[int64]model.Account
	events        []model.Event
	eventKeys     map[eventKey]struct{}
	usage         map[usageKey]model.RateUsage
	webhookEvents map[int64]model.WebhookEvent
}

var (
	_ store.Provider = (*Memory)(nil)
	_ store.TxRunner = (*Memory)(nil)
)

func NewMemory() *Memory {
	m := &Memory{
		leads:         map[int64]model.Lead{},
		campaigns:     map[int64]model.Campaign{},
		accounts:      map[int64]model.Account{},
		eventKeys:     map[eventKey]struct{}{},
		usage:         map[usageKey]model.RateUsage{},
		webhookEvents: map[int64]model.WebhookEvent{},
	}
	m.nextID.Store(1000)
	return m
}

func (m *Memory) newID() int64 {
	return m.nextID.Add(1)
}

// PutAccount, PutCampaign and PutLead seed fixtures. A zero ID is assigned.

func (m *Memory) PutAccount(a model.Account) model.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == 0 {
		a.ID = m.newID()
	}
	if a.Status == "" {
		a.Status = model.AccountStatusConnected
	}
	m.accounts[a.ID] = a
	return a
}

func (m *Memory) PutCampaign(c model.Campaign) model.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = m.newID()
	}
	m.campaigns[c.ID] = c
	return c
}

func (m *Memory) PutLead(l model.Lead) model.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == 0 {
		l.ID = m.newID()
	}
	if l.Status == "" {
		l.Status = model.LeadStatusPendingInvite
	}
	m.leads[l.ID] = l
	return l
}

// Lead returns a copy of the stored lead.
func (m *Memory) Lead(id int64) model.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leads[id]
}

// EventsFor returns the events recorded for a lead in insertion order.
func (m *Memory) EventsFor(leadID int64) []model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Event
	for _, e := range m.events {
		if e.LeadID == leadID {
			out = append(out, e)
		}
	}
	return out
}

// Usage returns the counter for (account, day of t, kind).
func (m *Memory) Usage(accountID int64, t time.Time, kind model.ActionKind) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage[usageKey{accountID, t.Format(time.DateOnly), kind}].Count
}

func (m *Memory) WebhookEvent(id int64) model.WebhookEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.webhookEvents[id]
}

func (m *Memory) WithTx(ctx context.Context, fn func(stores store.Provider) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	leads         map[int64]model.Lead
	accounts      map[int64]model.Account
	events        []model.Event
	eventKeys     map[eventKey]struct{}
	usage         map[usageKey]model.RateUsage
	webhookEvents map[int64]model.WebhookEvent
}

func (m *Memory) snapshot() snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshot{
		leads:         cloneMap(m.leads),
		accounts:      cloneMap(m.accounts),
		events:        append([]model.Event(nil), m.events...),
		eventKeys:     cloneMap(m.eventKeys),
		usage:         cloneMap(m.usage),
		webhookEvents: cloneMap(m.webhookEvents),
	}
}

func (m *Memory) restore(s snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads = s.leads
	m.accounts = s.accounts
	m.events = s.events
	m.eventKeys = s.eventKeys
	m.usage = s.usage
	m.webhookEvents = s.webhookEvents
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *Memory) Leads() store.LeadStore                 { return leadStore{m} }
func (m *Memory) Events() store.EventStore               { return eventStore{m} }
func (m *Memory) RateUsage() store.RateUsageStore        { return rateUsageStore{m} }
func (m *Memory) Accounts() store.AccountStore           { return accountStore{m} }
func (m *Memory) Campaigns() store.CampaignStore         { return campaignStore{m} }
func (m *Memory) WebhookEvents() store.WebhookEventStore { return webhookEventStore{m} }

type leadStore struct{ m *Memory }

func (s leadStore) GetByID(_ context.Context, id int64) (*model.Lead, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	l, ok := s.m.leads[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &l, nil
}

func (s leadStore) ListDue(_ context.Context, now time.Time, afterID int64, limit int32) ([]model.Lead, error) {
	if s.m.ListDueErr != nil {
		return nil, s.m.ListDueErr
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []model.Lead
	for _, l := range s.m.leads {
		if l.ID <= afterID {
			continue
		}
		switch l.Status {
		case model.LeadStatusPendingInvite, model.LeadStatusConnected, model.LeadStatusMessaged:
		default:
			continue
		}
		if c, ok := s.m.campaigns[l.CampaignID]; !ok || c.Status != model.CampaignStatusActive {
			continue
		}
		if l.RetryAfter != nil && l.RetryAfter.After(now) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if int32(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s leadStore) find(match func(model.Lead) bool) (*model.Lead, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var found *model.Lead
	for _, l := range s.m.leads {
		if !match(l) {
			continue
		}
		if found == nil || l.CreatedAt.After(found.CreatedAt) || (l.CreatedAt.Equal(found.CreatedAt) && l.ID > found.ID) {
			l := l
			found = &l
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (s leadStore) FindByMemberID(_ context.Context, accountID int64, memberID string) (*model.Lead, error) {
	return s.find(func(l model.Lead) bool { return l.AccountID == accountID && l.MemberID() == memberID && memberID != "" })
}

func (s leadStore) FindByPublicIdentifier(_ context.Context, accountID int64, publicIdentifier string) (*model.Lead, error) {
	return s.find(func(l model.Lead) bool { return l.AccountID == accountID && l.PublicIdentifier == publicIdentifier })
}

func (s leadStore) FindByChatID(_ context.Context, accountID int64, chatID string) (*model.Lead, error) {
	return s.find(func(l model.Lead) bool { return l.AccountID == accountID && l.Chat() == chatID && chatID != "" })
}

// update applies fn to the lead when cond holds and reports whether it did.
func (s leadStore) update(id int64, cond func(model.Lead) bool, fn func(*model.Lead)) bool {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	l, ok := s.m.leads[id]
	if !ok || !cond(l) {
		return false
	}
	fn(&l)
	l.UpdatedAt = time.Now()
	s.m.leads[id] = l
	return true
}

func notHalted(l model.Lead) bool { return !l.Status.Halted() }

func (s leadStore) Advance(_ context.Context, id int64, from, to int32, status model.LeadStatus, sentAt time.Time) (bool, error) {
	return s.update(id, func(l model.Lead) bool {
		return notHalted(l) && l.CurrentStep == from && to > l.CurrentStep
	}, func(l *model.Lead) {
		l.CurrentStep = to
		l.Status = status
		l.LastStepSentAt = &sentAt
		l.FailureCount = 0
		l.RetryAfter = nil
		l.LastError = nil
	}), nil
}

func (s leadStore) EnterAt(_ context.Context, id int64, from, to int32, status model.LeadStatus) (bool, error) {
	return s.update(id, func(l model.Lead) bool {
		return notHalted(l) && l.CurrentStep == from && to > l.CurrentStep
	}, func(l *model.Lead) {
		l.CurrentStep = to
		l.Status = status
	}), nil
}

func (s leadStore) MarkCompleted(_ context.Context, id int64) (bool, error) {
	return s.update(id, notHalted, func(l *model.Lead) { l.Status = model.LeadStatusCompleted }), nil
}

func (s leadStore) MarkError(_ context.Context, id int64, reason string) (bool, error) {
	return s.update(id, notHalted, func(l *model.Lead) {
		l.Status = model.LeadStatusError
		l.LastError = &reason
	}), nil
}

func (s leadStore) RecordFailure(_ context.Context, id int64, failureCount int32, retryAfter time.Time, reason string) (bool, error) {
	return s.update(id, notHalted, func(l *model.Lead) {
		l.FailureCount = failureCount
		l.RetryAfter = &retryAfter
		l.LastError = &reason
	}), nil
}

func (s leadStore) MarkConnected(_ context.Context, id int64, at time.Time) (bool, error) {
	return s.update(id, func(l model.Lead) bool { return l.Status == model.LeadStatusInviteSent }, func(l *model.Lead) {
		l.Status = model.LeadStatusConnected
		l.ConnectedAt = &at
	}), nil
}

func (s leadStore) MarkResponded(_ context.Context, id int64, at time.Time) (bool, error) {
	return s.update(id, func(l model.Lead) bool { return l.Status != model.LeadStatusResponded }, func(l *model.Lead) {
		l.Status = model.LeadStatusResponded
		l.RespondedAt = &at
	}), nil
}

func (s leadStore) SetMemberID(_ context.Context, id int64, memberID string) error {
	s.update(id, func(model.Lead) bool { return true }, func(l *model.Lead) { l.ProviderMemberID = &memberID })
	return nil
}

func (s leadStore) SetChatID(_ context.Context, id int64, chatID string) error {
	s.update(id, func(model.Lead) bool { return true }, func(l *model.Lead) { l.ChatID = &chatID })
	return nil
}

type eventStore struct{ m *Memory }

func (s eventStore) Append(_ context.Context, event *model.Event) (*model.Event, bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if k := event.DedupeKey(); k != nil {
		key := eventKey{event.LeadID, *k}
		if _, dup := s.m.eventKeys[key]; dup {
			return nil, false, nil
		}
		s.m.eventKeys[key] = struct{}{}
	}
	if event.ID == 0 {
		event.ID = s.m.newID()
	}
	stored := *event
	s.m.events = append(s.m.events, stored)
	return &stored, true, nil
}

func (s eventStore) ListByLead(_ context.Context, leadID int64) ([]model.Event, error) {
	return s.m.EventsFor(leadID), nil
}

type rateUsageStore struct{ m *Memory }

func (s rateUsageStore) Reserve(_ context.Context, accountID int64, day time.Time, kind model.ActionKind, limit int32) (int32, bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	key := usageKey{accountID, day.Format(time.DateOnly), kind}
	u, ok := s.m.usage[key]
	if !ok {
		u = model.RateUsage{ID: s.m.newID(), AccountID: accountID, Day: day, ActionKind: kind}
	}
	if u.Count >= limit {
		return u.Count, false, nil
	}
	u.Count++
	u.UpdatedAt = time.Now()
	s.m.usage[key] = u
	return u.Count, true, nil
}

func (s rateUsageStore) Ensure(_ context.Context, accountID int64, day time.Time, kind model.ActionKind) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	key := usageKey{accountID, day.Format(time.DateOnly), kind}
	if _, ok := s.m.usage[key]; !ok {
		s.m.usage[key] = model.RateUsage{ID: s.m.newID(), AccountID: accountID, Day: day, ActionKind: kind}
	}
	return nil
}

func (s rateUsageStore) ListForDay(_ context.Context, accountID int64, day time.Time) ([]model.RateUsage, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	d := day.Format(time.DateOnly)
	var out []model.RateUsage
	for k, u := range s.m.usage {
		if k.accountID == accountID && k.day == d {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActionKind < out[j].ActionKind })
	return out, nil
}

func (s rateUsageStore) PruneBefore(_ context.Context, day time.Time) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cutoff := day.Format(time.DateOnly)
	var n int64
	for k := range s.m.usage {
		if k.day < cutoff {
			delete(s.m.usage, k)
			n++
		}
	}
	return n, nil
}

type accountStore struct{ m *Memory }

func (s accountStore) GetByID(_ context.Context, id int64) (*model.Account, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s accountStore) GetByProviderID(_ context.Context, providerAccountID string) (*model.Account, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, a := range s.m.accounts {
		if a.ProviderAccountID == providerAccountID {
			return &a, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s accountStore) ListConnected(_ context.Context) ([]model.Account, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []model.Account
	for _, a := range s.m.accounts {
		if a.Status == model.AccountStatusConnected {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s accountStore) UpdateStatus(_ context.Context, providerAccountID string, status model.AccountStatus) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for id, a := range s.m.accounts {
		if a.ProviderAccountID == providerAccountID {
			a.Status = status
			s.m.accounts[id] = a
			return true, nil
		}
	}
	return false, nil
}

func (s accountStore) SetOwnMemberID(_ context.Context, id int64, memberID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if a, ok := s.m.accounts[id]; ok {
		a.OwnMemberID = &memberID
		s.m.accounts[id] = a
	}
	return nil
}

type campaignStore struct{ m *Memory }

func (s campaignStore) GetByID(_ context.Context, id int64) (*model.Campaign, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.campaigns[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

type webhookEventStore struct{ m *Memory }

func (s webhookEventStore) CreateOrGet(_ context.Context, event *model.WebhookEvent) (*model.WebhookEvent, bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.webhookEvents {
		if existing.DedupeKey == event.DedupeKey {
			return &existing, false, nil
		}
	}
	stored := *event
	if stored.ID == 0 {
		stored.ID = s.m.newID()
	}
	stored.CreatedAt = time.Now()
	s.m.webhookEvents[stored.ID] = stored
	return &stored, true, nil
}

func (s webhookEventStore) GetByID(_ context.Context, id int64) (*model.WebhookEvent, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	e, ok := s.m.webhookEvents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

func (s webhookEventStore) MarkProcessed(_ context.Context, id int64, resolution string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if e, ok := s.m.webhookEvents[id]; ok {
		now := time.Now()
		e.ProcessedAt = &now
		e.Resolution = &resolution
		e.ProcessingError = nil
		s.m.webhookEvents[id] = e
	}
	return nil
}

func (s webhookEventStore) MarkFailed(_ context.Context, id int64, errMsg string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if e, ok := s.m.webhookEvents[id]; ok {
		e.ProcessingError = &errMsg
		s.m.webhookEvents[id] = e
	}
	return nil
}

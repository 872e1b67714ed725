// Package sequence advances leads through their campaign steps, one due
// step per call.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cadence.app/outreach/common/logger"
	"cadence.app/outreach/internal/gateway"
	"cadence.app/outreach/internal/model"
	"cadence.app/outreach/internal/schedule"
	"cadence.app/outreach/internal/store"
)

// Outcome is what one Execute call did to a lead.
type Outcome string

const (
	OutcomeHalted             Outcome = "skipped_halted"
	OutcomeCompleted          Outcome = "completed"
	OutcomeAwaitingConnection Outcome = "awaiting_connection"
	OutcomeNotDue             Outcome = "not_due"
	OutcomeBackingOff         Outcome = "backing_off"
	OutcomeRateLimited        Outcome = "rate_limited"
	OutcomeSent               Outcome = "sent"
	OutcomeTransientFailure   Outcome = "transient_failure"
	OutcomePermanentFailure   Outcome = "permanent_failure"
	OutcomeInvalidTemplate    Outcome = "invalid_template"
)

type Result struct {
	// NextAt is set for OutcomeNotDue and OutcomeBackingOff.
	NextAt  time.Time
	Err     error
	Outcome Outcome
}

// Reserver is the slice of the rate ledger the executor needs.
type Reserver interface {
	TryReserve(ctx context.Context, account model.Account, kind model.ActionKind, now time.Time) (bool, error)
}

type Config struct {
	// Window supplies the hours used when an account's own are invalid.
	Window               schedule.Window
	BackoffBase          time.Duration
	BackoffMax           time.Duration
	MaxTransientFailures int32
	InviteNoteLimit      int
}

const defaultInviteNoteLimit = 300

type Executor struct {
	stores  store.Provider
	tx      store.TxRunner
	ledger  Reserver
	gateway gateway.Gateway
	cfg     Config
}

func NewExecutor(stores store.Provider, tx store.TxRunner, ledger Reserver, gw gateway.Gateway, cfg Config) *Executor {
	if cfg.InviteNoteLimit <= 0 {
		cfg.InviteNoteLimit = defaultInviteNoteLimit
	}
	if cfg.MaxTransientFailures <= 0 {
		cfg.MaxTransientFailures = 5
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 5 * time.Minute
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = cfg.BackoffBase
	}
	if cfg.Window.Location == nil {
		cfg.Window = schedule.Window{Location: time.UTC, StartHour: schedule.DefaultStartHour, EndHour: schedule.DefaultEndHour}
	}
	return &Executor{stores: stores, tx: tx, ledger: ledger, gateway: gw, cfg: cfg}
}

// Execute attempts the lead's current step. Provider and template failures
// are reported through the Result; the returned error is reserved for
// storage failures.
func (e *Executor) Execute(ctx context.Context, lead model.Lead, campaign model.Campaign, account model.Account, now time.Time) (Result, error) {
	sc := logger.StartSpan(ctx, "sequence.execute", trace.WithAttributes(
		attribute.Int64("lead_id", lead.ID),
		attribute.Int("step", int(lead.CurrentStep)),
	))
	defer sc.End()

	res, err := e.execute(sc.Context(), lead, campaign, account, now)
	sc.SetAttributes(attribute.String("outcome", string(res.Outcome)))
	sc.RecordError(err)
	return res, err
}

func (e *Executor) execute(ctx context.Context, lead model.Lead, campaign model.Campaign, account model.Account, now time.Time) (Result, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		LeadID:     logger.Ptr(lead.ID),
		CampaignID: logger.Ptr(campaign.ID),
		AccountID:  logger.Ptr(account.ID),
	})

	if lead.Status.Halted() {
		return Result{Outcome: OutcomeHalted}, nil
	}
	if int(lead.CurrentStep) >= len(campaign.Steps) {
		return e.complete(ctx, lead, campaign, now)
	}

	step := campaign.Steps[lead.CurrentStep]

	// Already-connected leads never get an invite: move them to the next
	// message step without a send and without stamping last_step_sent_at.
	if step.Action == model.StepActionConnectionRequest && (lead.FirstDegree || lead.Status.Connected()) {
		next, ok, err := e.skipInvite(ctx, lead, campaign)
		if err != nil || !ok {
			return Result{Outcome: OutcomeHalted}, err
		}
		if int(next.CurrentStep) >= len(campaign.Steps) {
			return e.complete(ctx, next, campaign, now)
		}
		lead = next
		step = campaign.Steps[lead.CurrentStep]
	}

	if step.Action == model.StepActionMessage && !lead.FirstDegree && !lead.Status.Connected() {
		if lead.Status == model.LeadStatusInviteSent {
			return Result{Outcome: OutcomeAwaitingConnection}, nil
		}
		reason := "message step reached before the lead is connected"
		return e.failPermanently(ctx, lead, step, reason, now, OutcomePermanentFailure, nil)
	}

	if lead.RetryAfter != nil && now.Before(*lead.RetryAfter) {
		return Result{Outcome: OutcomeBackingOff, NextAt: *lead.RetryAfter}, nil
	}

	window, ok := schedule.WindowFor(account, e.cfg.Window)
	if !ok {
		slog.DebugContext(ctx, "account working window invalid or unset, using fallback",
			"timezone", account.Timezone)
	}
	timing := step
	if lead.FirstDegree && lead.LastStepSentAt == nil {
		timing.DelayWorkingDays, timing.DelayMinutes = 0, 0
	}
	if due, next := schedule.Due(lead, timing, window, now); !due {
		return Result{Outcome: OutcomeNotDue, NextAt: next}, nil
	}

	text, err := Render(step.Template, lead, campaign)
	if err != nil {
		return e.failPermanently(ctx, lead, step, err.Error(), now, OutcomeInvalidTemplate, err)
	}

	target, err := e.resolveTarget(ctx, &lead, step, account)
	if err != nil {
		if isStorageErr(err) {
			return Result{}, err
		}
		return e.handleGatewayFailure(ctx, lead, step, err, now)
	}

	// The lead was selected at the start of the batch; a reply or a
	// concurrent tick may have moved it since.
	current, err := e.stores.Leads().GetByID(ctx, lead.ID)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Outcome: OutcomeHalted}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("reloading lead %d: %w", lead.ID, err)
	}
	if current.Status.Halted() || current.Status != lead.Status || current.CurrentStep != lead.CurrentStep {
		slog.InfoContext(ctx, "lead changed since selection, skipping send",
			"status", current.Status,
			"step", current.CurrentStep)
		return Result{Outcome: OutcomeHalted}, nil
	}

	kind := actionKind(lead, step)
	reserved, err := e.ledger.TryReserve(ctx, account, kind, now)
	if err != nil {
		return Result{}, err
	}
	if !reserved {
		slog.DebugContext(ctx, "daily limit reached", "kind", kind)
		return Result{Outcome: OutcomeRateLimited}, nil
	}

	var ack *gateway.Ack
	switch step.Action {
	case model.StepActionConnectionRequest:
		text = truncateNote(text, e.cfg.InviteNoteLimit)
		ack, err = e.gateway.SendConnectionRequest(ctx, account.ProviderAccountID, target.MemberID, text)
	default:
		ack, err = e.gateway.SendMessage(ctx, account.ProviderAccountID, target, text)
	}
	if err != nil {
		return e.handleGatewayFailure(ctx, lead, step, err, now)
	}

	if err := e.recordSent(ctx, lead, step, ack, text, now); err != nil {
		return Result{}, err
	}
	slog.InfoContext(ctx, "sequence step sent",
		"step", lead.CurrentStep,
		"action", step.Action,
		"kind", kind)
	return Result{Outcome: OutcomeSent}, nil
}

func actionKind(lead model.Lead, step model.Step) model.ActionKind {
	if step.Action == model.StepActionConnectionRequest {
		return model.ActionKindInvite
	}
	if lead.FirstDegree {
		return model.ActionKindFirstDegreeMessage
	}
	return model.ActionKindMessage
}

// skipInvite moves the lead from a connection_request step to the next
// message step (or past the end) and reports the updated lead.
func (e *Executor) skipInvite(ctx context.Context, lead model.Lead, campaign model.Campaign) (model.Lead, bool, error) {
	next := int32(len(campaign.Steps))
	for i := int(lead.CurrentStep) + 1; i < len(campaign.Steps); i++ {
		if campaign.Steps[i].Action == model.StepActionMessage {
			next = int32(i)
			break
		}
	}

	moved, err := e.stores.Leads().EnterAt(ctx, lead.ID, lead.CurrentStep, next, model.LeadStatusConnected)
	if err != nil {
		return lead, false, fmt.Errorf("entering lead %d at step %d: %w", lead.ID, next, err)
	}
	if !moved {
		slog.InfoContext(ctx, "lead changed concurrently, skipping", "step", lead.CurrentStep)
		return lead, false, nil
	}

	slog.InfoContext(ctx, "connected lead entered at message step",
		"from_step", lead.CurrentStep,
		"to_step", next)
	lead.CurrentStep = next
	lead.Status = model.LeadStatusConnected
	return lead, true, nil
}

func (e *Executor) resolveTarget(ctx context.Context, lead *model.Lead, step model.Step, account model.Account) (gateway.Target, error) {
	target := gateway.Target{ChatID: lead.Chat(), MemberID: lead.MemberID()}
	if target.MemberID != "" || (step.Action == model.StepActionMessage && target.ChatID != "") {
		return target, nil
	}

	profile, err := e.gateway.ResolveProfile(ctx, account.ProviderAccountID, lead.PublicIdentifier)
	if err != nil {
		return target, err
	}
	if err := e.stores.Leads().SetMemberID(ctx, lead.ID, profile.MemberID); err != nil {
		return target, storageErr{fmt.Errorf("saving member id for lead %d: %w", lead.ID, err)}
	}
	lead.ProviderMemberID = &profile.MemberID
	target.MemberID = profile.MemberID
	return target, nil
}

func (e *Executor) recordSent(ctx context.Context, lead model.Lead, step model.Step, ack *gateway.Ack, text string, now time.Time) error {
	status := model.LeadStatusMessaged
	var meta model.EventMeta
	switch step.Action {
	case model.StepActionConnectionRequest:
		status = model.LeadStatusInviteSent
		meta = model.ConnectionRequestSentMeta{Step: lead.CurrentStep, InvitationID: ack.ID, Message: text}
	default:
		meta = model.MessageSentMeta{
			Step:              lead.CurrentStep,
			ChatID:            ack.ChatID,
			ProviderMessageID: ack.ID,
			Text:              text,
			FirstDegree:       lead.FirstDegree,
		}
	}

	return e.tx.WithTx(ctx, func(stores store.Provider) error {
		advanced, err := stores.Leads().Advance(ctx, lead.ID, lead.CurrentStep, lead.CurrentStep+1, status, now)
		if err != nil {
			return fmt.Errorf("advancing lead %d: %w", lead.ID, err)
		}
		if !advanced {
			// The send happened; the log still records it.
			slog.WarnContext(ctx, "lead changed during send, state left as is", "step", lead.CurrentStep)
		}
		if ack.ChatID != "" && ack.ChatID != lead.Chat() {
			if err := stores.Leads().SetChatID(ctx, lead.ID, ack.ChatID); err != nil {
				return fmt.Errorf("saving chat id for lead %d: %w", lead.ID, err)
			}
		}
		if _, _, err := stores.Events().Append(ctx, model.NewEvent(lead.ID, now, meta)); err != nil {
			return fmt.Errorf("appending %s event: %w", model.Event{Meta: meta}.Type(), err)
		}
		return nil
	})
}

func (e *Executor) complete(ctx context.Context, lead model.Lead, campaign model.Campaign, now time.Time) (Result, error) {
	err := e.tx.WithTx(ctx, func(stores store.Provider) error {
		done, err := stores.Leads().MarkCompleted(ctx, lead.ID)
		if err != nil {
			return fmt.Errorf("completing lead %d: %w", lead.ID, err)
		}
		if !done {
			return nil
		}
		_, _, err = stores.Events().Append(ctx, model.NewEvent(lead.ID, now, model.SequenceCompletedMeta{Steps: int32(len(campaign.Steps))}))
		return err
	})
	if err != nil {
		return Result{}, err
	}
	slog.InfoContext(ctx, "sequence completed")
	return Result{Outcome: OutcomeCompleted}, nil
}

func (e *Executor) handleGatewayFailure(ctx context.Context, lead model.Lead, step model.Step, cause error, now time.Time) (Result, error) {
	if !gateway.IsTransient(cause) {
		return e.failPermanently(ctx, lead, step, cause.Error(), now, OutcomePermanentFailure, cause)
	}

	attempt := lead.FailureCount + 1
	if attempt >= e.cfg.MaxTransientFailures {
		reason := fmt.Sprintf("giving up after %d transient failures: %v", attempt, cause)
		return e.failPermanently(ctx, lead, step, reason, now, OutcomePermanentFailure, cause)
	}

	retryAt := now.Add(retryDelay(e.cfg.BackoffBase, e.cfg.BackoffMax, attempt))
	err := e.tx.WithTx(ctx, func(stores store.Provider) error {
		recorded, err := stores.Leads().RecordFailure(ctx, lead.ID, attempt, retryAt, cause.Error())
		if err != nil {
			return fmt.Errorf("recording failure for lead %d: %w", lead.ID, err)
		}
		if !recorded {
			return nil
		}
		_, _, err = stores.Events().Append(ctx, model.NewEvent(lead.ID, now, model.StepFailedMeta{
			Step:      lead.CurrentStep,
			Reason:    cause.Error(),
			Attempt:   attempt,
			Transient: true,
		}))
		return err
	})
	if err != nil {
		return Result{}, err
	}

	slog.WarnContext(ctx, "sequence step failed, will retry",
		"step", lead.CurrentStep,
		"action", step.Action,
		"attempt", attempt,
		"retry_at", retryAt,
		"error", cause)
	return Result{Outcome: OutcomeTransientFailure, NextAt: retryAt, Err: cause}, nil
}

func (e *Executor) failPermanently(ctx context.Context, lead model.Lead, step model.Step, reason string, now time.Time, outcome Outcome, cause error) (Result, error) {
	err := e.tx.WithTx(ctx, func(stores store.Provider) error {
		marked, err := stores.Leads().MarkError(ctx, lead.ID, reason)
		if err != nil {
			return fmt.Errorf("marking lead %d as error: %w", lead.ID, err)
		}
		if !marked {
			return nil
		}
		_, _, err = stores.Events().Append(ctx, model.NewEvent(lead.ID, now, model.StepFailedMeta{
			Step:    lead.CurrentStep,
			Reason:  reason,
			Attempt: lead.FailureCount + 1,
		}))
		return err
	})
	if err != nil {
		return Result{}, err
	}

	slog.WarnContext(ctx, "lead moved to error",
		"step", lead.CurrentStep,
		"action", step.Action,
		"reason", logger.Truncate(reason, 200))
	return Result{Outcome: outcome, Err: cause}, nil
}

type storageErr struct{ error }

func (s storageErr) Unwrap() error { return s.error }

func isStorageErr(err error) bool {
	var s storageErr
	return errors.As(err, &s)
}

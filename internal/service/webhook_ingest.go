package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"cadence.app/outreach/common/id"
	"cadence.app/outreach/internal/model"
	"cadence.app/outreach/internal/queue"
	"cadence.app/outreach/internal/store"
)

type WebhookIngestParams struct {
	Kind              model.WebhookKind
	ProviderAccountID string
	// ExternalID is the provider's id for the underlying object (message id
	// for messages). It makes the dedupe key stable across redeliveries.
	ExternalID string
	Payload    json.RawMessage
	TraceID    *string
}

type WebhookIngestResult struct {
	Event      *model.WebhookEvent
	Enqueued   bool
	Duplicated bool
	// Inline is true when the queue was unavailable and the event was
	// resolved during the request.
	Inline bool
	// Redispatched marks a redelivery of an event that failed earlier and
	// was handed to the worker again.
	Redispatched bool
}

type WebhookIngestService interface {
	Ingest(ctx context.Context, params WebhookIngestParams) (*WebhookIngestResult, error)
}

type webhookIngestService struct {
	events    store.WebhookEventStore
	queue     queue.Producer
	processor WebhookProcessor
	logger    *slog.Logger
}

// NewWebhookIngestService stores inbound webhooks and hands them to the
// worker. processor, when set, resolves an event in-process if the queue
// rejects it.
func NewWebhookIngestService(events store.WebhookEventStore, q queue.Producer, processor WebhookProcessor, logger *slog.Logger) WebhookIngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &webhookIngestService{
		events:    events,
		queue:     q,
		processor: processor,
		logger:    logger,
	}
}

func (s *webhookIngestService) Ingest(ctx context.Context, params WebhookIngestParams) (*WebhookIngestResult, error) {
	if params.Kind == "" {
		return nil, fmt.Errorf("webhook kind is required")
	}

	dedupeKey, err := computeDedupeKey(params)
	if err != nil {
		return nil, err
	}

	var account *string
	if params.ProviderAccountID != "" {
		account = &params.ProviderAccountID
	}
	event, created, err := s.events.CreateOrGet(ctx, &model.WebhookEvent{
		ID:                id.New(),
		Kind:              params.Kind,
		ProviderAccountID: account,
		Payload:           params.Payload,
		DedupeKey:         dedupeKey,
	})
	if err != nil {
		return nil, fmt.Errorf("storing webhook event: %w", err)
	}

	result := &WebhookIngestResult{Event: event, Duplicated: !created}
	if !created {
		if !stranded(event) {
			s.logger.InfoContext(ctx, "duplicate webhook deduped", "webhook_event_id", event.ID, "kind", params.Kind, "dedupe_key", dedupeKey)
			return result, nil
		}
		s.logger.WarnContext(ctx, "redelivered webhook never resolved, dispatching again", "webhook_event_id", event.ID, "kind", params.Kind)
		result.Redispatched = true
	}

	if err := s.dispatch(ctx, event, params, result); err != nil {
		return nil, err
	}
	return result, nil
}

// stranded reports whether a stored event failed and has no delivery in
// flight that would finish it.
func stranded(event *model.WebhookEvent) bool {
	return event.ProcessedAt == nil && event.ProcessingError != nil
}

// dispatch enqueues the event, falling back to resolving it in-process. When
// neither works the event is marked failed and an error is returned so the
// provider redelivers.
func (s *webhookIngestService) dispatch(ctx context.Context, event *model.WebhookEvent, params WebhookIngestParams, result *WebhookIngestResult) error {
	err := s.queue.Enqueue(ctx, queue.WebhookMessage{
		WebhookEventID: event.ID,
		Kind:           string(params.Kind),
		TraceID:        params.TraceID,
		Attempt:        1,
	})
	if err == nil {
		result.Enqueued = true
		return nil
	}

	s.logger.ErrorContext(ctx, "enqueue failed, processing webhook inline", "webhook_event_id", event.ID, "error", err)
	if s.processor != nil {
		perr := s.processor.Process(ctx, event.ID)
		if perr == nil {
			result.Inline = true
			return nil
		}
		err = fmt.Errorf("inline processing after enqueue failure: %w", errors.Join(err, perr))
	}

	if markErr := s.events.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
		s.logger.ErrorContext(ctx, "failed to mark webhook event failed", "webhook_event_id", event.ID, "error", markErr)
	}
	return fmt.Errorf("dispatching webhook event %d: %w", event.ID, err)
}

func computeDedupeKey(params WebhookIngestParams) (string, error) {
	if params.ExternalID != "" {
		return fmt.Sprintf("%s:%s:%s", params.Kind, params.ProviderAccountID, params.ExternalID), nil
	}

	body := struct {
		Kind      model.WebhookKind `json:"kind"`
		AccountID string            `json:"account_id"`
		Payload   json.RawMessage   `json:"payload,omitempty"`
	}{
		Kind:      params.Kind,
		AccountID: params.ProviderAccountID,
		Payload:   params.Payload,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal dedupe payload: %w", err)
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", params.Kind, hex.EncodeToString(hash[:])), nil
}

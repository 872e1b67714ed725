package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"cadence.app/outreach/common/logger"
	"cadence.app/outreach/internal/http/dto"
	"cadence.app/outreach/internal/model"
	"cadence.app/outreach/internal/service"
)

const maxBodyBytes = 1 << 20

type Config struct {
	// Secret enables signature verification when non-empty.
	Secret          string
	SignatureHeader string
	TraceHeader     string
}

type ProviderWebhookHandler struct {
	ingest service.WebhookIngestService
	cfg    Config
}

func NewProviderWebhookHandler(ingest service.WebhookIngestService, cfg Config) *ProviderWebhookHandler {
	if cfg.SignatureHeader == "" {
		cfg.SignatureHeader = "X-Unipile-Signature"
	}
	return &ProviderWebhookHandler{ingest: ingest, cfg: cfg}
}

// HandleEvent stores the callback and acknowledges it. Resolution against
// leads happens in the worker, so the response never depends on whether a
// lead matched.
func (h *ProviderWebhookHandler) HandleEvent(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if h.cfg.Secret != "" && !validSignature(body, c.GetHeader(h.cfg.SignatureHeader), h.cfg.Secret) {
		slog.WarnContext(ctx, "rejected webhook with bad signature", "header", h.cfg.SignatureHeader)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var envelope dto.WebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		slog.WarnContext(ctx, "invalid webhook payload", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	kind, ok := envelope.Kind()
	if !ok {
		slog.InfoContext(ctx, "unhandled webhook event", "event", envelope.Event, "type", envelope.Type)
		c.JSON(http.StatusOK, dto.WebhookResponse{Status: "ignored"})
		return
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{EventType: logger.Ptr(string(kind))})

	params, err := h.ingestParams(kind, envelope)
	if err != nil {
		slog.WarnContext(ctx, "webhook payload could not be normalized", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if traceID := h.traceID(c); traceID != "" {
		params.TraceID = &traceID
	}

	result, err := h.ingest.Ingest(ctx, params)
	if err != nil {
		slog.ErrorContext(ctx, "failed to ingest webhook", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhook not accepted, retry later"})
		return
	}

	slog.InfoContext(ctx, "webhook accepted",
		"webhook_event_id", result.Event.ID,
		"provider_account_id", envelope.AccountID,
		"enqueued", result.Enqueued,
		"duplicated", result.Duplicated,
		"inline", result.Inline,
	)

	c.JSON(http.StatusOK, dto.WebhookResponse{
		Status:         "ok",
		Kind:           string(kind),
		WebhookEventID: result.Event.ID,
		Duplicated:     result.Duplicated,
	})
}

func (h *ProviderWebhookHandler) ingestParams(kind model.WebhookKind, envelope dto.WebhookEnvelope) (service.WebhookIngestParams, error) {
	params := service.WebhookIngestParams{Kind: kind, ProviderAccountID: envelope.AccountID}

	var payload any
	switch kind {
	case model.WebhookKindRelationAccepted:
		p := envelope.RelationAccepted()
		params.ExternalID = firstNonEmpty(p.MemberID, p.PublicIdentifier)
		payload = p
	case model.WebhookKindMessageReceived, model.WebhookKindMessageRead:
		p := envelope.MessageReceived()
		params.ExternalID = p.MessageID
		payload = p
	case model.WebhookKindAccountStatus:
		payload = envelope.AccountStatus()
	default:
		return params, errors.New("unsupported webhook kind")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return params, err
	}
	params.Payload = raw
	return params, nil
}

func (h *ProviderWebhookHandler) traceID(c *gin.Context) string {
	if h.cfg.TraceHeader != "" {
		if id := c.GetHeader(h.cfg.TraceHeader); id != "" {
			return id
		}
	}
	if spanCtx := trace.SpanContextFromContext(c.Request.Context()); spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// validSignature checks a "sha256=<hex>" HMAC of the raw body.
func validSignature(body []byte, header, secret string) bool {
	sig, ok := strings.CutPrefix(strings.TrimSpace(header), "sha256=")
	if !ok || sig == "" {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

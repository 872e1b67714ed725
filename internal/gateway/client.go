package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"cadence.app/outreach/core/config"
)

const (
	apiKeyHeader     = "X-API-KEY"
	relationsPerPage = 100
	maxResponseBytes = 1 << 20
)

// Client is the HTTP implementation of Gateway. Reads are retried on
// transport errors and 5xx. Writes are retried only when the provider
// reports it did not process the request (429, 503), so a send is never
// replayed after an ambiguous failure.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	reads   *retryablehttp.Client
	writes  *retryablehttp.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

var _ Gateway = (*Client)(nil)

func New(cfg config.GatewayConfig) *Client {
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: timeout,
		reads:   newRetryClient(cfg.RetryMax, timeout, retryablehttp.DefaultRetryPolicy),
		writes:  newRetryClient(cfg.RetryMax, timeout, retryUnprocessed),
		limiter: rate.NewLimiter(limit, burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "provider",
			MaxRequests: 1,
			Timeout:     cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			// A provider verdict on one lead says nothing about provider health.
			IsSuccessful: func(err error) bool {
				return err == nil || IsPermanent(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("gateway circuit breaker state changed",
					"breaker", name,
					"from", from.String(),
					"to", to.String())
			},
		}),
	}
}

func newRetryClient(retryMax int, timeout time.Duration, policy retryablehttp.CheckRetry) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.CheckRetry = policy
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = slog.Default()
	rc.HTTPClient.Timeout = timeout
	return rc
}

func retryUnprocessed(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil || resp == nil {
		return false, nil
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable, nil
}

type inviteRequest struct {
	ProviderID string `json:"provider_id"`
	AccountID  string `json:"account_id"`
	Message    string `json:"message,omitempty"`
}

type inviteResponse struct {
	InvitationID string `json:"invitation_id"`
}

func (c *Client) SendConnectionRequest(ctx context.Context, accountID, memberID, note string) (*Ack, error) {
	const op = "send_connection_request"
	if memberID == "" {
		return nil, &Error{Op: op, Class: Permanent, Detail: "member id is required"}
	}
	body, err := json.Marshal(inviteRequest{ProviderID: memberID, AccountID: accountID, Message: note})
	if err != nil {
		return nil, &Error{Op: op, Class: Permanent, Err: err}
	}

	var out inviteResponse
	if err := c.call(ctx, op, http.MethodPost, "/api/v1/users/invite", nil, body, "application/json", &out); err != nil {
		return nil, err
	}
	return &Ack{ID: out.InvitationID}, nil
}

type messageResponse struct {
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id"`
}

func (c *Client) SendMessage(ctx context.Context, accountID string, target Target, text string) (*Ack, error) {
	const op = "send_message"
	if strings.TrimSpace(text) == "" {
		return nil, &Error{Op: op, Class: Permanent, Detail: "message text is empty"}
	}

	var (
		path   string
		fields [][2]string
	)
	switch {
	case target.ChatID != "":
		path = "/api/v1/chats/" + url.PathEscape(target.ChatID) + "/messages"
		fields = [][2]string{{"text", text}}
	case target.MemberID != "":
		path = "/api/v1/chats"
		fields = [][2]string{{"account_id", accountID}, {"attendees_ids", target.MemberID}, {"text", text}}
	default:
		return nil, &Error{Op: op, Class: Permanent, Detail: "no chat or member to message"}
	}

	body, contentType, err := multipartBody(fields)
	if err != nil {
		return nil, &Error{Op: op, Class: Permanent, Err: err}
	}

	var out messageResponse
	if err := c.call(ctx, op, http.MethodPost, path, nil, body, contentType, &out); err != nil {
		return nil, err
	}
	chatID := out.ChatID
	if chatID == "" {
		chatID = target.ChatID
	}
	return &Ack{ID: out.MessageID, ChatID: chatID}, nil
}

type relationsBody struct {
	Items  []Relation `json:"items"`
	Cursor *string    `json:"cursor"`
}

// relationsResponse accepts both the flat list and the older shape that
// nests it under "relations".
type relationsResponse struct {
	relationsBody
	Relations *relationsBody `json:"relations"`
}

func (c *Client) ListRelations(ctx context.Context, accountID, cursor string) (*RelationsPage, error) {
	q := url.Values{}
	q.Set("account_id", accountID)
	q.Set("limit", fmt.Sprint(relationsPerPage))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var out relationsResponse
	if err := c.call(ctx, "list_relations", http.MethodGet, "/api/v1/users/relations", q, nil, "", &out); err != nil {
		return nil, err
	}
	body := out.relationsBody
	if out.Relations != nil {
		body = *out.Relations
	}
	page := &RelationsPage{Relations: body.Items}
	if body.Cursor != nil {
		page.Cursor = *body.Cursor
	}
	return page, nil
}

func (c *Client) ResolveProfile(ctx context.Context, accountID, identifier string) (*Profile, error) {
	const op = "resolve_profile"
	if identifier == "" {
		return nil, &Error{Op: op, Class: Permanent, Detail: "identifier is required"}
	}
	q := url.Values{}
	q.Set("account_id", accountID)

	var out Profile
	if err := c.call(ctx, op, http.MethodGet, "/api/v1/users/"+url.PathEscape(identifier), q, nil, "", &out); err != nil {
		return nil, err
	}
	if out.MemberID == "" {
		return nil, &Error{Op: op, Class: Permanent, Detail: "profile has no member id"}
	}
	return &out, nil
}

type conversationsResponse struct {
	Items  []Conversation `json:"items"`
	Cursor *string        `json:"cursor"`
}

func (c *Client) ListConversations(ctx context.Context, accountID, cursor string) (*ConversationsPage, error) {
	q := url.Values{}
	q.Set("account_id", accountID)
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var out conversationsResponse
	if err := c.call(ctx, "list_conversations", http.MethodGet, "/api/v1/chats", q, nil, "", &out); err != nil {
		return nil, err
	}
	page := &ConversationsPage{Conversations: out.Items}
	if out.Cursor != nil {
		page.Cursor = *out.Cursor
	}
	return page, nil
}

func (c *Client) OwnProfile(ctx context.Context, accountID string) (*Profile, error) {
	const op = "own_profile"
	q := url.Values{}
	q.Set("account_id", accountID)

	var out Profile
	if err := c.call(ctx, op, http.MethodGet, "/api/v1/users/me", q, nil, "", &out); err != nil {
		return nil, err
	}
	if out.MemberID == "" {
		return nil, &Error{Op: op, Class: Permanent, Detail: "own profile has no member id"}
	}
	return &out, nil
}

// invitationItem accepts the current field names and the user_* names
// older payloads used.
type invitationItem struct {
	ID                   string `json:"id"`
	InvitedUserID        string `json:"invited_user_id"`
	InvitedUserPublicID  string `json:"invited_user_public_id"`
	UserProviderID       string `json:"user_provider_id"`
	UserPublicIdentifier string `json:"user_public_identifier"`
	Status               string `json:"status"`
}

type invitationsResponse struct {
	Items  []invitationItem `json:"items"`
	Cursor *string          `json:"cursor"`
}

// ListSentInvitations pages the account's outgoing invitations. Entries
// without a status are pending.
func (c *Client) ListSentInvitations(ctx context.Context, accountID, cursor string) (*InvitationsPage, error) {
	q := url.Values{}
	q.Set("account_id", accountID)
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var out invitationsResponse
	if err := c.call(ctx, "list_sent_invitations", http.MethodGet, "/api/v1/users/invite/sent", q, nil, "", &out); err != nil {
		return nil, err
	}
	page := &InvitationsPage{Invitations: make([]Invitation, 0, len(out.Items))}
	for _, it := range out.Items {
		inv := Invitation{
			ID:               it.ID,
			MemberID:         firstNonEmpty(it.InvitedUserID, it.UserProviderID),
			PublicIdentifier: firstNonEmpty(it.InvitedUserPublicID, it.UserPublicIdentifier),
			Status:           InvitationStatus(strings.ToLower(it.Status)),
		}
		if inv.Status == "" {
			inv.Status = InvitationStatusPending
		}
		page.Invitations = append(page.Invitations, inv)
	}
	if out.Cursor != nil {
		page.Cursor = *out.Cursor
	}
	return page, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// call runs one bounded provider request through the breaker.
func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, body []byte, contentType string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, op, method, path, query, body, contentType, out)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &Error{Op: op, Class: Transient, Detail: "provider circuit open", Err: err}
	}
	return classifyErr(op, err)
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, query url.Values, body []byte, contentType string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &Error{Op: op, Class: Transient, Err: err}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var raw interface{}
	if body != nil {
		raw = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, raw)
	if err != nil {
		return &Error{Op: op, Class: Permanent, Err: err}
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	client := c.reads
	if method != http.MethodGet {
		client = c.writes
	}

	resp, err := client.Do(req)
	if err != nil {
		return classifyErr(op, err)
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode >= http.StatusMultipleChoices {
		return &Error{
			Op:         op,
			StatusCode: resp.StatusCode,
			Class:      ClassifyStatus(resp.StatusCode),
			Detail:     providerDetail(data),
		}
	}

	// A write the provider accepted must not be retried over a bad body,
	// or the send goes out twice.
	write := method != http.MethodGet
	if readErr != nil {
		if write {
			slog.WarnContext(ctx, "provider accepted write, response unreadable", "op", op, "error", readErr)
			return nil
		}
		return classifyErr(op, fmt.Errorf("reading response: %w", readErr))
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			if write {
				slog.WarnContext(ctx, "provider accepted write, response unreadable", "op", op, "error", err)
				return nil
			}
			return &Error{Op: op, Class: Transient, Detail: "unreadable response", Err: err}
		}
	}
	return nil
}

type providerError struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func providerDetail(data []byte) string {
	var pe providerError
	if err := json.Unmarshal(data, &pe); err == nil {
		parts := make([]string, 0, 3)
		for _, s := range []string{pe.Type, pe.Title, pe.Detail} {
			if s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, ": ")
		}
	}
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func multipartBody(fields [][2]string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

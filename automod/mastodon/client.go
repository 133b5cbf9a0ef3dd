// Package mastodon implements engine.ModClient against the Mastodon REST API,
// authenticated with a per-bot access token.
package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/fedimod/plume/automod/engine"
	"github.com/fedimod/plume/automod/event"
)

// APIError is a non-2xx response from the Mastodon API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mastodon api: status %d: %s", e.StatusCode, e.Message)
}

// Client talks to one Mastodon instance as one bot account. Safe for
// concurrent use.
type Client struct {
	host        string
	accessToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// NewClient builds a client for the given instance domain. Requests are
// retried on transient failures and rate-limited client-side to stay under
// Mastodon's default API quota (300 requests per 5 minutes).
func NewClient(domain, accessToken string) *Client {
	retry := retryablehttp.NewClient()
	retry.RetryMax = 3
	retry.RetryWaitMin = time.Second
	retry.RetryWaitMax = 10 * time.Second
	retry.Logger = nil
	return &Client{
		host:        "https://" + domain,
		accessToken: accessToken,
		httpClient:  retry.StandardClient(),
		limiter:     rate.NewLimiter(rate.Limit(1), 5),
	}
}

// NewTestClient targets an arbitrary base URL with a plain http.Client and no
// rate limiting.
func NewTestClient(baseURL, accessToken string) *Client {
	return &Client{
		host:        baseURL,
		accessToken: accessToken,
		httpClient:  http.DefaultClient,
		limiter:     rate.NewLimiter(rate.Inf, 1),
	}
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(msg, &apiErr) == nil && apiErr.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(msg)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// CreateReport files a report and returns its ID.
//
// https://docs.joinmastodon.org/methods/reports/#post
func (c *Client) CreateReport(ctx context.Context, target event.AccountRef, in *engine.ReportInput) (string, error) {
	payload := map[string]any{
		"account_id": target.ID,
		"comment":    in.Comment,
		"category":   string(in.Category),
		"forward":    in.Forward,
	}
	if len(in.StatusIDs) > 0 {
		payload["status_ids"] = in.StatusIDs
	}
	if len(in.RuleIDs) > 0 {
		payload["rule_ids"] = in.RuleIDs
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/api/v1/reports", payload, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("mastodon api: report created without an id")
	}
	return resp.ID, nil
}

// PerformAccountAction applies a restrict action against the account,
// citing reportID when non-empty. Mastodon answers 422 when the action is
// already in effect; that maps to engine.ErrAlreadyApplied.
//
// https://docs.joinmastodon.org/methods/admin/accounts/#action
func (c *Client) PerformAccountAction(ctx context.Context, target event.AccountRef, kind engine.RestrictKind, citesReport string) error {
	payload := map[string]any{
		"type": string(kind),
	}
	if citesReport != "" {
		payload["report_id"] = citesReport
	}
	err := c.post(ctx, "/api/v1/admin/accounts/"+target.ID+"/action", payload, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity {
		return engine.ErrAlreadyApplied
	}
	return err
}

// ResolveReport closes a report.
//
// https://docs.joinmastodon.org/methods/admin/reports/#resolve
func (c *Client) ResolveReport(ctx context.Context, reportID string) error {
	return c.post(ctx, "/api/v1/admin/reports/"+reportID+"/resolve", nil, nil)
}

var _ engine.ModClient = (*Client)(nil)

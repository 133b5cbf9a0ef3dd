// Package classifier adapts an rspamd-compatible scanning service to the
// engine's Classifier interface. The verdict string handed to classifier
// patterns is rspamd's recommended action ("reject", "add header", ...).
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// RspamdClient submits post text to rspamd's /checkv2 endpoint.
//
// https://rspamd.com/doc/architecture/protocol.html
type RspamdClient struct {
	url        string
	password   string
	httpClient *http.Client
}

func NewRspamdClient(url, password string) *RspamdClient {
	retry := retryablehttp.NewClient()
	retry.RetryMax = 2
	retry.RetryWaitMin = 500 * time.Millisecond
	retry.RetryWaitMax = 5 * time.Second
	retry.Logger = nil
	return &RspamdClient{
		url:        url,
		password:   password,
		httpClient: retry.StandardClient(),
	}
}

func (c *RspamdClient) Classify(ctx context.Context, text string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(text))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "text/plain")
	if c.password != "" {
		req.Header.Set("Password", c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("rspamd: status %d: %s", resp.StatusCode, msg)
	}

	var verdict struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return "", fmt.Errorf("rspamd: decoding response: %w", err)
	}
	return verdict.Action, nil
}

// Package graph posts messages to the Meta Graph API and classifies its failures.
package graph

import (
	"FunnelRouter/entity"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"golang.org/x/oauth2"
	"io"
	"net/http"
	"time"
)

// ErrUnauthorized is returned on HTTP 401; the access token is stale or revoked.
var ErrUnauthorized = errors.New("graph api: unauthorized")

type Client struct {
	baseURL string
	timeout time.Duration
	base    *http.Client
}

// New returns a client; base may be nil to use http.DefaultClient transport.
func New(baseURL string, timeout time.Duration, base *http.Client) *Client {
	return &Client{baseURL: baseURL, timeout: timeout, base: base}
}

// Post sends body as JSON to path authenticated with token.
func (c *Client) Post(ctx context.Context, token, path string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	if c.base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	client.Timeout = c.timeout

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %v: %w", err, entity.ErrDeliveryFailed)
	}
	defer resp.Body.Close()

	return classify(resp)
}

func classify(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	apiErr := fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w: %v", ErrUnauthorized, entity.ErrInvalidRecipient, apiErr)
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode >= 500:
		return fmt.Errorf("%w: %v", entity.ErrDeliveryFailed, apiErr)
	default:
		return fmt.Errorf("%w: %v", entity.ErrInvalidRecipient, apiErr)
	}
}

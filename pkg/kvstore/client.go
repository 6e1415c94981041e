// Package kvstore is a client for the Mattermost Apps key-value store, which
// holds the per-workspace PagerDuty configuration and linked user tokens.
package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	APIPath = "/plugins/com.mattermost.apps/api/v1/kv/"

	// ConfigKey holds the workspace's ProviderCredentials.
	ConfigKey = "config"
)

var ErrNotFound = errors.New("key not found")

// UserTokenKey is the key a user's sealed PagerDuty token is stored under.
func UserTokenKey(userID string) string {
	return "user_token_" + userID
}

// Client reads and writes keys of one workspace using a bearer token.
type Client struct {
	siteURL     string
	accessToken string
	httpClient  *http.Client
}

func NewClient(siteURL, accessToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		siteURL:     strings.TrimSuffix(siteURL, "/"),
		accessToken: accessToken,
		httpClient:  httpClient,
	}
}

// Get decodes the JSON value stored under key into out.
func (c *Client) Get(ctx context.Context, key string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, key, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("kv get %q failed: %s", key, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read kv response: %w", err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return ErrNotFound
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode kv value %q: %w", key, err)
	}
	return nil
}

// Set stores value under key as JSON.
func (c *Client) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode kv value %q: %w", key, err)
	}

	resp, err := c.do(ctx, http.MethodPut, key, bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("kv set %q failed: %s", key, resp.Status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, key string, body io.Reader) (*http.Response, error) {
	if c.siteURL == "" {
		return nil, errors.New("missing Mattermost site URL")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.siteURL+APIPath+url.PathEscape(key), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create kv request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kv request failed: %w", err)
	}
	return resp, nil
}

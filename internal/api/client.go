// Package api is the client for the status endpoints served by `hoard run`.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"hoard/internal/models"
	"hoard/internal/store"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "HOARD_HTTP_TIMEOUT"
)

// Client is a simple HTTP client for a running scheduler.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for addr, either host:port or a base URL.
func NewClient(addr string) *Client {
	base := strings.TrimRight(strings.TrimSpace(addr), "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
	}
}

// Ping checks whether the scheduler is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "/health", nil)
}

// GetInfo returns the scheduler's record counts.
func (c *Client) GetInfo(ctx context.Context) (store.Stats, error) {
	var resp store.Stats
	err := c.do(ctx, "/v1/info", &resp)
	return resp, err
}

// GetBlob returns one record.
func (c *Client) GetBlob(ctx context.Context, id string) (models.BlobRecord, error) {
	var resp models.BlobRecord
	err := c.do(ctx, "/v1/blobs/"+url.PathEscape(id), &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return &APIError{Status: resp.StatusCode, Message: errResp.Error}
	}
	return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("api error: %s", resp.Status)}
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}

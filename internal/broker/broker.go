// Package broker talks to the managed OAuth connection broker. The broker
// owns token exchange and refresh; this service only asks it to proxy
// authenticated provider calls, so raw credentials never transit here.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"sylo/internal/platform/config"
)

// Caller is the narrow capability the command executors depend on: perform an
// authenticated proxied HTTP call for a (service, connection) pair and decode
// the response body into out.
type Caller interface {
	ProxyCall(ctx context.Context, service, connectionID, endpoint, method string, body, out any) error
}

// Client implements Caller against the broker's proxy endpoint.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewClient(cfg config.BrokerConfig) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		http:      &http.Client{Timeout: cfg.Timeout},
	}
}

// ProxyCall forwards endpoint/method/body to the provider through the broker.
// Non-2xx responses and transport failures surface as errors; the caller is
// expected to propagate or fail, not retry.
func (c *Client) ProxyCall(ctx context.Context, service, connectionID, endpoint, method string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode proxy body for %s: %w", service, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	url := c.baseURL + "/proxy" + endpoint
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("build proxy request for %s: %w", service, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Provider-Config-Key", service)
	req.Header.Set("Connection-Id", connectionID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("proxy call to %s failed: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Read a bounded amount of the error body for diagnostics.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("proxy call to %s returned %d: %s", service, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode proxy response from %s: %w", service, err)
	}
	return nil
}

// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is a JSON-over-HTTP client with fixed default headers.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		headers:    map[string]string{},
	}
}

// WithHeader returns c after registering a header sent on every request.
func (c *Client) WithHeader(key, value string) *Client {
	if value != "" {
		c.headers[key] = value
	}
	return c
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	for k, v := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return c.httpClient.Do(req)
}

// PostJSON marshals body and posts it to url.
func (c *Client) PostJSON(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.Do(req)
}

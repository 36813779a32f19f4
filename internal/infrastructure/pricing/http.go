package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// StatusError is a non-2xx response from a provider
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.StatusCode, e.Body)
}

// HTTPClient performs rate-limited JSON requests against one API host
type HTTPClient struct {
	client  *http.Client
	limiter *rate.Limiter
	headers map[string]string
}

// NewHTTPClient allows perMinute requests per minute with a small burst
func NewHTTPClient(timeout time.Duration, perMinute int) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 5),
		headers: make(map[string]string),
	}
}

// WithHeader sets a header sent on every request
func (c *HTTPClient) WithHeader(key, value string) *HTTPClient {
	if value != "" {
		c.headers[key] = value
	}
	return c
}

// GetJSON waits for the rate limiter, performs the request and decodes the body into out
func (c *HTTPClient) GetJSON(ctx context.Context, url string, out any) error {
	return c.do(ctx, http.MethodGet, url, nil, out)
}

// PostJSON sends in as a JSON body and decodes the response into out
func (c *HTTPClient) PostJSON(ctx context.Context, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, url, body, out)
}

func (c *HTTPClient) do(ctx context.Context, method, url string, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(msg)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

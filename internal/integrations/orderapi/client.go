// Package orderapi is the client for the backend order-query service.
package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"order-relay/internal/domain"
)

// ErrCheckAmountNotConfigured is returned by CheckAmount without an endpoint.
var ErrCheckAmountNotConfigured = errors.New("orderapi: check amount endpoint is not configured")

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("orderapi: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type latestRequest struct {
	StaffEmail string `json:"staffEmail"`
	Count      int    `json:"count"`
}

type ordersResponse struct {
	Orders []domain.Order `json:"orders"`
}

// Client calls the order service over JSON/HTTP.
type Client struct {
	baseURL        string
	checkAmountURL string
	httpClient     *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithCheckAmountEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.checkAmountURL = strings.TrimSpace(endpoint)
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("orderapi: base URL must not be empty")
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return c, nil
}

// AllOrders returns the staff member's orders, optionally within a date range.
func (c *Client) AllOrders(ctx context.Context, q domain.OrderQuery) ([]domain.Order, error) {
	if strings.TrimSpace(q.StaffEmail) == "" {
		return nil, errors.New("orderapi: staff email must not be empty")
	}
	var out ordersResponse
	if err := c.postJSON(ctx, c.baseURL+"/option/all", q, &out); err != nil {
		return nil, fmt.Errorf("orderapi: all orders: %w", err)
	}
	return out.Orders, nil
}

// LatestByEmail returns the staff member's most recent count orders.
func (c *Client) LatestByEmail(ctx context.Context, staffEmail string, count int) ([]domain.Order, error) {
	if strings.TrimSpace(staffEmail) == "" {
		return nil, errors.New("orderapi: staff email must not be empty")
	}
	if count < 1 {
		count = 1
	}
	var out ordersResponse
	if err := c.postJSON(ctx, c.baseURL+"/option/latest-by-email", latestRequest{StaffEmail: staffEmail, Count: count}, &out); err != nil {
		return nil, fmt.Errorf("orderapi: latest orders: %w", err)
	}
	return out.Orders, nil
}

// CheckAmount forwards payload to the legacy check-amount endpoint. The
// response body is ignored.
func (c *Client) CheckAmount(ctx context.Context, payload any) error {
	if c.checkAmountURL == "" {
		return ErrCheckAmountNotConfigured
	}
	if payload == nil {
		payload = struct{}{}
	}
	if err := c.postJSON(ctx, c.checkAmountURL, payload, nil); err != nil {
		return fmt.Errorf("orderapi: check amount: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
	}
	if out == nil {
		return nil
	}
	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Package graph resolves participant identities through Microsoft Graph.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com"
	Scope          = "https://graph.microsoft.com/.default"
)

// HTTPStatusError captures non-2xx Graph responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("graph: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// User is the subset of the Graph user resource the relay reads.
type User struct {
	ID                string `json:"id"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
	DisplayName       string `json:"displayName"`
}

// Email returns the best mail-like identifier, or "" when none exists.
func (u User) Email() string {
	if m := strings.TrimSpace(u.Mail); m != "" {
		return m
	}
	if upn := strings.TrimSpace(u.UserPrincipalName); strings.Contains(upn, "@") {
		return upn
	}
	return ""
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

// WithHTTPClient sets the base client. Its transport is wrapped with the token source.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func NewClient(tokens oauth2.TokenSource, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("graph: token source must not be nil")
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		return nil, errors.New("graph: base URL must not be empty")
	}
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.httpClient = &http.Client{
		Timeout:   c.httpClient.Timeout,
		Transport: &oauth2.Transport{Source: oauth2.ReuseTokenSource(nil, tokens), Base: base},
	}
	return c, nil
}

// LookupUser fetches a user by AAD object id or user principal name.
func (c *Client) LookupUser(ctx context.Context, id string) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, errors.New("graph: user id must not be empty")
	}
	endpoint := fmt.Sprintf("%s/v1.0/users/%s?$select=id,mail,userPrincipalName,displayName", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return User{}, fmt.Errorf("graph: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("graph: lookup user: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return User{}, &HTTPStatusError{StatusCode: res.StatusCode, URL: endpoint, Body: string(buf)}
	}
	var u User
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&u); err != nil {
		return User{}, fmt.Errorf("graph: decode user: %w", err)
	}
	return u, nil
}

// ResolveEmail returns the user's mail-like address, or "" when the
// directory has none.
func (c *Client) ResolveEmail(ctx context.Context, id string) (string, error) {
	u, err := c.LookupUser(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Email(), nil
}

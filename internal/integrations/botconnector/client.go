// Package botconnector posts activities to the Bot Framework connector
// service of the channel a conversation lives on.
package botconnector

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
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"order-relay/internal/domain"
)

const (
	Scope         = "https://api.botframework.com/.default"
	TokenEndpoint = "https://login.microsoftonline.com/botframework.com/oauth2/v2.0/token"
)

// HTTPStatusError captures non-2xx connector responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("botconnector: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type tenantInfo struct {
	ID string `json:"id"`
}

type channelData struct {
	Tenant  *tenantInfo `json:"tenant,omitempty"`
	WebPost bool        `json:"webPost,omitempty"`
}

type outboundActivity struct {
	Type         string                     `json:"type"`
	ID           string                     `json:"id"`
	ChannelID    string                     `json:"channelId,omitempty"`
	ServiceURL   string                     `json:"serviceUrl,omitempty"`
	From         domain.ChannelAccount      `json:"from"`
	Recipient    domain.ChannelAccount      `json:"recipient"`
	Conversation domain.ConversationAccount `json:"conversation"`
	ReplyToID    string                     `json:"replyToId,omitempty"`
	Text         string                     `json:"text,omitempty"`
	Attachments  []domain.Attachment        `json:"attachments,omitempty"`
	ChannelData  *channelData               `json:"channelData,omitempty"`
}

// Client sends replies and proactive messages.
type Client struct {
	httpClient *http.Client
	newID      func() string
}

type Option func(*Client)

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
		return nil, errors.New("botconnector: token source must not be nil")
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
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

// Send delivers reply into the referenced conversation. A reference carrying
// an activity id is answered in-thread.
func (c *Client) Send(ctx context.Context, ref domain.ConversationReference, reply domain.Reply) error {
	serviceURL := strings.TrimRight(strings.TrimSpace(ref.ServiceURL), "/")
	if serviceURL == "" {
		return errors.New("botconnector: service URL must not be empty")
	}
	if strings.TrimSpace(ref.Conversation.ID) == "" {
		return errors.New("botconnector: conversation id must not be empty")
	}
	if reply.Text == "" && reply.Attachment == nil {
		return errors.New("botconnector: reply must carry text or an attachment")
	}

	activity := outboundActivity{
		Type:         domain.ActivityTypeMessage,
		ID:           c.newID(),
		ChannelID:    ref.ChannelID,
		ServiceURL:   serviceURL,
		From:         ref.Bot,
		Recipient:    ref.User,
		Conversation: ref.Conversation,
		ReplyToID:    ref.ActivityID,
		Text:         reply.Text,
	}
	if reply.Attachment != nil {
		activity.Attachments = []domain.Attachment{*reply.Attachment}
	}
	if ref.Conversation.TenantID != "" || reply.WebPost {
		activity.ChannelData = &channelData{WebPost: reply.WebPost}
		if ref.Conversation.TenantID != "" {
			activity.ChannelData.Tenant = &tenantInfo{ID: ref.Conversation.TenantID}
		}
	}

	endpoint := serviceURL + "/v3/conversations/" + url.PathEscape(ref.Conversation.ID) + "/activities"
	if ref.ActivityID != "" {
		endpoint += "/" + url.PathEscape(ref.ActivityID)
	}

	body, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("botconnector: marshal activity: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("botconnector: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("botconnector: send: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, URL: endpoint, Body: string(buf)}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<16))
	return nil
}

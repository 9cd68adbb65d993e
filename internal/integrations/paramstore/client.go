package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter is the interface that wraps GetParameter.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client wraps an AWS SSM API for parameter retrieval.
type Client struct {
	api ssmAPI
}

// New creates a Client with the given SSM API implementation.
func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

// GetParameter returns the decrypted value of a parameter.
func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	withDecryption := true
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}
	return *out.Parameter.Value, nil
}

// BotCredentials authenticate the relay against the Bot Connector service.
type BotCredentials struct {
	AppID       string `json:"appId"`
	AppPassword string `json:"appPassword"`
	// TenantID is set for single-tenant bots; empty means the shared
	// botframework.com tenant.
	TenantID string `json:"tenantId"`
}

// GraphCredentials authenticate the identity lookup against Microsoft Graph.
type GraphCredentials struct {
	TenantID     string `json:"tenantId"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// Secrets are the credentials the relay reads at startup.
type Secrets struct {
	NotifyAPIKey string
	Bot          BotCredentials
	Graph        GraphCredentials
}

// LoadSecrets reads every secret under prefix.
func LoadSecrets(ctx context.Context, g Getter, prefix string) (Secrets, error) {
	if g == nil {
		return Secrets{}, errors.New("paramstore: getter must not be nil")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return Secrets{}, errors.New("paramstore: parameter prefix must not be empty")
	}

	var s Secrets
	key, err := g.GetParameter(ctx, prefix+"/notify_api_key")
	if err != nil {
		return Secrets{}, fmt.Errorf("paramstore: load notify api key: %w", err)
	}
	s.NotifyAPIKey = strings.TrimSpace(key)
	if s.NotifyAPIKey == "" {
		return Secrets{}, errors.New("paramstore: notify api key is empty")
	}
	if err := getJSON(ctx, g, prefix+"/bot_credentials", &s.Bot); err != nil {
		return Secrets{}, err
	}
	if s.Bot.AppID == "" || s.Bot.AppPassword == "" {
		return Secrets{}, errors.New("paramstore: bot credentials are incomplete")
	}
	if err := getJSON(ctx, g, prefix+"/graph_credentials", &s.Graph); err != nil {
		return Secrets{}, err
	}
	if s.Graph.TenantID == "" || s.Graph.ClientID == "" || s.Graph.ClientSecret == "" {
		return Secrets{}, errors.New("paramstore: graph credentials are incomplete")
	}
	return s, nil
}

func getJSON(ctx context.Context, g Getter, name string, v any) error {
	raw, err := g.GetParameter(ctx, name)
	if err != nil {
		return fmt.Errorf("paramstore: load %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("paramstore: unmarshal %s as JSON: %w", name, err)
	}
	return nil
}

// Package app wires the relay's components for both binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"order-relay/handler"
	"order-relay/internal/config"
	"order-relay/internal/directory"
	"order-relay/internal/integrations/botconnector"
	"order-relay/internal/integrations/graph"
	"order-relay/internal/integrations/orderapi"
	"order-relay/internal/integrations/paramstore"
	"order-relay/internal/objectstore"
	"order-relay/internal/repository"
	"order-relay/internal/session"
	"order-relay/internal/usecase"
)

// Version is reported by /runtime. Overridden at build time.
var Version = "dev"

const loginBaseURL = "https://login.microsoftonline.com"

// App holds the storage and secret backends plus the config they were
// built from. Higher-level components are built on demand.
type App struct {
	cfg     config.Config
	logger  *slog.Logger
	objects objectstore.Store
	params  paramstore.Getter
	loc     *time.Location
}

// New loads the AWS config and connects DynamoDB and SSM.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: load AWS config: %w", err)
	}
	objects, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
	if err != nil {
		return nil, fmt.Errorf("app: state store: %w", err)
	}
	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("app: parameter store: %w", err)
	}
	return NewWithBackends(cfg, logger, objects, params)
}

// NewWithBackends builds an App over the given object store and parameter
// source.
func NewWithBackends(cfg config.Config, logger *slog.Logger, objects objectstore.Store, params paramstore.Getter) (*App, error) {
	if objects == nil {
		return nil, errors.New("app: object store must not be nil")
	}
	if params == nil {
		return nil, errors.New("app: parameter getter must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, logger: logger, objects: objects, params: params, loc: loc}, nil
}

func (a *App) Logger() *slog.Logger { return a.logger }

func (a *App) Sessions() (*session.Store, error) {
	return session.NewStore(a.objects, a.cfg.SessionKeyPrefix)
}

func (a *App) Directory() (*directory.Store, error) {
	return directory.NewStore(a.objects, a.cfg.DirectoryKey, a.logger)
}

func (a *App) Secrets(ctx context.Context) (paramstore.Secrets, error) {
	return paramstore.LoadSecrets(ctx, a.params, a.cfg.ParamPrefix)
}

// Sender builds the Bot Connector client from the bot credentials.
func (a *App) Sender(ctx context.Context, creds paramstore.BotCredentials) (*botconnector.Client, error) {
	return botconnector.NewClient(botTokenSource(ctx, creds))
}

// Broadcaster builds the fan-out over the directory.
func (a *App) Broadcaster(dir *directory.Store, sender usecase.Sender) (*usecase.Broadcaster, error) {
	return usecase.NewBroadcaster(dir, sender, a.cfg.FanoutWorkers, a.logger)
}

// Handler wires the full request path.
func (a *App) Handler(ctx context.Context) (*handler.Handler, error) {
	secrets, err := a.Secrets(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := a.Sessions()
	if err != nil {
		return nil, err
	}
	dir, err := a.Directory()
	if err != nil {
		return nil, err
	}
	sender, err := a.Sender(ctx, secrets.Bot)
	if err != nil {
		return nil, err
	}
	identities, err := graph.NewClient(graphTokenSource(ctx, secrets.Graph))
	if err != nil {
		return nil, err
	}

	orderOpts := []orderapi.Option{}
	if a.cfg.CheckAmountEndpoint != "" {
		orderOpts = append(orderOpts, orderapi.WithCheckAmountEndpoint(a.cfg.CheckAmountEndpoint))
	}
	orders, err := orderapi.NewClient(a.cfg.OrderAPIBaseURL, orderOpts...)
	if err != nil {
		return nil, err
	}

	dialogOpts := []usecase.DialogOption{
		usecase.WithEmailResolver(identities),
		usecase.WithLocation(a.loc),
		usecase.WithSaveAttempts(a.cfg.SessionSaveAttempts),
		usecase.WithDialogLogger(a.logger),
		usecase.WithVersion(Version),
	}
	if a.cfg.CheckAmountEndpoint != "" {
		dialogOpts = append(dialogOpts, usecase.WithCountHandler(orders))
	}
	dialog, err := usecase.NewDialog(sessions, orders, dialogOpts...)
	if err != nil {
		return nil, err
	}
	participants, err := usecase.NewParticipants(dir, identities, a.logger)
	if err != nil {
		return nil, err
	}
	bot, err := usecase.NewBot(dialog, participants, sender, a.logger)
	if err != nil {
		return nil, err
	}
	broadcaster, err := a.Broadcaster(dir, sender)
	if err != nil {
		return nil, err
	}
	notifier, err := usecase.NewNotifier(dir, sender, broadcaster, a.logger)
	if err != nil {
		return nil, err
	}
	return handler.NewHandler(bot, notifier, secrets.NotifyAPIKey, a.logger)
}

func botTokenSource(ctx context.Context, creds paramstore.BotCredentials) oauth2.TokenSource {
	tokenURL := botconnector.TokenEndpoint
	if creds.TenantID != "" {
		tokenURL = fmt.Sprintf("%s/%s/oauth2/v2.0/token", loginBaseURL, creds.TenantID)
	}
	cc := clientcredentials.Config{
		ClientID:     creds.AppID,
		ClientSecret: creds.AppPassword,
		TokenURL:     tokenURL,
		Scopes:       []string{botconnector.Scope},
	}
	return cc.TokenSource(ctx)
}

func graphTokenSource(ctx context.Context, creds paramstore.GraphCredentials) oauth2.TokenSource {
	cc := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", loginBaseURL, creds.TenantID),
		Scopes:       []string{graph.Scope},
	}
	return cc.TokenSource(ctx)
}

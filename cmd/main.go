package main

import (
	"context"
	"log/slog"
	"os"
	_ "time/tzdata"

	"github.com/aws/aws-lambda-go/lambda"

	"order-relay/internal/app"
	"order-relay/internal/config"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg := config.Load()
	logger, _ := config.SetupLogger(os.Stdout, cfg.Level(), cfg.LogFile)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialise app", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := a.Handler(ctx)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

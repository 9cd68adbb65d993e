// Package cli implements relayctl, the operator command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"order-relay/internal/app"
	"order-relay/internal/config"
)

// AppFactory builds the application for a command run.
type AppFactory func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app.App, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"
	Verbose    bool

	NewApp AppFactory
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for relayctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{NewApp: app.New})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relayctl",
		Short: "Operate the order relay",
		Long:  "Maintenance commands for the order relay.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML config file layered over the environment")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging on stderr")

	cmd.AddCommand(NewNormalizeCommand(opts))
	cmd.AddCommand(NewBroadcastCommand(opts))
	cmd.AddCommand(NewSessionCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadApp reads config and builds the app. Logs go to the command's
// stderr so JSON output stays clean.
func loadApp(cmd *cobra.Command, opts *RootOptions) (*app.App, func() error, error) {
	cfg, err := config.LoadFile(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	level := cfg.Level()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger, cleanup := config.SetupLogger(cmd.ErrOrStderr(), level, cfg.LogFile)

	newApp := opts.NewApp
	if newApp == nil {
		newApp = app.New
	}
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		_ = cleanup()
		return nil, nil, err
	}
	return a, cleanup, nil
}

// writeResult prints v as JSON, or text(w) in text mode.
func writeResult(w io.Writer, opts *RootOptions, v any, text func(io.Writer)) error {
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

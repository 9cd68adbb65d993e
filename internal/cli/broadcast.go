package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"order-relay/internal/domain"
	"order-relay/internal/usecase"
)

type broadcastOptions struct {
	message string
	dryRun  bool
}

// printSender lists recipients instead of sending.
type printSender struct {
	w io.Writer
}

func (p printSender) Send(_ context.Context, ref domain.ConversationReference, reply domain.Reply) error {
	_, err := fmt.Fprintf(p.w, "would send to %s (%s): %s\n", ref.User.ID, ref.Conversation.ID, reply.Text)
	return err
}

// NewBroadcastCommand creates the broadcast command.
func NewBroadcastCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &broadcastOptions{}
	cmd := &cobra.Command{
		Use:          "broadcast",
		Short:        "Send a message to every known participant",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(opts.message) == "" {
				return errors.New("--message is required")
			}
			a, cleanup, err := loadApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer func() { _ = cleanup() }()

			dir, err := a.Directory()
			if err != nil {
				return err
			}
			var sender usecase.Sender = printSender{w: cmd.ErrOrStderr()}
			if !opts.dryRun {
				secrets, err := a.Secrets(cmd.Context())
				if err != nil {
					return err
				}
				if sender, err = a.Sender(cmd.Context(), secrets.Bot); err != nil {
					return err
				}
			}
			b, err := a.Broadcaster(dir, sender)
			if err != nil {
				return err
			}
			report, err := b.Broadcast(cmd.Context(), domain.TextReply(opts.message))
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), rootOpts, report, func(w io.Writer) {
				fmt.Fprintf(w, "attempted %d, sent %d, failed %d, skipped %d\n",
					report.Attempted, report.Sent, report.Failed, report.Skipped)
			})
		},
	}
	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "message text")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "list recipients without sending")
	return cmd
}

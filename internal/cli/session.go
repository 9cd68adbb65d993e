package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewSessionCommand groups the session subcommands.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or reset conversation sessions",
	}
	cmd.AddCommand(newSessionShowCommand(rootOpts))
	cmd.AddCommand(newSessionResetCommand(rootOpts))
	return cmd
}

func newSessionShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "show <conversation-id>",
		Short:        "Print a conversation session",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := loadApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer func() { _ = cleanup() }()

			sessions, err := a.Sessions()
			if err != nil {
				return err
			}
			sess, err := sessions.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), rootOpts, sess, func(w io.Writer) {
				fmt.Fprintf(w, "conversation: %s\nstep: %s\nmessages: %d\nstaff: %s\nupdated: %s\n",
					sess.ConversationID, sess.Step, sess.MessageCount, sess.StaffIdentity, sess.UpdatedAt)
			})
		},
	}
}

func newSessionResetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "reset <conversation-id>",
		Short:        "Delete a conversation session",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := loadApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer func() { _ = cleanup() }()

			sessions, err := a.Sessions()
			if err != nil {
				return err
			}
			if err := sessions.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), rootOpts, map[string]string{"reset": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "session %s reset\n", args[0])
			})
		},
	}
}

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type normalizeOutput struct {
	Records int  `json:"records"`
	Dropped int  `json:"dropped"`
	Changed bool `json:"changed"`
}

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize",
		Short: "Repair the participant directory document",
		Long: `Rewrite the participant directory as a single JSON array with one
record per participant. Documents corrupted into concatenated objects are
split and re-parsed; fragments that do not parse are dropped.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := loadApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer func() { _ = cleanup() }()

			dir, err := a.Directory()
			if err != nil {
				return err
			}
			res, err := dir.Normalize(cmd.Context())
			if err != nil {
				return err
			}
			out := normalizeOutput{Records: res.Records, Dropped: res.Dropped, Changed: res.Changed}
			return writeResult(cmd.OutOrStdout(), rootOpts, out, func(w io.Writer) {
				state := "unchanged"
				if res.Changed {
					state = "rewritten"
				}
				fmt.Fprintf(w, "directory %s: %d records, %d fragments dropped\n", state, res.Records, res.Dropped)
			})
		},
	}
}

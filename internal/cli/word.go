package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marchdb/march/internal/catalog"
)

// NewWordCommand builds the `word` command group. `word add` shares the
// catalog importer's !word handling: the file must be a one-entry (or
// more) catalog document, since a word's stack body uses the same
// tagged-value and stack-op vocabulary the bulk `catalog` command reads.
func NewWordCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "word",
		Short: "manage compiled word objects",
	}
	cmd.AddCommand(newWordAddCommand(rootOpts))
	return cmd
}

func newWordAddCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "add <file>",
		Short:         "compile and store a !word catalog entry",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read word file", err)
			}
			st, g, err := openSession(rootOpts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			report, err := catalog.New(st, g).Import(data)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to build word", err)
			}
			if err := saveSession(st, g); err != nil {
				return WrapExitError(ExitCommandError, "failed to persist session", err)
			}
			return formatter(rootOpts, cmd).Lines(report.Lines)
		},
	}
	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStateCommand builds the `state` command group, operating on the
// global store's CLI-persisted snapshot (see session.go).
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "inspect and manage the global store",
	}
	cmd.AddCommand(newStateSnapshotCommand(rootOpts))
	cmd.AddCommand(newStateResetCommand(rootOpts))
	return cmd
}

func newStateSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "snapshot",
		Short:         "print the global store's current contents",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, g, err := openSession(rootOpts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			snap := g.Snapshot()
			var lines []string
			for _, ns := range snap.Namespaces {
				for _, e := range ns.Entries {
					lines = append(lines, fmt.Sprintf("%s/%s = %s", ns.Namespace, e.Key, formatValue(e.Value)))
				}
			}
			return formatter(rootOpts, cmd).Lines(lines)
		},
	}
	return cmd
}

func newStateResetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "reset",
		Short:         "clear every key in the global store",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, g, err := openSession(rootOpts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			g.Reset()
			if err := saveSession(st, g); err != nil {
				return WrapExitError(ExitCommandError, "failed to persist session", err)
			}
			return formatter(rootOpts, cmd).Success("global store reset")
		},
	}
	return cmd
}

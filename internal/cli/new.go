package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewNewCommand creates the `new` command: initializes (or verifies) the
// object database at the configured path, applying the schema if it is
// not present yet. Store.Open is idempotent, so `new` against an
// existing database is a harmless no-op.
func NewNewCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "new",
		Short:         "create a new object database",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openSession(rootOpts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to create database", err)
			}
			defer st.Close()
			return formatter(rootOpts, cmd).Success(fmt.Sprintf("database ready at %s", rootOpts.Database))
		},
	}
	return cmd
}

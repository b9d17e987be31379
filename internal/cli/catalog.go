package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marchdb/march/internal/catalog"
)

// NewCatalogCommand builds the `catalog` command: bulk-import a YAML
// catalog document of effects, prims, guards, overload sets, words, and
// snapshots in one pass.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "catalog <file>",
		Short:         "import a YAML catalog document",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogImport(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runCatalogImport(rootOpts *RootOptions, path string, cmd *cobra.Command) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read catalog file", err)
	}

	st, g, err := openSession(rootOpts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	im := catalog.New(st, g)
	report, err := im.Import(data)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("catalog import failed after %d entries", len(report.Lines)), err)
	}
	if err := saveSession(st, g); err != nil {
		return WrapExitError(ExitCommandError, "failed to persist session", err)
	}
	return formatter(rootOpts, cmd).Lines(report.Lines)
}

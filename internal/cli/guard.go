package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marchdb/march/internal/catalog"
	"github.com/marchdb/march/internal/object"
)

// NewGuardCommand builds the `guard` command group.
func NewGuardCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guard",
		Short: "manage guard-shaped words",
	}
	cmd.AddCommand(newGuardAddCommand(rootOpts))
	cmd.AddCommand(newGuardListCommand(rootOpts))
	cmd.AddCommand(newGuardShowCommand(rootOpts))
	return cmd
}

func newGuardAddCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "add <file>",
		Short:         "compile and store a !guard catalog entry",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read guard file", err)
			}
			st, g, err := openSession(rootOpts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			report, err := catalog.New(st, g).Import(data)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to build guard", err)
			}
			if err := saveSession(st, g); err != nil {
				return WrapExitError(ExitCommandError, "failed to persist session", err)
			}
			return formatter(rootOpts, cmd).Lines(report.Lines)
		},
	}
	return cmd
}

func newGuardListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "list registered guard names",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openSession(rootOpts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			entries, err := st.NameList("guard", "")
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list guards", err)
			}
			lines := make([]string, len(entries))
			for i, e := range entries {
				lines[i] = fmt.Sprintf("%s %s", e.Name, e.CID)
			}
			return formatter(rootOpts, cmd).Lines(lines)
		},
	}
	return cmd
}

func newGuardShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "show <name>",
		Short:         "show a guard word's signature",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openSession(rootOpts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			c, ok, err := st.NameGet("guard", args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to resolve guard", err)
			}
			if !ok {
				return WrapExitError(ExitCommandError, "failed to resolve guard", fmt.Errorf("unknown guard %q", args[0]))
			}
			data, err := st.GetKind(c, "word")
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load guard", err)
			}
			w, err := object.DecodeWord(data)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to decode guard", err)
			}
			return formatter(rootOpts, cmd).Success(fmt.Sprintf(
				"%s %s params=%v results=%v effects=%d guard_shape=%v",
				args[0], c, w.Params, w.Results, len(w.Effects), w.IsGuardShape()))
		},
	}
	return cmd
}

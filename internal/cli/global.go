package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marchdb/march/internal/object"
	"github.com/marchdb/march/internal/types"
)

// GlobalAddOptions holds flags for `global add`.
type GlobalAddOptions struct {
	*RootOptions
	Type  string
	Value string
}

// NewGlobalCommand builds the `global` command group: named canonical
// Global objects (tag 2, `[typeList, value]`), distinct from the
// runtime global *store* `internal/global.Store` manages through the
// state.* primitives. The distilled CLI surface never names this
// command explicitly, but the name index reserves a "global" scope and
// LOAD_GLOBAL nodes resolve their operand through it (see node.go's
// `node load-global --global <name>`) — nothing else in the catalog or
// CLI surface creates one, so this command is the only way to populate
// that scope by name.
func NewGlobalCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "global",
		Short: "manage named canonical global-value objects",
	}
	cmd.AddCommand(newGlobalAddCommand(rootOpts))
	return cmd
}

func newGlobalAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GlobalAddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "add <name>",
		Short:         "store a named canonical global value",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return addGlobal(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Type, "type", "", "value type atom (required)")
	cmd.Flags().StringVar(&opts.Value, "value", "", "literal value, interpreted per --type")
	return cmd
}

func addGlobal(opts *GlobalAddOptions, name string, cmd *cobra.Command) error {
	st, g, err := openSession(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	atom, err := types.ParseAtom(opts.Type)
	if err != nil {
		return WrapExitError(ExitCommandError, "bad --type", err)
	}
	v, err := parseLitValue(atom, opts.Value)
	if err != nil {
		return WrapExitError(ExitCommandError, "bad --value", err)
	}

	obj := object.Global{TypeList: []types.Atom{atom}, Value: v}
	data, err := obj.Encode()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode global", err)
	}
	c, _, err := st.Put("global", data)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to store global", err)
	}
	if err := st.NamePut("global", name, c); err != nil {
		return WrapExitError(ExitCommandError, "failed to name global", err)
	}
	if err := saveSession(st, g); err != nil {
		return WrapExitError(ExitCommandError, "failed to persist session", err)
	}
	return formatter(opts.RootOptions, cmd).Success(fmt.Sprintf("global %q stored as %s", name, c))
}

package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marchdb/march/internal/object"
)

// IfaceAddOptions holds flags for `iface add`.
type IfaceAddOptions struct {
	*RootOptions
	Entries []string // "name=wordName", resolved for signature/effects
}

// NewIfaceCommand builds the `iface` command group. Unlike `namespace
// add`, which derives an interface from its own export list, `iface
// add` stores a standalone interface directly from named word
// signatures — useful for predeclaring an interface ahead of the
// namespace that will bind it.
func NewIfaceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iface",
		Short: "manage interface objects",
	}
	cmd.AddCommand(newIfaceAddCommand(rootOpts))
	return cmd
}

func newIfaceAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IfaceAddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "add <name>",
		Short:         "store an interface derived from named word signatures",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return addIface(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringArrayVar(&opts.Entries, "entry", nil, "entryName=wordName, repeatable")
	return cmd
}

func addIface(opts *IfaceAddOptions, name string, cmd *cobra.Command) error {
	st, g, err := openSession(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	entries := make([]object.IfaceEntry, 0, len(opts.Entries))
	for _, e := range opts.Entries {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) != 2 {
			return WrapExitError(ExitCommandError, "bad --entry", fmt.Errorf("expected entryName=wordName, got %q", e))
		}
		wc, ok, err := st.NameGet("word", parts[1])
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to resolve entry", err)
		}
		if !ok {
			return WrapExitError(ExitCommandError, "failed to resolve entry", fmt.Errorf("unknown word %q", parts[1]))
		}
		data, err := st.GetKind(wc, "word")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load entry word", err)
		}
		w, err := object.DecodeWord(data)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to decode entry word", err)
		}
		entries = append(entries, object.IfaceEntry{Name: parts[0], Params: w.Params, Results: w.Results, Effects: w.Effects})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	iface := object.Iface{Names: entries}
	data, err := iface.Encode()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode interface", err)
	}
	c, _, err := st.Put("iface", data)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to store interface", err)
	}
	if err := st.NamePut("iface", name, c); err != nil {
		return WrapExitError(ExitCommandError, "failed to name interface", err)
	}
	if err := saveSession(st, g); err != nil {
		return WrapExitError(ExitCommandError, "failed to persist session", err)
	}
	return formatter(opts.RootOptions, cmd).Success(fmt.Sprintf("interface %q stored as %s", name, c))
}

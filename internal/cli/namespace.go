package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/object"
)

// NamespaceAddOptions holds flags for `namespace add`.
type NamespaceAddOptions struct {
	*RootOptions
	Exports  []string // "displayName=wordName"
	Bindings []string // imported namespace names
}

// NewNamespaceCommand builds the `namespace` command group.
func NewNamespaceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "namespace",
		Short: "manage namespace objects",
	}
	cmd.AddCommand(newNamespaceAddCommand(rootOpts))
	return cmd
}

func newNamespaceAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NamespaceAddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "add <name>",
		Short:         "store a namespace binding a sorted export list",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return addNamespace(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringArrayVar(&opts.Exports, "export", nil, "displayName=wordName, repeatable")
	cmd.Flags().StringArrayVar(&opts.Bindings, "bind", nil, "imported namespace name, repeatable")
	return cmd
}

func addNamespace(opts *NamespaceAddOptions, name string, cmd *cobra.Command) error {
	st, g, err := openSession(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	exports := make([]object.NamespaceExport, 0, len(opts.Exports))
	for _, e := range opts.Exports {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) != 2 {
			return WrapExitError(ExitCommandError, "bad --export", fmt.Errorf("expected displayName=wordName, got %q", e))
		}
		wc, ok, err := st.NameGet("word", parts[1])
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to resolve export", err)
		}
		if !ok {
			return WrapExitError(ExitCommandError, "failed to resolve export", fmt.Errorf("unknown word %q", parts[1]))
		}
		exports = append(exports, object.NamespaceExport{Name: parts[0], Word: wc})
	}
	object.SortExports(exports)

	bindings := make([]cid.CID, 0, len(opts.Bindings))
	for _, b := range opts.Bindings {
		bc, ok, err := st.NameGet("namespace", b)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to resolve binding", err)
		}
		if !ok {
			return WrapExitError(ExitCommandError, "failed to resolve binding", fmt.Errorf("unknown namespace %q", b))
		}
		bindings = append(bindings, bc)
	}
	bindings = cid.Dedup(cid.SortCIDs(bindings))

	iface, err := object.DeriveFromExports(exports, func(c cid.CID) (object.Word, error) {
		data, err := st.GetKind(c, "word")
		if err != nil {
			return object.Word{}, err
		}
		return object.DecodeWord(data)
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to derive interface", err)
	}
	ifaceData, err := iface.Encode()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode interface", err)
	}
	ifaceCID, _, err := st.Put("iface", ifaceData)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to store interface", err)
	}
	if err := st.NamePut("iface", name, ifaceCID); err != nil {
		return WrapExitError(ExitCommandError, "failed to name interface", err)
	}

	ns := object.Namespace{Iface: ifaceCID, Bindings: bindings, Exports: exports}
	nsData, err := ns.Encode()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode namespace", err)
	}
	nsCID, _, err := st.Put("namespace", nsData)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to store namespace", err)
	}
	if err := st.NamePut("namespace", name, nsCID); err != nil {
		return WrapExitError(ExitCommandError, "failed to name namespace", err)
	}
	if err := saveSession(st, g); err != nil {
		return WrapExitError(ExitCommandError, "failed to persist session", err)
	}
	return formatter(opts.RootOptions, cmd).Success(fmt.Sprintf("namespace %q stored as %s (interface %s)", name, nsCID, ifaceCID))
}

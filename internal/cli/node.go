package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/node"
	"github.com/marchdb/march/internal/store"
	"github.com/marchdb/march/internal/types"
)

// NewNodeCommand builds the `node` command group: direct, low-level
// construction of individual graph nodes by CID, bypassing the
// stack-machine builder. Each subcommand stores exactly one node and
// prints its CID so a later `node` or `word add` invocation can wire it
// in as an input.
func NewNodeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "construct individual graph nodes directly",
	}
	cmd.AddCommand(newNodeLitCommand(rootOpts))
	cmd.AddCommand(newNodeArgCommand(rootOpts))
	cmd.AddCommand(newNodePrimCommand(rootOpts))
	cmd.AddCommand(newNodeCallCommand(rootOpts))
	cmd.AddCommand(newNodeLoadGlobalCommand(rootOpts))
	return cmd
}

func resolveOrParseCID(st *store.Store, scope, ref string) (cid.CID, error) {
	if c, err := cid.FromHex(ref); err == nil {
		return c, nil
	}
	c, ok, err := st.NameGet(scope, ref)
	if err != nil {
		return cid.CID{}, err
	}
	if !ok {
		return cid.CID{}, fmt.Errorf("unknown %s %q", scope, ref)
	}
	return c, nil
}

func parseInputList(st *store.Store, raw string) ([]node.Input, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]node.Input, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		c, err := cid.FromHex(p)
		if err != nil {
			return nil, fmt.Errorf("bad input cid %q: %w", p, err)
		}
		out = append(out, node.Input{Producer: c, Port: 0})
	}
	return out, nil
}

func storeAndPrintNode(st *store.Store, n node.Node, opts *RootOptions, cmd *cobra.Command) error {
	data, err := n.Encode()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode node", err)
	}
	c, _, err := st.Put("node", data)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to store node", err)
	}
	return formatter(opts, cmd).Success(fmt.Sprintf("node stored as %s", c))
}

func newNodeLitCommand(rootOpts *RootOptions) *cobra.Command {
	var ty, value string
	cmd := &cobra.Command{
		Use:           "lit",
		Short:         "store a LIT node",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openSession(rootOpts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			atom, err := types.ParseAtom(ty)
			if err != nil {
				return WrapExitError(ExitCommandError, "bad --type", err)
			}
			v, err := parseLitValue(atom, value)
			if err != nil {
				return WrapExitError(ExitCommandError, "bad --value", err)
			}
			n := node.Node{Kind: node.KindLit, Outs: []types.Atom{atom}, Lit: v}
			return storeAndPrintNode(st, n, rootOpts, cmd)
		},
	}
	cmd.Flags().StringVar(&ty, "type", "", "value type atom (required)")
	cmd.Flags().StringVar(&value, "value", "", "literal value, interpreted per --type")
	return cmd
}

func parseLitValue(atom types.Atom, raw string) (types.Value, error) {
	switch atom {
	case types.I64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return types.Value{}, err
		}
		return types.I64Value(n), nil
	case types.F64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return types.Value{}, err
		}
		return types.F64Value(f), nil
	case types.Text:
		return types.TextValue(raw), nil
	case types.Unit:
		return types.UnitValue, nil
	default:
		return types.Value{}, fmt.Errorf("unsupported literal type %q", atom)
	}
}

func newNodeArgCommand(rootOpts *RootOptions) *cobra.Command {
	var index int
	var ty string
	cmd := &cobra.Command{
		Use:           "arg",
		Short:         "store an ARG node",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openSession(rootOpts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			atom, err := types.ParseAtom(ty)
			if err != nil {
				return WrapExitError(ExitCommandError, "bad --type", err)
			}
			n := node.Node{Kind: node.KindArg, Outs: []types.Atom{atom}, ArgIndex: uint32(index)}
			return storeAndPrintNode(st, n, rootOpts, cmd)
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "parameter index")
	cmd.Flags().StringVar(&ty, "type", "", "parameter type atom (required)")
	return cmd
}

func newNodePrimCommand(rootOpts *RootOptions) *cobra.Command {
	var primRef, inputs, results string
	cmd := &cobra.Command{
		Use:           "prim",
		Short:         "store a PRIM node",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openSession(rootOpts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			primCID, err := resolveOrParseCID(st, "prim", primRef)
			if err != nil {
				return WrapExitError(ExitCommandError, "bad --prim", err)
			}
			ins, err := parseInputList(st, inputs)
			if err != nil {
				return WrapExitError(ExitCommandError, "bad --inputs", err)
			}
			outs, err := types.StringsToAtoms(splitNonEmpty(results))
			if err != nil {
				return WrapExitError(ExitCommandError, "bad --results", err)
			}
			n := node.Node{Kind: node.KindPrim, Inputs: ins, Outs: outs, Prim: primCID}
			return storeAndPrintNode(st, n, rootOpts, cmd)
		},
	}
	cmd.Flags().StringVar(&primRef, "prim", "", "prim name or hex CID (required)")
	cmd.Flags().StringVar(&inputs, "inputs", "", "comma-separated producer CIDs, in order")
	cmd.Flags().StringVar(&results, "results", "", "comma-separated result type atoms")
	return cmd
}

func newNodeCallCommand(rootOpts *RootOptions) *cobra.Command {
	var wordRef, inputs, results string
	cmd := &cobra.Command{
		Use:           "call",
		Short:         "store a CALL node",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openSession(rootOpts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			wordCID, err := resolveOrParseCID(st, "word", wordRef)
			if err != nil {
				return WrapExitError(ExitCommandError, "bad --word", err)
			}
			ins, err := parseInputList(st, inputs)
			if err != nil {
				return WrapExitError(ExitCommandError, "bad --inputs", err)
			}
			outs, err := types.StringsToAtoms(splitNonEmpty(results))
			if err != nil {
				return WrapExitError(ExitCommandError, "bad --results", err)
			}
			n := node.Node{Kind: node.KindCall, Inputs: ins, Outs: outs, Word: wordCID}
			return storeAndPrintNode(st, n, rootOpts, cmd)
		},
	}
	cmd.Flags().StringVar(&wordRef, "word", "", "word name or hex CID (required)")
	cmd.Flags().StringVar(&inputs, "inputs", "", "comma-separated producer CIDs, in order")
	cmd.Flags().StringVar(&results, "results", "", "comma-separated result type atoms")
	return cmd
}

func newNodeLoadGlobalCommand(rootOpts *RootOptions) *cobra.Command {
	var globalRef, ty string
	cmd := &cobra.Command{
		Use:           "load-global",
		Short:         "store a LOAD_GLOBAL node",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := openSession(rootOpts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			globalCID, err := resolveOrParseCID(st, "global", globalRef)
			if err != nil {
				return WrapExitError(ExitCommandError, "bad --global", err)
			}
			atom, err := types.ParseAtom(ty)
			if err != nil {
				return WrapExitError(ExitCommandError, "bad --type", err)
			}
			n := node.Node{Kind: node.KindLoadGlobal, Outs: []types.Atom{atom}, Global: globalCID}
			return storeAndPrintNode(st, n, rootOpts, cmd)
		},
	}
	cmd.Flags().StringVar(&globalRef, "global", "", "global name or hex CID (required)")
	cmd.Flags().StringVar(&ty, "type", "", "result type atom (required)")
	return cmd
}

func splitNonEmpty(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

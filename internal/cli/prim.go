package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/object"
	"github.com/marchdb/march/internal/store"
	"github.com/marchdb/march/internal/types"
)

// PrimAddOptions holds flags for `prim add`.
type PrimAddOptions struct {
	*RootOptions
	Params  []string
	Results []string
	Effects []string
}

// NewPrimCommand builds the `prim` command group.
func NewPrimCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prim",
		Short: "manage primitive operator descriptors",
	}
	cmd.AddCommand(newPrimAddCommand(rootOpts))
	return cmd
}

func newPrimAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PrimAddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "add <name>",
		Short:         "store a primitive descriptor",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return addPrim(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringSliceVar(&opts.Params, "params", nil, "comma-separated parameter type atoms")
	cmd.Flags().StringSliceVar(&opts.Results, "results", nil, "comma-separated result type atoms")
	cmd.Flags().StringSliceVar(&opts.Effects, "effects", nil, "comma-separated effect names (resolved via the effect name index)")
	return cmd
}

func addPrim(opts *PrimAddOptions, name string, cmd *cobra.Command) error {
	st, g, err := openSession(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	params, err := types.StringsToAtoms(opts.Params)
	if err != nil {
		return WrapExitError(ExitCommandError, "bad --params", err)
	}
	results, err := types.StringsToAtoms(opts.Results)
	if err != nil {
		return WrapExitError(ExitCommandError, "bad --results", err)
	}
	effects, err := resolveEffectNames(st, opts.Effects)
	if err != nil {
		return WrapExitError(ExitCommandError, "bad --effects", err)
	}

	p := object.Prim{Params: params, Results: results, Effects: cid.Dedup(cid.SortCIDs(effects))}
	data, err := p.Encode()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode prim", err)
	}
	c, _, err := st.Put("prim", data)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to store prim", err)
	}
	if err := st.NamePut("prim", name, c); err != nil {
		return WrapExitError(ExitCommandError, "failed to name prim", err)
	}
	if err := saveSession(st, g); err != nil {
		return WrapExitError(ExitCommandError, "failed to persist session", err)
	}
	return formatter(opts.RootOptions, cmd).Success(fmt.Sprintf("prim %q stored as %s", name, c))
}

func resolveEffectNames(st *store.Store, names []string) ([]cid.CID, error) {
	out := make([]cid.CID, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		c, ok, err := st.NameGet("effect", n)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("unknown effect %q", n)
		}
		out = append(out, c)
	}
	return out, nil
}

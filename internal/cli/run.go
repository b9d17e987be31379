package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marchdb/march/internal/interp"
	"github.com/marchdb/march/internal/object"
	"github.com/marchdb/march/internal/prim"
	"github.com/marchdb/march/internal/store"
	"github.com/marchdb/march/internal/types"
)

// RunOptions holds flags for `run`.
type RunOptions struct {
	*RootOptions
	Args []string
}

// NewRunCommand builds the `run` command: resolve a word by name, bind
// the Go implementations in internal/prim to every catalog !prim entry
// that shares their catalog-facing name, and evaluate the word against
// parsed positional arguments.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "run <word> [args...]",
		Short:         "evaluate a stored word",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Args = args[1:]
			return runWord(opts, args[0], cmd)
		},
	}
	return cmd
}

// buildRegistry binds every builtin Go primitive in internal/prim to
// the CID of the catalog !prim entry sharing its name, across every
// namespace that registered one. A catalog prim with no matching Go
// builtin stays unbound; invoking it raises ErrUnknownPrim.
func buildRegistry(st *store.Store) (*prim.Registry, error) {
	reg := prim.NewRegistry()
	entries, err := st.NameList("prim", "")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		name := e.Name
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		if fn, ok := prim.BuiltinsByName[name]; ok {
			reg.Register(e.CID, fn)
		}
	}
	return reg, nil
}

func runWord(opts *RunOptions, name string, cmd *cobra.Command) error {
	st, g, err := openSession(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	wordCID, ok, err := st.NameGet("word", name)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve word", err)
	}
	if !ok {
		return WrapExitError(ExitCommandError, "failed to resolve word", fmt.Errorf("unknown word %q", name))
	}
	data, err := st.GetKind(wordCID, "word")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load word", err)
	}
	w, err := object.DecodeWord(data)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to decode word", err)
	}
	if len(opts.Args) != len(w.Params) {
		return WrapExitError(ExitCommandError, "argument count mismatch",
			fmt.Errorf("word %q takes %d argument(s), got %d", name, len(w.Params), len(opts.Args)))
	}

	argVals := make([]types.Value, len(opts.Args))
	for i, raw := range opts.Args {
		v, err := parseLitValue(w.Params[i], raw)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("bad argument %d", i), err)
		}
		argVals[i] = v
	}

	reg, err := buildRegistry(st)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build primitive registry", err)
	}

	it := interp.New(st, g, reg)
	out, err := it.Run(wordCID, argVals)
	if err != nil {
		return WrapExitError(ExitFailure, "run failed", err)
	}
	if err := saveSession(st, g); err != nil {
		return WrapExitError(ExitCommandError, "failed to persist session", err)
	}

	results := make([]string, len(out))
	for i, v := range out {
		results[i] = formatValue(v)
	}
	return formatter(opts.RootOptions, cmd).Success(strings.Join(results, " "))
}

func formatValue(v types.Value) string {
	switch v.Kind {
	case types.I64:
		return strconv.FormatInt(v.I64, 10)
	case types.F64:
		return strconv.FormatFloat(v.F64, 'g', -1, 64)
	case types.Text:
		return strconv.Quote(v.Text)
	case types.Quote:
		return "quote:" + v.Quote.String()
	case types.Unit:
		return "()"
	case types.Tuple:
		parts := make([]string, len(v.Tuple))
		for i, e := range v.Tuple {
			parts[i] = formatValue(e)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return "<unknown>"
	}
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marchdb/march/internal/object"
	"github.com/marchdb/march/internal/types"
)

// EffectAddOptions holds flags for `effect add`.
type EffectAddOptions struct {
	*RootOptions
	Domain string
	Doc    string
}

// NewEffectCommand builds the `effect` command group.
func NewEffectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "effect",
		Short: "manage effect domain objects",
	}
	cmd.AddCommand(newEffectAddCommand(rootOpts))
	return cmd
}

func newEffectAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EffectAddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "add <name>",
		Short:         "store a named effect object",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return addEffect(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Domain, "domain", "", "effect domain (defaults to <name>)")
	cmd.Flags().StringVar(&opts.Doc, "doc", "", "documentation string (not part of the hashed payload)")
	return cmd
}

func addEffect(opts *EffectAddOptions, name string, cmd *cobra.Command) error {
	st, g, err := openSession(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	domain := opts.Domain
	if domain == "" {
		domain = name
	}

	eff := object.Effect{Domain: types.Domain(domain), Symbol: name}
	data, err := eff.Encode()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode effect", err)
	}
	c, _, err := st.Put("effect", data)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to store effect", err)
	}
	if opts.Doc != "" {
		if err := st.SetEffectDoc(c, opts.Doc); err != nil {
			return WrapExitError(ExitCommandError, "failed to store effect doc", err)
		}
	}
	if err := st.NamePut("effect", name, c); err != nil {
		return WrapExitError(ExitCommandError, "failed to name effect", err)
	}
	if err := saveSession(st, g); err != nil {
		return WrapExitError(ExitCommandError, "failed to persist session", err)
	}
	return formatter(opts.RootOptions, cmd).Success(fmt.Sprintf("effect %q stored as %s", name, c))
}

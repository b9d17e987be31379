// Package prim supplies the Go implementations behind primitive
// objects. original_source/src/exec.rs compiled primitives to native
// code at commit time; this core evaluates them as ordinary Go
// functions looked up by the primitive's CID, the same tradeoff the
// graph interpreter already makes for CALL and APPLY.
package prim

import (
	"fmt"

	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/global"
	"github.com/marchdb/march/internal/marcherr"
	"github.com/marchdb/march/internal/types"
)

// Context carries the state a primitive implementation may need
// beyond its arguments.
type Context struct {
	Globals *global.Store
}

// Func is a primitive's Go implementation: arguments in declared
// parameter order, results in declared result order.
type Func func(ctx Context, args []types.Value) ([]types.Value, error)

// Registry maps a primitive object's CID to its Go implementation.
// Registration happens by CID rather than by name so that a catalog
// import can bind whichever Prim object it has built to the
// implementation it names, without the registry caring what name the
// catalog happened to use.
type Registry struct {
	funcs map[cid.CID]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[cid.CID]Func)}
}

// Register binds c to fn. Re-registering the same CID overwrites the
// previous binding; callers that want immutability should check
// Lookup first.
func (r *Registry) Register(c cid.CID, fn Func) {
	r.funcs[c] = fn
}

// Lookup returns the implementation bound to c, if any.
func (r *Registry) Lookup(c cid.CID) (Func, bool) {
	fn, ok := r.funcs[c]
	return fn, ok
}

// wrongArity is a shared guard for fixed-arity builtins.
func wrongArity(name string, want, got int) error {
	return fmt.Errorf("%w: %s expects %d argument(s), got %d", marcherr.ErrArgumentCountMismatch, name, want, got)
}

func wrongKind(name string, i int, want, got types.Atom) error {
	return fmt.Errorf("%w: %s argument %d: expected %s, got %s", marcherr.ErrTypeMismatch, name, i, want, got)
}

// Package interp implements the graph interpreter: recursive
// demand-driven evaluation of a word's node graph from its RETURN root,
// honoring effect-token linearity, guarded dispatch, and deoptimization
// fallbacks.
package interp

import (
	"fmt"

	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/global"
	"github.com/marchdb/march/internal/marcherr"
	"github.com/marchdb/march/internal/node"
	"github.com/marchdb/march/internal/object"
	"github.com/marchdb/march/internal/prim"
	"github.com/marchdb/march/internal/store"
	"github.com/marchdb/march/internal/types"
)

// Interp evaluates words against an object store and a shared global
// store. One Interp may run many calls; each call gets a fresh
// memoization table.
type Interp struct {
	st      *store.Store
	globals *global.Store
	prims   *prim.Registry

	wordCache map[cid.CID]object.Word
	nodeCache map[cid.CID]node.Node
}

// New returns an interpreter over st and globals, evaluating primitives
// through reg.
func New(st *store.Store, globals *global.Store, reg *prim.Registry) *Interp {
	return &Interp{
		st:        st,
		globals:   globals,
		prims:     reg,
		wordCache: make(map[cid.CID]object.Word),
		nodeCache: make(map[cid.CID]node.Node),
	}
}

// call is per-invocation state: arguments and the memoization table
// that guarantees every effectful node executes exactly once.
type call struct {
	args   []types.Value
	memo   map[cid.CID][]types.Value
	interp *Interp
}

// RunByName resolves name in the word scope and runs it.
func (in *Interp) RunByName(name string, args []types.Value) ([]types.Value, error) {
	c, ok, err := in.st.NameGet("word", name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: word %q", marcherr.ErrUnknownWord, name)
	}
	return in.Run(c, args)
}

// Run evaluates the word at wordCID with args, returning its result
// tuple.
func (in *Interp) Run(wordCID cid.CID, args []types.Value) ([]types.Value, error) {
	w, err := in.loadWord(wordCID)
	if err != nil {
		return nil, err
	}
	if len(args) != len(w.Params) {
		return nil, fmt.Errorf("%w: word %s expects %d args, got %d", marcherr.ErrArgumentCountMismatch, wordCID, len(w.Params), len(args))
	}
	for i, a := range args {
		if a.Kind != w.Params[i] {
			return nil, fmt.Errorf("%w: argument %d: expected %s, got %s", marcherr.ErrTypeMismatch, i, w.Params[i], a.Kind)
		}
	}

	c := &call{args: args, memo: make(map[cid.CID][]types.Value), interp: in}
	root, err := in.loadNode(w.Root)
	if err != nil {
		return nil, err
	}
	if root.Kind != node.KindReturn {
		// Legacy single-result root without an explicit RETURN wrapper:
		// evaluate it directly and treat its outputs as the result
		// tuple (original_source/src/interp.rs's fallback path).
		return c.evalOutputs(w.Root, len(w.Results))
	}
	return c.evalReturn(w.Root, root)
}

func (in *Interp) loadWord(c cid.CID) (object.Word, error) {
	if w, ok := in.wordCache[c]; ok {
		return w, nil
	}
	data, err := in.st.GetKind(c, "word")
	if err != nil {
		return object.Word{}, fmt.Errorf("%w: word %s", marcherr.ErrUnknownWord, c)
	}
	w, err := object.DecodeWord(data)
	if err != nil {
		return object.Word{}, err
	}
	in.wordCache[c] = w
	return w, nil
}

func (in *Interp) loadNode(c cid.CID) (node.Node, error) {
	if n, ok := in.nodeCache[c]; ok {
		return n, nil
	}
	data, err := in.st.GetKind(c, "node")
	if err != nil {
		return node.Node{}, fmt.Errorf("%w: node %s: %v", marcherr.ErrCorruptObject, c, err)
	}
	n, err := node.Decode(data)
	if err != nil {
		return node.Node{}, err
	}
	in.nodeCache[c] = n
	return n, nil
}

// evalOutputs evaluates nodeCID and returns its first n output values.
func (c *call) evalOutputs(nodeCID cid.CID, n int) ([]types.Value, error) {
	vals, err := c.eval(nodeCID)
	if err != nil {
		return nil, err
	}
	if n > len(vals) {
		return nil, fmt.Errorf("%w: node %s has %d outputs, want %d", marcherr.ErrCorruptObject, nodeCID, len(vals), n)
	}
	return vals[:n], nil
}

// evalReturn evaluates RETURN by first driving every dep (forcing
// effectful producers in dependence order), then each val.
func (c *call) evalReturn(nodeCID cid.CID, n node.Node) ([]types.Value, error) {
	for _, d := range n.Return.Deps {
		if _, err := c.eval(d.Producer); err != nil {
			return nil, err
		}
	}
	out := make([]types.Value, len(n.Return.Vals))
	for i, v := range n.Return.Vals {
		vals, err := c.eval(v.Producer)
		if err != nil {
			return nil, err
		}
		if int(v.Port) >= len(vals) {
			return nil, fmt.Errorf("%w: RETURN val %d references out-of-range port %d", marcherr.ErrCorruptObject, i, v.Port)
		}
		out[i] = vals[v.Port]
	}
	return out, nil
}

// eval evaluates nodeCID's full output tuple, memoized by node CID.
func (c *call) eval(nodeCID cid.CID) ([]types.Value, error) {
	if cached, ok := c.memo[nodeCID]; ok {
		return cached, nil
	}
	n, err := c.interp.loadNode(nodeCID)
	if err != nil {
		return nil, err
	}

	var out []types.Value
	switch n.Kind {
	case node.KindLit:
		out = []types.Value{n.Lit}
	case node.KindArg:
		if int(n.ArgIndex) >= len(c.args) {
			return nil, fmt.Errorf("%w: arg index %d, have %d args", marcherr.ErrArgumentCountMismatch, n.ArgIndex, len(c.args))
		}
		out = []types.Value{c.args[n.ArgIndex]}
	case node.KindQuote:
		out = []types.Value{types.QuoteValue(n.Word)}
	case node.KindLoadGlobal:
		out, err = c.evalLoadGlobal(n)
	case node.KindPrim:
		out, err = c.evalPrim(n)
	case node.KindCall:
		out, err = c.evalCall(n)
	case node.KindApply:
		out, err = c.evalApply(n)
	case node.KindIf:
		out, err = c.evalIf(n)
	case node.KindToken:
		out = nil
	case node.KindDispatch:
		out, err = c.evalDispatch(n)
	case node.KindDeopt:
		err = fmt.Errorf("%w: reached DEOPT with no fallback wired", marcherr.ErrGuardFailedNoDeopt)
		if n.DeoptTarget != nil {
			out, err = c.eval(*n.DeoptTarget)
		}
	case node.KindReturn:
		out, err = c.evalReturn(nodeCID, n)
	default:
		err = fmt.Errorf("%w: cannot evaluate reserved/unknown node kind %q", marcherr.ErrExecutionTrap, n.Kind)
	}
	if err != nil {
		return nil, err
	}
	c.memo[nodeCID] = out
	return out, nil
}

func (c *call) evalInputs(inputs []node.Input) ([]types.Value, error) {
	args := make([]types.Value, 0, len(inputs))
	for _, in := range inputs {
		vals, err := c.eval(in.Producer)
		if err != nil {
			return nil, err
		}
		if int(in.Port) >= len(vals) {
			return nil, fmt.Errorf("%w: input references out-of-range port %d", marcherr.ErrCorruptObject, in.Port)
		}
		args = append(args, vals[in.Port])
	}
	return args, nil
}

func (c *call) evalLoadGlobal(n node.Node) ([]types.Value, error) {
	data, err := c.interp.st.GetKind(n.Global, "global")
	if err != nil {
		return nil, err
	}
	g, err := object.DecodeGlobal(data)
	if err != nil {
		return nil, err
	}
	return []types.Value{g.Value}, nil
}

// nonTokenArgCount returns the number of leading inputs that are real
// value arguments (the trailing inputs appended by the builder's token
// acquisition are not part of the primitive/word's declared arity and
// must be excluded from evalInputs' argument slice before dispatch).
func nonTokenArgCount(params []types.Atom) int { return len(params) }

func (c *call) evalPrim(n node.Node) ([]types.Value, error) {
	data, err := c.interp.st.GetKind(n.Prim, "prim")
	if err != nil {
		return nil, fmt.Errorf("%w: prim %s", marcherr.ErrUnknownPrim, n.Prim)
	}
	p, err := object.DecodePrim(data)
	if err != nil {
		return nil, err
	}
	argInputs := n.Inputs[:nonTokenArgCount(p.Params)]
	args, err := c.evalInputs(argInputs)
	if err != nil {
		return nil, err
	}
	fn, ok := c.interp.prims.Lookup(n.Prim)
	if !ok {
		return nil, fmt.Errorf("%w: prim %s has no registered implementation", marcherr.ErrUnknownPrim, n.Prim)
	}
	return fn(prim.Context{Globals: c.interp.globals}, args)
}

func (c *call) evalCall(n node.Node) ([]types.Value, error) {
	w, err := c.interp.loadWord(n.Word)
	if err != nil {
		return nil, err
	}
	argInputs := n.Inputs[:nonTokenArgCount(w.Params)]
	args, err := c.evalInputs(argInputs)
	if err != nil {
		return nil, err
	}
	return c.interp.Run(n.Word, args)
}

func (c *call) evalApply(n node.Node) ([]types.Value, error) {
	// n.Inputs[0] is the quote; remaining non-token inputs are args.
	quoteVals, err := c.eval(n.Inputs[0].Producer)
	if err != nil {
		return nil, err
	}
	q := quoteVals[n.Inputs[0].Port]
	if q.Kind != types.Quote {
		return nil, fmt.Errorf("%w: apply input is not a quote", marcherr.ErrTypeMismatch)
	}
	w, err := c.interp.loadWord(q.Quote)
	if err != nil {
		return nil, err
	}
	argInputs := n.Inputs[1 : 1+len(w.Params)]
	args, err := c.evalInputs(argInputs)
	if err != nil {
		return nil, err
	}
	return c.interp.Run(q.Quote, args)
}

func (c *call) evalIf(n node.Node) ([]types.Value, error) {
	condVals, err := c.eval(n.Inputs[0].Producer)
	if err != nil {
		return nil, err
	}
	cond := condVals[n.Inputs[0].Port]
	if cond.Kind != types.I64 {
		return nil, fmt.Errorf("%w: if condition must be i64", marcherr.ErrTypeMismatch)
	}
	branch := n.IfFalse
	if cond.I64 != 0 {
		branch = n.IfTrue
	}
	return c.interp.Run(branch, c.args)
}

// evalDispatch walks the DISPATCH case table in order, invoking the
// first guard that returns nonzero; falls back to DEOPT otherwise.
// Legacy three-field cases (no CandidateParams/Effects) are handled the
// same way: the guard word alone decides the match.
func (c *call) evalDispatch(n node.Node) ([]types.Value, error) {
	for _, dc := range n.Dispatch {
		guardVals, err := c.interp.Run(dc.GuardWord, c.args)
		if err != nil {
			return nil, err
		}
		if len(guardVals) != 1 || guardVals[0].Kind != types.I64 {
			return nil, fmt.Errorf("%w: guard %s did not return a single i64", marcherr.ErrTypeMismatch, dc.GuardWord)
		}
		if guardVals[0].I64 != 0 {
			return c.interp.Run(dc.Candidate, c.args)
		}
	}
	if n.DeoptTarget != nil {
		return c.interp.Run(*n.DeoptTarget, c.args)
	}
	return nil, marcherr.ErrGuardFailedNoDeopt
}

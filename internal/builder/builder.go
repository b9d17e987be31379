// Package builder implements the stack-machine graph builder: it
// compiles a linear sequence of typed operations into a DAG of node
// objects plus a RETURN root, threading per-domain effect tokens and
// enforcing the builder invariants from spec §4.3.
package builder

import (
	"fmt"

	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/marcherr"
	"github.com/marchdb/march/internal/node"
	"github.com/marchdb/march/internal/object"
	"github.com/marchdb/march/internal/store"
	"github.com/marchdb/march/internal/tokenpool"
	"github.com/marchdb/march/internal/types"
)

// StackItem tracks a producer CID, output port, and type for one value
// currently available on the builder's data stack.
type StackItem struct {
	Producer cid.CID
	Port     uint32
	Type     types.Atom
}

// Builder incrementally compiles a word or guard body against an
// object store.
type Builder struct {
	st *store.Store

	stack      []StackItem
	paramTypes []types.Atom

	primCache map[cid.CID]object.Prim
	wordCache map[cid.CID]object.Word
	argNodes  map[uint32]cid.CID

	pool *tokenpool.Pool

	// declaredEffects is the word's own declared effect CID list; every
	// effectful node's declared effects must be a subset of it (spec §8
	// builder invariant).
	declaredEffects map[cid.CID]bool
	declaredDomains map[types.Domain]bool

	// release mode elides optional-domain token misses (test, metric)
	// as a no-op instead of failing the compile.
	release bool
}

// New returns a builder backed by an already-opened store.
func New(st *store.Store, release bool) *Builder {
	return &Builder{
		st:        st,
		primCache: make(map[cid.CID]object.Prim),
		wordCache: make(map[cid.CID]object.Word),
		release:   release,
	}
}

// BeginWord resets the builder for a new word body: seeds ARG nodes for
// each parameter and a synthetic TOKEN node per declared effect domain
// (spec §4.3 "Initial token state").
func (b *Builder) BeginWord(params []types.Atom, declaredEffects []cid.CID) error {
	b.stack = nil
	b.paramTypes = params
	b.argNodes = make(map[uint32]cid.CID)
	b.pool = tokenpool.New()
	b.declaredEffects = make(map[cid.CID]bool, len(declaredEffects))
	b.declaredDomains = make(map[types.Domain]bool)

	for _, e := range declaredEffects {
		b.declaredEffects[e] = true
		dom, err := b.domainOf(e)
		if err != nil {
			return err
		}
		b.declaredDomains[dom] = true
	}

	for dom := range b.declaredDomains {
		tok := node.Node{Kind: node.KindToken, Outs: nil, Effects: nil}
		tokCID, err := b.storeNode(tok)
		if err != nil {
			return err
		}
		b.pool.Seed(dom, tokCID)
	}

	for idx, ty := range params {
		n := node.Node{
			Kind:     node.KindArg,
			Outs:     []types.Atom{ty},
			ArgIndex: uint32(idx),
		}
		c, err := b.storeNode(n)
		if err != nil {
			return err
		}
		b.argNodes[uint32(idx)] = c
	}
	return nil
}

// PushArg pushes the i-th parameter's ARG node onto the stack. The ARG
// node itself is emitted once per index at BeginWord; PushArg may be
// called any number of times to reuse it (spec §4.3's `push_arg`).
func (b *Builder) PushArg(i uint32, ty types.Atom) (cid.CID, error) {
	c, ok := b.argNodes[i]
	if !ok {
		return cid.CID{}, fmt.Errorf("%w: no such parameter index %d", marcherr.ErrStackUnderflow, i)
	}
	b.stack = append(b.stack, StackItem{Producer: c, Port: 0, Type: ty})
	return c, nil
}

// Depth returns the current data-stack depth.
func (b *Builder) Depth() int { return len(b.stack) }

func (b *Builder) storeNode(n node.Node) (cid.CID, error) {
	data, err := n.Encode()
	if err != nil {
		return cid.CID{}, err
	}
	c, _, err := b.st.Put("node", data)
	if err != nil {
		return cid.CID{}, err
	}
	return c, nil
}

func (b *Builder) domainOf(effectCID cid.CID) (types.Domain, error) {
	data, err := b.st.GetKind(effectCID, "effect")
	if err != nil {
		return "", fmt.Errorf("resolve effect domain: %w", err)
	}
	eff, err := object.DecodeEffect(data)
	if err != nil {
		return "", err
	}
	return eff.Domain, nil
}

func (b *Builder) loadPrim(c cid.CID) (object.Prim, error) {
	if p, ok := b.primCache[c]; ok {
		return p, nil
	}
	data, err := b.st.GetKind(c, "prim")
	if err != nil {
		return object.Prim{}, fmt.Errorf("%w: prim %s", marcherr.ErrUnknownPrim, c)
	}
	p, err := object.DecodePrim(data)
	if err != nil {
		return object.Prim{}, err
	}
	b.primCache[c] = p
	return p, nil
}

func (b *Builder) loadWord(c cid.CID) (object.Word, error) {
	if w, ok := b.wordCache[c]; ok {
		return w, nil
	}
	data, err := b.st.GetKind(c, "word")
	if err != nil {
		return object.Word{}, fmt.Errorf("%w: word %s", marcherr.ErrUnknownWord, c)
	}
	w, err := object.DecodeWord(data)
	if err != nil {
		return object.Word{}, err
	}
	b.wordCache[c] = w
	return w, nil
}

// pop removes and returns the top n stack items in push order
// (oldest-to-newest, i.e. positional argument order).
func (b *Builder) pop(n int) ([]StackItem, error) {
	if len(b.stack) < n {
		return nil, fmt.Errorf("%w: need %d, have %d", marcherr.ErrStackUnderflow, n, len(b.stack))
	}
	items := make([]StackItem, n)
	copy(items, b.stack[len(b.stack)-n:])
	b.stack = b.stack[:len(b.stack)-n]
	return items, nil
}

func (b *Builder) checkTypes(items []StackItem, want []types.Atom) error {
	if len(items) != len(want) {
		return fmt.Errorf("%w: arity %d != %d", marcherr.ErrTypeMismatch, len(items), len(want))
	}
	for i, it := range items {
		if it.Type != want[i] {
			return fmt.Errorf("%w: argument %d: expected %s, got %s", marcherr.ErrTypeMismatch, i, want[i], it.Type)
		}
	}
	return nil
}

// acquireTokens runs the token-acquisition rule from spec §4.3 for a
// prim/word/apply invocation declaring effects. It returns the input
// edges to thread (one TOKEN-bearing input per touched domain) and
// updates the pool's write handles. mask tells it which domains need a
// write token vs. a read token.
func (b *Builder) acquireTokens(declared []cid.CID, mask types.EffectMask) ([]node.Input, []types.Domain, error) {
	domainSet := map[types.Domain]bool{}
	for _, e := range declared {
		if !b.declaredEffects[e] {
			return nil, nil, fmt.Errorf("%w: effect %s not declared by enclosing word", marcherr.ErrGuardRejectsEffect, e)
		}
		dom, err := b.domainOf(e)
		if err != nil {
			return nil, nil, err
		}
		domainSet[dom] = true
	}
	domains := types.SortDomains(domainSet)

	var extraInputs []node.Input
	var touched []types.Domain
	for _, dom := range domains {
		perm := mask.PermFor(dom)
		h, err := b.pool.Acquire(dom, perm)
		if err != nil {
			if b.release && types.OptionalDomains[dom] {
				continue
			}
			return nil, nil, err
		}
		extraInputs = append(extraInputs, node.Input{Producer: h.Node, Port: 0})
		touched = append(touched, dom)
	}
	return extraInputs, touched, nil
}

func (b *Builder) releaseTokens(touched []types.Domain, producer cid.CID, mask types.EffectMask) {
	for _, dom := range touched {
		if mask.PermFor(dom) == types.PermWrite {
			b.pool.Release(dom, producer)
		}
	}
}

// PushLit pushes a literal value node.
func (b *Builder) PushLit(v types.Value) (cid.CID, error) {
	n := node.Node{Kind: node.KindLit, Outs: []types.Atom{v.Kind}, Lit: v}
	c, err := b.storeNode(n)
	if err != nil {
		return cid.CID{}, err
	}
	b.stack = append(b.stack, StackItem{Producer: c, Port: 0, Type: v.Kind})
	return c, nil
}

// PushGlobal pushes a LOAD_GLOBAL node referencing the immutable Global
// object at globalCID. This reads a build-time constant snapshot, never
// the mutable runtime global store, which is reachable only through
// state primitives.
func (b *Builder) PushGlobal(globalCID cid.CID, ty types.Atom) (cid.CID, error) {
	n := node.Node{Kind: node.KindLoadGlobal, Outs: []types.Atom{ty}, Global: globalCID}
	c, err := b.storeNode(n)
	if err != nil {
		return cid.CID{}, err
	}
	b.stack = append(b.stack, StackItem{Producer: c, Port: 0, Type: ty})
	return c, nil
}

// Dup, Swap, Over, Drop, Nip, Tuck, Rot, RotMinus are pure stack
// rewiring operations; none emit nodes (spec §4.3 and
// original_source/src/builder.rs).

func (b *Builder) Dup() error {
	if len(b.stack) < 1 {
		return fmt.Errorf("%w: dup", marcherr.ErrStackUnderflow)
	}
	top := b.stack[len(b.stack)-1]
	b.stack = append(b.stack, top)
	return nil
}

func (b *Builder) Swap() error {
	n := len(b.stack)
	if n < 2 {
		return fmt.Errorf("%w: swap", marcherr.ErrStackUnderflow)
	}
	b.stack[n-1], b.stack[n-2] = b.stack[n-2], b.stack[n-1]
	return nil
}

func (b *Builder) Over() error {
	n := len(b.stack)
	if n < 2 {
		return fmt.Errorf("%w: over", marcherr.ErrStackUnderflow)
	}
	b.stack = append(b.stack, b.stack[n-2])
	return nil
}

func (b *Builder) Drop() error {
	if len(b.stack) < 1 {
		return fmt.Errorf("%w: drop", marcherr.ErrStackUnderflow)
	}
	b.stack = b.stack[:len(b.stack)-1]
	return nil
}

func (b *Builder) Nip() error {
	n := len(b.stack)
	if n < 2 {
		return fmt.Errorf("%w: nip", marcherr.ErrStackUnderflow)
	}
	b.stack = append(b.stack[:n-2], b.stack[n-1])
	return nil
}

func (b *Builder) Tuck() error {
	n := len(b.stack)
	if n < 2 {
		return fmt.Errorf("%w: tuck", marcherr.ErrStackUnderflow)
	}
	top, second := b.stack[n-1], b.stack[n-2]
	b.stack[n-2] = top
	b.stack[n-1] = second
	b.stack = append(b.stack, top)
	return nil
}

func (b *Builder) Rot() error {
	n := len(b.stack)
	if n < 3 {
		return fmt.Errorf("%w: rot", marcherr.ErrStackUnderflow)
	}
	a, bb, c := b.stack[n-3], b.stack[n-2], b.stack[n-1]
	b.stack[n-3], b.stack[n-2], b.stack[n-1] = bb, c, a
	return nil
}

func (b *Builder) RotMinus() error {
	n := len(b.stack)
	if n < 3 {
		return fmt.Errorf("%w: -rot", marcherr.ErrStackUnderflow)
	}
	a, bb, c := b.stack[n-3], b.stack[n-2], b.stack[n-1]
	b.stack[n-3], b.stack[n-2], b.stack[n-1] = c, a, bb
	return nil
}

// applyGeneral pops arity args, type-checks, emits a kind node
// referencing objCID, threads tokens for declared, and pushes results.
func (b *Builder) applyGeneral(kind node.Kind, objCID cid.CID, params, results []types.Atom, declared []cid.CID, mask types.EffectMask) (cid.CID, error) {
	args, err := b.pop(len(params))
	if err != nil {
		return cid.CID{}, err
	}
	if err := b.checkTypes(args, params); err != nil {
		return cid.CID{}, err
	}

	extraInputs, touched, err := b.acquireTokens(declared, mask)
	if err != nil {
		return cid.CID{}, err
	}

	inputs := make([]node.Input, 0, len(args)+len(extraInputs))
	for _, a := range args {
		inputs = append(inputs, node.Input{Producer: a.Producer, Port: a.Port})
	}
	inputs = append(inputs, extraInputs...)

	n := node.Node{Kind: kind, Inputs: inputs, Outs: results, Effects: cid.SortCIDs(append([]cid.CID{}, declared...))}
	switch kind {
	case node.KindPrim:
		n.Prim = objCID
	case node.KindCall:
		n.Word = objCID
	default:
		return cid.CID{}, fmt.Errorf("applyGeneral: unsupported kind %s", kind)
	}

	c, err := b.storeNode(n)
	if err != nil {
		return cid.CID{}, err
	}
	b.releaseTokens(touched, c, mask)

	for i, r := range results {
		b.stack = append(b.stack, StackItem{Producer: c, Port: uint32(i), Type: r})
	}
	return c, nil
}

// Prim applies a primitive by CID, using mask to resolve the
// read/write permission each declared effect domain needs.
func (b *Builder) Prim(primCID cid.CID, mask types.EffectMask) (cid.CID, error) {
	p, err := b.loadPrim(primCID)
	if err != nil {
		return cid.CID{}, err
	}
	return b.applyGeneral(node.KindPrim, primCID, p.Params, p.Results, p.Effects, mask)
}

// Call invokes a word by CID with the same token discipline as Prim.
func (b *Builder) Call(wordCID cid.CID, mask types.EffectMask) (cid.CID, error) {
	w, err := b.loadWord(wordCID)
	if err != nil {
		return cid.CID{}, err
	}
	return b.applyGeneral(node.KindCall, wordCID, w.Params, w.Results, w.Effects, mask)
}

// Quote pushes a quote value referencing wordCID, emitting a QUOTE node.
func (b *Builder) Quote(wordCID cid.CID) (cid.CID, error) {
	n := node.Node{Kind: node.KindQuote, Outs: []types.Atom{types.Quote}, Word: wordCID}
	c, err := b.storeNode(n)
	if err != nil {
		return cid.CID{}, err
	}
	b.stack = append(b.stack, StackItem{Producer: c, Port: 0, Type: types.Quote})
	return c, nil
}

// Apply consumes a quote plus its arguments and pushes results declared
// by rets, threading tokens for the declared effect list.
func (b *Builder) Apply(params, rets []types.Atom, declared []cid.CID, mask types.EffectMask) (cid.CID, error) {
	args, err := b.pop(len(params))
	if err != nil {
		return cid.CID{}, err
	}
	quote, err := b.pop(1)
	if err != nil {
		return cid.CID{}, err
	}
	if quote[0].Type != types.Quote {
		return cid.CID{}, fmt.Errorf("%w: apply expects a quote on top of its arguments", marcherr.ErrTypeMismatch)
	}
	if err := b.checkTypes(args, params); err != nil {
		return cid.CID{}, err
	}

	extraInputs, touched, err := b.acquireTokens(declared, mask)
	if err != nil {
		return cid.CID{}, err
	}

	inputs := []node.Input{{Producer: quote[0].Producer, Port: quote[0].Port}}
	for _, a := range args {
		inputs = append(inputs, node.Input{Producer: a.Producer, Port: a.Port})
	}
	inputs = append(inputs, extraInputs...)

	n := node.Node{
		Kind:    node.KindApply,
		Inputs:  inputs,
		Outs:    rets,
		Effects: cid.SortCIDs(append([]cid.CID{}, declared...)),
		Word:    quote[0].Producer,
	}
	c, err := b.storeNode(n)
	if err != nil {
		return cid.CID{}, err
	}
	b.releaseTokens(touched, c, mask)
	for i, r := range rets {
		b.stack = append(b.stack, StackItem{Producer: c, Port: uint32(i), Type: r})
	}
	return c, nil
}

// If consumes a condition and emits an IF node wired to the two branch
// words, then pushes one stack item per entry of results. The branch
// words' own result signatures are not checked against results.
func (b *Builder) If(trueWord, falseWord cid.CID, results []types.Atom) (cid.CID, error) {
	cond, err := b.pop(1)
	if err != nil {
		return cid.CID{}, err
	}
	if cond[0].Type != types.I64 {
		return cid.CID{}, fmt.Errorf("%w: if condition must be i64", marcherr.ErrTypeMismatch)
	}
	n := node.Node{
		Kind:    node.KindIf,
		Inputs:  []node.Input{{Producer: cond[0].Producer, Port: cond[0].Port}},
		Outs:    results,
		IfTrue:  trueWord,
		IfFalse: falseWord,
	}
	c, err := b.storeNode(n)
	if err != nil {
		return cid.CID{}, err
	}
	for i, r := range results {
		b.stack = append(b.stack, StackItem{Producer: c, Port: uint32(i), Type: r})
	}
	return c, nil
}

// AttachGuard records a guard word CID for attachment by the caller
// (guard-builder mode records the CID; dispatch synthesis in the
// catalog importer consumes it).
func (b *Builder) AttachGuard(guardWordCID cid.CID) (cid.CID, error) {
	w, err := b.loadWord(guardWordCID)
	if err != nil {
		return cid.CID{}, err
	}
	if !w.IsGuardShape() {
		return cid.CID{}, fmt.Errorf("%w: word %s is not guard-shaped (single i64 result, no effects)", marcherr.ErrTypeMismatch, guardWordCID)
	}
	return guardWordCID, nil
}

// FinishWord validates the final stack depth, emits the RETURN node and
// the WORD object, and optionally registers a display name.
func (b *Builder) FinishWord(results []types.Atom, declaredEffects []cid.CID, name string) (cid.CID, cid.CID, error) {
	if len(b.stack) != len(results) {
		return cid.CID{}, cid.CID{}, fmt.Errorf("%w: expected %d results, have %d on stack", marcherr.ErrStackUnderflow, len(results), len(b.stack))
	}
	for i, it := range b.stack {
		if it.Type != results[i] {
			return cid.CID{}, cid.CID{}, fmt.Errorf("%w: result %d: expected %s, got %s", marcherr.ErrTypeMismatch, i, results[i], it.Type)
		}
	}

	vals := make([]node.Input, len(b.stack))
	for i, it := range b.stack {
		vals[i] = node.Input{Producer: it.Producer, Port: it.Port}
	}

	var deps []node.Input
	for _, dom := range b.pool.Domains() {
		if frontier, ok := b.pool.Frontier(dom); ok {
			deps = append(deps, node.Input{Producer: frontier, Port: 0})
		}
	}
	deps = dedupSortInputs(deps)

	ret := node.Node{
		Kind:    node.KindReturn,
		Outs:    results,
		Return:  node.ReturnPayload{Vals: vals, Deps: deps},
	}
	rootCID, err := b.storeNode(ret)
	if err != nil {
		return cid.CID{}, cid.CID{}, err
	}

	w := object.Word{Root: rootCID, Params: b.paramTypes, Results: results, Effects: cid.SortCIDs(append([]cid.CID{}, declaredEffects...))}
	data, err := w.Encode()
	if err != nil {
		return cid.CID{}, cid.CID{}, err
	}
	wordCID, _, err := b.st.Put("word", data)
	if err != nil {
		return cid.CID{}, cid.CID{}, err
	}

	if name != "" {
		if err := b.st.NamePut("word", name, wordCID); err != nil {
			return cid.CID{}, cid.CID{}, err
		}
	}
	return wordCID, rootCID, nil
}

func dedupSortInputs(inputs []node.Input) []node.Input {
	cids := make([]cid.CID, len(inputs))
	byCID := make(map[cid.CID]node.Input, len(inputs))
	for i, in := range inputs {
		cids[i] = in.Producer
		byCID[in.Producer] = in
	}
	sortedCIDs := cid.Dedup(cid.SortCIDs(cids))
	out := make([]node.Input, len(sortedCIDs))
	for i, c := range sortedCIDs {
		out[i] = byCID[c]
	}
	return out
}

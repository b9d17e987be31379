// Package node implements the canonical Node object: the core IR unit
// of the graph builder and interpreter.
package node

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/marchdb/march/internal/canon"
	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/marcherr"
	"github.com/marchdb/march/internal/types"
)

// Kind enumerates the node variants the builder emits and the
// interpreter evaluates.
type Kind string

const (
	KindLit         Kind = "LIT"
	KindPrim        Kind = "PRIM"
	KindCall        Kind = "CALL"
	KindApply       Kind = "APPLY"
	KindArg         Kind = "ARG"
	KindLoadGlobal  Kind = "LOAD_GLOBAL"
	KindQuote       Kind = "QUOTE"
	KindIf          Kind = "IF"
	KindToken       Kind = "TOKEN"
	KindDeopt       Kind = "DEOPT"
	KindDispatch    Kind = "DISPATCH"
	KindReturn      Kind = "RETURN"

	// Reserved, interaction-net-only kinds from the ABI this core does
	// not wire in (spec §9 Open Questions). Encoding one is a fatal
	// ErrReservedNodeKind, not a panic: a front end may legally probe
	// whether they are supported before emitting them.
	KindPair   Kind = "PAIR"
	KindUnpair Kind = "UNPAIR"
)

var knownKinds = map[Kind]bool{
	KindLit: true, KindPrim: true, KindCall: true, KindApply: true,
	KindArg: true, KindLoadGlobal: true, KindQuote: true, KindIf: true,
	KindToken: true, KindDeopt: true, KindDispatch: true, KindReturn: true,
	KindPair: true, KindUnpair: true,
}

var reservedKinds = map[Kind]bool{KindPair: true, KindUnpair: true}

// Input is an edge into a node: the producer's CID and the specific
// output port consumed.
type Input struct {
	Producer cid.CID
	Port     uint32
}

// ReturnPayload is RETURN's payload: vals ordered by return position,
// deps sorted+deduped for effect sequencing.
type ReturnPayload struct {
	Vals []Input
	Deps []Input
}

// DispatchCase is one row of a DISPATCH node's case table.
type DispatchCase struct {
	GuardWord        cid.CID
	Candidate        cid.CID
	CandidateParams  []types.Atom
	CandidateEffects []cid.CID
}

// Node is the core IR unit.
type Node struct {
	Kind    Kind
	Inputs  []Input // order-preserving; empty for RETURN
	Outs    []types.Atom
	Effects []cid.CID // sorted

	// Only the fields that belong to Kind are populated.
	Lit          types.Value // LIT
	Prim         cid.CID     // PRIM
	Word         cid.CID     // CALL, QUOTE; APPLY's qid
	ApplyTypeKey *cid.CID    // APPLY (optional second field)
	ArgIndex     uint32      // ARG
	Global       cid.CID     // LOAD_GLOBAL
	IfTrue       cid.CID     // IF
	IfFalse      cid.CID     // IF
	Return       ReturnPayload // RETURN
	Dispatch     []DispatchCase // DISPATCH
	DeoptTarget  *cid.CID       // DEOPT, DISPATCH; nil means terminal error, set means fallback call target
}

type inputCanon struct {
	_        struct{} `cbor:",toarray"`
	Producer []byte
	Port     uint32
}

type nodeCanon struct {
	_       struct{} `cbor:",toarray"`
	Tag     uint8
	Kind    string
	Inputs  []inputCanon
	Outs    []string
	Effects [][]byte
	Payload cbor.RawMessage
}

func encodeInputs(inputs []Input) []inputCanon {
	out := make([]inputCanon, len(inputs))
	for i, in := range inputs {
		out[i] = inputCanon{Producer: in.Producer.Bytes(), Port: in.Port}
	}
	return out
}

func decodeInputs(raw []inputCanon) ([]Input, error) {
	out := make([]Input, len(raw))
	for i, r := range raw {
		c, err := cid.FromSlice(r.Producer)
		if err != nil {
			return nil, fmt.Errorf("%w: input %d: %v", marcherr.ErrCorruptObject, i, err)
		}
		out[i] = Input{Producer: c, Port: r.Port}
	}
	return out, nil
}

// Encode serializes n into its canonical six-tuple
// [6, kind_tag, inputs, outs, effects, payload]. Regular node inputs
// preserve caller order (positional arguments to PRIM/CALL/APPLY are
// not reorderable); only RETURN's deps list is required to already be
// sorted+deduped, matching original_source's encode_inputs_preserve vs.
// encode_inputs_sorted split.
func (n Node) Encode() ([]byte, error) {
	if !knownKinds[n.Kind] {
		return nil, fmt.Errorf("%w: unknown node kind %q", marcherr.ErrInvalidCanonicalForm, n.Kind)
	}
	if reservedKinds[n.Kind] {
		return nil, fmt.Errorf("%w: %s", marcherr.ErrReservedNodeKind, n.Kind)
	}
	if n.Kind == KindReturn && len(n.Inputs) != 0 {
		return nil, fmt.Errorf("%w: RETURN node must have empty inputs; edges live in its payload", marcherr.ErrInvalidCanonicalForm)
	}
	if err := canon.CIDList(n.Effects).RequireSortedUnique("node.effects"); err != nil {
		return nil, err
	}
	if err := validatePorts(n.Inputs); err != nil {
		return nil, err
	}

	payload, err := encodePayload(n)
	if err != nil {
		return nil, err
	}

	c := nodeCanon{
		Tag:     uint8(canon.TagNode),
		Kind:    string(n.Kind),
		Inputs:  encodeInputs(n.Inputs),
		Outs:    types.AtomsToStrings(n.Outs),
		Effects: cidsToBytes(n.Effects),
		Payload: payload,
	}
	return canon.Marshal(c)
}

// validatePorts rejects duplicate input ports with identical producers
// and checks for structurally nonsensical negative-equivalent indices
// (ports are unsigned here, so only the duplicate check applies).
func validatePorts(inputs []Input) error {
	seen := make(map[Input]bool, len(inputs))
	for _, in := range inputs {
		if seen[in] {
			return fmt.Errorf("%w: duplicate input port with identical producer %s/%d", marcherr.ErrInvalidCanonicalForm, in.Producer, in.Port)
		}
		seen[in] = true
	}
	return nil
}

// Hash encodes and hashes n.
func (n Node) Hash() (cid.CID, []byte, error) {
	data, err := n.Encode()
	if err != nil {
		return cid.CID{}, nil, err
	}
	return cid.Compute(data), data, nil
}

func cidsToBytes(cids []cid.CID) [][]byte {
	out := make([][]byte, len(cids))
	for i, c := range cids {
		out[i] = c.Bytes()
	}
	return out
}

func bytesToCIDs(raw [][]byte) ([]cid.CID, error) {
	out := make([]cid.CID, len(raw))
	for i, b := range raw {
		c, err := cid.FromSlice(b)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", marcherr.ErrCorruptObject, err)
		}
		out[i] = c
	}
	return out, nil
}

// Decode parses canonical bytes back into a Node.
func Decode(data []byte) (Node, error) {
	var c nodeCanon
	if err := canon.Unmarshal(data, &c); err != nil {
		return Node{}, fmt.Errorf("%w: node: %v", marcherr.ErrCorruptObject, err)
	}
	if c.Tag != uint8(canon.TagNode) {
		return Node{}, fmt.Errorf("%w: node tag mismatch: %d", marcherr.ErrCorruptObject, c.Tag)
	}
	kind := Kind(c.Kind)
	if !knownKinds[kind] {
		return Node{}, fmt.Errorf("%w: unknown node kind %q", marcherr.ErrCorruptObject, c.Kind)
	}
	inputs, err := decodeInputs(c.Inputs)
	if err != nil {
		return Node{}, err
	}
	outs, err := types.StringsToAtoms(c.Outs)
	if err != nil {
		return Node{}, err
	}
	effects, err := bytesToCIDs(c.Effects)
	if err != nil {
		return Node{}, err
	}
	n := Node{Kind: kind, Inputs: inputs, Outs: outs, Effects: effects}
	if err := decodePayload(&n, c.Payload); err != nil {
		return Node{}, err
	}
	return n, nil
}

package node

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/marchdb/march/internal/canon"
	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/marcherr"
	"github.com/marchdb/march/internal/types"
)

type applyPayloadCanon struct {
	_        struct{} `cbor:",toarray"`
	QID      []byte
	TypeKey  []byte // empty slice when absent
}

type ifPayloadCanon struct {
	_       struct{} `cbor:",toarray"`
	True    []byte
	False   []byte
}

type returnPayloadCanon struct {
	_    struct{} `cbor:",toarray"`
	Vals []inputCanon
	Deps []inputCanon
}

type dispatchCaseCanon struct {
	_                struct{} `cbor:",toarray"`
	GuardWord        []byte
	Candidate        []byte
	CandidateParams  []string
	CandidateEffects [][]byte
}

// legacyDispatchCaseCanon is the predating three-field shape: name,
// candidate, inline guard CID, with no lowered guard graph.
type legacyDispatchCaseCanon struct {
	_         struct{} `cbor:",toarray"`
	Name      string
	Candidate []byte
	GuardCID  []byte
}

type dispatchPayloadCanon struct {
	_       struct{} `cbor:",toarray"`
	Cases   []cbor.RawMessage
	Fallback []byte // empty when no DEOPT target recorded inline
}

func encodePayload(n Node) (cbor.RawMessage, error) {
	switch n.Kind {
	case KindLit:
		raw, err := canon.EncodeValue(n.Lit)
		if err != nil {
			return nil, err
		}
		return raw, nil
	case KindPrim:
		return marshalRaw(n.Prim.Bytes())
	case KindCall, KindQuote:
		return marshalRaw(n.Word.Bytes())
	case KindApply:
		typeKey := []byte{}
		if n.ApplyTypeKey != nil {
			typeKey = n.ApplyTypeKey.Bytes()
		}
		return marshalRaw(applyPayloadCanon{QID: n.Word.Bytes(), TypeKey: typeKey})
	case KindArg:
		return marshalRaw(n.ArgIndex)
	case KindLoadGlobal:
		return marshalRaw(n.Global.Bytes())
	case KindIf:
		return marshalRaw(ifPayloadCanon{True: n.IfTrue.Bytes(), False: n.IfFalse.Bytes()})
	case KindToken, KindDeopt:
		fallback := []byte{}
		if n.Kind == KindDeopt && n.DeoptTarget != nil {
			fallback = n.DeoptTarget.Bytes()
		}
		return marshalRaw(fallback)
	case KindDispatch:
		if err := canon.CIDList(dispatchGuardCIDs(n.Dispatch)).RequireSortedUnique("node.dispatch.cases"); err != nil {
			return nil, err
		}
		cases := make([]cbor.RawMessage, len(n.Dispatch))
		for i, dc := range n.Dispatch {
			raw, err := marshalRaw(dispatchCaseCanon{
				GuardWord:        dc.GuardWord.Bytes(),
				Candidate:        dc.Candidate.Bytes(),
				CandidateParams:  types.AtomsToStrings(dc.CandidateParams),
				CandidateEffects: cidsToBytes(dc.CandidateEffects),
			})
			if err != nil {
				return nil, err
			}
			cases[i] = raw
		}
		fallback := []byte{}
		if n.DeoptTarget != nil {
			fallback = n.DeoptTarget.Bytes()
		}
		return marshalRaw(dispatchPayloadCanon{Cases: cases, Fallback: fallback})
	case KindReturn:
		deps := make([]cid.CID, len(n.Return.Deps))
		for i, d := range n.Return.Deps {
			deps[i] = d.Producer
		}
		if err := canon.CIDList(deps).RequireSortedUnique("node.return.deps"); err != nil {
			return nil, err
		}
		return marshalRaw(returnPayloadCanon{
			Vals: encodeInputs(n.Return.Vals),
			Deps: encodeInputs(requireSortedDeps(n.Return.Deps)),
		})
	default:
		return nil, fmt.Errorf("%w: no payload encoder for kind %q", marcherr.ErrInvalidCanonicalForm, n.Kind)
	}
}

// requireSortedDeps is a passthrough that documents the precondition;
// callers (the builder) are responsible for sorting+deduping deps
// before constructing the node, matching the spec's encode-time
// rejection of unsorted input rather than silent reordering.
func requireSortedDeps(deps []Input) []Input {
	return deps
}

func dispatchGuardCIDs(cases []DispatchCase) []cid.CID {
	out := make([]cid.CID, len(cases))
	for i, c := range cases {
		out[i] = c.GuardWord
	}
	return out
}

func marshalRaw(v any) (cbor.RawMessage, error) {
	data, err := canon.Marshal(v)
	if err != nil {
		return nil, err
	}
	return cbor.RawMessage(data), nil
}

func decodePayload(n *Node, payload cbor.RawMessage) error {
	switch n.Kind {
	case KindLit:
		atom := types.Unit
		if len(n.Outs) > 0 {
			atom = n.Outs[0]
		}
		v, err := canon.DecodeValue(atom, payload)
		if err != nil {
			return err
		}
		n.Lit = v
		return nil
	case KindPrim:
		var b []byte
		if err := canon.Unmarshal(payload, &b); err != nil {
			return wrapCorrupt("prim payload", err)
		}
		c, err := cid.FromSlice(b)
		if err != nil {
			return wrapCorrupt("prim payload cid", err)
		}
		n.Prim = c
		return nil
	case KindCall, KindQuote:
		var b []byte
		if err := canon.Unmarshal(payload, &b); err != nil {
			return wrapCorrupt("word payload", err)
		}
		c, err := cid.FromSlice(b)
		if err != nil {
			return wrapCorrupt("word payload cid", err)
		}
		n.Word = c
		return nil
	case KindApply:
		var ap applyPayloadCanon
		if err := canon.Unmarshal(payload, &ap); err != nil {
			return wrapCorrupt("apply payload", err)
		}
		c, err := cid.FromSlice(ap.QID)
		if err != nil {
			return wrapCorrupt("apply qid", err)
		}
		n.Word = c
		if len(ap.TypeKey) > 0 {
			tk, err := cid.FromSlice(ap.TypeKey)
			if err != nil {
				return wrapCorrupt("apply typekey", err)
			}
			n.ApplyTypeKey = &tk
		}
		return nil
	case KindArg:
		var idx uint32
		if err := canon.Unmarshal(payload, &idx); err != nil {
			return wrapCorrupt("arg payload", err)
		}
		n.ArgIndex = idx
		return nil
	case KindLoadGlobal:
		var b []byte
		if err := canon.Unmarshal(payload, &b); err != nil {
			return wrapCorrupt("load_global payload", err)
		}
		c, err := cid.FromSlice(b)
		if err != nil {
			return wrapCorrupt("load_global cid", err)
		}
		n.Global = c
		return nil
	case KindIf:
		var ip ifPayloadCanon
		if err := canon.Unmarshal(payload, &ip); err != nil {
			return wrapCorrupt("if payload", err)
		}
		t, err := cid.FromSlice(ip.True)
		if err != nil {
			return wrapCorrupt("if true", err)
		}
		f, err := cid.FromSlice(ip.False)
		if err != nil {
			return wrapCorrupt("if false", err)
		}
		n.IfTrue, n.IfFalse = t, f
		return nil
	case KindToken:
		return nil
	case KindDeopt:
		var b []byte
		if err := canon.Unmarshal(payload, &b); err != nil {
			return wrapCorrupt("deopt payload", err)
		}
		if len(b) > 0 {
			c, err := cid.FromSlice(b)
			if err != nil {
				return wrapCorrupt("deopt target", err)
			}
			n.DeoptTarget = &c
		}
		return nil
	case KindDispatch:
		return decodeDispatchPayload(n, payload)
	case KindReturn:
		var rp returnPayloadCanon
		if err := canon.Unmarshal(payload, &rp); err != nil {
			return wrapCorrupt("return payload", err)
		}
		vals, err := decodeInputs(rp.Vals)
		if err != nil {
			return err
		}
		deps, err := decodeInputs(rp.Deps)
		if err != nil {
			return err
		}
		n.Return = ReturnPayload{Vals: vals, Deps: deps}
		return nil
	default:
		return fmt.Errorf("%w: no payload decoder for kind %q", marcherr.ErrCorruptObject, n.Kind)
	}
}

func decodeDispatchPayload(n *Node, payload cbor.RawMessage) error {
	var dp dispatchPayloadCanon
	if err := canon.Unmarshal(payload, &dp); err != nil {
		return wrapCorrupt("dispatch payload", err)
	}
	cases := make([]DispatchCase, len(dp.Cases))
	for i, raw := range dp.Cases {
		dc, err := decodeOneDispatchCase(raw)
		if err != nil {
			return fmt.Errorf("dispatch case %d: %w", i, err)
		}
		cases[i] = dc
	}
	n.Dispatch = cases
	if len(dp.Fallback) > 0 {
		c, err := cid.FromSlice(dp.Fallback)
		if err != nil {
			return wrapCorrupt("dispatch fallback", err)
		}
		n.DeoptTarget = &c
	}
	return nil
}

// decodeOneDispatchCase decodes either the modern four-field case shape
// or, when it fails, the legacy three-field shape (name, candidate,
// inline guard CID) predating lowered guard graphs — detected purely by
// payload shape, per spec §4.4.
func decodeOneDispatchCase(raw cbor.RawMessage) (DispatchCase, error) {
	var modern dispatchCaseCanon
	if err := canon.Unmarshal(raw, &modern); err == nil {
		guard, gerr := cid.FromSlice(modern.GuardWord)
		cand, cerr := cid.FromSlice(modern.Candidate)
		if gerr == nil && cerr == nil {
			params, perr := types.StringsToAtoms(modern.CandidateParams)
			effects, eerr := bytesToCIDs(modern.CandidateEffects)
			if perr == nil && eerr == nil {
				return DispatchCase{GuardWord: guard, Candidate: cand, CandidateParams: params, CandidateEffects: effects}, nil
			}
		}
	}
	var legacy legacyDispatchCaseCanon
	if err := canon.Unmarshal(raw, &legacy); err != nil {
		return DispatchCase{}, wrapCorrupt("dispatch case (legacy fallback)", err)
	}
	guard, err := cid.FromSlice(legacy.GuardCID)
	if err != nil {
		return DispatchCase{}, wrapCorrupt("legacy dispatch guard", err)
	}
	cand, err := cid.FromSlice(legacy.Candidate)
	if err != nil {
		return DispatchCase{}, wrapCorrupt("legacy dispatch candidate", err)
	}
	return DispatchCase{GuardWord: guard, Candidate: cand}, nil
}

func wrapCorrupt(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", marcherr.ErrCorruptObject, what, err)
}

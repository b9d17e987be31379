package catalog

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/marchdb/march/internal/builder"
	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/marcherr"
	"github.com/marchdb/march/internal/object"
	"github.com/marchdb/march/internal/types"
)

// wordSpec is a !word or !guard entry's decoded body, shared by plain
// words, guard words, and each overload variant.
type wordSpec struct {
	Params  []types.Atom
	Results []types.Atom
	Stack   []*yaml.Node
	Guards  []string // guard names to validate against this word's body
}

func decodeWordSpec(n *yaml.Node) (wordSpec, error) {
	params, err := typeListField(n, "params")
	if err != nil {
		return wordSpec{}, err
	}
	results, err := typeListField(n, "results")
	if err != nil {
		return wordSpec{}, err
	}
	stackNode := mappingField(n, "stack")
	if stackNode == nil || stackNode.Kind != yaml.SequenceNode {
		return wordSpec{}, fmt.Errorf("%w: word entry missing `stack` sequence", marcherr.ErrInvalidCanonicalForm)
	}
	guards, err := stringListField(n, "guards")
	if err != nil {
		return wordSpec{}, err
	}
	return wordSpec{Params: params, Results: results, Stack: stackNode.Content, Guards: guards}, nil
}

// runStackOps drives b through spec's stack op sequence. Each op node
// is a mapping `{op: <name>, ...op-specific fields}`; this is a clean
// YAML rendering of the op vocabulary original_source/src/yaml.rs's
// WordOp enum demonstrates (prim/word/dup/swap/over/lit/quote),
// extended to the builder's full eight-operation rewiring set.
func (im *Importer) runStackOps(b *builder.Builder, ops []*yaml.Node) error {
	for i, opNode := range ops {
		opName, err := scalarField(opNode, "op", "")
		if err != nil {
			return err
		}
		if opName == "" {
			return fmt.Errorf("%w: stack op %d missing `op` field", marcherr.ErrInvalidCanonicalForm, i)
		}
		if err := im.runStackOp(b, opName, opNode); err != nil {
			return fmt.Errorf("stack op %d (%s): %w", i, opName, err)
		}
	}
	return nil
}

func (im *Importer) runStackOp(b *builder.Builder, op string, n *yaml.Node) error {
	switch op {
	case "dup":
		return b.Dup()
	case "swap":
		return b.Swap()
	case "over":
		return b.Over()
	case "drop":
		return b.Drop()
	case "nip":
		return b.Nip()
	case "tuck":
		return b.Tuck()
	case "rot":
		return b.Rot()
	case "rotminus":
		return b.RotMinus()
	case "arg":
		idx, err := intField(n, "index")
		if err != nil {
			return err
		}
		ty, err := scalarField(n, "type", "")
		if err != nil {
			return err
		}
		atom, err := types.ParseAtom(ty)
		if err != nil {
			return fmt.Errorf("%w: arg type: %v", marcherr.ErrInvalidCanonicalForm, err)
		}
		_, err = b.PushArg(uint32(idx), atom)
		return err
	case "load_global":
		name, err := scalarField(n, "name", "")
		if err != nil {
			return err
		}
		ty, err := scalarField(n, "type", "")
		if err != nil {
			return err
		}
		atom, err := types.ParseAtom(ty)
		if err != nil {
			return fmt.Errorf("%w: load_global type: %v", marcherr.ErrInvalidCanonicalForm, err)
		}
		c, ok, err := im.st.NameGet("global", name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: global %q", marcherr.ErrUnknownSymbol, name)
		}
		_, err = b.PushGlobal(c, atom)
		return err
	case "lit":
		v := mappingField(n, "value")
		if v == nil {
			return fmt.Errorf("%w: lit op missing `value` field", marcherr.ErrInvalidCanonicalForm)
		}
		val, err := decodeValue(v)
		if err != nil {
			return err
		}
		_, err = b.PushLit(val)
		return err
	case "prim":
		name, err := scalarField(n, "name", "")
		if err != nil {
			return err
		}
		c, ok, err := im.st.NameGet("prim", name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: prim %q", marcherr.ErrUnknownSymbol, name)
		}
		_, err = b.Prim(c, im.resolveMask(name))
		return err
	case "word":
		name, err := scalarField(n, "name", "")
		if err != nil {
			return err
		}
		c, ok, err := im.st.NameGet("word", name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: word %q", marcherr.ErrUnknownSymbol, name)
		}
		_, err = b.Call(c, im.resolveMask(name))
		return err
	case "quote":
		name, err := scalarField(n, "name", "")
		if err != nil {
			return err
		}
		c, ok, err := im.st.NameGet("word", name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: word %q", marcherr.ErrUnknownSymbol, name)
		}
		_, err = b.Quote(c)
		return err
	default:
		return fmt.Errorf("%w: stack op %q", marcherr.ErrInvalidCanonicalForm, op)
	}
}

func intField(n *yaml.Node, key string) (int, error) {
	v := mappingField(n, key)
	if v == nil {
		return 0, fmt.Errorf("%w: missing field %q", marcherr.ErrInvalidCanonicalForm, key)
	}
	var i int
	if err := v.Decode(&i); err != nil {
		return 0, fmt.Errorf("%w: field %q: %v", marcherr.ErrInvalidCanonicalForm, key, err)
	}
	return i, nil
}

// buildWord drives a fresh builder through spec and finishes it,
// deriving the word's declared effect list as the union of every
// constituent prim/word call's own declared effects (the catalog's
// !word tag carries no explicit effects field; it is inferred from the
// body, the same information original_source's apply_word_catalog gets
// implicitly by replaying the stack against a store that already knows
// each referenced prim/word's effects).
func (im *Importer) buildWord(spec wordSpec, name string) (cid.CID, error) {
	declared, err := im.inferEffects(spec.Stack)
	if err != nil {
		return cid.CID{}, err
	}

	b := builder.New(im.st, false)
	if err := b.BeginWord(spec.Params, declared); err != nil {
		return cid.CID{}, err
	}
	for _, guardName := range spec.Guards {
		gc, ok, err := im.st.NameGet("word", guardName)
		if err != nil {
			return cid.CID{}, err
		}
		if !ok {
			return cid.CID{}, fmt.Errorf("%w: guard %q", marcherr.ErrUnknownSymbol, guardName)
		}
		if _, err := b.AttachGuard(gc); err != nil {
			return cid.CID{}, err
		}
	}
	if err := im.runStackOps(b, spec.Stack); err != nil {
		return cid.CID{}, err
	}
	wordCID, _, err := b.FinishWord(spec.Results, declared, name)
	if err != nil {
		return cid.CID{}, err
	}
	return wordCID, nil
}

// inferEffects collects the declared effect set of every prim/word a
// stack sequence references, sorted and deduped for builder.BeginWord.
func (im *Importer) inferEffects(ops []*yaml.Node) ([]cid.CID, error) {
	seen := map[cid.CID]bool{}
	var out []cid.CID
	for _, opNode := range ops {
		op, _ := scalarField(opNode, "op", "")
		var scope string
		switch op {
		case "prim":
			scope = "prim"
		case "word":
			scope = "word"
		default:
			continue
		}
		name, err := scalarField(opNode, "name", "")
		if err != nil || name == "" {
			continue
		}
		c, ok, err := im.st.NameGet(scope, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var effs []cid.CID
		if scope == "prim" {
			data, err := im.st.GetKind(c, "prim")
			if err != nil {
				return nil, err
			}
			p, err := object.DecodePrim(data)
			if err != nil {
				return nil, err
			}
			effs = p.Effects
		} else {
			data, err := im.st.GetKind(c, "word")
			if err != nil {
				return nil, err
			}
			w, err := object.DecodeWord(data)
			if err != nil {
				return nil, err
			}
			effs = w.Effects
		}
		for _, e := range effs {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return cid.Dedup(cid.SortCIDs(out)), nil
}

// importWord handles a plain !word entry.
func (im *Importer) importWord(ns, sym string, n *yaml.Node, report *Report) error {
	full := fullName(ns, sym)
	spec, err := decodeWordSpec(n)
	if err != nil {
		return err
	}
	wordCID, err := im.buildWord(spec, full)
	if err != nil {
		return err
	}
	if _, ok, err := im.st.NameGet("word", sym); err != nil {
		return err
	} else if !ok {
		if err := im.st.NamePut("word", sym, wordCID); err != nil {
			return err
		}
	}
	report.add("stored word %q with cid %s", full, wordCID)
	return nil
}

// importGuardWord handles a !guard entry: a word that must be
// guard-shaped (single i64 result, no effects), registered in the
// `guard` name scope in addition to `word`.
func (im *Importer) importGuardWord(ns, sym string, n *yaml.Node, report *Report) error {
	full := fullName(ns, sym)
	spec, err := decodeWordSpec(n)
	if err != nil {
		return err
	}
	if len(spec.Results) != 1 || spec.Results[0] != types.I64 {
		return fmt.Errorf("%w: guard %q must declare a single i64 result", marcherr.ErrTypeMismatch, full)
	}
	wordCID, err := im.buildWord(spec, full)
	if err != nil {
		return err
	}
	data, err := im.st.GetKind(wordCID, "word")
	if err != nil {
		return err
	}
	w, err := object.DecodeWord(data)
	if err != nil {
		return err
	}
	if !w.IsGuardShape() {
		return fmt.Errorf("%w: guard %q is not guard-shaped after build", marcherr.ErrTypeMismatch, full)
	}
	if err := im.nameAndBare("guard", ns, sym, wordCID); err != nil {
		return err
	}
	if err := im.st.NamePut("word", full, wordCID); err != nil {
		return err
	}
	report.add("stored guard %q with cid %s", full, wordCID)
	return nil
}

package catalog

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/marcherr"
	"github.com/marchdb/march/internal/types"
)

// Entry tags, preserving the exact vocabulary demonstrated by
// original_source/src/yaml.rs's tests, extended with `!guard` and
// `!overloads` for the distilled spec's fuller operation set.
const (
	tagEffect    = "!effect"
	tagPrim      = "!prim"
	tagGuard     = "!guard"
	tagWord      = "!word"
	tagOverloads = "!overloads"
	tagSnapshot  = "!snapshot"

	tagI64   = "!i64"
	tagF64   = "!f64"
	tagText  = "!text"
	tagTuple = "!tuple"
	tagQuote = "!quote"
	tagUnit  = "!unit"
)

// parseDocument unmarshals a catalog document's top level into
// namespace -> symbol -> tagged node, preserving each entry's original
// yaml.Node (and therefore its tag) for dispatch.
func parseDocument(data []byte) (map[string]map[string]*yaml.Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: catalog yaml: %v", marcherr.ErrInvalidCanonicalForm, err)
	}
	if len(root.Content) == 0 {
		return map[string]map[string]*yaml.Node{}, nil
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: catalog root must be a mapping", marcherr.ErrInvalidCanonicalForm)
	}

	doc := make(map[string]map[string]*yaml.Node)
	for i := 0; i+1 < len(top.Content); i += 2 {
		nsKey, nsVal := top.Content[i], top.Content[i+1]
		if nsVal.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: namespace %q must be a mapping", marcherr.ErrInvalidCanonicalForm, nsKey.Value)
		}
		entries := make(map[string]*yaml.Node)
		for j := 0; j+1 < len(nsVal.Content); j += 2 {
			symKey, symVal := nsVal.Content[j], nsVal.Content[j+1]
			entries[symKey.Value] = symVal
		}
		doc[nsKey.Value] = entries
	}
	return doc, nil
}

// mappingField returns the value node bound to key within n's mapping
// body, or nil if absent. n may itself carry any tag; only its Kind
// (MappingNode) matters here.
func mappingField(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// scalarField decodes a string-valued mapping field, returning def if
// the field is absent.
func scalarField(n *yaml.Node, key, def string) (string, error) {
	v := mappingField(n, key)
	if v == nil {
		return def, nil
	}
	var s string
	if err := v.Decode(&s); err != nil {
		return "", fmt.Errorf("%w: field %q: %v", marcherr.ErrInvalidCanonicalForm, key, err)
	}
	return s, nil
}

// typeListField decodes a sequence-of-strings mapping field into type
// atoms, treating an absent field as empty.
func typeListField(n *yaml.Node, key string) ([]types.Atom, error) {
	v := mappingField(n, key)
	if v == nil {
		return nil, nil
	}
	var raw []string
	if err := v.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: field %q: %v", marcherr.ErrInvalidCanonicalForm, key, err)
	}
	return types.StringsToAtoms(raw)
}

// stringListField decodes a sequence-of-strings mapping field, treating
// an absent field as empty.
func stringListField(n *yaml.Node, key string) ([]string, error) {
	v := mappingField(n, key)
	if v == nil {
		return nil, nil
	}
	var raw []string
	if err := v.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: field %q: %v", marcherr.ErrInvalidCanonicalForm, key, err)
	}
	return raw, nil
}

// hexCIDListField decodes a sequence of hex-encoded 32-byte CIDs.
func hexCIDListField(n *yaml.Node, key string) ([]cid.CID, error) {
	raw, err := stringListField(n, key)
	if err != nil {
		return nil, err
	}
	out := make([]cid.CID, 0, len(raw))
	for _, s := range raw {
		if s == "" {
			continue
		}
		c, err := cid.FromHex(s)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", marcherr.ErrInvalidCanonicalForm, key, err)
		}
		out = append(out, c)
	}
	return cid.Dedup(cid.SortCIDs(out)), nil
}

// decodeValue decodes a tagged value node (!i64, !f64, !text, !tuple,
// !quote, !unit) into a runtime Value, matching the tag vocabulary
// original_source/src/yaml.rs's decode_value demonstrates.
func decodeValue(n *yaml.Node) (types.Value, error) {
	switch n.Tag {
	case tagI64:
		v, err := strconv.ParseInt(n.Value, 10, 64)
		if err != nil {
			return types.Value{}, fmt.Errorf("%w: !i64: %v", marcherr.ErrInvalidCanonicalForm, err)
		}
		return types.I64Value(v), nil
	case tagF64:
		v, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return types.Value{}, fmt.Errorf("%w: !f64: %v", marcherr.ErrInvalidCanonicalForm, err)
		}
		return types.F64Value(v), nil
	case tagText:
		var v string
		if err := n.Decode(&v); err != nil {
			return types.Value{}, fmt.Errorf("%w: !text: %v", marcherr.ErrInvalidCanonicalForm, err)
		}
		return types.TextValue(v), nil
	case tagTuple:
		if n.Kind != yaml.SequenceNode {
			return types.Value{}, fmt.Errorf("%w: !tuple payload must be a sequence", marcherr.ErrInvalidCanonicalForm)
		}
		elems := make([]types.Value, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := decodeValue(item)
			if err != nil {
				return types.Value{}, err
			}
			elems = append(elems, v)
		}
		return types.TupleValue(elems), nil
	case tagQuote:
		var s string
		if err := n.Decode(&s); err != nil {
			return types.Value{}, fmt.Errorf("%w: !quote: %v", marcherr.ErrInvalidCanonicalForm, err)
		}
		c, err := cid.FromHex(s)
		if err != nil {
			return types.Value{}, fmt.Errorf("%w: !quote: %v", marcherr.ErrInvalidCanonicalForm, err)
		}
		return types.QuoteValue(c), nil
	case tagUnit:
		return types.UnitValue, nil
	default:
		return types.Value{}, fmt.Errorf("%w: unsupported value tag %q", marcherr.ErrInvalidCanonicalForm, n.Tag)
	}
}

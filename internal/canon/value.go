package canon

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/marcherr"
	"github.com/marchdb/march/internal/types"
)

// EncodeValue renders a runtime Value as canonical CBOR. The encoding is
// self-describing by CBOR major type: integers for i64, floats for f64,
// text strings for text, byte strings for quote (a 32-byte word CID),
// null for unit, and arrays for tuple — so DecodeValue needs no external
// type hint beyond recursing into nested tuple elements.
func EncodeValue(v types.Value) (cbor.RawMessage, error) {
	switch v.Kind {
	case types.I64:
		return marshalRaw(v.I64)
	case types.F64:
		return marshalRaw(v.F64)
	case types.Text:
		return marshalRaw(v.Text)
	case types.Unit:
		return marshalRaw(nil)
	case types.Quote:
		return marshalRaw(v.Quote.Bytes())
	case types.Tuple:
		elems := make([]cbor.RawMessage, len(v.Tuple))
		for i, e := range v.Tuple {
			enc, err := EncodeValue(e)
			if err != nil {
				return nil, err
			}
			elems[i] = enc
		}
		return marshalRaw(elems)
	default:
		return nil, fmt.Errorf("%w: unencodable value kind %q", marcherr.ErrInvalidCanonicalForm, v.Kind)
	}
}

func marshalRaw(v any) (cbor.RawMessage, error) {
	data, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	return cbor.RawMessage(data), nil
}

// DecodeValue inverts EncodeValue given the declared type atom, used to
// disambiguate text vs. quote (both could otherwise decode into a Go
// string/[]byte pair without a hint) and to recurse into tuple elements.
func DecodeValue(atom types.Atom, raw cbor.RawMessage) (types.Value, error) {
	switch atom {
	case types.I64:
		var i int64
		if err := Unmarshal(raw, &i); err != nil {
			return types.Value{}, fmt.Errorf("%w: i64 value: %v", marcherr.ErrCorruptObject, err)
		}
		return types.I64Value(i), nil
	case types.F64:
		var f float64
		if err := Unmarshal(raw, &f); err != nil {
			return types.Value{}, fmt.Errorf("%w: f64 value: %v", marcherr.ErrCorruptObject, err)
		}
		return types.F64Value(f), nil
	case types.Text:
		var s string
		if err := Unmarshal(raw, &s); err != nil {
			return types.Value{}, fmt.Errorf("%w: text value: %v", marcherr.ErrCorruptObject, err)
		}
		return types.TextValue(s), nil
	case types.Unit:
		return types.UnitValue, nil
	case types.Quote:
		var b []byte
		if err := Unmarshal(raw, &b); err != nil {
			return types.Value{}, fmt.Errorf("%w: quote value: %v", marcherr.ErrCorruptObject, err)
		}
		c, err := cid.FromSlice(b)
		if err != nil {
			return types.Value{}, fmt.Errorf("%w: quote cid: %v", marcherr.ErrCorruptObject, err)
		}
		return types.QuoteValue(c), nil
	case types.Tuple:
		var elems []cbor.RawMessage
		if err := Unmarshal(raw, &elems); err != nil {
			return types.Value{}, fmt.Errorf("%w: tuple value: %v", marcherr.ErrCorruptObject, err)
		}
		out := make([]types.Value, len(elems))
		for i, e := range elems {
			// Tuple element atoms are not separately carried; values
			// decode themselves by CBOR major type probing below.
			v, err := decodeValueSelfDescribing(e)
			if err != nil {
				return types.Value{}, fmt.Errorf("%w: tuple element %d: %v", marcherr.ErrCorruptObject, i, err)
			}
			out[i] = v
		}
		return types.TupleValue(out), nil
	default:
		return types.Value{}, fmt.Errorf("%w: unknown value type atom %q", marcherr.ErrInvalidCanonicalForm, atom)
	}
}

// decodeValueSelfDescribing decodes a raw CBOR value without an atom
// hint by probing its major type. Used for tuple elements, where the
// element type list is reconstructed from the decoded shape rather than
// stored again alongside the tuple's own "tuple" atom.
func decodeValueSelfDescribing(raw cbor.RawMessage) (types.Value, error) {
	var probe any
	if err := Unmarshal(raw, &probe); err != nil {
		return types.Value{}, err
	}
	switch p := probe.(type) {
	case nil:
		return types.UnitValue, nil
	case int64:
		return types.I64Value(p), nil
	case uint64:
		return types.I64Value(int64(p)), nil
	case float64:
		return types.F64Value(p), nil
	case string:
		return types.TextValue(p), nil
	case []byte:
		c, err := cid.FromSlice(p)
		if err != nil {
			return types.Value{}, err
		}
		return types.QuoteValue(c), nil
	case []any:
		elems := make([]types.Value, len(p))
		for i, e := range p {
			enc, err := marshalRaw(e)
			if err != nil {
				return types.Value{}, err
			}
			v, err := decodeValueSelfDescribing(enc)
			if err != nil {
				return types.Value{}, err
			}
			elems[i] = v
		}
		return types.TupleValue(elems), nil
	default:
		return types.Value{}, fmt.Errorf("%w: undecodable probed value %T", marcherr.ErrCorruptObject, p)
	}
}

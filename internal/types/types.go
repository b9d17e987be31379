// Package types defines the closed set of ground type atoms and runtime
// values shared by the canonical encoder, graph builder, and
// interpreter.
package types

import (
	"fmt"
	"sort"

	"github.com/marchdb/march/internal/cid"
)

// Atom is a symbolic ground-type tag. Carried as short strings in the
// current encoding; reserved for promotion to CIDs later without
// changing array shape.
type Atom string

const (
	I64   Atom = "i64"
	F64   Atom = "f64"
	Unit  Atom = "unit"
	Ptr   Atom = "ptr"
	Text  Atom = "text"
	Tuple Atom = "tuple"
	Quote Atom = "quote"
)

// AllAtoms lists every valid type atom.
var AllAtoms = []Atom{I64, F64, Unit, Ptr, Text, Tuple, Quote}

// Valid reports whether a is one of the closed set of ground type atoms.
func (a Atom) Valid() bool {
	switch a {
	case I64, F64, Unit, Ptr, Text, Tuple, Quote:
		return true
	}
	return false
}

// ParseAtom validates and returns s as an Atom.
func ParseAtom(s string) (Atom, error) {
	a := Atom(s)
	if !a.Valid() {
		return "", fmt.Errorf("types: unknown type atom %q", s)
	}
	return a, nil
}

// Domain names an effect category. At minimum io and state are active;
// fs, net, test, metric are reserved.
type Domain string

const (
	DomainIO     Domain = "io"
	DomainState  Domain = "state"
	DomainFS     Domain = "fs"
	DomainNet    Domain = "net"
	DomainTest   Domain = "test"
	DomainMetric Domain = "metric"
)

// OptionalDomains may be elided by the builder in release mode when no
// token is available, rather than failing the compile.
var OptionalDomains = map[Domain]bool{
	DomainTest:   true,
	DomainMetric: true,
}

// Perm is a token's required permission within a domain.
type Perm string

const (
	PermRead  Perm = "read"
	PermWrite Perm = "write"
)

// Value is the closed runtime value set the interpreter operates over.
type Value struct {
	Kind  Atom
	I64   int64
	F64   float64
	Text  string
	Tuple []Value
	Quote cid.CID // valid when Kind == Quote: the quoted word's CID
}

// UnitValue is the single unit value.
var UnitValue = Value{Kind: Unit}

// I64Value constructs an i64 value.
func I64Value(v int64) Value { return Value{Kind: I64, I64: v} }

// F64Value constructs an f64 value.
func F64Value(v float64) Value { return Value{Kind: F64, F64: v} }

// TextValue constructs a text value.
func TextValue(v string) Value { return Value{Kind: Text, Text: v} }

// TupleValue constructs a tuple value.
func TupleValue(vs []Value) Value { return Value{Kind: Tuple, Tuple: vs} }

// QuoteValue constructs a quote value referencing a word CID.
func QuoteValue(c cid.CID) Value { return Value{Kind: Quote, Quote: c} }

// Equal compares two values structurally.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case I64:
		return v.I64 == other.I64
	case F64:
		return v.F64 == other.F64
	case Text:
		return v.Text == other.Text
	case Quote:
		return v.Quote == other.Quote
	case Tuple:
		if len(v.Tuple) != len(other.Tuple) {
			return false
		}
		for i := range v.Tuple {
			if !v.Tuple[i].Equal(other.Tuple[i]) {
				return false
			}
		}
		return true
	case Unit:
		return true
	default:
		return false
	}
}

// AtomsToStrings renders a type atom list as plain strings, the form
// carried by the canonical encoder.
func AtomsToStrings(atoms []Atom) []string {
	out := make([]string, len(atoms))
	for i, a := range atoms {
		out[i] = string(a)
	}
	return out
}

// StringsToAtoms parses a string list back into validated Atoms.
func StringsToAtoms(ss []string) ([]Atom, error) {
	out := make([]Atom, len(ss))
	for i, s := range ss {
		a, err := ParseAtom(s)
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

// EffectMask is non-canonical metadata (never hashed) carried alongside
// a Prim to tell the builder which permission each declared domain
// needs: a set bit means the domain is touched with PermWrite, a clear
// bit means PermRead suffices. This is the repurposed successor to
// original_source's prim.rs effect_mask field, which that codebase
// baked into the hashed payload; here it lives only in the builder-time
// side channel populated by the catalog importer's `!prim { emask }`.
type EffectMask uint32

// domainBit is the fixed domain-to-bit-position mapping EffectMask uses.
var domainBit = map[Domain]uint{
	DomainIO: 0, DomainState: 1, DomainFS: 2,
	DomainNet: 3, DomainTest: 4, DomainMetric: 5,
}

// PermFor returns the permission EffectMask requires for domain.
func (m EffectMask) PermFor(d Domain) Perm {
	bit, ok := domainBit[d]
	if !ok {
		return PermWrite
	}
	if m&(1<<bit) != 0 {
		return PermWrite
	}
	return PermRead
}

// SetWrite returns a mask with domain's bit set to require PermWrite.
func (m EffectMask) SetWrite(d Domain) EffectMask {
	bit, ok := domainBit[d]
	if !ok {
		return m
	}
	return m | (1 << bit)
}

// MaskNone mirrors original_source's effect_mask default: it requires
// no writes in any domain.
const (
	MaskNone EffectMask = 0
)

// DefaultMask infers a mask the way original_source/src/guard.rs's
// load_guard_info did: no declared effects -> MaskNone, otherwise
// treat every declared domain as a write.
func DefaultMask(domains []Domain) EffectMask {
	var m EffectMask
	for _, d := range domains {
		m = m.SetWrite(d)
	}
	return m
}

// SortDomains returns the sorted set of domains present in a mask map,
// used when a builder needs deterministic iteration over declared
// effect domains.
func SortDomains(m map[Domain]bool) []Domain {
	out := make([]Domain, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

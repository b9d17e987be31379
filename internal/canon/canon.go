// Package canon implements the canonical binary encoding shared by every
// object kind: a positional, tag-first CBOR array, in canonical mode
// (sorted map keys, shortest-form integers, no indefinite-length items)
// so that the exact byte sequence — and therefore the CID — is
// reproducible bit-for-bit by any conforming reimplementation.
package canon

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/marcherr"
)

// Tag identifies an object kind's position in the canonical tag space.
// Emitted as the first element of every object's positional array.
type Tag uint8

const (
	TagPrim      Tag = 0
	TagWord      Tag = 1
	TagGlobal    Tag = 2
	TagIface     Tag = 3
	TagNamespace Tag = 4
	TagProgram   Tag = 5
	TagNode      Tag = 6
)

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("canon: failed to build canonical CBOR encode mode: %v", err))
	}
	encMode = em

	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("canon: failed to build CBOR decode mode: %v", err))
	}
	decMode = dm
}

// Marshal serializes v (normally a struct tagged `cbor:",toarray"`) into
// its canonical byte sequence.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes canonical bytes into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Hash encodes then hashes v, returning both the bytes and the CID so
// callers needing both don't encode twice.
func Hash(v any) ([]byte, cid.CID, error) {
	data, err := Marshal(v)
	if err != nil {
		return nil, cid.CID{}, err
	}
	return data, cid.Compute(data), nil
}

// CIDList carries a list of CIDs as raw 32-byte strings in the array
// form every object uses for CID-typed slots.
type CIDList []cid.CID

// SortedUnique returns a bytewise-sorted, deduplicated copy.
func (l CIDList) SortedUnique() CIDList {
	cp := make([]cid.CID, len(l))
	copy(cp, l)
	cid.SortCIDs(cp)
	return CIDList(cid.Dedup(cp))
}

// IsSortedUnique reports whether l is already in canonical (sorted,
// deduplicated) order, the precondition the encoder enforces before
// emitting an effects or deps list.
func (l CIDList) IsSortedUnique() bool {
	for i := 1; i < len(l); i++ {
		if !l[i-1].Less(l[i]) {
			return false
		}
	}
	return true
}

// RequireSortedUnique returns ErrInvalidCanonicalForm if l is not
// already canonically ordered. The encoder never silently sorts on the
// caller's behalf: unsorted input is a structural violation (spec §4.1).
func (l CIDList) RequireSortedUnique(context string) error {
	if !l.IsSortedUnique() {
		return fmt.Errorf("%w: %s is not sorted/deduplicated", marcherr.ErrInvalidCanonicalForm, context)
	}
	return nil
}

// RequireSortedByName validates a generic named-entry list is sorted
// lexicographically by name with no duplicates, the rule shared by
// interface entries and namespace exports.
func RequireSortedByName(names []string, context string) error {
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			return fmt.Errorf("%w: %s is not sorted by name (or has a duplicate) at index %d", marcherr.ErrInvalidCanonicalForm, context, i)
		}
	}
	return nil
}

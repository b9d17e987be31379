package global

import (
	"fmt"

	"github.com/marchdb/march/internal/canon"
	"github.com/marchdb/march/internal/marcherr"
	"github.com/marchdb/march/internal/types"
)

// snapshotKind tags encoded snapshot blobs in the object store, echoing
// original_source/src/global_store.rs's CBOR tag 8 ("gstate") marker.
const snapshotKind = "gstate"

type snapshotEntryCanon struct {
	_        struct{} `cbor:",toarray"`
	Key      string
	TypeAtom string
	Value    canonRaw
}

type canonRaw = []byte

type namespaceEntryCanon struct {
	_      struct{} `cbor:",toarray"`
	NS     string
	Entries []snapshotEntryCanon
}

type snapshotCanon struct {
	_          struct{} `cbor:",toarray"`
	Tag        string
	Namespaces []namespaceEntryCanon
}

func valueAtom(v types.Value) types.Atom {
	return v.Kind
}

// Encode renders a Snapshot into its persisted CBOR form.
func Encode(snap Snapshot) ([]byte, error) {
	nsOut := make([]namespaceEntryCanon, len(snap.Namespaces))
	for i, ns := range snap.Namespaces {
		entries := make([]snapshotEntryCanon, len(ns.Entries))
		for j, e := range ns.Entries {
			raw, err := canon.EncodeValue(e.Value)
			if err != nil {
				return nil, err
			}
			entries[j] = snapshotEntryCanon{Key: e.Key, TypeAtom: string(valueAtom(e.Value)), Value: raw}
		}
		nsOut[i] = namespaceEntryCanon{NS: ns.Namespace, Entries: entries}
	}
	return canon.Marshal(snapshotCanon{Tag: snapshotKind, Namespaces: nsOut})
}

// Decode inverts Encode.
func Decode(data []byte) (Snapshot, error) {
	var c snapshotCanon
	if err := canon.Unmarshal(data, &c); err != nil {
		return Snapshot{}, fmt.Errorf("%w: global snapshot: %v", marcherr.ErrCorruptObject, err)
	}
	if c.Tag != snapshotKind {
		return Snapshot{}, fmt.Errorf("%w: global snapshot tag mismatch: %q", marcherr.ErrCorruptObject, c.Tag)
	}
	out := Snapshot{Namespaces: make([]NamespaceSnapshot, len(c.Namespaces))}
	for i, ns := range c.Namespaces {
		entries := make([]Entry, len(ns.Entries))
		for j, e := range ns.Entries {
			atom, err := types.ParseAtom(e.TypeAtom)
			if err != nil {
				return Snapshot{}, err
			}
			v, err := canon.DecodeValue(atom, e.Value)
			if err != nil {
				return Snapshot{}, err
			}
			entries[j] = Entry{Key: e.Key, Value: v}
		}
		out.Namespaces[i] = NamespaceSnapshot{Namespace: ns.NS, Entries: entries}
	}
	return out, nil
}

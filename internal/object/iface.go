package object

import (
	"fmt"
	"sort"

	"github.com/marchdb/march/internal/canon"
	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/marcherr"
	"github.com/marchdb/march/internal/types"
)

// IfaceEntry is one exported symbol in an Interface.
type IfaceEntry struct {
	Name    string
	Params  []types.Atom
	Results []types.Atom
	Effects []cid.CID
}

// Iface is an ordered list of exported entries, sorted lexicographically
// by name, effects sorted by CID bytes within each entry.
type Iface struct {
	Names []IfaceEntry
}

type ifaceEntryCanon struct {
	_       struct{} `cbor:",toarray"`
	Name    string
	Params  []string
	Results []string
	Effects [][]byte
}

type ifaceCanon struct {
	_     struct{} `cbor:",toarray"`
	Tag   uint8
	Names []ifaceEntryCanon
}

// Encode serializes i into its canonical [3, names] form.
func (i Iface) Encode() ([]byte, error) {
	names := make([]string, len(i.Names))
	for idx, e := range i.Names {
		names[idx] = e.Name
	}
	if err := canon.RequireSortedByName(names, "iface.names"); err != nil {
		return nil, err
	}
	entries := make([]ifaceEntryCanon, len(i.Names))
	for idx, e := range i.Names {
		if err := canon.CIDList(e.Effects).RequireSortedUnique(fmt.Sprintf("iface.names[%d].effects", idx)); err != nil {
			return nil, err
		}
		entries[idx] = ifaceEntryCanon{
			Name:    e.Name,
			Params:  types.AtomsToStrings(e.Params),
			Results: types.AtomsToStrings(e.Results),
			Effects: cidsToBytes(e.Effects),
		}
	}
	c := ifaceCanon{Tag: uint8(canon.TagIface), Names: entries}
	return canon.Marshal(c)
}

// Hash encodes and hashes i.
func (i Iface) Hash() (cid.CID, []byte, error) {
	data, err := i.Encode()
	if err != nil {
		return cid.CID{}, nil, err
	}
	return cid.Compute(data), data, nil
}

// DecodeIface parses canonical bytes back into an Iface.
func DecodeIface(data []byte) (Iface, error) {
	var c ifaceCanon
	if err := canon.Unmarshal(data, &c); err != nil {
		return Iface{}, fmt.Errorf("%w: iface: %v", marcherr.ErrCorruptObject, err)
	}
	if c.Tag != uint8(canon.TagIface) {
		return Iface{}, fmt.Errorf("%w: iface tag mismatch: %d", marcherr.ErrCorruptObject, c.Tag)
	}
	out := make([]IfaceEntry, len(c.Names))
	for idx, e := range c.Names {
		params, err := types.StringsToAtoms(e.Params)
		if err != nil {
			return Iface{}, err
		}
		results, err := types.StringsToAtoms(e.Results)
		if err != nil {
			return Iface{}, err
		}
		effects, err := bytesToCIDs(e.Effects)
		if err != nil {
			return Iface{}, err
		}
		out[idx] = IfaceEntry{Name: e.Name, Params: params, Results: results, Effects: effects}
	}
	return Iface{Names: out}, nil
}

// DeriveFromExports builds an Interface from a namespace's exported
// (name, word) pairs, looking up each word's signature via lookupWord.
func DeriveFromExports(exports []NamespaceExport, lookupWord func(cid.CID) (Word, error)) (Iface, error) {
	entries := make([]IfaceEntry, 0, len(exports))
	for _, ex := range exports {
		w, err := lookupWord(ex.Word)
		if err != nil {
			return Iface{}, fmt.Errorf("derive interface: export %q: %w", ex.Name, err)
		}
		entries = append(entries, IfaceEntry{
			Name:    ex.Name,
			Params:  w.Params,
			Results: w.Results,
			Effects: w.Effects,
		})
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Name < entries[b].Name })
	return Iface{Names: entries}, nil
}

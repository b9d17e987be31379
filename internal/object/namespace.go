package object

import (
	"fmt"
	"sort"

	"github.com/marchdb/march/internal/canon"
	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/marcherr"
)

// NamespaceExport binds a display name to a word CID within a namespace.
type NamespaceExport struct {
	Name string
	Word cid.CID
}

// Namespace binds an interface to a sorted set of imported namespace
// CIDs and sorted-by-name exports. The namespace's display name is not
// part of the CID; it lives in the name index.
type Namespace struct {
	Iface    cid.CID
	Bindings []cid.CID // imported namespace CIDs, sorted
	Exports  []NamespaceExport
}

type namespaceExportCanon struct {
	_    struct{} `cbor:",toarray"`
	Name string
	Word []byte
}

type namespaceCanon struct {
	_        struct{} `cbor:",toarray"`
	Tag      uint8
	Iface    []byte
	Bindings [][]byte
	Exports  []namespaceExportCanon
}

// Encode serializes n into its canonical [4, interfaceCID, bindingsSorted, exportsSortedByName] form.
func (n Namespace) Encode() ([]byte, error) {
	if err := canon.CIDList(n.Bindings).RequireSortedUnique("namespace.bindings"); err != nil {
		return nil, err
	}
	names := make([]string, len(n.Exports))
	for i, e := range n.Exports {
		names[i] = e.Name
	}
	if err := canon.RequireSortedByName(names, "namespace.exports"); err != nil {
		return nil, err
	}
	exports := make([]namespaceExportCanon, len(n.Exports))
	for i, e := range n.Exports {
		exports[i] = namespaceExportCanon{Name: e.Name, Word: e.Word.Bytes()}
	}
	c := namespaceCanon{
		Tag:      uint8(canon.TagNamespace),
		Iface:    n.Iface.Bytes(),
		Bindings: cidsToBytes(n.Bindings),
		Exports:  exports,
	}
	return canon.Marshal(c)
}

// Hash encodes and hashes n.
func (n Namespace) Hash() (cid.CID, []byte, error) {
	data, err := n.Encode()
	if err != nil {
		return cid.CID{}, nil, err
	}
	return cid.Compute(data), data, nil
}

// DecodeNamespace parses canonical bytes back into a Namespace.
func DecodeNamespace(data []byte) (Namespace, error) {
	var c namespaceCanon
	if err := canon.Unmarshal(data, &c); err != nil {
		return Namespace{}, fmt.Errorf("%w: namespace: %v", marcherr.ErrCorruptObject, err)
	}
	if c.Tag != uint8(canon.TagNamespace) {
		return Namespace{}, fmt.Errorf("%w: namespace tag mismatch: %d", marcherr.ErrCorruptObject, c.Tag)
	}
	iface, err := cid.FromSlice(c.Iface)
	if err != nil {
		return Namespace{}, fmt.Errorf("%w: namespace iface: %v", marcherr.ErrCorruptObject, err)
	}
	bindings, err := bytesToCIDs(c.Bindings)
	if err != nil {
		return Namespace{}, err
	}
	exports := make([]NamespaceExport, len(c.Exports))
	for i, e := range c.Exports {
		w, err := cid.FromSlice(e.Word)
		if err != nil {
			return Namespace{}, fmt.Errorf("%w: namespace export %d: %v", marcherr.ErrCorruptObject, i, err)
		}
		exports[i] = NamespaceExport{Name: e.Name, Word: w}
	}
	return Namespace{Iface: iface, Bindings: bindings, Exports: exports}, nil
}

// SortExports sorts a caller-assembled export list by name in place,
// for use before Encode (the encoder itself only validates, it never
// silently reorders).
func SortExports(exports []NamespaceExport) {
	sort.Slice(exports, func(i, j int) bool { return exports[i].Name < exports[j].Name })
}

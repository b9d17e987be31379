package object

import (
	"fmt"

	"github.com/marchdb/march/internal/canon"
	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/marcherr"
)

// Program pairs an entry word with a root namespace.
type Program struct {
	EntryWord     cid.CID
	RootNamespace cid.CID
}

type programCanon struct {
	_             struct{} `cbor:",toarray"`
	Tag           uint8
	EntryWord     []byte
	RootNamespace []byte
}

// Encode serializes p into its canonical [5, entryWordCID, rootNamespaceCID] form.
func (p Program) Encode() ([]byte, error) {
	c := programCanon{
		Tag:           uint8(canon.TagProgram),
		EntryWord:     p.EntryWord.Bytes(),
		RootNamespace: p.RootNamespace.Bytes(),
	}
	return canon.Marshal(c)
}

// Hash encodes and hashes p.
func (p Program) Hash() (cid.CID, []byte, error) {
	data, err := p.Encode()
	if err != nil {
		return cid.CID{}, nil, err
	}
	return cid.Compute(data), data, nil
}

// DecodeProgram parses canonical bytes back into a Program.
func DecodeProgram(data []byte) (Program, error) {
	var c programCanon
	if err := canon.Unmarshal(data, &c); err != nil {
		return Program{}, fmt.Errorf("%w: program: %v", marcherr.ErrCorruptObject, err)
	}
	if c.Tag != uint8(canon.TagProgram) {
		return Program{}, fmt.Errorf("%w: program tag mismatch: %d", marcherr.ErrCorruptObject, c.Tag)
	}
	entry, err := cid.FromSlice(c.EntryWord)
	if err != nil {
		return Program{}, fmt.Errorf("%w: program entry word: %v", marcherr.ErrCorruptObject, err)
	}
	root, err := cid.FromSlice(c.RootNamespace)
	if err != nil {
		return Program{}, fmt.Errorf("%w: program root namespace: %v", marcherr.ErrCorruptObject, err)
	}
	return Program{EntryWord: entry, RootNamespace: root}, nil
}
